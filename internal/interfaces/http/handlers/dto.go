package handlers

import (
	"time"

	"github.com/turtacn/insurance-derivatives/internal/domain/derivative"
	"github.com/turtacn/insurance-derivatives/internal/domain/obligation"
)

type ObligationResponse struct {
	ID              int64              `json:"id"`
	PolicyNumber    string             `json:"policy_number"`
	Type            obligation.Type    `json:"type"`
	Status          obligation.Status  `json:"status"`
	RiskLevel       float64            `json:"risk_level"`
	Amount          float64            `json:"amount"`
	DurationMonths  int                `json:"duration_months"`
	CalculatedValue float64            `json:"calculated_value"`
	PremiumPerMonth float64            `json:"premium_per_month"`
	StartDate       time.Time          `json:"start_date"`
	EndDate         time.Time          `json:"end_date"`
	Notes           string             `json:"notes,omitempty"`
	Risks           []string           `json:"risks"`
	Details         obligation.Details `json:"details"`
}

func newObligationResponse(o obligation.Obligation) ObligationResponse {
	codes := make([]string, 0, len(o.Risks()))
	for _, r := range o.Risks() {
		codes = append(codes, r.Code)
	}
	return ObligationResponse{
		ID:              o.ID(),
		PolicyNumber:    o.PolicyNumber(),
		Type:            o.Type(),
		Status:          o.Status(),
		RiskLevel:       o.RiskLevel(),
		Amount:          o.Amount(),
		DurationMonths:  o.DurationMonths(),
		CalculatedValue: o.CalculatedValue(),
		PremiumPerMonth: o.PremiumPerMonth(),
		StartDate:       o.StartDate(),
		EndDate:         o.EndDate(),
		Notes:           o.Notes(),
		Risks:           codes,
		Details:         o.Details(),
	}
}

func newObligationList(list []obligation.Obligation) []ObligationResponse {
	out := make([]ObligationResponse, 0, len(list))
	for _, o := range list {
		out = append(out, newObligationResponse(o))
	}
	return out
}

// DerivativeSummary is the list form; DerivativeResponse adds the obligations.
type DerivativeSummary struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	TotalValue  float64   `json:"total_value"`
	Obligations int       `json:"obligations"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type DerivativeResponse struct {
	DerivativeSummary
	ObligationDetails []ObligationResponse `json:"obligation_details"`
}

func newDerivativeSummary(d *derivative.Derivative) DerivativeSummary {
	return DerivativeSummary{
		ID:          d.ID(),
		Name:        d.Name(),
		TotalValue:  d.TotalValue(),
		Obligations: d.Len(),
		CreatedAt:   d.CreatedAt(),
		UpdatedAt:   d.UpdatedAt(),
	}
}

func newDerivativeList(list []*derivative.Derivative) []DerivativeSummary {
	out := make([]DerivativeSummary, 0, len(list))
	for _, d := range list {
		out = append(out, newDerivativeSummary(d))
	}
	return out
}
