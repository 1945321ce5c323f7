package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/insurance-derivatives/internal/domain/derivative"
	"github.com/turtacn/insurance-derivatives/internal/domain/obligation"
	"github.com/turtacn/insurance-derivatives/internal/domain/risk"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/database/postgres"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/storage/minio"
)

const dateLayout = "2006-01-02"

func money(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

type riskList []risk.Risk

func (l riskList) TableHeaders() []string {
	return []string{"CODE", "NAME", "CATEGORY", "FACTOR"}
}

func (l riskList) TableRows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, r := range l {
		rows = append(rows, []string{r.Code, r.Name, string(r.Category), strconv.FormatFloat(r.BaseRiskFactor, 'f', -1, 64)})
	}
	return rows
}

type obligationView struct {
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

func newObligationView(o obligation.Obligation) obligationView {
	codes := make([]string, 0, len(o.Risks()))
	for _, r := range o.Risks() {
		codes = append(codes, r.Code)
	}
	return obligationView{
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

type obligationList []obligationView

func newObligationList(list []obligation.Obligation) obligationList {
	out := make(obligationList, 0, len(list))
	for _, o := range list {
		out = append(out, newObligationView(o))
	}
	return out
}

func (l obligationList) TableHeaders() []string {
	return []string{"ID", "POLICY", "TYPE", "STATUS", "RISK", "AMOUNT", "MONTHS", "VALUE", "PREMIUM/MO", "END"}
}

func (l obligationList) TableRows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, v := range l {
		rows = append(rows, []string{
			strconv.FormatInt(v.ID, 10),
			v.PolicyNumber,
			v.Type.DisplayName(),
			string(v.Status),
			strconv.FormatFloat(v.RiskLevel, 'f', -1, 64),
			money(v.Amount),
			strconv.Itoa(v.DurationMonths),
			money(v.CalculatedValue),
			money(v.PremiumPerMonth),
			v.EndDate.Format(dateLayout),
		})
	}
	return rows
}

// String renders a single obligation as a key/value block.
func (v obligationView) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ID:          %d\n", v.ID)
	fmt.Fprintf(&sb, "Policy:      %s\n", v.PolicyNumber)
	fmt.Fprintf(&sb, "Type:        %s\n", v.Type.DisplayName())
	fmt.Fprintf(&sb, "Status:      %s\n", v.Status)
	fmt.Fprintf(&sb, "Risk level:  %g\n", v.RiskLevel)
	fmt.Fprintf(&sb, "Amount:      %s\n", money(v.Amount))
	fmt.Fprintf(&sb, "Duration:    %d months (%s to %s)\n", v.DurationMonths, v.StartDate.Format(dateLayout), v.EndDate.Format(dateLayout))
	fmt.Fprintf(&sb, "Value:       %s\n", money(v.CalculatedValue))
	fmt.Fprintf(&sb, "Premium/mo:  %s\n", money(v.PremiumPerMonth))
	fmt.Fprintf(&sb, "Risks:       %s\n", strings.Join(v.Risks, ", "))
	fmt.Fprintf(&sb, "Details:     %+v", v.Details)
	if v.Notes != "" {
		fmt.Fprintf(&sb, "\nNotes:       %s", v.Notes)
	}
	return sb.String()
}

type derivativeSummary struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	TotalValue  float64   `json:"total_value"`
	Obligations int       `json:"obligations"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type derivativeList []derivativeSummary

func newDerivativeList(list []*derivative.Derivative) derivativeList {
	out := make(derivativeList, 0, len(list))
	for _, d := range list {
		out = append(out, derivativeSummary{
			ID:          d.ID(),
			Name:        d.Name(),
			TotalValue:  d.TotalValue(),
			Obligations: d.Len(),
			UpdatedAt:   d.UpdatedAt(),
		})
	}
	return out
}

func (l derivativeList) TableHeaders() []string {
	return []string{"ID", "NAME", "OBLIGATIONS", "TOTAL", "UPDATED"}
}

func (l derivativeList) TableRows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, s := range l {
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			s.Name,
			strconv.Itoa(s.Obligations),
			money(s.TotalValue),
			s.UpdatedAt.Format(time.RFC3339),
		})
	}
	return rows
}

type derivativeView struct {
	derivativeSummary
	CreatedAt         time.Time      `json:"created_at"`
	ObligationDetails obligationList `json:"obligation_details"`
}

func newDerivativeView(d *derivative.Derivative, list []obligation.Obligation) derivativeView {
	return derivativeView{
		derivativeSummary: derivativeSummary{
			ID:          d.ID(),
			Name:        d.Name(),
			TotalValue:  d.TotalValue(),
			Obligations: d.Len(),
			UpdatedAt:   d.UpdatedAt(),
		},
		CreatedAt:         d.CreatedAt(),
		ObligationDetails: newObligationList(list),
	}
}

func (v derivativeView) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Derivative %d: %s\n", v.ID, v.Name)
	fmt.Fprintf(&sb, "Total value: %s over %d obligation(s)\n\n", money(v.TotalValue), v.Obligations)
	sb.WriteString(FormatTable(v.ObligationDetails.TableHeaders(), v.ObligationDetails.TableRows()))
	return strings.TrimRight(sb.String(), "\n")
}

type migrationView struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

func newMigrationView(s postgres.MigrationState) migrationView {
	return migrationView{Version: s.Version, Dirty: s.Dirty}
}

func (v migrationView) String() string {
	if v.Dirty {
		return fmt.Sprintf("schema version %d (dirty)", v.Version)
	}
	return fmt.Sprintf("schema version %d", v.Version)
}

type snapshotList []minio.SnapshotInfo

func (l snapshotList) TableHeaders() []string {
	return []string{"TAKEN", "SIZE", "KEY"}
}

func (l snapshotList) TableRows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, s := range l {
		rows = append(rows, []string{s.TakenAt.Format(time.RFC3339), strconv.FormatInt(s.Size, 10), s.Key})
	}
	return rows
}

// snapshotView prints a stored snapshot; JSON output is the document itself.
type snapshotView struct {
	*minio.DerivativeSnapshot
}

func (v snapshotView) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Snapshot of derivative %d: %s\n", v.DerivativeID, v.Name)
	fmt.Fprintf(&sb, "Taken:       %s\n", v.TakenAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Total value: %s over %d obligation(s)", money(v.TotalValue), len(v.Obligations))
	for _, o := range v.Obligations {
		fmt.Fprintf(&sb, "\n  %d  %s  %s  %s", o.ID, o.PolicyNumber, o.Type.DisplayName(), money(o.CalculatedValue))
	}
	return sb.String()
}
