package client

import (
	"encoding/json"
	"time"
)

// Risk is a catalogue entry.
type Risk struct {
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	BaseRiskFactor float64 `json:"base_risk_factor"`
	Category       string  `json:"category"`
}

// SeedResult reports how many standard risks a seed inserted.
type SeedResult struct {
	Seeded   int `json:"seeded"`
	Standard int `json:"standard"`
}

// Obligation is one insurance obligation with its valuation. Details holds
// the type-specific attributes as sent by the server.
type Obligation struct {
	ID              int64           `json:"id"`
	PolicyNumber    string          `json:"policy_number"`
	Type            string          `json:"type"`
	Status          string          `json:"status"`
	RiskLevel       float64         `json:"risk_level"`
	Amount          float64         `json:"amount"`
	DurationMonths  int             `json:"duration_months"`
	CalculatedValue float64         `json:"calculated_value"`
	PremiumPerMonth float64         `json:"premium_per_month"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         time.Time       `json:"end_date"`
	Notes           string          `json:"notes,omitempty"`
	Risks           []string        `json:"risks"`
	Details         json.RawMessage `json:"details"`
}

// DerivativeSummary is a derivative without its obligations.
type DerivativeSummary struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	TotalValue  float64   `json:"total_value"`
	Obligations int       `json:"obligations"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Derivative is a derivative with the obligations the query selected.
type Derivative struct {
	DerivativeSummary
	ObligationDetails []Obligation `json:"obligation_details"`
}

// SnapshotInfo locates one archived snapshot.
type SnapshotInfo struct {
	Key          string    `json:"key"`
	DerivativeID int64     `json:"derivative_id"`
	Size         int64     `json:"size"`
	TakenAt      time.Time `json:"taken_at"`
}

// Snapshot is an archived derivative document.
type Snapshot struct {
	DerivativeID int64             `json:"derivative_id"`
	Name         string            `json:"name"`
	TotalValue   float64           `json:"total_value"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	TakenAt      time.Time         `json:"taken_at"`
	Obligations  []json.RawMessage `json:"obligations"`
}

// Readiness is the /readyz report.
type Readiness struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentStatus `json:"components,omitempty"`
}

type ComponentStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}
