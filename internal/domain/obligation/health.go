package obligation

import (
	"github.com/turtacn/insurance-derivatives/internal/domain/risk"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

// HealthDetails are the health-specific fields, stored in health_insurance.
type HealthDetails struct {
	Age                      int  `json:"age"`
	HasPreexistingConditions bool `json:"has_preexisting_conditions"`
	CoverageLimit            int  `json:"coverage_limit"`
	IncludesHospitalization  bool `json:"includes_hospitalization"`
	IncludesDentalCare       bool `json:"includes_dental_care"`
}

func (HealthDetails) Type() Type { return TypeHealth }

func (d HealthDetails) validate() error {
	if d.Age <= 0 {
		return errors.Validationf("age must be positive, got %d", d.Age)
	}
	if d.CoverageLimit < 0 {
		return errors.Validationf("coverage limit must not be negative, got %d", d.CoverageLimit)
	}
	return nil
}

// HealthParams are the inputs of NewHealth.
type HealthParams struct {
	Terms
	HealthDetails
}

// Health is a health insurance obligation.
type Health struct {
	Base
	details HealthDetails
}

// NewHealth builds a DRAFT health obligation covering HLTH01, plus HOSP01
// with hospitalization and DENT01 with dental care.
func NewHealth(p HealthParams) (*Health, error) {
	if err := p.HealthDetails.validate(); err != nil {
		return nil, err
	}
	b, err := newBase(p.Terms)
	if err != nil {
		return nil, err
	}
	h := &Health{Base: b, details: p.HealthDetails}
	h.attach(risk.MustStandard(risk.CodeMedicalExpenses))
	if p.IncludesHospitalization {
		h.attach(risk.MustStandard(risk.CodeHospitalization))
	}
	if p.IncludesDentalCare {
		h.attach(risk.MustStandard(risk.CodeDental))
	}
	return h, nil
}

func (*Health) Type() Type { return TypeHealth }

func (h *Health) Details() Details { return h.details }

func (h *Health) Age() int                       { return h.details.Age }
func (h *Health) HasPreexistingConditions() bool { return h.details.HasPreexistingConditions }
func (h *Health) CoverageLimit() int             { return h.details.CoverageLimit }
func (h *Health) IncludesHospitalization() bool  { return h.details.IncludesHospitalization }
func (h *Health) IncludesDentalCare() bool       { return h.details.IncludesDentalCare }

func (h *Health) SetAge(age int) error {
	if age <= 0 {
		return errors.Validationf("age must be positive, got %d", age)
	}
	h.details.Age = age
	h.touch()
	return nil
}

func (h *Health) SetCoverageLimit(limit int) error {
	if limit < 0 {
		return errors.Validationf("coverage limit must not be negative, got %d", limit)
	}
	h.details.CoverageLimit = limit
	h.touch()
	return nil
}

func (h *Health) SetHasPreexistingConditions(v bool) {
	h.details.HasPreexistingConditions = v
	h.touch()
}

// SetIncludesHospitalization changes the flag only. The covered risks keep
// whatever was attached at construction.
func (h *Health) SetIncludesHospitalization(v bool) {
	h.details.IncludesHospitalization = v
	h.touch()
}

// SetIncludesDentalCare changes the flag only.
func (h *Health) SetIncludesDentalCare(v bool) {
	h.details.IncludesDentalCare = v
	h.touch()
}

func (h *Health) CalculateValue() float64 {
	v := h.amount * (1 + h.riskLevel*0.05)
	if h.details.Age > 50 {
		v *= 1.5
	} else if h.details.Age > 30 {
		v *= 1.2
	}
	if h.details.HasPreexistingConditions {
		v *= 1.8
	}
	if h.details.IncludesHospitalization {
		v *= 1.3
	}
	if h.details.IncludesDentalCare {
		v *= 1.1
	}
	v *= 1 + h.riskFactorSum()
	h.calculatedValue = v
	return v
}

func (h *Health) PremiumPerMonth() float64 {
	return h.premiumPerMonth(h.CalculateValue())
}
