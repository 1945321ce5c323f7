package obligation

import (
	"strings"

	"github.com/turtacn/insurance-derivatives/internal/domain/risk"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

// LifeDetails are the life-specific fields, stored in life_insurance.
type LifeDetails struct {
	Beneficiary             string `json:"beneficiary"`
	IncludesCriticalIllness bool   `json:"includes_critical_illness"`
	IncludesAccidentalDeath bool   `json:"includes_accidental_death"`
}

func (LifeDetails) Type() Type { return TypeLife }

func validateBeneficiary(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.NewValidation("beneficiary must not be empty")
	}
	return nil
}

// LifeParams are the inputs of NewLife.
type LifeParams struct {
	Terms
	LifeDetails
}

// Life is a life insurance obligation.
type Life struct {
	Base
	details LifeDetails
}

// NewLife builds a DRAFT life obligation covering DEATH01, plus CRIL01 and
// ACCD01 when the matching riders are included.
func NewLife(p LifeParams) (*Life, error) {
	if err := validateBeneficiary(p.Beneficiary); err != nil {
		return nil, err
	}
	b, err := newBase(p.Terms)
	if err != nil {
		return nil, err
	}
	l := &Life{Base: b, details: p.LifeDetails}
	l.attach(risk.MustStandard(risk.CodeDeath))
	if p.IncludesCriticalIllness {
		l.attach(risk.MustStandard(risk.CodeCriticalIllness))
	}
	if p.IncludesAccidentalDeath {
		l.attach(risk.MustStandard(risk.CodeAccidentalDeath))
	}
	return l, nil
}

func (*Life) Type() Type { return TypeLife }

func (l *Life) Details() Details { return l.details }

func (l *Life) Beneficiary() string           { return l.details.Beneficiary }
func (l *Life) IncludesCriticalIllness() bool { return l.details.IncludesCriticalIllness }
func (l *Life) IncludesAccidentalDeath() bool { return l.details.IncludesAccidentalDeath }

func (l *Life) SetBeneficiary(name string) error {
	if err := validateBeneficiary(name); err != nil {
		return err
	}
	l.details.Beneficiary = name
	l.touch()
	return nil
}

func (l *Life) SetIncludesCriticalIllness(v bool) {
	l.details.IncludesCriticalIllness = v
	l.touch()
}

func (l *Life) SetIncludesAccidentalDeath(v bool) {
	l.details.IncludesAccidentalDeath = v
	l.touch()
}

func (l *Life) CalculateValue() float64 {
	v := l.amount * (1 + l.riskLevel*0.1)
	if l.details.IncludesCriticalIllness {
		v *= 1.3
	}
	if l.details.IncludesAccidentalDeath {
		v *= 1.2
	}
	v *= 1 + l.riskFactorSum()
	l.calculatedValue = v
	return v
}

func (l *Life) PremiumPerMonth() float64 {
	return l.premiumPerMonth(l.CalculateValue())
}
