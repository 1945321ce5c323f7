// Package obligation models insurance obligations: the shared lifecycle and
// validation in Base, and the Health, Life and Property variants with their
// valuation formulas. Obligation is a closed set; only this package can add
// a variant.
package obligation

import (
	"time"

	"github.com/turtacn/insurance-derivatives/internal/domain/risk"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

// Obligation is implemented by *Health, *Life and *Property.
type Obligation interface {
	// Type is safe to call on a nil variant pointer.
	Type() Type
	// CalculateValue recomputes the value from the current fields and
	// covered risks and caches it.
	CalculateValue() float64
	PremiumPerMonth() float64
	// Details returns the variant-specific fields.
	Details() Details

	ID() int64
	SetID(id int64)
	PolicyNumber() string
	RiskLevel() float64
	SetRiskLevel(v float64) error
	Amount() float64
	SetAmount(v float64) error
	DurationMonths() int
	SetDurationMonths(n int) error
	CalculatedValue() float64
	StartDate() time.Time
	SetStartDate(t time.Time)
	EndDate() time.Time
	SetEndDate(t time.Time)
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Status() Status
	SetStatus(s Status) error
	Notes() string
	SetNotes(notes string)

	Risks() []risk.Risk
	SetRisks(rs []risk.Risk)
	AddRisk(r risk.Risk)
	RemoveRisk(code string) bool
	CoversRisk(code string) bool

	Activate() bool
	Cancel() bool
	Renew(months int) (bool, error)
	IsActive() bool

	base() *Base
}

var (
	_ Obligation = (*Health)(nil)
	_ Obligation = (*Life)(nil)
	_ Obligation = (*Property)(nil)
)

// As down-casts o to the variant T. A nil o, or a nil variant pointer held
// in o, is a cast error.
//
//	life, err := obligation.As[*obligation.Life](o)
func As[T Obligation](o Obligation) (T, error) {
	var zero T
	if isNil(o) {
		return zero, errors.NewCast("<nil>", zero.Type().DisplayName())
	}
	if v, ok := o.(T); ok {
		return v, nil
	}
	return zero, errors.NewCast(o.Type().DisplayName(), zero.Type().DisplayName())
}

func isNil(o Obligation) bool {
	switch v := o.(type) {
	case nil:
		return true
	case *Health:
		return v == nil
	case *Life:
		return v == nil
	case *Property:
		return v == nil
	}
	return false
}

// TypeOf returns the discriminator of o, or "" for nil.
func TypeOf(o Obligation) Type {
	if o == nil {
		return ""
	}
	return o.Type()
}
