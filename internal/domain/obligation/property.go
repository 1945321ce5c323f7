package obligation

import (
	"math"
	"strings"

	"github.com/turtacn/insurance-derivatives/internal/domain/risk"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

// PropertyDetails are the property-specific fields, stored in property_insurance.
type PropertyDetails struct {
	PropertyLocation         string       `json:"property_location"`
	PropertyValue            float64      `json:"property_value"`
	IsHighRiskArea           bool         `json:"is_high_risk_area"`
	PropertyType             PropertyType `json:"property_type"`
	IncludesNaturalDisasters bool         `json:"includes_natural_disasters"`
}

func (PropertyDetails) Type() Type { return TypeProperty }

func (d PropertyDetails) validate() error {
	if strings.TrimSpace(d.PropertyLocation) == "" {
		return errors.NewValidation("property location must not be empty")
	}
	if math.IsNaN(d.PropertyValue) || d.PropertyValue < 0 {
		return errors.Validationf("property value must not be negative, got %v", d.PropertyValue)
	}
	if !d.PropertyType.IsValid() {
		return errors.Validationf("invalid property type %q: must be one of APARTMENT, HOUSE, COMMERCIAL", d.PropertyType)
	}
	return nil
}

// PropertyParams are the inputs of NewProperty.
type PropertyParams struct {
	Terms
	PropertyDetails
}

// Property is a property insurance obligation.
type Property struct {
	Base
	details PropertyDetails
}

// NewProperty builds a DRAFT property obligation covering FIRE01 and THFT01,
// plus NATD01 when natural disasters are included.
func NewProperty(p PropertyParams) (*Property, error) {
	if err := p.PropertyDetails.validate(); err != nil {
		return nil, err
	}
	b, err := newBase(p.Terms)
	if err != nil {
		return nil, err
	}
	pr := &Property{Base: b, details: p.PropertyDetails}
	pr.attach(risk.MustStandard(risk.CodeFire))
	pr.attach(risk.MustStandard(risk.CodeTheft))
	if p.IncludesNaturalDisasters {
		pr.attach(risk.MustStandard(risk.CodeNaturalDisasters))
	}
	return pr, nil
}

func (*Property) Type() Type { return TypeProperty }

func (p *Property) Details() Details { return p.details }

func (p *Property) PropertyLocation() string       { return p.details.PropertyLocation }
func (p *Property) PropertyValue() float64         { return p.details.PropertyValue }
func (p *Property) IsHighRiskArea() bool           { return p.details.IsHighRiskArea }
func (p *Property) PropertyType() PropertyType     { return p.details.PropertyType }
func (p *Property) IncludesNaturalDisasters() bool { return p.details.IncludesNaturalDisasters }

func (p *Property) SetPropertyLocation(loc string) error {
	if strings.TrimSpace(loc) == "" {
		return errors.NewValidation("property location must not be empty")
	}
	p.details.PropertyLocation = loc
	p.touch()
	return nil
}

func (p *Property) SetPropertyValue(v float64) error {
	if math.IsNaN(v) || v < 0 {
		return errors.Validationf("property value must not be negative, got %v", v)
	}
	p.details.PropertyValue = v
	p.touch()
	return nil
}

func (p *Property) SetPropertyType(t PropertyType) error {
	if !t.IsValid() {
		return errors.Validationf("invalid property type %q: must be one of APARTMENT, HOUSE, COMMERCIAL", t)
	}
	p.details.PropertyType = t
	p.touch()
	return nil
}

func (p *Property) SetIsHighRiskArea(v bool) {
	p.details.IsHighRiskArea = v
	p.touch()
}

func (p *Property) SetIncludesNaturalDisasters(v bool) {
	p.details.IncludesNaturalDisasters = v
	p.touch()
}

func (p *Property) CalculateValue() float64 {
	v := p.amount * (1 + p.riskLevel*0.03)
	if p.details.IsHighRiskArea {
		v *= 1.5
	}
	switch p.details.PropertyType {
	case PropertyHouse:
		v *= 1.3
	case PropertyCommercial:
		v *= 1.7
	}
	if p.details.IncludesNaturalDisasters {
		v *= 1.4
	}
	v *= 1 + p.riskFactorSum()
	p.calculatedValue = v
	return v
}

func (p *Property) PremiumPerMonth() float64 {
	return p.premiumPerMonth(p.CalculateValue())
}
