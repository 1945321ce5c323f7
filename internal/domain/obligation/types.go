package obligation

import (
	"strings"

	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

// Type is the discriminator persisted in insurance_obligations.type.
type Type string

const (
	TypeHealth   Type = "HEALTH"
	TypeLife     Type = "LIFE"
	TypeProperty Type = "PROPERTY"
)

// DisplayName is the variant name used in cast errors and CLI output.
func (t Type) DisplayName() string {
	switch t {
	case TypeHealth:
		return "HealthInsurance"
	case TypeLife:
		return "LifeInsurance"
	case TypeProperty:
		return "PropertyInsurance"
	}
	return string(t)
}

// ParseType parses a discriminator. Unknown values yield an unknown-type error.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case TypeHealth, TypeLife, TypeProperty:
		return t, nil
	}
	return "", errors.NewUnknownType(s)
}

// Status is the obligation lifecycle state.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusActive    Status = "ACTIVE"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
	StatusPending   Status = "PENDING"
	StatusClaimed   Status = "CLAIMED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusExpired, StatusCancelled, StatusPending, StatusClaimed:
		return true
	}
	return false
}

// ParseStatus parses a status name case-insensitively.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", errors.Validationf("unknown obligation status %q", s)
	}
	return st, nil
}

// PropertyType classifies the insured building.
type PropertyType string

const (
	PropertyApartment  PropertyType = "APARTMENT"
	PropertyHouse      PropertyType = "HOUSE"
	PropertyCommercial PropertyType = "COMMERCIAL"
)

func (p PropertyType) IsValid() bool {
	switch p {
	case PropertyApartment, PropertyHouse, PropertyCommercial:
		return true
	}
	return false
}

// ParsePropertyType parses a property type case-insensitively.
func ParsePropertyType(s string) (PropertyType, error) {
	p := PropertyType(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", errors.Validationf("invalid property type %q: must be one of APARTMENT, HOUSE, COMMERCIAL", s)
	}
	return p, nil
}
