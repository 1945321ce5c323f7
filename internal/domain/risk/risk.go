// Package risk holds the hazard catalogue that weights obligation valuations.
package risk

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

// Category groups risks by line of business.
type Category string

const (
	CategoryProperty  Category = "PROPERTY"
	CategoryHealth    Category = "HEALTH"
	CategoryLife      Category = "LIFE"
	CategoryLiability Category = "LIABILITY"
	CategoryFinancial Category = "FINANCIAL"
)

// Categories lists every known category in declaration order.
func Categories() []Category {
	return []Category{CategoryProperty, CategoryHealth, CategoryLife, CategoryLiability, CategoryFinancial}
}

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryProperty, CategoryHealth, CategoryLife, CategoryLiability, CategoryFinancial:
		return true
	}
	return false
}

// ParseCategory parses s case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", errors.Validationf("unknown risk category %q", s)
	}
	return c, nil
}

// Risk is a named, categorised hazard. Its identity is Code.
type Risk struct {
	Code           string   `json:"code"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	BaseRiskFactor float64  `json:"base_risk_factor"`
	Category       Category `json:"category"`
}

// New validates and builds a Risk. The code is upper-cased before its length
// is checked, and its length counts characters. The factor must be finite.
func New(code, name, description string, baseRiskFactor float64, category Category) (Risk, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if utf8.RuneCountInString(code) < 2 {
		return Risk{}, errors.Validationf("risk code %q must be at least 2 characters", code)
	}
	if math.IsNaN(baseRiskFactor) || math.IsInf(baseRiskFactor, 0) || baseRiskFactor <= 0 {
		return Risk{}, errors.Validationf("risk %s: base risk factor must be positive and finite, got %v", code, baseRiskFactor)
	}
	if strings.TrimSpace(name) == "" {
		return Risk{}, errors.Validationf("risk %s: name must not be empty", code)
	}
	if !category.IsValid() {
		return Risk{}, errors.Validationf("risk %s: unknown category %q", code, category)
	}
	return Risk{
		Code:           code,
		Name:           name,
		Description:    description,
		BaseRiskFactor: baseRiskFactor,
		Category:       category,
	}, nil
}

// Equal compares risks by code only.
func (r Risk) Equal(other Risk) bool {
	return r.Code == other.Code
}

func (r Risk) String() string {
	return r.Code + " (" + r.Name + ")"
}
