// Package derivative models a derivative: an ordered aggregate of
// obligations whose total value is the sum of their calculated values.
package derivative

import (
	"sort"
	"strings"
	"time"

	"github.com/turtacn/insurance-derivatives/internal/domain/obligation"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

var clock = func() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Derivative aggregates obligations. It is not safe for concurrent mutation.
type Derivative struct {
	id          int64
	name        string
	obligations []obligation.Obligation
	totalValue  float64
	createdAt   time.Time
	updatedAt   time.Time
}

// New creates an empty derivative.
func New(name string) (*Derivative, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	now := clock()
	return &Derivative{name: name, createdAt: now, updatedAt: now}, nil
}

// Restore rebuilds a stored derivative. The total value is recomputed from
// the loaded obligations.
func Restore(id int64, name string, createdAt, updatedAt time.Time, obligations []obligation.Obligation) (*Derivative, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	d := &Derivative{id: id, name: name, createdAt: createdAt, updatedAt: updatedAt}
	d.obligations = compact(obligations)
	d.recompute()
	return d, nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.NewValidation("derivative name must not be empty")
	}
	return nil
}

func (d *Derivative) ID() int64            { return d.id }
func (d *Derivative) SetID(id int64)       { d.id = id }
func (d *Derivative) Name() string         { return d.name }
func (d *Derivative) TotalValue() float64  { return d.totalValue }
func (d *Derivative) CreatedAt() time.Time { return d.createdAt }
func (d *Derivative) UpdatedAt() time.Time { return d.updatedAt }
func (d *Derivative) Len() int             { return len(d.obligations) }

func (d *Derivative) SetName(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	d.name = name
	d.updatedAt = clock()
	return nil
}

// Obligations returns a copy of the ordered obligation list.
func (d *Derivative) Obligations() []obligation.Obligation {
	out := make([]obligation.Obligation, len(d.obligations))
	copy(out, d.obligations)
	return out
}

// Contains reports whether this exact obligation instance is held.
func (d *Derivative) Contains(o obligation.Obligation) bool {
	return d.indexOf(o) >= 0
}

func (d *Derivative) indexOf(o obligation.Obligation) int {
	for i, held := range d.obligations {
		if held == o {
			return i
		}
	}
	return -1
}

// AddObligation appends o and adds its value to the total. Adding an
// instance that is already held, or nil, does nothing and reports false.
func (d *Derivative) AddObligation(o obligation.Obligation) bool {
	if o == nil || d.Contains(o) {
		return false
	}
	d.obligations = append(d.obligations, o)
	d.totalValue += o.CalculateValue()
	d.updatedAt = clock()
	return true
}

// RemoveObligation removes o by identity and recomputes the total from the
// remaining obligations.
func (d *Derivative) RemoveObligation(o obligation.Obligation) bool {
	i := d.indexOf(o)
	if i < 0 {
		return false
	}
	d.obligations = append(d.obligations[:i:i], d.obligations[i+1:]...)
	d.recompute()
	d.updatedAt = clock()
	return true
}

// SetObligations replaces the list. nil entries and repeated instances are dropped.
func (d *Derivative) SetObligations(list []obligation.Obligation) {
	d.obligations = compact(list)
	d.recompute()
	d.updatedAt = clock()
}

// RecalculateTotal refreshes every obligation's value and the total, for
// callers that mutated obligations after adding them.
func (d *Derivative) RecalculateTotal() float64 {
	d.recompute()
	return d.totalValue
}

func (d *Derivative) recompute() {
	total := 0.0
	for _, o := range d.obligations {
		total += o.CalculateValue()
	}
	d.totalValue = total
}

func compact(list []obligation.Obligation) []obligation.Obligation {
	out := make([]obligation.Obligation, 0, len(list))
	for _, o := range list {
		if o == nil {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen == o {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, o)
		}
	}
	return out
}

// SortByRiskLevel orders the obligations by descending risk level. Equal
// levels keep their relative order.
func (d *Derivative) SortByRiskLevel() {
	sort.SliceStable(d.obligations, func(i, j int) bool {
		return d.obligations[i].RiskLevel() > d.obligations[j].RiskLevel()
	})
	d.updatedAt = clock()
}

// ObligationsInRange returns the obligations whose risk level and amount
// both fall inside the inclusive bounds.
func (d *Derivative) ObligationsInRange(minRisk, maxRisk, minAmount, maxAmount float64) []obligation.Obligation {
	var out []obligation.Obligation
	for _, o := range d.obligations {
		if o.RiskLevel() >= minRisk && o.RiskLevel() <= maxRisk &&
			o.Amount() >= minAmount && o.Amount() <= maxAmount {
			out = append(out, o)
		}
	}
	return out
}

// ActiveObligations returns the obligations for which IsActive holds.
func (d *Derivative) ActiveObligations() []obligation.Obligation {
	var out []obligation.Obligation
	for _, o := range d.obligations {
		if o.IsActive() {
			out = append(out, o)
		}
	}
	return out
}

// Criteria narrows a list of derivatives. Zero values disable a bound;
// MaxTotal of 0 means unbounded.
type Criteria struct {
	NameContains string
	MinTotal     float64
	MaxTotal     float64
}

// Filter returns the derivatives whose name contains NameContains
// (case-insensitively) and whose total lies inside the bounds.
func Filter(list []*Derivative, c Criteria) []*Derivative {
	needle := strings.ToLower(strings.TrimSpace(c.NameContains))
	var out []*Derivative
	for _, d := range list {
		if d == nil {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(d.name), needle) {
			continue
		}
		if d.totalValue < c.MinTotal {
			continue
		}
		if c.MaxTotal > 0 && d.totalValue > c.MaxTotal {
			continue
		}
		out = append(out, d)
	}
	return out
}
