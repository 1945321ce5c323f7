package obligation

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/turtacn/insurance-derivatives/internal/domain/risk"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

// clock is replaced in tests. Timestamps keep microsecond precision so they
// survive a round trip through TIMESTAMPTZ unchanged.
var clock = func() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

var policySuffix = func() int { return rand.Intn(1000) }

// Terms are the shared numeric terms every obligation is created with.
type Terms struct {
	RiskLevel      float64
	Amount         float64
	DurationMonths int
	Notes          string
}

func validateRiskLevel(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return errors.Validationf("risk level must be between 0 and 1, got %v", v)
	}
	return nil
}

func validateAmount(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return errors.Validationf("amount must be positive, got %v", v)
	}
	return nil
}

func validateDuration(n int) error {
	if n <= 0 {
		return errors.Validationf("duration must be positive, got %d months", n)
	}
	return nil
}

func (t Terms) validate() error {
	if err := validateRiskLevel(t.RiskLevel); err != nil {
		return err
	}
	if err := validateAmount(t.Amount); err != nil {
		return err
	}
	return validateDuration(t.DurationMonths)
}

// Base is the state shared by every obligation variant. Variants embed it;
// it is never used on its own.
type Base struct {
	id              int64
	policyNumber    string
	riskLevel       float64
	amount          float64
	durationMonths  int
	calculatedValue float64
	startDate       time.Time
	endDate         time.Time
	createdAt       time.Time
	updatedAt       time.Time
	status          Status
	notes           string
	risks           map[string]risk.Risk
}

func newBase(t Terms) (Base, error) {
	if err := t.validate(); err != nil {
		return Base{}, err
	}
	now := clock()
	return Base{
		policyNumber:   fmt.Sprintf("POL-%d-%d", now.UnixMilli(), policySuffix()),
		riskLevel:      t.RiskLevel,
		amount:         t.Amount,
		durationMonths: t.DurationMonths,
		startDate:      now,
		endDate:        AddMonths(now, t.DurationMonths),
		createdAt:      now,
		updatedAt:      now,
		status:         StatusDraft,
		notes:          t.Notes,
		risks:          make(map[string]risk.Risk),
	}, nil
}

func (b *Base) base() *Base { return b }

func (b *Base) touch() { b.updatedAt = clock() }

func (b *Base) ID() int64            { return b.id }
func (b *Base) PolicyNumber() string { return b.policyNumber }
func (b *Base) RiskLevel() float64   { return b.riskLevel }
func (b *Base) Amount() float64      { return b.amount }
func (b *Base) DurationMonths() int  { return b.durationMonths }
func (b *Base) StartDate() time.Time { return b.startDate }
func (b *Base) EndDate() time.Time   { return b.endDate }
func (b *Base) CreatedAt() time.Time { return b.createdAt }
func (b *Base) UpdatedAt() time.Time { return b.updatedAt }
func (b *Base) Status() Status       { return b.status }
func (b *Base) Notes() string        { return b.notes }

// CalculatedValue is the value cached by the last CalculateValue call.
func (b *Base) CalculatedValue() float64 { return b.calculatedValue }

// SetID is called by storage once a row id has been assigned.
func (b *Base) SetID(id int64) { b.id = id }

func (b *Base) SetRiskLevel(v float64) error {
	if err := validateRiskLevel(v); err != nil {
		return err
	}
	b.riskLevel = v
	b.touch()
	return nil
}

func (b *Base) SetAmount(v float64) error {
	if err := validateAmount(v); err != nil {
		return err
	}
	b.amount = v
	b.touch()
	return nil
}

// SetDurationMonths changes the term and moves the end date with it.
func (b *Base) SetDurationMonths(n int) error {
	if err := validateDuration(n); err != nil {
		return err
	}
	b.durationMonths = n
	b.endDate = AddMonths(b.startDate, n)
	b.touch()
	return nil
}

// SetStartDate moves the start date and keeps endDate = start + duration.
func (b *Base) SetStartDate(t time.Time) {
	b.startDate = t
	b.endDate = AddMonths(t, b.durationMonths)
	b.touch()
}

// SetEndDate overrides the end date without touching start or duration.
func (b *Base) SetEndDate(t time.Time) {
	b.endDate = t
	b.touch()
}

// SetStatus assigns a status directly, bypassing the state machine. It is
// the only way into EXPIRED, CLAIMED and PENDING.
func (b *Base) SetStatus(s Status) error {
	if !s.IsValid() {
		return errors.Validationf("unknown obligation status %q", s)
	}
	b.status = s
	b.touch()
	return nil
}

func (b *Base) SetNotes(notes string) {
	b.notes = notes
	b.touch()
}

// Risks returns the covered risks ordered by code.
func (b *Base) Risks() []risk.Risk {
	out := make([]risk.Risk, 0, len(b.risks))
	for _, r := range b.risks {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// AddRisk adds r to the covered set, replacing any risk with the same code.
func (b *Base) AddRisk(r risk.Risk) {
	b.attach(r)
	b.touch()
}

// RemoveRisk drops the risk with code and reports whether it was covered.
func (b *Base) RemoveRisk(code string) bool {
	if _, ok := b.risks[code]; !ok {
		return false
	}
	delete(b.risks, code)
	b.touch()
	return true
}

// SetRisks replaces the covered set.
func (b *Base) SetRisks(rs []risk.Risk) {
	b.risks = make(map[string]risk.Risk, len(rs))
	for _, r := range rs {
		b.risks[r.Code] = r
	}
	b.touch()
}

func (b *Base) CoversRisk(code string) bool {
	_, ok := b.risks[code]
	return ok
}

func (b *Base) attach(r risk.Risk) {
	if b.risks == nil {
		b.risks = make(map[string]risk.Risk)
	}
	b.risks[r.Code] = r
}

// riskFactorSum adds base factors in code order so the result does not
// depend on map iteration.
func (b *Base) riskFactorSum() float64 {
	sum := 0.0
	for _, r := range b.Risks() {
		sum += r.BaseRiskFactor
	}
	return sum
}

// Activate moves a DRAFT obligation to ACTIVE and restarts its term now.
// It reports false and changes nothing from any other status.
func (b *Base) Activate() bool {
	if b.status != StatusDraft {
		return false
	}
	now := clock()
	b.status = StatusActive
	b.startDate = now
	b.endDate = AddMonths(now, b.durationMonths)
	b.updatedAt = now
	return true
}

// Cancel moves an ACTIVE or PENDING obligation to CANCELLED.
func (b *Base) Cancel() bool {
	if b.status != StatusActive && b.status != StatusPending {
		return false
	}
	b.status = StatusCancelled
	b.touch()
	return true
}

// Renew extends an active, unexpired obligation by months. Anything not
// active is left alone whatever months is; for an active one a non-positive
// extension is a validation error.
func (b *Base) Renew(months int) (bool, error) {
	if !b.IsActive() {
		return false, nil
	}
	if months <= 0 {
		return false, errors.Validationf("renewal must add a positive number of months, got %d", months)
	}
	b.durationMonths += months
	b.endDate = AddMonths(b.endDate, months)
	b.touch()
	return true, nil
}

// IsActive reports status ACTIVE with the end date still in the future.
func (b *Base) IsActive() bool {
	return b.status == StatusActive && clock().Before(b.endDate)
}

func (b *Base) premiumPerMonth(value float64) float64 {
	return value / float64(b.durationMonths)
}

// AddMonths adds n calendar months to t, clamping the day to the end of the
// target month (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
