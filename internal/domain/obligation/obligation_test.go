package obligation

import (
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/insurance-derivatives/internal/domain/risk"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

var fixedNow = time.Date(2024, time.January, 31, 10, 0, 0, 0, time.UTC)

func freezeClock(t *testing.T, at time.Time) *time.Time {
	t.Helper()
	current := at
	prev := clock
	clock = func() time.Time { return current }
	t.Cleanup(func() { clock = prev })
	return &current
}

func exampleHealth(t *testing.T) *Health {
	t.Helper()
	h, err := NewHealth(HealthParams{
		Terms: Terms{RiskLevel: 0.3, Amount: 50000, DurationMonths: 6},
		HealthDetails: HealthDetails{
			Age:                     35,
			CoverageLimit:           200000,
			IncludesHospitalization: true,
		},
	})
	require.NoError(t, err)
	return h
}

func exampleLife(t *testing.T) *Life {
	t.Helper()
	l, err := NewLife(LifeParams{
		Terms:       Terms{RiskLevel: 0.5, Amount: 1000, DurationMonths: 12},
		LifeDetails: LifeDetails{Beneficiary: "Jane Doe", IncludesCriticalIllness: true},
	})
	require.NoError(t, err)
	return l
}

func exampleProperty(t *testing.T, pt PropertyType) *Property {
	t.Helper()
	p, err := NewProperty(PropertyParams{
		Terms: Terms{RiskLevel: 0.2, Amount: 250000, DurationMonths: 24},
		PropertyDetails: PropertyDetails{
			PropertyLocation: "12 Harbour Road",
			PropertyValue:    400000,
			IsHighRiskArea:   true,
			PropertyType:     pt,
		},
	})
	require.NoError(t, err)
	return p
}

func codes(rs []risk.Risk) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Code
	}
	return out
}

func TestHealth_ExampleValuation(t *testing.T) {
	h := exampleHealth(t)

	assert.Equal(t, []string{"HLTH01", "HOSP01"}, codes(h.Risks()))

	amount, riskLevel := 50000.0, 0.3
	want := amount * (1 + riskLevel*0.05)
	want *= 1.2
	want *= 1.3
	want *= 1 + (0.2 + 0.15)

	got := h.CalculateValue()
	assert.InDelta(t, want, got, 1e-9)
	assert.InDelta(t, 106879.5, got, 1e-6)
	assert.Equal(t, got, h.CalculatedValue())
}

func TestHealth_AgeBrackets(t *testing.T) {
	cases := []struct {
		age  int
		mult float64
	}{
		{25, 1.0}, {30, 1.0}, {31, 1.2}, {50, 1.2}, {51, 1.5},
	}
	for _, tc := range cases {
		h, err := NewHealth(HealthParams{
			Terms:         Terms{RiskLevel: 0, Amount: 1000, DurationMonths: 1},
			HealthDetails: HealthDetails{Age: tc.age},
		})
		require.NoError(t, err)
		base := 1000.0
		assert.InDelta(t, base*tc.mult*1.2, h.CalculateValue(), 1e-9, "age %d", tc.age)
	}
}

func TestHealth_AllMultipliers(t *testing.T) {
	h, err := NewHealth(HealthParams{
		Terms: Terms{RiskLevel: 1, Amount: 1000, DurationMonths: 10},
		HealthDetails: HealthDetails{
			Age: 60, HasPreexistingConditions: true,
			IncludesHospitalization: true, IncludesDentalCare: true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"DENT01", "HLTH01", "HOSP01"}, codes(h.Risks()))

	amount := 1000.0
	want := amount * 1.05 * 1.5 * 1.8 * 1.3 * 1.1
	want *= 1 + (0.1 + 0.2 + 0.15)
	assert.InDelta(t, want, h.CalculateValue(), 1e-9)
	assert.InDelta(t, want/10, h.PremiumPerMonth(), 1e-9)
}

func TestLife_ExampleValuation(t *testing.T) {
	l := exampleLife(t)

	assert.Equal(t, []string{"CRIL01", "DEATH01"}, codes(l.Risks()))
	assert.True(t, l.CoversRisk("DEATH01"))
	assert.False(t, l.CoversRisk("ACCD01"))
	assert.InDelta(t, 1911.0, l.CalculateValue(), 1e-9)
	assert.InDelta(t, 1911.0/12, l.PremiumPerMonth(), 1e-9)
}

func TestProperty_TypeMultipliers(t *testing.T) {
	mult := map[PropertyType]float64{
		PropertyApartment:  1.0,
		PropertyHouse:      1.3,
		PropertyCommercial: 1.7,
	}
	for pt, m := range mult {
		p := exampleProperty(t, pt)
		assert.Equal(t, []string{"FIRE01", "THFT01"}, codes(p.Risks()))

		amount := 250000.0
		want := amount * (1 + 0.2*0.03) * 1.5 * m
		want *= 1 + (0.15 + 0.1)
		assert.InDelta(t, want, p.CalculateValue(), 1e-6, string(pt))
	}
}

func TestProperty_NaturalDisasters(t *testing.T) {
	p, err := NewProperty(PropertyParams{
		Terms: Terms{RiskLevel: 0, Amount: 100, DurationMonths: 1},
		PropertyDetails: PropertyDetails{
			PropertyLocation: "x", PropertyType: PropertyApartment, IncludesNaturalDisasters: true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"FIRE01", "NATD01", "THFT01"}, codes(p.Risks()))
	assert.InDelta(t, 100*1.4*(1+0.15+0.2+0.1), p.CalculateValue(), 1e-9)
}

func TestProperty_UnknownTypeIsValidationError(t *testing.T) {
	_, err := NewProperty(PropertyParams{
		Terms:           Terms{RiskLevel: 0.1, Amount: 100, DurationMonths: 12},
		PropertyDetails: PropertyDetails{PropertyLocation: "x", PropertyType: "CONDO"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	_, err = ParsePropertyType("condo")
	assert.True(t, errors.IsValidation(err))
	pt, err := ParsePropertyType("house")
	require.NoError(t, err)
	assert.Equal(t, PropertyHouse, pt)
}

func TestConstructors_Validation(t *testing.T) {
	okTerms := Terms{RiskLevel: 0.5, Amount: 100, DurationMonths: 12}
	badTerms := []Terms{
		{RiskLevel: -0.1, Amount: 100, DurationMonths: 12},
		{RiskLevel: 1.1, Amount: 100, DurationMonths: 12},
		{RiskLevel: 0.5, Amount: 0, DurationMonths: 12},
		{RiskLevel: 0.5, Amount: 100, DurationMonths: 0},
	}
	for _, terms := range badTerms {
		_, err := NewLife(LifeParams{Terms: terms, LifeDetails: LifeDetails{Beneficiary: "b"}})
		assert.True(t, errors.IsValidation(err), "%+v", terms)
	}

	_, err := NewLife(LifeParams{Terms: okTerms})
	assert.True(t, errors.IsValidation(err), "missing beneficiary")

	_, err = NewHealth(HealthParams{Terms: okTerms, HealthDetails: HealthDetails{Age: 0}})
	assert.True(t, errors.IsValidation(err), "age")

	_, err = NewHealth(HealthParams{Terms: okTerms, HealthDetails: HealthDetails{Age: 20, CoverageLimit: -1}})
	assert.True(t, errors.IsValidation(err), "coverage limit")

	_, err = NewProperty(PropertyParams{Terms: okTerms, PropertyDetails: PropertyDetails{
		PropertyLocation: "x", PropertyValue: -1, PropertyType: PropertyHouse,
	}})
	assert.True(t, errors.IsValidation(err), "property value")

	_, err = NewProperty(PropertyParams{Terms: okTerms, PropertyDetails: PropertyDetails{PropertyType: PropertyHouse}})
	assert.True(t, errors.IsValidation(err), "location")

	edges := []Terms{
		{RiskLevel: 0, Amount: 0.01, DurationMonths: 1},
		{RiskLevel: 1, Amount: 1e9, DurationMonths: 600},
	}
	for _, terms := range edges {
		_, err := NewLife(LifeParams{Terms: terms, LifeDetails: LifeDetails{Beneficiary: "b"}})
		assert.NoError(t, err, "%+v", terms)
	}
}

func TestCalculateValue_Deterministic(t *testing.T) {
	h := exampleHealth(t)
	first := h.CalculateValue()
	for i := 0; i < 20; i++ {
		require.Equal(t, first, h.CalculateValue())
	}
}

func TestNew_Defaults(t *testing.T) {
	freezeClock(t, fixedNow)
	prev := policySuffix
	policySuffix = func() int { return 42 }
	t.Cleanup(func() { policySuffix = prev })

	h := exampleHealth(t)

	assert.Equal(t, int64(0), h.ID())
	assert.Equal(t, StatusDraft, h.Status())
	assert.Equal(t, fixedNow, h.StartDate())
	assert.Equal(t, fixedNow, h.CreatedAt())
	assert.Equal(t, fmt.Sprintf("POL-%d-42", fixedNow.UnixMilli()), h.PolicyNumber())
	// Jan 31 + 6 months clamps to Jul 31.
	assert.Equal(t, time.Date(2024, time.July, 31, 10, 0, 0, 0, time.UTC), h.EndDate())
}

func TestPolicyNumber_Format(t *testing.T) {
	l := exampleLife(t)
	assert.Regexp(t, regexp.MustCompile(`^POL-\d+-\d{1,3}$`), l.PolicyNumber())
}

func TestSetters_RejectWithoutMutation(t *testing.T) {
	l := exampleLife(t)
	updated := l.UpdatedAt()

	assert.True(t, errors.IsValidation(l.SetRiskLevel(2)))
	assert.True(t, errors.IsValidation(l.SetAmount(-5)))
	assert.True(t, errors.IsValidation(l.SetDurationMonths(0)))
	assert.True(t, errors.IsValidation(l.SetBeneficiary(" ")))
	assert.True(t, errors.IsValidation(l.SetStatus("LAPSED")))

	assert.Equal(t, 0.5, l.RiskLevel())
	assert.Equal(t, 1000.0, l.Amount())
	assert.Equal(t, 12, l.DurationMonths())
	assert.Equal(t, "Jane Doe", l.Beneficiary())
	assert.Equal(t, StatusDraft, l.Status())
	assert.Equal(t, updated, l.UpdatedAt())
}

func TestEndDateFollowsStartAndDuration(t *testing.T) {
	freezeClock(t, fixedNow)
	h := exampleHealth(t)

	start := time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)
	h.SetStartDate(start)
	assert.Equal(t, AddMonths(start, 6), h.EndDate())

	require.NoError(t, h.SetDurationMonths(18))
	assert.Equal(t, time.Date(2024, time.September, 15, 0, 0, 0, 0, time.UTC), h.EndDate())

	override := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)
	h.SetEndDate(override)
	assert.Equal(t, override, h.EndDate())
	assert.Equal(t, start, h.StartDate())
}

func TestRisks_AddRemoveBumpUpdatedAt(t *testing.T) {
	now := freezeClock(t, fixedNow)
	l := exampleLife(t)

	*now = fixedNow.Add(time.Hour)
	l.AddRisk(risk.MustStandard(risk.CodeAccidentalDeath))
	assert.True(t, l.CoversRisk("ACCD01"))
	assert.Equal(t, *now, l.UpdatedAt())

	*now = fixedNow.Add(2 * time.Hour)
	assert.True(t, l.RemoveRisk("CRIL01"))
	assert.Equal(t, *now, l.UpdatedAt())

	*now = fixedNow.Add(3 * time.Hour)
	assert.False(t, l.RemoveRisk("CRIL01"))
	assert.Equal(t, fixedNow.Add(2*time.Hour), l.UpdatedAt())

	l.AddRisk(risk.MustStandard(risk.CodeDeath))
	assert.Len(t, l.Risks(), 2, "adding an existing code keeps the set unique")

	l.SetRisks(nil)
	assert.Empty(t, l.Risks())
	assert.InDelta(t, 1000*1.05*1.3, l.CalculateValue(), 1e-9)
}

func TestFlagsAfterConstructionDoNotResyncRisks(t *testing.T) {
	h := exampleHealth(t)
	h.SetIncludesHospitalization(false)
	h.SetIncludesDentalCare(true)

	assert.Equal(t, []string{"HLTH01", "HOSP01"}, codes(h.Risks()))

	amount, riskLevel := 50000.0, 0.3
	want := amount * (1 + riskLevel*0.05) * 1.2 * 1.1 * (1 + 0.2 + 0.15)
	assert.InDelta(t, want, h.CalculateValue(), 1e-6)
}

func TestStateMachine(t *testing.T) {
	type step func(o Obligation) bool
	activate := func(o Obligation) bool { return o.Activate() }
	cancel := func(o Obligation) bool { return o.Cancel() }

	cases := []struct {
		name  string
		from  Status
		step  step
		ok    bool
		final Status
	}{
		{"activate draft", StatusDraft, activate, true, StatusActive},
		{"activate active", StatusActive, activate, false, StatusActive},
		{"activate cancelled", StatusCancelled, activate, false, StatusCancelled},
		{"cancel active", StatusActive, cancel, true, StatusCancelled},
		{"cancel pending", StatusPending, cancel, true, StatusCancelled},
		{"cancel draft", StatusDraft, cancel, false, StatusDraft},
		{"cancel expired", StatusExpired, cancel, false, StatusExpired},
		{"cancel claimed", StatusClaimed, cancel, false, StatusClaimed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := exampleLife(t)
			require.NoError(t, l.SetStatus(tc.from))
			assert.Equal(t, tc.ok, tc.step(l))
			assert.Equal(t, tc.final, l.Status())
		})
	}
}

func TestActivate_RestampsDates(t *testing.T) {
	now := freezeClock(t, fixedNow)
	l := exampleLife(t)

	*now = fixedNow.AddDate(0, 0, 10)
	require.True(t, l.Activate())
	assert.Equal(t, *now, l.StartDate())
	assert.Equal(t, AddMonths(*now, 12), l.EndDate())
}

func TestRenew(t *testing.T) {
	now := freezeClock(t, fixedNow)
	l := exampleLife(t)

	ok, err := l.Renew(6)
	require.NoError(t, err)
	assert.False(t, ok, "draft cannot renew")
	assert.Equal(t, 12, l.DurationMonths())

	for _, months := range []int{0, -3} {
		ok, err = l.Renew(months)
		require.NoError(t, err, "draft ignores renew(%d)", months)
		assert.False(t, ok)
	}

	require.True(t, l.Activate())
	end := l.EndDate()

	ok, err = l.Renew(6)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 18, l.DurationMonths())
	assert.Equal(t, AddMonths(end, 6), l.EndDate())

	_, err = l.Renew(0)
	assert.True(t, errors.IsValidation(err))

	*now = l.EndDate().Add(time.Second)
	assert.False(t, l.IsActive())
	ok, err = l.Renew(1)
	require.NoError(t, err)
	assert.False(t, ok, "expired term cannot renew")
	assert.Equal(t, StatusActive, l.Status(), "no implicit expiry")
	ok, err = l.Renew(0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAs(t *testing.T) {
	var o Obligation = exampleHealth(t)

	h, err := As[*Health](o)
	require.NoError(t, err)
	assert.Equal(t, 35, h.Age())

	_, err = As[*Life](o)
	require.Error(t, err)
	assert.True(t, errors.IsCast(err))
	assert.Contains(t, err.Error(), "Cannot cast HealthInsurance to LifeInsurance")

	_, err = As[*Property](nil)
	assert.True(t, errors.IsCast(err))
	assert.Equal(t, Type(""), TypeOf(nil))
}

func TestAs_NilVariantInInterface(t *testing.T) {
	var l *Life
	var o Obligation = l

	got, err := As[*Life](o)
	require.Error(t, err)
	assert.True(t, errors.IsCast(err))
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "Cannot cast <nil> to LifeInsurance")

	_, err = As[*Health](o)
	assert.True(t, errors.IsCast(err))
}

func TestAddMonths(t *testing.T) {
	cases := []struct {
		in   time.Time
		n    int
		want time.Time
	}{
		{time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), 1, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC), 1, time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC)},
		{time.Date(2023, 11, 15, 8, 30, 0, 0, time.UTC), 3, time.Date(2024, 2, 15, 8, 30, 0, 0, time.UTC)},
		{time.Date(2023, 5, 31, 0, 0, 0, 0, time.UTC), 12, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), -1, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, AddMonths(tc.in, tc.n), "%s + %d", tc.in, tc.n)
	}
}

func TestParseTypeAndStatus(t *testing.T) {
	typ, err := ParseType("life")
	require.NoError(t, err)
	assert.Equal(t, TypeLife, typ)

	_, err = ParseType("MARINE")
	assert.True(t, errors.IsUnknownType(err))

	st, err := ParseStatus("claimed")
	require.NoError(t, err)
	assert.Equal(t, StatusClaimed, st)

	_, err = ParseStatus("lapsed")
	assert.True(t, errors.IsValidation(err))
}
