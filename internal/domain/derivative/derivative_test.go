package derivative

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/insurance-derivatives/internal/domain/obligation"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

func newLife(t *testing.T, riskLevel, amount float64) *obligation.Life {
	t.Helper()
	l, err := obligation.NewLife(obligation.LifeParams{
		Terms:       obligation.Terms{RiskLevel: riskLevel, Amount: amount, DurationMonths: 12},
		LifeDetails: obligation.LifeDetails{Beneficiary: "Alex"},
	})
	require.NoError(t, err)
	return l
}

func newProperty(t *testing.T, riskLevel, amount float64) *obligation.Property {
	t.Helper()
	p, err := obligation.NewProperty(obligation.PropertyParams{
		Terms: obligation.Terms{RiskLevel: riskLevel, Amount: amount, DurationMonths: 24},
		PropertyDetails: obligation.PropertyDetails{
			PropertyLocation: "Main St", PropertyType: obligation.PropertyHouse,
		},
	})
	require.NoError(t, err)
	return p
}

func sumValues(list []obligation.Obligation) float64 {
	total := 0.0
	for _, o := range list {
		total += o.CalculateValue()
	}
	return total
}

func TestNew_RequiresName(t *testing.T) {
	_, err := New("  ")
	assert.True(t, errors.IsValidation(err))

	d, err := New("Q3 book")
	require.NoError(t, err)
	assert.Equal(t, "Q3 book", d.Name())
	assert.Zero(t, d.TotalValue())
	assert.Zero(t, d.ID())
}

func TestAddObligation_IsIdempotentByIdentity(t *testing.T) {
	d, _ := New("d")
	l := newLife(t, 0.5, 1000)

	assert.True(t, d.AddObligation(l))
	assert.False(t, d.AddObligation(l))
	assert.False(t, d.AddObligation(nil))

	assert.Equal(t, 1, d.Len())
	assert.InDelta(t, l.CalculateValue(), d.TotalValue(), 1e-9)

	twin := newLife(t, 0.5, 1000)
	assert.True(t, d.AddObligation(twin), "equal fields but a distinct instance")
	assert.Equal(t, 2, d.Len())
}

func TestTotalValueTracksMembership(t *testing.T) {
	d, _ := New("d")
	a := newLife(t, 0.1, 1000)
	b := newProperty(t, 0.9, 50000)
	c := newLife(t, 0.7, 300)

	for _, o := range []obligation.Obligation{a, b, c} {
		d.AddObligation(o)
		assert.InDelta(t, sumValues(d.Obligations()), d.TotalValue(), 1e-6)
	}

	assert.True(t, d.RemoveObligation(b))
	assert.False(t, d.RemoveObligation(b))
	assert.Equal(t, []obligation.Obligation{a, c}, d.Obligations())
	assert.InDelta(t, a.CalculateValue()+c.CalculateValue(), d.TotalValue(), 1e-9)

	d.SetObligations([]obligation.Obligation{c, nil, c, b})
	assert.Equal(t, []obligation.Obligation{c, b}, d.Obligations())
	assert.InDelta(t, sumValues(d.Obligations()), d.TotalValue(), 1e-6)

	d.SetObligations(nil)
	assert.Zero(t, d.TotalValue())
}

func TestObligations_ReturnsCopy(t *testing.T) {
	d, _ := New("d")
	d.AddObligation(newLife(t, 0.1, 10))

	list := d.Obligations()
	list[0] = nil
	assert.NotNil(t, d.Obligations()[0])
}

func TestRecalculateTotal_PicksUpMutations(t *testing.T) {
	d, _ := New("d")
	l := newLife(t, 0.1, 1000)
	d.AddObligation(l)

	require.NoError(t, l.SetAmount(2000))
	assert.InDelta(t, l.CalculateValue(), d.RecalculateTotal(), 1e-9)
}

func TestSortByRiskLevel(t *testing.T) {
	d, _ := New("d")
	low := newLife(t, 0.1, 10)
	high := newLife(t, 0.9, 10)
	midA := newLife(t, 0.5, 10)
	midB := newProperty(t, 0.5, 10)
	d.SetObligations([]obligation.Obligation{low, midA, high, midB})

	d.SortByRiskLevel()
	assert.Equal(t, []obligation.Obligation{high, midA, midB, low}, d.Obligations())
}

func TestObligationsInRange(t *testing.T) {
	d, _ := New("d")
	a := newLife(t, 0.2, 100)
	b := newLife(t, 0.6, 5000)
	c := newProperty(t, 0.6, 100)
	d.SetObligations([]obligation.Obligation{a, b, c})

	got := d.ObligationsInRange(0.5, 1, 0, 1000)
	assert.Equal(t, []obligation.Obligation{c}, got)

	got = d.ObligationsInRange(0.2, 0.6, 100, 5000)
	assert.Len(t, got, 3, "bounds are inclusive")
}

func TestActiveObligations(t *testing.T) {
	d, _ := New("d")
	active := newLife(t, 0.2, 100)
	require.True(t, active.Activate())
	draft := newLife(t, 0.2, 100)
	d.SetObligations([]obligation.Obligation{active, draft})

	assert.Equal(t, []obligation.Obligation{active}, d.ActiveObligations())
}

func TestRestore_RecomputesTotal(t *testing.T) {
	l := newLife(t, 0.5, 1000)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	d, err := Restore(5, "stored", created, created, []obligation.Obligation{l, nil})
	require.NoError(t, err)
	assert.Equal(t, int64(5), d.ID())
	assert.Equal(t, created, d.CreatedAt())
	assert.Equal(t, 1, d.Len())
	assert.InDelta(t, 1000*1.05*1.25, d.TotalValue(), 1e-9)

	_, err = Restore(5, "", created, created, nil)
	assert.True(t, errors.IsValidation(err))
}

func TestFilter(t *testing.T) {
	small, _ := New("Coastal Property Pool")
	small.AddObligation(newLife(t, 0, 100))
	big, _ := New("Life Book 2024")
	big.AddObligation(newLife(t, 0, 100000))

	all := []*Derivative{small, big, nil}

	assert.Equal(t, []*Derivative{small}, Filter(all, Criteria{NameContains: "COASTAL"}))
	assert.Equal(t, []*Derivative{big}, Filter(all, Criteria{MinTotal: 1000}))
	assert.Equal(t, []*Derivative{small}, Filter(all, Criteria{MaxTotal: 1000}))
	assert.Len(t, Filter(all, Criteria{}), 2)
	assert.Empty(t, Filter(all, Criteria{NameContains: "book", MaxTotal: 10}))
}

func TestSetName(t *testing.T) {
	d, _ := New("a")
	assert.True(t, errors.IsValidation(d.SetName("")))
	require.NoError(t, d.SetName("b"))
	assert.Equal(t, "b", d.Name())
}
