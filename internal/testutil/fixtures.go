package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/turtacn/insurance-derivatives/internal/domain/derivative"
	"github.com/turtacn/insurance-derivatives/internal/domain/obligation"
)

// Health builds a DRAFT health obligation with hospitalization cover.
func Health(t testing.TB, riskLevel, amount float64, months int) *obligation.Health {
	t.Helper()
	h, err := obligation.NewHealth(obligation.HealthParams{
		Terms:         obligation.Terms{RiskLevel: riskLevel, Amount: amount, DurationMonths: months},
		HealthDetails: obligation.HealthDetails{Age: 35, CoverageLimit: 200000, IncludesHospitalization: true},
	})
	require.NoError(t, err)
	return h
}

// Life builds a DRAFT life obligation with critical illness cover.
func Life(t testing.TB, riskLevel, amount float64, months int) *obligation.Life {
	t.Helper()
	l, err := obligation.NewLife(obligation.LifeParams{
		Terms:       obligation.Terms{RiskLevel: riskLevel, Amount: amount, DurationMonths: months},
		LifeDetails: obligation.LifeDetails{Beneficiary: "Jane Doe", IncludesCriticalIllness: true},
	})
	require.NoError(t, err)
	return l
}

// Property builds a DRAFT property obligation for a house.
func Property(t testing.TB, riskLevel, amount float64, months int) *obligation.Property {
	t.Helper()
	p, err := obligation.NewProperty(obligation.PropertyParams{
		Terms: obligation.Terms{RiskLevel: riskLevel, Amount: amount, DurationMonths: months},
		PropertyDetails: obligation.PropertyDetails{
			PropertyLocation: "12 Harbour Road",
			PropertyValue:    350000,
			PropertyType:     obligation.PropertyHouse,
		},
	})
	require.NoError(t, err)
	return p
}

// Derivative builds a derivative holding obs, with ids assigned from 1 to
// any obligation that has none.
func Derivative(t testing.TB, name string, obs ...obligation.Obligation) *derivative.Derivative {
	t.Helper()
	d, err := derivative.New(name)
	require.NoError(t, err)
	for i, o := range obs {
		if o.ID() == 0 {
			o.SetID(int64(i + 1))
		}
		d.AddObligation(o)
	}
	return d
}
