package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

func TestNew_UppercasesCode(t *testing.T) {
	r, err := New("ab1", "x", "y", 0.1, CategoryProperty)
	require.NoError(t, err)
	assert.Equal(t, "AB1", r.Code)
}

func TestNew_Validation(t *testing.T) {
	cases := []struct {
		name     string
		code     string
		riskName string
		factor   float64
		category Category
	}{
		{"code too short", "a", "x", 0.1, CategoryProperty},
		{"blank code", "  ", "x", 0.1, CategoryProperty},
		{"zero factor", "AB", "x", 0, CategoryProperty},
		{"negative factor", "AB", "x", -0.5, CategoryProperty},
		{"NaN factor", "AB", "x", math.NaN(), CategoryProperty},
		{"infinite factor", "AB", "x", math.Inf(1), CategoryProperty},
		{"negative infinite factor", "AB", "x", math.Inf(-1), CategoryProperty},
		{"single multibyte character code", "é", "x", 0.1, CategoryProperty},
		{"empty name", "AB", "", 0.1, CategoryProperty},
		{"bad category", "AB", "x", 0.1, Category("MARINE")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.code, tc.riskName, "d", tc.factor, tc.category)
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
		})
	}
}

func TestNew_MultibyteCode(t *testing.T) {
	r, err := New("éa", "Accent", "d", 0.1, CategoryLiability)
	require.NoError(t, err)
	assert.Equal(t, "ÉA", r.Code)
}

func TestEqual_ByCodeOnly(t *testing.T) {
	a, _ := New("FIRE01", "Fire", "one", 0.15, CategoryProperty)
	b, _ := New("fire01", "Blaze", "two", 0.9, CategoryLiability)
	c, _ := New("THFT01", "Fire", "one", 0.15, CategoryProperty)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" life ")
	require.NoError(t, err)
	assert.Equal(t, CategoryLife, c)

	_, err = ParseCategory("marine")
	assert.True(t, errors.IsValidation(err))
	assert.Len(t, Categories(), 5)
}

func TestStandardCatalogue(t *testing.T) {
	want := map[string]float64{
		"HLTH01": 0.20, "HOSP01": 0.15, "DENT01": 0.10,
		"DEATH01": 0.25, "CRIL01": 0.15, "ACCD01": 0.10,
		"FIRE01": 0.15, "THFT01": 0.10, "NATD01": 0.20,
	}
	all := Standard()
	require.Len(t, all, len(want))
	for _, r := range all {
		assert.Equal(t, want[r.Code], r.BaseRiskFactor, r.Code)
		_, err := New(r.Code, r.Name, r.Description, r.BaseRiskFactor, r.Category)
		assert.NoError(t, err, r.Code)
	}

	all[0].BaseRiskFactor = 99
	assert.Equal(t, 0.20, MustStandard(CodeMedicalExpenses).BaseRiskFactor)
}

func TestMustStandard_PanicsOnUnknown(t *testing.T) {
	assert.Panics(t, func() { MustStandard("NOPE01") })
	_, ok := LookupStandard("NOPE01")
	assert.False(t, ok)
}
