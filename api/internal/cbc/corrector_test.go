package cbc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrector_WBC(t *testing.T) {
	c := NewCorrector(DefaultRules())

	cases := []struct {
		name string
		in   float64
		want float64
		ok   bool
	}{
		{"dropped decimal", 63, 6.3, true},
		{"already fine", 6.3, 6.3, true},
		{"no repair for 25", 25, 0, false},
		{"ten times", 150, 15, true},
		{"decimal insertion", 1050, 10.5, true},
		{"below window", 1.2, 0, false},
		{"zero", 0, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := c.Correct(WBCCount, tc.in, "")
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.InDelta(t, tc.want, got, 1e-9)
			}
		})
	}
}

func TestCorrector_Differential(t *testing.T) {
	c := NewCorrector(DefaultRules())

	got, ok := c.Correct(Neutrophils, 55, "")
	assert.True(t, ok)
	assert.InDelta(t, 0.55, got, 1e-9)

	got, ok = c.Correct(Neutrophils, 0.55, "")
	assert.True(t, ok)
	assert.InDelta(t, 0.55, got, 1e-9)

	_, ok = c.Correct(Neutrophils, 95, "")
	assert.False(t, ok)

	_, ok = c.Correct(Lymphocytes, 12, "")
	assert.False(t, ok)

	got, ok = c.Correct(Monocytes, 0.005, "")
	assert.True(t, ok)
	assert.InDelta(t, 0.005, got, 1e-12)
}

func TestCorrector_DifferentialPrefersPercentInContext(t *testing.T) {
	c := NewCorrector(DefaultRules())

	ctx := "WBC 6.1\nNeutrophils 0.6 62 %\nLymphocytes 0.3 30 %"
	got, ok := c.Correct(Neutrophils, 0.6, ctx)
	assert.True(t, ok)
	assert.InDelta(t, 0.62, got, 1e-9)

	got, ok = c.Correct(Lymphocytes, 0.3, ctx)
	assert.True(t, ok)
	assert.InDelta(t, 0.30, got, 1e-9)

	// no percent-scale number on the line: raw value is kept
	got, ok = c.Correct(Neutrophils, 0.6, "Neutrophils 0.6")
	assert.True(t, ok)
	assert.InDelta(t, 0.6, got, 1e-9)

	// out-of-band number on the line is ignored
	got, ok = c.Correct(Neutrophils, 0.6, "Neutrophils 0.6 95")
	assert.True(t, ok)
	assert.InDelta(t, 0.6, got, 1e-9)
}

func TestCorrector_RangeOnly(t *testing.T) {
	c := NewCorrector(DefaultRules())

	got, ok := c.Correct(MCV, 88, "")
	assert.True(t, ok)
	assert.Equal(t, 88.0, got)

	_, ok = c.Correct(MCV, 120, "")
	assert.False(t, ok)

	_, ok = c.Correct(ParameterKey("Ferritin"), 50, "")
	assert.False(t, ok)
}
