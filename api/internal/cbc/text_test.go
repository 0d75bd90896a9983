package cbc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Hb\t\t 12.5\r\n\r\nMCV   80", "Hb 12.5\nMCV 80"},
		{"  \n \n", ""},
		// fullwidth digits from some scanners
		{"Hb １２.５", "Hb 12.5"},
		{"PLT 250", "PLT 250"},
		{"a\rb", "a\nb"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Clean(c.in), "%q", c.in)
	}
}

func TestFlattenAndLines(t *testing.T) {
	cleaned := Clean("Hb 12\nMCV 80\n")
	assert.Equal(t, "Hb 12 MCV 80", Flatten(cleaned))
	assert.Equal(t, []string{"Hb 12", "MCV 80"}, Lines(cleaned))
	assert.Nil(t, Lines(""))
}

func TestNumberTokens(t *testing.T) {
	got := numberTokens("wbc 6.3 x10 4. 12")
	var vals []float64
	for _, tk := range got {
		vals = append(vals, tk.value)
	}
	assert.Equal(t, []float64{6.3, 10, 4, 12}, vals)
	assert.Equal(t, 4, got[0].pos)
}

func TestKeywordHit(t *testing.T) {
	s, e := keywordHit("hb 12", "hb", 0)
	assert.Equal(t, 0, s)
	assert.Equal(t, 2, e)

	s, _ = keywordHit("mchc 33", "mch", 0)
	assert.Equal(t, -1, s)

	s, e = keywordHit("thb 9 hb 10", "hb", 0)
	assert.Equal(t, 6, s)
	assert.Equal(t, 8, e)

	s, _ = keywordHit("(hb) 9", "hb", 0)
	assert.Equal(t, 1, s)
}
