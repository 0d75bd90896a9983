package cbc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func values(cs []Candidate) []float64 {
	out := make([]float64, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Value)
	}
	return out
}

func TestScanner_NumbersAfterKeyword(t *testing.T) {
	s := NewScanner(DefaultRules())

	got := s.Scan([]string{"12 RDW (CV) 13.5 % 11.5-14.5"}, RDW)
	assert.Equal(t, []float64{13.5}, values(got))
	require.NotEmpty(t, got)
	assert.Equal(t, MethodScan, got[0].Method)
	assert.Equal(t, "12 RDW (CV) 13.5 % 11.5-14.5", got[0].Context)
}

func TestScanner_DifferentialKeepsBandTokens(t *testing.T) {
	s := NewScanner(DefaultRules())

	got := s.Scan([]string{"Neutrophils # 3.9 x10^9/L 58 %"}, Neutrophils)
	assert.Equal(t, []float64{58}, values(got))

	got = s.Scan([]string{"Lymphs 0.32"}, Lymphocytes)
	assert.Equal(t, []float64{0.32}, values(got))
}

func TestScanner_KeywordBoundaries(t *testing.T) {
	s := NewScanner(DefaultRules())

	assert.Empty(t, s.Scan([]string{"MCHC 33.4"}, MCH))
	assert.Empty(t, s.Scan([]string{"Thb 9"}, Hemoglobin))
	assert.Equal(t, []float64{9}, values(s.Scan([]string{"Hb: 9"}, Hemoglobin)))
}

func TestScanner_LongerKeywordOfOtherParameterWins(t *testing.T) {
	s := NewScanner(DefaultRules())
	lines := []string{"Mean Corpuscular Hemoglobin Concentration 33.5"}

	assert.Empty(t, s.Scan(lines, MCH))
	assert.Empty(t, s.Scan(lines, Hemoglobin))
	assert.Equal(t, []float64{33.5}, values(s.Scan(lines, MCHC)))

	lines = []string{"Mean Corpuscular Hemoglobin 29.1"}
	assert.Empty(t, s.Scan(lines, Hemoglobin))
	assert.Equal(t, []float64{29.1}, values(s.Scan(lines, MCH)))
}

func TestScanner_AllHitLinesInOrder(t *testing.T) {
	s := NewScanner(DefaultRules())
	got := s.Scan([]string{"WBC 4.1", "noise 1 2 3", "Total WBC 5.2"}, WBCCount)
	assert.Equal(t, []float64{4.1, 5.2}, values(got))
}

func TestScanner_ReferenceRangeIsNotAValue(t *testing.T) {
	s := NewScanner(DefaultRules())

	assert.Equal(t, []float64{65}, values(s.Scan([]string{"MCV: 65 fL (80-100)"}, MCV)))
	assert.Equal(t, []float64{7.0}, values(s.Scan([]string{"Hemoglobin: 7.0 g/dL (12.0-16.0)"}, Hemoglobin)))
}

func TestScanner_ThousandsSeparator(t *testing.T) {
	s := NewScanner(DefaultRules())

	assert.Equal(t, []float64{6300}, values(s.Scan([]string{"WBC: 6,300 /uL"}, WBCCount)))
	assert.Equal(t, []float64{6}, values(s.Scan([]string{"WBC: 6,3"}, WBCCount)))
}
