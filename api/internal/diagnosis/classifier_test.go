package diagnosis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cbc-anemia/api/internal/cbc"
)

func TestClassify_Scenarios(t *testing.T) {
	cases := []struct {
		name string
		in   cbc.ValueMap
		want Label
	}{
		{"microcytic", cbc.ValueMap{cbc.Hemoglobin: 10.0, cbc.Hematocrit: 0.30, cbc.MCV: 70}, Microcytic},
		{"macrocytic", cbc.ValueMap{cbc.Hemoglobin: 10.0, cbc.Hematocrit: 0.30, cbc.MCV: 105}, Macrocytic},
		{"normocytic", cbc.ValueMap{cbc.Hemoglobin: 10.0, cbc.Hematocrit: 0.30, cbc.MCV: 90}, Normocytic},
		{"healthy", cbc.ValueMap{cbc.Hemoglobin: 15.0, cbc.Hematocrit: 0.45}, NoAnemia},
		{"empty", cbc.ValueMap{}, Undetermined},
		{"nil", nil, Undetermined},
		{"no mcv", cbc.ValueMap{cbc.Hemoglobin: 10.0, cbc.Hematocrit: 0.30}, AnemiaUntyped},
		{"g/L scale low", cbc.ValueMap{cbc.Hemoglobin: 105, cbc.MCV: 72}, Microcytic},
		{"g/L scale normal", cbc.ValueMap{cbc.Hemoglobin: 140, cbc.MCV: 90}, NoAnemia},
		{"percent hematocrit low", cbc.ValueMap{cbc.Hematocrit: 33, cbc.MCV: 95}, Normocytic},
		{"mcv override", cbc.ValueMap{cbc.Hemoglobin: 14.0, cbc.Hematocrit: 0.42, cbc.MCV: 115}, Macrocytic},
		{"mcv edge is not override", cbc.ValueMap{cbc.Hemoglobin: 14.0, cbc.MCV: 110}, NoAnemia},
		{"only platelets", cbc.ValueMap{cbc.PlateletCount: 250}, Undetermined},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Classify(tc.in)
			assert.Equal(t, tc.want, d.Label)
			assert.NotEmpty(t, d.Explanation)
			assert.NotNil(t, d.ValuesUsed)
			assert.Equal(t, ReferenceRanges(), d.ReferenceRanges)
		})
	}
}

func TestClassify_Explanations(t *testing.T) {
	d := Classify(cbc.ValueMap{cbc.Hemoglobin: 10.0, cbc.Hematocrit: 0.30, cbc.MCV: 70})
	assert.Equal(t,
		"Microcytic anemia (MCV: 70 fL, normal: 80-100). "+
			"Low hemoglobin: 10 g/dL (normal: 12.0-18.0 g/dL); Low hematocrit: 0.3 (normal: 0.37-0.52). "+
			"Possible causes: Iron deficiency, thalassemia, chronic disease",
		d.Explanation)
	assert.Equal(t, []string{"Iron deficiency", "thalassemia", "chronic disease"}, d.PossibleCauses)
	assert.True(t, d.IsAnemia())

	d = Classify(cbc.ValueMap{cbc.Hemoglobin: 15.0, cbc.Hematocrit: 0.45})
	assert.Equal(t, "Values within normal range. Normal hemoglobin: 15 g/dL; Normal hematocrit: 0.45", d.Explanation)
	assert.Empty(t, d.PossibleCauses)
	assert.False(t, d.IsAnemia())

	d = Classify(cbc.ValueMap{})
	assert.Equal(t, "Missing both hemoglobin and hematocrit values", d.Explanation)

	d = Classify(cbc.ValueMap{cbc.Hemoglobin: 14.0, cbc.MCV: 65})
	assert.Contains(t, d.Explanation, "Abnormal MCV suggests anemia: 65 fL")
	assert.Equal(t, Microcytic, d.Label)
}

func TestClassify_DoesNotMutateInput(t *testing.T) {
	in := cbc.ValueMap{cbc.Hemoglobin: 10.0, cbc.MCV: 90}
	_ = Classify(in)
	assert.Equal(t, cbc.ValueMap{cbc.Hemoglobin: 10.0, cbc.MCV: 90}, in)
}

func TestClassify_ExtractedReportWithOutOfRangeMCV(t *testing.T) {
	ex := cbc.NewExtractor(cbc.DefaultRules())
	res := ex.Extract([]cbc.RawText{{Text: "Hemoglobin 10.0 g/dL\nHematocrit 30 %\nMCV: 65 fL (80-100)"}})

	assert.False(t, res.Values.Has(cbc.MCV))
	assert.Equal(t, AnemiaUntyped, Classify(res.Values).Label)
}
