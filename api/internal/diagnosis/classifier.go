// Package diagnosis maps validated CBC values to an anemia subtype.
package diagnosis

import (
	"fmt"
	"strconv"
	"strings"

	"cbc-anemia/api/internal/cbc"
)

type Label string

const (
	Undetermined  Label = "Unable to determine"
	NoAnemia      Label = "No Anemia"
	Microcytic    Label = "Microcytic Anemia"
	Normocytic    Label = "Normocytic Anemia"
	Macrocytic    Label = "Macrocytic Anemia"
	AnemiaUntyped Label = "Anemia (type undetermined)"
)

// MCV, fL
const (
	normalMCVRange  = "80-100"
	mcvOverrideLow  = 70.0
	mcvOverrideHigh = 110.0
	microcyticBelow = 80.0
	macrocyticAbove = 100.0
)

var causes = map[Label][]string{
	Microcytic: {"Iron deficiency", "thalassemia", "chronic disease"},
	Macrocytic: {"B12/folate deficiency", "hypothyroidism", "alcohol use"},
	Normocytic: {"Chronic kidney disease", "chronic inflammation", "acute blood loss"},
}

// Diagnosis is recomputed on every call; it holds no state.
type Diagnosis struct {
	Label           Label             `json:"diagnosis"`
	Explanation     string            `json:"explanation"`
	PossibleCauses  []string          `json:"possible_causes,omitempty"`
	ValuesUsed      cbc.ValueMap      `json:"values_used"`
	ReferenceRanges map[string]string `json:"reference_ranges"`
}

// IsAnemia reports whether the label is one of the anemia outcomes.
func (d Diagnosis) IsAnemia() bool {
	switch d.Label {
	case Microcytic, Normocytic, Macrocytic, AnemiaUntyped:
		return true
	}
	return false
}

// ReferenceRanges is the static table attached to every diagnosis.
func ReferenceRanges() map[string]string {
	return map[string]string{
		"hemoglobin_male":   "14.0-18.0 g/dL",
		"hemoglobin_female": "12.0-16.0 g/dL",
		"hematocrit_male":   "42-52%",
		"hematocrit_female": "37-47%",
		"mcv":               "80-100 fL",
		"mch":               "27-33 pg",
		"mchc":              "32-36 g/dL",
		"wbc":               "4.0-11.0 × 10⁹/L",
		"rbc":               "4.2-5.4 × 10¹²/L",
		"platelet":          "150-450 × 10⁹/L",
	}
}

// Classify never fails: missing values only change the branch taken.
// Hemoglobin may be in g/L or g/dL and hematocrit a proportion or a
// percentage; the unit is inferred by magnitude.
func Classify(vals cbc.ValueMap) Diagnosis {
	d := Diagnosis{
		Label:           Undetermined,
		Explanation:     "Insufficient data for classification",
		ValuesUsed:      vals,
		ReferenceRanges: ReferenceRanges(),
	}
	if d.ValuesUsed == nil {
		d.ValuesUsed = cbc.ValueMap{}
	}

	hb, hasHb := vals[cbc.Hemoglobin]
	hct, hasHct := vals[cbc.Hematocrit]
	if !hasHb && !hasHct {
		d.Explanation = "Missing both hemoglobin and hematocrit values"
		return d
	}

	var (
		anemic     bool
		indicators []string
	)
	if hasHb {
		low, s := hemoglobinIndicator(hb)
		anemic = anemic || low
		indicators = append(indicators, s)
	}
	if hasHct {
		low, s := hematocritIndicator(hct)
		anemic = anemic || low
		indicators = append(indicators, s)
	}

	mcv, hasMCV := vals[cbc.MCV]
	if !anemic && hasMCV && (mcv < mcvOverrideLow || mcv > mcvOverrideHigh) {
		anemic = true
		indicators = append(indicators, fmt.Sprintf("Abnormal MCV suggests anemia: %s fL", num(mcv)))
	}
	joined := strings.Join(indicators, "; ")

	switch {
	case !anemic:
		d.Label = NoAnemia
		d.Explanation = "Values within normal range. " + joined
		return d
	case !hasMCV:
		d.Label = AnemiaUntyped
		d.Explanation = "Anemia detected but MCV missing. " + joined
		return d
	case mcv < microcyticBelow:
		d.Label = Microcytic
	case mcv > macrocyticAbove:
		d.Label = Macrocytic
	default:
		d.Label = Normocytic
	}

	d.PossibleCauses = append([]string(nil), causes[d.Label]...)
	d.Explanation = fmt.Sprintf("%s (MCV: %s fL, normal: %s). %s. Possible causes: %s",
		sentenceCase(string(d.Label)), num(mcv), normalMCVRange, joined, strings.Join(d.PossibleCauses, ", "))
	return d
}

func hemoglobinIndicator(hb float64) (bool, string) {
	threshold, unit, normal := 12.0, "g/dL", "12.0-18.0 g/dL"
	if hb >= 50 {
		threshold, unit, normal = 120, "g/L", "120-180 g/L"
	}
	if hb < threshold {
		return true, fmt.Sprintf("Low hemoglobin: %s %s (normal: %s)", num(hb), unit, normal)
	}
	return false, fmt.Sprintf("Normal hemoglobin: %s %s", num(hb), unit)
}

func hematocritIndicator(hct float64) (bool, string) {
	threshold, unit, normal := 0.37, "", "0.37-0.52"
	if hct >= 1 {
		threshold, unit, normal = 37.0, "%", "37-52%"
	}
	if hct < threshold {
		return true, fmt.Sprintf("Low hematocrit: %s%s (normal: %s)", num(hct), unit, normal)
	}
	return false, fmt.Sprintf("Normal hematocrit: %s%s", num(hct), unit)
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// "Microcytic Anemia" -> "Microcytic anemia"
func sentenceCase(s string) string {
	if i := strings.IndexByte(s, ' '); i > 0 {
		return s[:i] + strings.ToLower(s[i:])
	}
	return s
}
