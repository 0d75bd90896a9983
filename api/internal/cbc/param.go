// Package cbc extracts Complete Blood Count values from noisy OCR text.
//
// The pipeline is: clean text -> Matcher (regex families) -> Scanner (keyword
// lines, fallback) -> Corrector (OCR digit/unit repair) -> Validator (range)
// -> Extractor (first-resolved-wins merge over every OCR attempt).
package cbc

import (
	"sort"
	"strings"
)

// ParameterKey identifies one CBC parameter.
type ParameterKey string

const (
	Hemoglobin    ParameterKey = "Hemoglobin"
	Hematocrit    ParameterKey = "Hematocrit"
	RBCCount      ParameterKey = "RBC Count"
	MCV           ParameterKey = "MCV"
	MCH           ParameterKey = "MCH"
	MCHC          ParameterKey = "MCHC"
	RDW           ParameterKey = "RDW"
	WBCCount      ParameterKey = "WBC Count"
	PlateletCount ParameterKey = "Platelet Count"
	Neutrophils   ParameterKey = "Neutrophils"
	Lymphocytes   ParameterKey = "Lymphocytes"
	Eosinophils   ParameterKey = "Eosinophils"
	Monocytes     ParameterKey = "Monocytes"
)

func (k ParameterKey) String() string { return string(k) }

// IsDifferential reports whether k is a white-cell differential count
// (stored as a proportion of 1.0).
func (k ParameterKey) IsDifferential() bool {
	switch k {
	case Neutrophils, Lymphocytes, Eosinophils, Monocytes:
		return true
	}
	return false
}

// AllKeys returns the full parameter set in resolution priority order.
func AllKeys() []ParameterKey {
	return []ParameterKey{
		Hemoglobin, Hematocrit, RBCCount, MCV, MCH, MCHC, RDW,
		WBCCount, PlateletCount, Neutrophils, Lymphocytes, Eosinophils, Monocytes,
	}
}

// ClassifierKeys: минимальный набор для классификатора анемии.
func ClassifierKeys() []ParameterKey {
	return []ParameterKey{Hemoglobin, Hematocrit, MCV, MCH, MCHC, RBCCount, WBCCount, PlateletCount}
}

var keyAliases = map[string]ParameterKey{
	"hemoglobin":     Hemoglobin,
	"haemoglobin":    Hemoglobin,
	"hb":             Hemoglobin,
	"hgb":            Hemoglobin,
	"hematocrit":     Hematocrit,
	"haematocrit":    Hematocrit,
	"hct":            Hematocrit,
	"pcv":            Hematocrit,
	"rbc":            RBCCount,
	"rbc count":      RBCCount,
	"rbc_count":      RBCCount,
	"mcv":            MCV,
	"mch":            MCH,
	"mchc":           MCHC,
	"rdw":            RDW,
	"wbc":            WBCCount,
	"wbc count":      WBCCount,
	"wbc_count":      WBCCount,
	"platelet":       PlateletCount,
	"platelets":      PlateletCount,
	"platelet count": PlateletCount,
	"platelet_count": PlateletCount,
	"plt":            PlateletCount,
	"neutrophils":    Neutrophils,
	"lymphocytes":    Lymphocytes,
	"eosinophils":    Eosinophils,
	"monocytes":      Monocytes,
}

// ParseKey maps a loosely written parameter name ("hemoglobin", "RBC Count",
// "platelet") to its key.
func ParseKey(s string) (ParameterKey, bool) {
	k, ok := keyAliases[strings.ToLower(strings.TrimSpace(s))]
	return k, ok
}

// Range is an inclusive [Min, Max] interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// ValueMap is the terminal artifact of extraction: parameter -> value in
// canonical units.
type ValueMap map[ParameterKey]float64

// Has reports whether k is present.
func (m ValueMap) Has(k ParameterKey) bool {
	_, ok := m[k]
	return ok
}

// ValueMapFromNames builds a ValueMap from loosely named keys; unknown names
// are returned separately.
func ValueMapFromNames(in map[string]float64) (ValueMap, []string) {
	out := make(ValueMap, len(in))
	var unknown []string
	for name, v := range in {
		k, ok := ParseKey(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		out[k] = v
	}
	sort.Strings(unknown)
	return out, unknown
}
