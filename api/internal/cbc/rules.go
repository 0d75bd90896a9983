package cbc

import (
	"fmt"
	"regexp"
)

// CorrectionRule selects the OCR repair strategy applied to a raw value.
type CorrectionRule int

const (
	// CorrectRange accepts the value only if it falls in the valid range.
	CorrectRange CorrectionRule = iota
	// CorrectWBC repairs dropped decimal points (63 -> 6.3).
	CorrectWBC
	// CorrectDifferential resolves percentage vs proportion confusion.
	CorrectDifferential
)

func (c CorrectionRule) String() string {
	switch c {
	case CorrectWBC:
		return "wbc"
	case CorrectDifferential:
		return "differential"
	default:
		return "range"
	}
}

// UnitScale rescales a raw value that falls in From into canonical units
// (e.g. hemoglobin 5..25 g/dL -> x10 g/L). Divide flips the factor so that
// 42 / 100 stays exactly 0.42.
type UnitScale struct {
	From   Range
	Factor float64
	Divide bool
}

// Rule is the per-parameter configuration shared by every pipeline component.
type Rule struct {
	Key ParameterKey
	// Patterns are tried in order, case-insensitively; group 1 is the number.
	Patterns []string
	// Keywords are lowercase label variants for the line scanner.
	Keywords   []string
	Valid      Range
	Correction CorrectionRule
	Units      []UnitScale
	// Band is the expected percentage-scale band for differential counts.
	Band Range
	// Repair is the window a WBC repair has to land in.
	Repair Range

	patterns []*regexp.Regexp
}

// Canonical reports the value of raw after unit scaling.
func (r *Rule) Canonical(raw float64) float64 {
	for _, u := range r.Units {
		if !u.From.Contains(raw) {
			continue
		}
		if u.Divide {
			return raw / u.Factor
		}
		return raw * u.Factor
	}
	return raw
}

// Rules is an immutable, ordered rule table.
type Rules struct {
	order []ParameterKey
	byKey map[ParameterKey]*Rule

	// MinResolved is the "usable CBC" threshold.
	MinResolved int
	// DiffSumWindow bounds the advisory differential-count sum check.
	DiffSumWindow Range
}

// NewRules compiles the patterns of every rule. Order of the slice is the
// resolution priority order.
func NewRules(list []Rule) (*Rules, error) {
	rs := &Rules{
		byKey:         make(map[ParameterKey]*Rule, len(list)),
		MinResolved:   3,
		DiffSumWindow: Range{Min: 0.5, Max: 1.5},
	}
	for i := range list {
		r := list[i]
		if _, dup := rs.byKey[r.Key]; dup {
			return nil, fmt.Errorf("duplicate rule for %s", r.Key)
		}
		r.patterns = make([]*regexp.Regexp, 0, len(r.Patterns))
		for _, p := range r.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("%s: bad pattern %q: %w", r.Key, p, err)
			}
			r.patterns = append(r.patterns, re)
		}
		rs.order = append(rs.order, r.Key)
		rs.byKey[r.Key] = &r
	}
	return rs, nil
}

// MustRules is NewRules that panics on a bad table.
func MustRules(list []Rule) *Rules {
	rs, err := NewRules(list)
	if err != nil {
		panic(err)
	}
	return rs
}

// Keys returns parameter keys in priority order.
func (rs *Rules) Keys() []ParameterKey {
	return append([]ParameterKey(nil), rs.order...)
}

func (rs *Rules) Rule(k ParameterKey) (*Rule, bool) {
	r, ok := rs.byKey[k]
	return r, ok
}

// Subset returns a table restricted to keys, keeping this table's priority
// order and policy constants.
func (rs *Rules) Subset(keys ...ParameterKey) *Rules {
	want := make(map[ParameterKey]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	out := &Rules{
		byKey:         make(map[ParameterKey]*Rule, len(keys)),
		MinResolved:   rs.MinResolved,
		DiffSumWindow: rs.DiffSumWindow,
	}
	for _, k := range rs.order {
		if want[k] {
			out.order = append(out.order, k)
			out.byKey[k] = rs.byKey[k]
		}
	}
	return out
}

// 6,300 is a thousands separator; 6,3 is not touched
const num = `(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+\.?\d*)`

// DefaultRules is the 13-parameter table in canonical units: hemoglobin and
// MCHC in g/L, hematocrit and differential counts as proportions.
func DefaultRules() *Rules {
	return MustRules([]Rule{
		{
			Key: Hemoglobin,
			Patterns: []string{
				`\bhemoglobin\s+` + num,
				`\bhaemoglobin\s+` + num,
				`\bhb\s+` + num,
				`\bhgb\s+` + num,
				`\bha?emoglobin\b[^\d]{0,20}?(\d+\.\d+)`,
				`\bha?emoglobin\b[^\d]{0,20}?(\d{2,3}\.?\d*)`,
			},
			Keywords: []string{"hemoglobin", "haemoglobin", "hgb", "hb"},
			Valid:    Range{Min: 80, Max: 200},
			Units:    []UnitScale{{From: Range{Min: 5, Max: 25}, Factor: 10}},
		},
		{
			Key: Hematocrit,
			Patterns: []string{
				`\bhematocrit\s+` + num,
				`\bhaematocrit\s+` + num,
				`\bhct\s+` + num,
				`\bpcv\s+` + num,
				`\bha?ematocrit\b[^\d]{0,20}?(0\.\d+)`,
			},
			Keywords: []string{"hematocrit", "haematocrit", "hct", "pcv"},
			Valid:    Range{Min: 0.25, Max: 0.60},
			Units:    []UnitScale{{From: Range{Min: 1, Max: 100}, Factor: 100, Divide: true}},
		},
		{
			Key: RBCCount,
			Patterns: []string{
				`\brbc\s+count\s+` + num,
				`\brbc\s+` + num,
				`\bred\s+blood\s+cells?(?:\s+count)?\s+` + num,
				`\brbc\b[^\d]{0,20}?(\d+\.\d+)`,
			},
			Keywords: []string{"rbc count", "red blood cells", "red blood cell", "rbc"},
			Valid:    Range{Min: 3.0, Max: 6.5},
		},
		{
			Key: MCV,
			Patterns: []string{
				`\bmcv\s+` + num,
				`\bmean\s+corpuscular\s+volume\s+` + num,
				`\bmcv\b[^\d]{0,20}?(\d{2,3}\.?\d*)`,
			},
			Keywords: []string{"mcv", "mean corpuscular volume"},
			Valid:    Range{Min: 70, Max: 110},
		},
		{
			// \bmch\b never matches inside "MCHC".
			Key: MCH,
			Patterns: []string{
				`\bmch\s+` + num,
				`\bmean\s+corpuscular\s+hemoglobin\s+` + num,
				`\bmch\b[^\d]{0,20}?(\d{2}\.?\d*)`,
			},
			Keywords: []string{"mch", "mean corpuscular hemoglobin"},
			Valid:    Range{Min: 22, Max: 35},
		},
		{
			Key: MCHC,
			Patterns: []string{
				`\bmchc\s+` + num,
				`\bmean\s+corpuscular\s+hemoglobin\s+concentration\s+` + num,
				`\bmchc\b[^\d]{0,20}?(\d{2,3}\.?\d*)`,
			},
			Keywords: []string{"mchc", "mean corpuscular hemoglobin concentration"},
			Valid:    Range{Min: 300, Max: 370},
			Units:    []UnitScale{{From: Range{Min: 25, Max: 45}, Factor: 10}},
		},
		{
			Key: RDW,
			Patterns: []string{
				`\brdw(?:-cv)?\s+` + num,
				`\bred\s+cell\s+distribution\s+width\s+` + num,
			},
			Keywords: []string{"rdw", "red cell distribution width", "red distribution width"},
			Valid:    Range{Min: 11, Max: 16},
		},
		{
			Key: WBCCount,
			Patterns: []string{
				`\bwbc\s+count\s+` + num,
				`\bwbc\s+` + num,
				`\bwhite\s+blood\s+cells?(?:\s+count)?\s+` + num,
				`\bwbc\b[^\d]{0,20}?(\d+\.\d+)`,
			},
			Keywords:   []string{"wbc count", "white blood cells", "white blood cell", "wbc"},
			Valid:      Range{Min: 3.0, Max: 15.0},
			Correction: CorrectWBC,
			Repair:     Range{Min: 2.0, Max: 20.0},
		},
		{
			Key: PlateletCount,
			Patterns: []string{
				`\bplatelet\s+count\s+` + num,
				`\bplt\s+` + num,
				`\bplatelets?\s+` + num,
				`\bplatelets?\b[^\d]{0,20}?(\d+)`,
			},
			Keywords: []string{"platelet count", "platelets", "platelet", "plt"},
			Valid:    Range{Min: 150, Max: 500},
			// per-µL counts (250000) -> x10^9/L
			Units: []UnitScale{{From: Range{Min: 1000, Max: 2_000_000}, Factor: 1000, Divide: true}},
		},
		{
			Key: Neutrophils,
			Patterns: []string{
				`\bneutrophils?\s+` + num,
				`\bneutropils\s+` + num,
				`\bneut\s+` + num,
				`\bneutros\s+` + num,
			},
			Keywords:   []string{"neutrophils", "neutropils", "neutrophil", "neutros", "neut"},
			Valid:      Range{Min: 0.40, Max: 0.80},
			Correction: CorrectDifferential,
			Band:       Range{Min: 40, Max: 80},
		},
		{
			Key: Lymphocytes,
			Patterns: []string{
				`\blymphocytes?\s+` + num,
				`\blymph\s+` + num,
				`\blymphs\s+` + num,
			},
			Keywords:   []string{"lymphocytes", "lymphocyte", "lymphs", "lymph"},
			Valid:      Range{Min: 0.15, Max: 0.50},
			Correction: CorrectDifferential,
			Band:       Range{Min: 15, Max: 50},
		},
		{
			Key: Eosinophils,
			Patterns: []string{
				`\beosinophils?\s+` + num,
				`\beosinopils\s+` + num,
				`\beos\s+` + num,
			},
			Keywords:   []string{"eosinophils", "eosinopils", "eosinophil", "eos"},
			Valid:      Range{Min: 0.00, Max: 0.10},
			Correction: CorrectDifferential,
			Band:       Range{Min: 0, Max: 10},
		},
		{
			Key: Monocytes,
			Patterns: []string{
				`\bmonocytes?\s+` + num,
				`\bmono\s+` + num,
				`\bmonos\s+` + num,
			},
			Keywords:   []string{"monocytes", "monocyte", "monos", "mono"},
			Valid:      Range{Min: 0.00, Max: 0.15},
			Correction: CorrectDifferential,
			Band:       Range{Min: 0, Max: 15},
		},
	})
}
