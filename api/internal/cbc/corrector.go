package cbc

import (
	"strconv"
	"strings"
)

// Corrector repairs typical OCR numeric damage per parameter: dropped
// decimal points in WBC counts and percent/proportion confusion in
// differential counts. Everything else is range-checked only.
type Corrector struct {
	rules *Rules
}

func NewCorrector(rules *Rules) *Corrector { return &Corrector{rules: rules} }

// Correct returns the corrected value or false for reject. raw must already
// be in canonical units. context is the line-preserved text around the
// match; only differential counts look at it.
func (c *Corrector) Correct(k ParameterKey, raw float64, context string) (float64, bool) {
	r, ok := c.rules.Rule(k)
	if !ok {
		return 0, false
	}
	switch r.Correction {
	case CorrectWBC:
		return correctWBC(r, raw)
	case CorrectDifferential:
		return c.correctDifferential(r, raw, context)
	default:
		if r.Valid.Contains(raw) {
			return raw, true
		}
		return 0, false
	}
}

func correctWBC(r *Rule, raw float64) (float64, bool) {
	if raw <= 30 {
		if r.Repair.Contains(raw) {
			return raw, true
		}
		return 0, false
	}
	if v := raw / 10; r.Repair.Contains(v) {
		return v, true
	}
	// 63 -> 6.3, 1050 -> 10.50
	digits := strings.ReplaceAll(strconv.FormatFloat(raw, 'f', -1, 64), ".", "")
	for i := 1; i < len(digits); i++ {
		v, err := strconv.ParseFloat(digits[:i]+"."+digits[i:], 64)
		if err != nil {
			continue
		}
		if r.Repair.Contains(v) {
			return v, true
		}
	}
	return 0, false
}

func (c *Corrector) correctDifferential(r *Rule, raw float64, context string) (float64, bool) {
	switch {
	case raw > 1:
		if r.Band.Contains(raw) {
			return raw / 100, true
		}
		return 0, false
	case raw > 0.01:
		if alt, ok := percentInContext(r, context); ok {
			return alt / 100, true
		}
		return raw, true
	default:
		return raw, true
	}
}

// percentInContext looks for a percentage-scale number (> 1, inside the
// band) on a context line that mentions the parameter.
func percentInContext(r *Rule, context string) (float64, bool) {
	if context == "" {
		return 0, false
	}
	for _, line := range Lines(context) {
		lower := strings.ToLower(line)
		for _, kw := range r.Keywords {
			_, end := keywordHit(lower, kw, 0)
			if end < 0 {
				continue
			}
			for _, t := range numberTokens(lower[end:]) {
				if t.value > 1 && r.Band.Contains(t.value) {
					return t.value, true
				}
			}
			break
		}
	}
	return 0, false
}
