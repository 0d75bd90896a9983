package cbc

import "strings"

// Scanner is the line-by-line fallback: keyword variants instead of
// anchored patterns, numbers taken by position after the keyword.
type Scanner struct {
	rules *Rules
}

func NewScanner(rules *Rules) *Scanner { return &Scanner{rules: rules} }

// Scan returns candidates for k from every line that mentions one of its
// keywords, in line order. Only numbers to the right of the keyword count,
// and only the first of them: the rest of the line is usually the
// reference range. Differential counts instead keep every token that looks
// like a proportion or a percentage of the expected band.
func (s *Scanner) Scan(lines []string, k ParameterKey) []Candidate {
	r, ok := s.rules.Rule(k)
	if !ok {
		return nil
	}
	var out []Candidate
	for _, line := range lines {
		lower := strings.ToLower(line)
		end := s.hit(lower, r)
		if end < 0 {
			continue
		}
		for _, t := range numberTokens(lower[end:]) {
			if k.IsDifferential() && !r.Valid.Contains(t.value) && !r.Band.Contains(t.value) {
				continue
			}
			out = append(out, Candidate{
				Key:     k,
				Value:   t.value,
				Span:    line,
				Method:  MethodScan,
				Context: line,
			})
			if !k.IsDifferential() {
				break
			}
		}
	}
	return out
}

// hit returns the end offset of the first keyword of r found in lower, or -1.
func (s *Scanner) hit(lower string, r *Rule) int {
	for _, kw := range r.Keywords {
		start, end := keywordHit(lower, kw, 0)
		if start < 0 || s.shadowed(lower, start, end, r.Key) {
			continue
		}
		return end
	}
	return -1
}

// shadowed reports whether a longer keyword of another parameter covers the
// hit ("mean corpuscular hemoglobin concentration" vs MCH, "mean corpuscular
// hemoglobin" vs Hemoglobin).
func (s *Scanner) shadowed(lower string, start, end int, self ParameterKey) bool {
	for _, k := range s.rules.order {
		if k == self {
			continue
		}
		for _, kw := range s.rules.byKey[k].Keywords {
			if len(kw) <= end-start {
				continue
			}
			for from := 0; ; {
				hs, he := keywordHit(lower, kw, from)
				if hs < 0 || hs > start {
					break
				}
				if he >= end {
					return true
				}
				from = hs + 1
			}
		}
	}
	return false
}
