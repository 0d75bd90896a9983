package cbc

// Method records which component produced a candidate.
type Method string

const (
	MethodPattern Method = "pattern"
	MethodScan    Method = "scan"
)

// Candidate is a raw numeric match before correction and validation.
type Candidate struct {
	Key   ParameterKey `json:"key"`
	Value float64      `json:"value"`
	// Span is the matched source text.
	Span   string `json:"span"`
	Method Method `json:"method"`
	// Context is what the corrector may re-scan for differential counts.
	Context string `json:"-"`
}

// Matcher runs the ordered regex families of a rule table. Stateless.
type Matcher struct {
	rules *Rules
}

func NewMatcher(rules *Rules) *Matcher { return &Matcher{rules: rules} }

// Candidates returns the first match of every pattern for k, in pattern
// order. Text should be the flattened (single-line) cleaned form. Matches
// whose group does not parse as a number are skipped.
func (m *Matcher) Candidates(text string, k ParameterKey) []Candidate {
	r, ok := m.rules.Rule(k)
	if !ok {
		return nil
	}
	var out []Candidate
	for _, re := range r.patterns {
		sm := re.FindStringSubmatchIndex(text)
		if sm == nil || len(sm) < 4 || sm[2] < 0 {
			continue
		}
		v, err := parseNumber(text[sm[2]:sm[3]])
		if err != nil {
			continue
		}
		out = append(out, Candidate{
			Key:    k,
			Value:  v,
			Span:   text[sm[0]:sm[1]],
			Method: MethodPattern,
		})
	}
	return out
}

// Match returns the first pattern match for k.
func (m *Matcher) Match(text string, k ParameterKey) (Candidate, bool) {
	c := m.Candidates(text, k)
	if len(c) == 0 {
		return Candidate{}, false
	}
	return c[0], true
}
