package cbc

// Validator is the range-membership check, bounds inclusive.
type Validator struct {
	rules *Rules
}

func NewValidator(rules *Rules) *Validator { return &Validator{rules: rules} }

// Valid reports whether v lies in the canonical range of k. Unknown keys
// are never valid.
func (v *Validator) Valid(k ParameterKey, value float64) bool {
	r, ok := v.rules.Rule(k)
	if !ok {
		return false
	}
	return r.Valid.Contains(value)
}

// Range returns the canonical range of k.
func (v *Validator) Range(k ParameterKey) (Range, bool) {
	r, ok := v.rules.Rule(k)
	if !ok {
		return Range{}, false
	}
	return r.Valid, true
}
