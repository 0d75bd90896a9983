package cbc

import (
	"fmt"
	"strings"

	"cbc-anemia/api/internal/logger"
)

// RawText is one OCR output together with the attempt that produced it
// ("otsu/psm 6").
type RawText struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// ValidatedValue is a candidate that survived correction and validation.
type ValidatedValue struct {
	Key    ParameterKey `json:"key"`
	Value  float64      `json:"value"`
	Raw    float64      `json:"raw"`
	Span   string       `json:"span"`
	Source string       `json:"source"`
	Method Method       `json:"method"`
}

// Extraction is what the pipeline hands back to its caller.
type Extraction struct {
	Values   ValueMap                        `json:"values"`
	Details  map[ParameterKey]ValidatedValue `json:"details"`
	Usable   bool                            `json:"usable"`
	RawText  string                          `json:"raw_text"`
	Warnings []string                        `json:"warnings,omitempty"`
}

// Extractor merges every OCR attempt into one value per parameter. The
// first accepted value wins: earlier RawText items, then pattern matches
// before scanner hits, then earlier patterns.
type Extractor struct {
	rules     *Rules
	matcher   *Matcher
	scanner   *Scanner
	corrector *Corrector
	validator *Validator
	log       logger.Logger
}

func NewExtractor(rules *Rules) *Extractor {
	return &Extractor{
		rules:     rules,
		matcher:   NewMatcher(rules),
		scanner:   NewScanner(rules),
		corrector: NewCorrector(rules),
		validator: NewValidator(rules),
		log:       logger.Default,
	}
}

// WithLogger replaces the logger (tests pass logger.Nop()).
func (e *Extractor) WithLogger(l logger.Logger) *Extractor {
	e.log = l
	return e
}

func (e *Extractor) Rules() *Rules { return e.rules }

// Extract is pure over its input: same texts, same result.
func (e *Extractor) Extract(texts []RawText) Extraction {
	res := Extraction{
		Values:  ValueMap{},
		Details: map[ParameterKey]ValidatedValue{},
	}
	joined := make([]string, 0, len(texts))

	for _, rt := range texts {
		joined = append(joined, rt.Text)
		cleaned := Clean(rt.Text)
		if cleaned == "" {
			continue
		}
		flat := Flatten(cleaned)

		for _, k := range e.rules.order {
			if res.Values.Has(k) {
				continue
			}
			for _, c := range e.matcher.Candidates(flat, k) {
				c.Context = cleaned
				if e.accept(&res, c, rt.Source) {
					break
				}
			}
		}

		lines := Lines(cleaned)
		for _, k := range e.rules.order {
			if res.Values.Has(k) {
				continue
			}
			for _, c := range e.scanner.Scan(lines, k) {
				if e.accept(&res, c, rt.Source) {
					break
				}
			}
		}
	}

	res.RawText = strings.Join(joined, "\n")
	res.Warnings = e.crossCheck(res.Values)
	res.Usable = len(res.Values) >= e.rules.MinResolved
	return res
}

func (e *Extractor) accept(res *Extraction, c Candidate, source string) bool {
	r, _ := e.rules.Rule(c.Key)
	canon := r.Canonical(c.Value)
	v, ok := e.corrector.Correct(c.Key, canon, c.Context)
	if !ok || !e.validator.Valid(c.Key, v) {
		e.log.Debugf("cbc: %s reject %v (%s %q)", c.Key, c.Value, c.Method, c.Span)
		return false
	}
	e.log.Debugf("cbc: %s = %v from %v (%s, %s)", c.Key, v, c.Value, c.Method, source)
	res.Values[c.Key] = v
	res.Details[c.Key] = ValidatedValue{
		Key:    c.Key,
		Value:  v,
		Raw:    c.Value,
		Span:   c.Span,
		Source: source,
		Method: c.Method,
	}
	return true
}

// crossCheck is advisory only: values are never dropped here.
func (e *Extractor) crossCheck(vals ValueMap) []string {
	var (
		n   int
		sum float64
	)
	for _, k := range e.rules.order {
		if !k.IsDifferential() {
			continue
		}
		if v, ok := vals[k]; ok {
			n++
			sum += v
		}
	}
	if n < 2 || e.rules.DiffSumWindow.Contains(sum) {
		return nil
	}
	w := fmt.Sprintf("differential count sum is %.2f, outside %.1f-%.1f", sum, e.rules.DiffSumWindow.Min, e.rules.DiffSumWindow.Max)
	e.log.Warnf("cbc: %s", w)
	return []string{w}
}
