package cbc

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	reSpaces = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	reNumber = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+\.?\d*`)
)

// Clean normalizes OCR output: NFKC, LF line endings, collapsed runs of
// horizontal whitespace, trimmed lines. Line structure is kept.
func Clean(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, ln := range lines {
		ln = strings.TrimSpace(reSpaces.ReplaceAllString(ln, " "))
		if ln != "" {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n")
}

// Flatten joins cleaned lines into one space-separated line.
func Flatten(cleaned string) string {
	return strings.ReplaceAll(cleaned, "\n", " ")
}

// Lines splits cleaned text into lines.
func Lines(cleaned string) []string {
	if cleaned == "" {
		return nil
	}
	return strings.Split(cleaned, "\n")
}

// token is a number found in a line, with its byte offset.
type token struct {
	text  string
	value float64
	pos   int
}

func numberTokens(line string) []token {
	idx := reNumber.FindAllStringIndex(line, -1)
	out := make([]token, 0, len(idx))
	for _, m := range idx {
		t := line[m[0]:m[1]]
		v, err := parseNumber(t)
		if err != nil {
			continue
		}
		out = append(out, token{text: t, value: v, pos: m[0]})
	}
	return out
}

// parseNumber drops thousands commas and a trailing dot.
func parseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSuffix(s, "."), ",", "")
	return strconv.ParseFloat(s, 64)
}

// keywordHit returns the span of the first occurrence of kw at or after
// from in the lowercased line that is not glued to other letters, or -1, -1.
func keywordHit(lower, kw string, from int) (int, int) {
	for from <= len(lower)-len(kw) {
		i := strings.Index(lower[from:], kw)
		if i < 0 {
			return -1, -1
		}
		start := from + i
		end := start + len(kw)
		before, _ := utf8.DecodeLastRuneInString(lower[:start])
		after, _ := utf8.DecodeRuneInString(lower[end:])
		if !unicode.IsLetter(before) && !unicode.IsLetter(after) {
			return start, end
		}
		from = start + 1
	}
	return -1, -1
}
