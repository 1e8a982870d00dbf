// Package normtext canonicalizes free text for matching.
//
// Scraped discussion pages mix full-width and half-width forms, inconsistent
// casing and decorative runs of whitespace. Every matcher in this module
// compares normalized text against normalized text, so two human-equivalent
// strings that differ only in width, case or spacing compare equal.
package normtext

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// Normalize returns the canonical form of s: East Asian width folded
// (full-width latin/digits/punctuation to ASCII, half-width katakana to
// full-width), case folded to lower, and whitespace runs (including
// ideographic space) collapsed to single ASCII spaces with leading and
// trailing whitespace trimmed.
//
// Total function: never fails, empty input yields empty output, and
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	folded := strings.ToLower(width.Fold.String(s))

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		if unicode.IsSpace(r) {
			pendingSpace = true
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// Tokens splits s on commas and whitespace and normalizes each piece,
// dropping empties. Used for owner tag sets and tag query input.
func Tokens(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '、' || unicode.IsSpace(r)
	})
	var out []string
	for _, f := range fields {
		if n := Normalize(f); n != "" {
			out = append(out, n)
		}
	}
	return out
}
