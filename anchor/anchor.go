// Package anchor implements the reply-anchor value type and its storage codec.
//
// A post may reply to earlier posts by sequence number. The set of targets is
// stored in a single text column, wrapped in leading and trailing separators
// (",12,34,") so that membership can be tested with a plain substring check
// against ",34,", a boundary match that cannot be fooled by numeric prefix
// collisions (3 vs 34). The same delimiter convention is reused for
// normalized tag fields.
package anchor

import (
	"strconv"
	"strings"
)

// Set is an ordered list of reply-target sequence numbers.
// Order is preserved from the source post; duplicates are kept as scraped.
type Set []int

// Encode renders the set in boundary-wrapped form: ",12,34,".
// An empty set encodes to the empty string, not ",,".
func Encode(s Set) string {
	if len(s) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte(',')
	for _, n := range s {
		b.WriteString(strconv.Itoa(n))
		b.WriteByte(',')
	}
	return b.String()
}

// Decode parses a boundary-wrapped (or bare comma-joined) encoding back into
// a Set. Non-integer tokens are skipped silently: anchor columns hold scraped,
// untrusted data and a malformed token must never abort a page render.
// Empty input decodes to an empty set.
func Decode(encoded string) Set {
	if encoded == "" {
		return Set{}
	}
	parts := strings.Split(encoded, ",")
	out := make(Set, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Contains reports whether the encoded column value contains n as an exact
// member, using the boundary convention.
func Contains(encoded string, n int) bool {
	if encoded == "" {
		return false
	}
	return strings.Contains(encoded, ","+strconv.Itoa(n)+",")
}

// Bound joins arbitrary tokens with the same boundary convention: ",a,b,".
// Used for normalized tag fields so tag membership is also a boundary match.
func Bound(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte(',')
	for _, t := range tokens {
		b.WriteString(t)
		b.WriteByte(',')
	}
	return b.String()
}

// BoundContains reports whether the boundary-wrapped field contains token as
// an exact member.
func BoundContains(field, token string) bool {
	if field == "" || token == "" {
		return false
	}
	return strings.Contains(field, ","+token+",")
}
