package anchor

import (
	"reflect"
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	// WHAT: Decode(Encode(s)) returns s for any list of non-negative ints.
	// WHY: The encoded column is the only persisted form; a lossy codec would
	// corrupt reply graphs silently.
	cases := []Set{
		{},
		{1},
		{12, 34},
		{0, 3, 34, 345},
		{7, 7, 7},
	}
	for _, s := range cases {
		got := Decode(Encode(s))
		if len(s) == 0 && len(got) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, s) {
			t.Errorf("Decode(Encode(%v)) = %v", s, got)
		}
	}
}

func TestEncode_BoundaryWrapped(t *testing.T) {
	// WHAT: Encoding wraps values in leading/trailing commas.
	// WHY: Exact membership must be testable as a substring check without
	// numeric prefix collisions.
	if got := Encode(Set{12, 34}); got != ",12,34," {
		t.Errorf("got %q, want %q", got, ",12,34,")
	}
	if got := Encode(Set{}); got != "" {
		t.Errorf("empty set: got %q, want empty string", got)
	}
}

func TestDecode_MalformedInput(t *testing.T) {
	// WHAT: Decode skips non-integer and negative tokens without failing.
	// WHY: Anchor columns hold scraped data; garbage must degrade to a
	// partial set, never to an error.
	cases := []struct {
		in   string
		want Set
	}{
		{"", Set{}},
		{",12,abc,34,", Set{12, 34}},
		{"12, 34", Set{12, 34}},
		{",,,,", Set{}},
		{">>5", Set{}},
		{",-3,9,", Set{9}},
		{"1e3,2", Set{2}},
	}
	for _, tc := range cases {
		got := Decode(tc.in)
		if len(got) == 0 && len(tc.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Decode(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestContains_NoPrefixCollision(t *testing.T) {
	// WHAT: Contains matches exact members only.
	// WHY: The whole point of the boundary wrap: 3 must not match inside 34.
	enc := Encode(Set{34, 345})
	if Contains(enc, 3) {
		t.Error("3 must not match inside 34/345")
	}
	if !Contains(enc, 34) {
		t.Error("34 should match")
	}
	if !Contains(enc, 345) {
		t.Error("345 should match")
	}
	if Contains("", 1) {
		t.Error("empty encoding contains nothing")
	}
}

func TestBound_TagConvention(t *testing.T) {
	// WHAT: Bound/BoundContains apply the same delimiter convention to
	// arbitrary tokens.
	// WHY: Tag AND/OR matching is a boundary substring test on the stored
	// normalized tag field.
	field := Bound([]string{"news", "tech"})
	if field != ",news,tech," {
		t.Errorf("got %q, want %q", field, ",news,tech,")
	}
	if !BoundContains(field, "news") {
		t.Error("news should match")
	}
	if BoundContains(field, "new") {
		t.Error("prefix must not match")
	}
	if BoundContains(field, "") {
		t.Error("empty token never matches")
	}
	if Bound(nil) != "" {
		t.Error("empty token list encodes to empty string")
	}
}
