package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7_Format(t *testing.T) {
	gen := UUIDv7()
	id := gen()
	// UUID format: 8-4-4-4-12.
	parts := strings.Split(id, "-")
	if len(parts) != 5 {
		t.Fatalf("UUIDv7: expected 5 parts, got %d in %q", len(parts), id)
	}
	if len(id) != 36 {
		t.Fatalf("UUIDv7: expected length 36, got %d", len(id))
	}
}

func TestUUIDv7_Uniqueness(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("UUIDv7: duplicate at iteration %d", i)
		}
		seen[id] = struct{}{}
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("post_", UUIDv7())
	id := gen()
	if !strings.HasPrefix(id, "post_") {
		t.Fatalf("Prefixed: %q lacks prefix", id)
	}
	if len(id) != len("post_")+36 {
		t.Fatalf("Prefixed: unexpected length %d", len(id))
	}
}

func TestNew_UsesDefault(t *testing.T) {
	if New() == New() {
		t.Fatal("New must produce unique IDs")
	}
}
