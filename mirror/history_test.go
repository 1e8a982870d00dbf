package mirror

import (
	"testing"
	"time"
)

func TestSearchHistory_NewestFirst(t *testing.T) {
	// WHAT: Recent returns entries in reverse insertion order.
	h := NewSearchHistory(5)
	h.Add(SearchRecord{Keyword: "first", At: time.UnixMilli(1)})
	h.Add(SearchRecord{Keyword: "second", At: time.UnixMilli(2)})
	h.Add(SearchRecord{Keyword: "third", At: time.UnixMilli(3)})

	recs := h.Recent()
	if len(recs) != 3 {
		t.Fatalf("count: got %d, want 3", len(recs))
	}
	if recs[0].Keyword != "third" || recs[2].Keyword != "first" {
		t.Errorf("order: got %s..%s, want third..first", recs[0].Keyword, recs[2].Keyword)
	}
}

func TestSearchHistory_OverflowDropsOldest(t *testing.T) {
	// WHAT: Beyond capacity, the oldest record is overwritten.
	// WHY: The history is a fixed ring, not an unbounded log.
	h := NewSearchHistory(3)
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		h.Add(SearchRecord{Keyword: k})
	}

	recs := h.Recent()
	if len(recs) != 3 {
		t.Fatalf("count: got %d, want 3", len(recs))
	}
	want := []string{"e", "d", "c"}
	for i, w := range want {
		if recs[i].Keyword != w {
			t.Errorf("recs[%d]: got %s, want %s", i, recs[i].Keyword, w)
		}
	}
}

func TestSearchHistory_Reset(t *testing.T) {
	// WHAT: Reset empties the ring; subsequent adds start fresh.
	h := NewSearchHistory(3)
	h.Add(SearchRecord{Keyword: "a"})
	h.Add(SearchRecord{Keyword: "b"})
	h.Reset()

	if got := h.Recent(); len(got) != 0 {
		t.Fatalf("after reset: got %d records, want 0", len(got))
	}

	h.Add(SearchRecord{Keyword: "c"})
	recs := h.Recent()
	if len(recs) != 1 || recs[0].Keyword != "c" {
		t.Errorf("after reuse: got %+v", recs)
	}
}

func TestSearchHistory_MinimumCapacity(t *testing.T) {
	// WHAT: A non-positive capacity still yields a working one-slot ring.
	h := NewSearchHistory(0)
	h.Add(SearchRecord{Keyword: "only"})
	h.Add(SearchRecord{Keyword: "newer"})

	recs := h.Recent()
	if len(recs) != 1 || recs[0].Keyword != "newer" {
		t.Errorf("got %+v, want single 'newer'", recs)
	}
}
