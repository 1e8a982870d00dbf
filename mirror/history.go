package mirror

import (
	"sync"
	"time"

	"github.com/kuroyagi/resmirror/mirror/search"
)

// SearchRecord is one remembered search.
type SearchRecord struct {
	Keyword      string         `json:"keyword,omitempty"`
	ThreadFilter string         `json:"thread_filter,omitempty"`
	TagTokens    []string       `json:"tag_tokens,omitempty"`
	TagMode      search.TagMode `json:"tag_mode,omitempty"`
	HitCount     int            `json:"hit_count"`
	At           time.Time      `json:"at"`
}

// SearchHistory is a bounded ring buffer of the last N searches.
//
// It is per-process state owned by the Service: every instance of the
// mirror keeps its own history, initialized empty at construction and
// cleared by Reset. Nothing is persisted; a multi-instance deployment sees
// independent histories by design.
type SearchHistory struct {
	mu   sync.Mutex
	buf  []SearchRecord
	next int // write position
	size int // number of valid records, <= len(buf)
}

// NewSearchHistory creates a history holding at most capacity records.
func NewSearchHistory(capacity int) *SearchHistory {
	if capacity < 1 {
		capacity = 1
	}
	return &SearchHistory{buf: make([]SearchRecord, capacity)}
}

// Add records a search, overwriting the oldest entry when full.
func (h *SearchHistory) Add(rec SearchRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf[h.next] = rec
	h.next = (h.next + 1) % len(h.buf)
	if h.size < len(h.buf) {
		h.size++
	}
}

// Recent returns the remembered searches, newest first.
func (h *SearchHistory) Recent() []SearchRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]SearchRecord, 0, h.size)
	for i := 1; i <= h.size; i++ {
		out = append(out, h.buf[(h.next-i+len(h.buf))%len(h.buf)])
	}
	return out
}

// Reset clears the history.
func (h *SearchHistory) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next = 0
	h.size = 0
}
