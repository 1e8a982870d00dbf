// Package store is the data access layer for the thread mirror: the durable
// post archive and the bounded, TTL-gated thread cache share one SQLite
// database. Normalized columns are computed here, at write time, so nothing
// above this layer ever stores or compares raw anchor/tag text.
package store

import (
	"database/sql"
	"time"

	"github.com/kuroyagi/resmirror/anchor"
	"github.com/kuroyagi/resmirror/idgen"
	"github.com/kuroyagi/resmirror/normtext"
)

// Store wraps the mirror database.
type Store struct {
	DB    *sql.DB
	newID idgen.Generator
	now   func() int64 // UnixMilli clock, injectable in tests
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets a custom ID generator for new rows.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Store) { s.newID = gen }
}

// WithClock sets the UnixMilli clock source. Tests use this to age cache
// entries without sleeping.
func WithClock(now func() int64) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store from an already-opened database connection.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		DB:    db,
		newID: idgen.New,
		now:   func() int64 { return time.Now().UnixMilli() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Thread is one archived discussion, keyed by its canonical URL.
type Thread struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	NormalizedTitle string `json:"-"`
	CreatedAt       int64  `json:"created_at"`
	UpdatedAt       int64  `json:"updated_at"`
}

// Post is one archived discussion entry.
//
// Seq is nil for posts whose ordinal could not be scraped; such posts are
// deduplicated by (thread, body) and can never be a reply target. Anchors is
// always the decoded value type; the encoded column form does not leave
// this package.
type Post struct {
	ID             string     `json:"id"`
	ThreadID       string     `json:"thread_id"`
	Seq            *int64     `json:"seq,omitempty"`
	PostedAt       string     `json:"posted_at,omitempty"`
	Body           string     `json:"body"`
	Anchors        anchor.Set `json:"anchors,omitempty"`
	Tags           string     `json:"tags,omitempty"`
	NormalizedBody string     `json:"-"`
	NormalizedTags string     `json:"-"`
	CreatedAt      int64      `json:"created_at"`
}

// CacheEntry is the lifecycle row for one cached thread.
type CacheEntry struct {
	ThreadID       string `json:"thread_id"`
	FetchedAt      int64  `json:"fetched_at"`
	LastAccessedAt int64  `json:"last_accessed_at"`
}

// CachedPost is the cached body snapshot for one post of one thread.
type CachedPost struct {
	ID       string     `json:"id"`
	ThreadID string     `json:"thread_id"`
	Pos      int        `json:"-"`
	Seq      *int64     `json:"seq,omitempty"`
	PostedAt string     `json:"posted_at,omitempty"`
	Body     string     `json:"body"`
	Anchors  anchor.Set `json:"anchors,omitempty"`
}

// scan helpers shared by archive.go and cache.go.

func scanPostRows(rows *sql.Rows) (*Post, error) {
	var p Post
	var seq sql.NullInt64
	var anchors, nbody, ntags sql.NullString
	if err := rows.Scan(
		&p.ID, &p.ThreadID, &seq, &p.PostedAt, &p.Body,
		&anchors, &p.Tags, &nbody, &ntags, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	if seq.Valid {
		p.Seq = &seq.Int64
	}
	p.Anchors = anchor.Decode(anchors.String)
	p.NormalizedBody = nbody.String
	p.NormalizedTags = ntags.String
	return &p, nil
}

// normalizedTags computes the stored boundary-wrapped form from raw owner
// tag input.
func normalizedTags(raw string) string {
	return anchor.Bound(normtext.Tokens(raw))
}
