package store

import "database/sql"

// Schema is the complete mirror schema: the durable thread archive and the
// bounded thread cache. The cache tier owns its rows exclusively
// (cached_posts cascade from thread_cache) while the archive outlives any
// cache entry.
const Schema = `
-- Durable thread archive
CREATE TABLE IF NOT EXISTS threads (
    id               TEXT PRIMARY KEY,          -- canonical thread URL
    title            TEXT NOT NULL DEFAULT '',
    normalized_title TEXT,
    created_at       INTEGER NOT NULL,
    updated_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
    id              TEXT PRIMARY KEY,
    thread_id       TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
    seq             INTEGER,                    -- NULL for malformed scrapes
    posted_at       TEXT NOT NULL DEFAULT '',
    body            TEXT NOT NULL,
    anchors         TEXT NOT NULL DEFAULT '',   -- anchor.Encode form
    tags            TEXT NOT NULL DEFAULT '',   -- owner tags as entered
    normalized_body TEXT,
    normalized_tags TEXT,                       -- anchor.Bound form
    created_at      INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_posts_thread_seq
    ON posts(thread_id, seq) WHERE seq IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_posts_thread ON posts(thread_id, seq);

-- Bounded cache: one entry per mirrored thread
CREATE TABLE IF NOT EXISTS thread_cache (
    thread_id        TEXT PRIMARY KEY,
    fetched_at       INTEGER NOT NULL,
    last_accessed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_thread_cache_access ON thread_cache(last_accessed_at);

-- Cached body snapshot, wiped and fully replaced on every refresh
CREATE TABLE IF NOT EXISTS cached_posts (
    id        TEXT PRIMARY KEY,
    thread_id TEXT NOT NULL REFERENCES thread_cache(thread_id) ON DELETE CASCADE,
    pos       INTEGER NOT NULL,                 -- scrape order
    seq       INTEGER,
    posted_at TEXT NOT NULL DEFAULT '',
    body      TEXT NOT NULL,
    anchors   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_cached_posts_thread ON cached_posts(thread_id, pos);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
