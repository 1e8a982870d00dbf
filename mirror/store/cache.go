package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kuroyagi/resmirror/anchor"
)

// GetCacheEntry retrieves the cache lifecycle row for a thread.
// Returns nil (no error) when the thread is not cached.
func (s *Store) GetCacheEntry(ctx context.Context, threadID string) (*CacheEntry, error) {
	var e CacheEntry
	err := s.DB.QueryRowContext(ctx,
		`SELECT thread_id, fetched_at, last_accessed_at FROM thread_cache WHERE thread_id = ?`,
		threadID).Scan(&e.ThreadID, &e.FetchedAt, &e.LastAccessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}
	return &e, nil
}

// ReplaceThread applies one full cache refresh as a single transaction:
// upsert the entry with fresh fetched_at/last_accessed_at, wipe the old
// snapshot, insert the new one. Concurrent readers never observe a thread
// with zero cached posts mid-refresh.
func (s *Store) ReplaceThread(ctx context.Context, threadID string, posts []*CachedPost) error {
	now := s.now()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace thread: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO thread_cache (thread_id, fetched_at, last_accessed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET fetched_at = excluded.fetched_at,
			last_accessed_at = excluded.last_accessed_at`,
		threadID, now, now); err != nil {
		return fmt.Errorf("replace thread: upsert entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cached_posts WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("replace thread: wipe snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cached_posts (id, thread_id, pos, seq, posted_at, body, anchors)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("replace thread: prepare: %w", err)
	}
	defer stmt.Close()

	for i, p := range posts {
		if p.ID == "" {
			p.ID = s.newID()
		}
		p.ThreadID = threadID
		p.Pos = i
		var seq any
		if p.Seq != nil {
			seq = *p.Seq
		}
		if _, err := stmt.ExecContext(ctx,
			p.ID, threadID, i, seq, p.PostedAt, p.Body, anchor.Encode(p.Anchors)); err != nil {
			return fmt.Errorf("replace thread: insert post %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// TouchCacheEntry updates last_accessed_at. Touching never gates a refresh;
// it only feeds eviction order.
func (s *Store) TouchCacheEntry(ctx context.Context, threadID string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE thread_cache SET last_accessed_at = ? WHERE thread_id = ?`,
		s.now(), threadID)
	if err != nil {
		return fmt.Errorf("touch cache entry: %w", err)
	}
	return nil
}

// ListCachedPosts returns the stored snapshot for a thread in scrape order.
func (s *Store) ListCachedPosts(ctx context.Context, threadID string) ([]*CachedPost, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, thread_id, pos, seq, posted_at, body, anchors
		FROM cached_posts WHERE thread_id = ? ORDER BY pos`, threadID)
	if err != nil {
		return nil, fmt.Errorf("list cached posts: %w", err)
	}
	defer rows.Close()

	var posts []*CachedPost
	for rows.Next() {
		var p CachedPost
		var seq sql.NullInt64
		var anchors sql.NullString
		if err := rows.Scan(&p.ID, &p.ThreadID, &p.Pos, &seq, &p.PostedAt, &p.Body, &anchors); err != nil {
			return nil, fmt.Errorf("scan cached post: %w", err)
		}
		if seq.Valid {
			p.Seq = &seq.Int64
		}
		p.Anchors = anchor.Decode(anchors.String)
		posts = append(posts, &p)
	}
	return posts, rows.Err()
}

// EvictOverflow enforces the cache ceiling: when more than max entries
// exist, the oldest-accessed overflow is deleted, cascading its cached
// posts. Runs as its own transaction, independent of the refresh that
// triggered it. Returns the evicted thread IDs.
func (s *Store) EvictOverflow(ctx context.Context, max int) ([]string, error) {
	if max <= 0 {
		return nil, nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("evict: begin: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM thread_cache`).Scan(&count); err != nil {
		return nil, fmt.Errorf("evict: count: %w", err)
	}
	if count <= max {
		return nil, tx.Commit()
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT thread_id FROM thread_cache
		ORDER BY last_accessed_at ASC, thread_id ASC
		LIMIT ?`, count-max)
	if err != nil {
		return nil, fmt.Errorf("evict: select victims: %w", err)
	}
	var victims []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("evict: scan victim: %w", err)
		}
		victims = append(victims, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range victims {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM thread_cache WHERE thread_id = ?`, id); err != nil {
			return nil, fmt.Errorf("evict %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("evict: commit: %w", err)
	}
	return victims, nil
}

// DeleteCacheEntry removes one thread from the cache, cascading its snapshot.
func (s *Store) DeleteCacheEntry(ctx context.Context, threadID string) error {
	_, err := s.DB.ExecContext(ctx,
		`DELETE FROM thread_cache WHERE thread_id = ?`, threadID)
	if err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// CacheStats summarizes the cache tier for the stats endpoint.
type CacheStats struct {
	Entries      int   `json:"entries"`
	CachedPosts  int   `json:"cached_posts"`
	OldestAccess int64 `json:"oldest_access,omitempty"`
}

// GetCacheStats counts cache entries and snapshot rows.
func (s *Store) GetCacheStats(ctx context.Context) (*CacheStats, error) {
	var st CacheStats
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MIN(last_accessed_at), 0) FROM thread_cache`).
		Scan(&st.Entries, &st.OldestAccess); err != nil {
		return nil, fmt.Errorf("cache stats: %w", err)
	}
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cached_posts`).Scan(&st.CachedPosts); err != nil {
		return nil, fmt.Errorf("cache stats: %w", err)
	}
	return &st, nil
}
