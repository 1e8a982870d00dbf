package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kuroyagi/resmirror/anchor"
	"github.com/kuroyagi/resmirror/normtext"
)

// UpsertThread creates or updates an archived thread header. The normalized
// title is recomputed on every write.
func (s *Store) UpsertThread(ctx context.Context, id, title string) error {
	now := s.now()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO threads (id, title, normalized_title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = CASE WHEN excluded.title != '' THEN excluded.title ELSE threads.title END,
			normalized_title = CASE WHEN excluded.title != '' THEN excluded.normalized_title ELSE threads.normalized_title END,
			updated_at = excluded.updated_at`,
		id, title, normtext.Normalize(title), now, now)
	if err != nil {
		return fmt.Errorf("upsert thread: %w", err)
	}
	return nil
}

// GetThread retrieves an archived thread header, nil when absent.
func (s *Store) GetThread(ctx context.Context, id string) (*Thread, error) {
	var t Thread
	var ntitle sql.NullString
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, title, normalized_title, created_at, updated_at
		FROM threads WHERE id = ?`, id).
		Scan(&t.ID, &t.Title, &ntitle, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	t.NormalizedTitle = ntitle.String
	return &t, nil
}

// UpsertPosts merges fetched posts into the durable archive as one
// transaction. De-duplication follows the archive invariant: posts with a
// sequence number conflict on (thread_id, seq) and refresh their scraped
// fields (owner tags survive); posts without one are matched by
// (thread_id, body) and skipped when already present.
func (s *Store) UpsertPosts(ctx context.Context, threadID string, posts []*Post) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert posts: begin: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	for _, p := range posts {
		encoded := anchor.Encode(p.Anchors)
		nbody := normtext.Normalize(p.Body)

		if p.Seq != nil {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO posts
					(id, thread_id, seq, posted_at, body, anchors, tags,
					 normalized_body, normalized_tags, created_at)
				VALUES (?, ?, ?, ?, ?, ?, '', ?, '', ?)
				ON CONFLICT(thread_id, seq) WHERE seq IS NOT NULL DO UPDATE SET
					posted_at = excluded.posted_at,
					body = excluded.body,
					anchors = excluded.anchors,
					normalized_body = excluded.normalized_body`,
				s.newID(), threadID, *p.Seq, p.PostedAt, p.Body, encoded, nbody, now); err != nil {
				return fmt.Errorf("upsert post seq %d: %w", *p.Seq, err)
			}
			continue
		}

		// No ordinal: dedup by body.
		var existing string
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM posts WHERE thread_id = ? AND seq IS NULL AND body = ? LIMIT 1`,
			threadID, p.Body).Scan(&existing)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("upsert posts: dedup probe: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO posts
				(id, thread_id, seq, posted_at, body, anchors, tags,
				 normalized_body, normalized_tags, created_at)
			VALUES (?, ?, NULL, ?, ?, ?, '', ?, '', ?)`,
			s.newID(), threadID, p.PostedAt, p.Body, encoded, nbody, now); err != nil {
			return fmt.Errorf("upsert post (no seq): %w", err)
		}
	}

	return tx.Commit()
}

const postColumns = `id, thread_id, seq, posted_at, body, anchors, tags,
	normalized_body, normalized_tags, created_at`

// ListThreadPosts returns all archived posts of one thread, ordered by
// ascending sequence number with seq-less posts last.
func (s *Store) ListThreadPosts(ctx context.Context, threadID string) ([]*Post, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE thread_id = ?
		ORDER BY (seq IS NULL), seq, created_at, id`, threadID)
	if err != nil {
		return nil, fmt.Errorf("list thread posts: %w", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

// ListAllPosts streams every archived post in candidate scan order: threads
// in archive insertion order, posts within a thread by ascending seq with
// seq-less posts last. The search matcher's hit order, grouping order and
// pagination all derive from this ordering.
func (s *Store) ListAllPosts(ctx context.Context) ([]*Post, map[string]*Thread, error) {
	threads := make(map[string]*Thread)
	trows, err := s.DB.QueryContext(ctx, `
		SELECT id, title, normalized_title, created_at, updated_at FROM threads`)
	if err != nil {
		return nil, nil, fmt.Errorf("list threads: %w", err)
	}
	for trows.Next() {
		var t Thread
		var ntitle sql.NullString
		if err := trows.Scan(&t.ID, &t.Title, &ntitle, &t.CreatedAt, &t.UpdatedAt); err != nil {
			trows.Close()
			return nil, nil, fmt.Errorf("scan thread: %w", err)
		}
		t.NormalizedTitle = ntitle.String
		threads[t.ID] = &t
	}
	trows.Close()
	if err := trows.Err(); err != nil {
		return nil, nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts p
		ORDER BY (SELECT t.created_at FROM threads t WHERE t.id = p.thread_id),
			p.thread_id, (p.seq IS NULL), p.seq, p.created_at, p.id`)
	if err != nil {
		return nil, nil, fmt.Errorf("list all posts: %w", err)
	}
	defer rows.Close()
	posts, err := collectPosts(rows)
	if err != nil {
		return nil, nil, err
	}
	return posts, threads, nil
}

// GetPost retrieves one archived post by row id, nil when absent.
func (s *Store) GetPost(ctx context.Context, id string) (*Post, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	defer rows.Close()
	posts, err := collectPosts(rows)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return posts[0], nil
}

// SetPostTags replaces a post's owner tag set as one unit, recomputing the
// normalized boundary-wrapped form at write time.
func (s *Store) SetPostTags(ctx context.Context, id, tags string) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE posts SET tags = ?, normalized_tags = ? WHERE id = ?`,
		tags, normalizedTags(tags), id)
	if err != nil {
		return fmt.Errorf("set post tags: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set post tags: %w", err)
	}
	if n == 0 {
		return ErrPostNotFound
	}
	return nil
}

// ErrPostNotFound is returned when a tag edit targets a missing post.
var ErrPostNotFound = errors.New("store: post not found")

// DeleteThreadArchive removes an archived thread and its posts (cascade).
func (s *Store) DeleteThreadArchive(ctx context.Context, threadID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, threadID)
	if err != nil {
		return fmt.Errorf("delete thread archive: %w", err)
	}
	return nil
}

func collectPosts(rows *sql.Rows) ([]*Post, error) {
	var posts []*Post
	for rows.Next() {
		p, err := scanPostRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
