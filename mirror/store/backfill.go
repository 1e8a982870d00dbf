package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kuroyagi/resmirror/normtext"
)

// BackfillNormalized recomputes NULL normalized columns on posts and threads.
// The write path always fills them, so this only touches rows written by
// older schema versions; it runs once at startup and is idempotent. Returns
// the number of rows repaired.
func (s *Store) BackfillNormalized(ctx context.Context) (int64, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("backfill: begin: %w", err)
	}
	defer tx.Rollback()

	var repaired int64

	rows, err := tx.QueryContext(ctx, `
		SELECT id, body, tags FROM posts
		WHERE normalized_body IS NULL OR normalized_tags IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("backfill: select posts: %w", err)
	}
	type row struct{ id, body, tags string }
	var pending []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.body, &r.tags); err != nil {
			rows.Close()
			return 0, fmt.Errorf("backfill: scan: %w", err)
		}
		pending = append(pending, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, r := range pending {
		if _, err := tx.ExecContext(ctx, `
			UPDATE posts SET normalized_body = ?, normalized_tags = ? WHERE id = ?`,
			normtext.Normalize(r.body), normalizedTags(r.tags), r.id); err != nil {
			return 0, fmt.Errorf("backfill: update post %s: %w", r.id, err)
		}
		repaired++
	}

	trows, err := tx.QueryContext(ctx, `
		SELECT id, title FROM threads WHERE normalized_title IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("backfill: select threads: %w", err)
	}
	var tpending [][2]string
	for trows.Next() {
		var id string
		var title sql.NullString
		if err := trows.Scan(&id, &title); err != nil {
			trows.Close()
			return 0, fmt.Errorf("backfill: scan thread: %w", err)
		}
		tpending = append(tpending, [2]string{id, title.String})
	}
	trows.Close()
	if err := trows.Err(); err != nil {
		return 0, err
	}

	for _, t := range tpending {
		if _, err := tx.ExecContext(ctx, `
			UPDATE threads SET normalized_title = ? WHERE id = ?`,
			normtext.Normalize(t[1]), t[0]); err != nil {
			return 0, fmt.Errorf("backfill: update thread %s: %w", t[0], err)
		}
		repaired++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("backfill: commit: %w", err)
	}
	return repaired, nil
}
