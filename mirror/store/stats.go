package store

import (
	"context"
	"fmt"
)

// Stats summarizes both tiers for the stats endpoint.
type Stats struct {
	Cache          CacheStats `json:"cache"`
	ArchiveThreads int        `json:"archive_threads"`
	ArchivePosts   int        `json:"archive_posts"`
}

// GetStats counts rows in the cache and archive tiers.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	cs, err := s.GetCacheStats(ctx)
	if err != nil {
		return nil, err
	}
	st := Stats{Cache: *cs}
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM threads`).Scan(&st.ArchiveThreads); err != nil {
		return nil, fmt.Errorf("archive stats: %w", err)
	}
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts`).Scan(&st.ArchivePosts); err != nil {
		return nil, fmt.Errorf("archive stats: %w", err)
	}
	return &st, nil
}
