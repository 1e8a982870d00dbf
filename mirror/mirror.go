// Package mirror caches externally-hosted discussion threads in a local
// store and answers searches against the archived snapshot.
//
// Reads are lazy: a thread is refreshed from its remote source only when a
// consumer asks for it and the cached copy is older than the TTL. The cache
// is bounded; overflow evicts the least-recently-accessed threads. Search
// never touches the network: it runs over the durable archive that every
// successful refresh feeds.
package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kuroyagi/resmirror/idgen"
	"github.com/kuroyagi/resmirror/mirror/fetch"
	"github.com/kuroyagi/resmirror/mirror/replytree"
	"github.com/kuroyagi/resmirror/mirror/search"
	"github.com/kuroyagi/resmirror/mirror/store"
	"github.com/kuroyagi/resmirror/safeurl"
)

// ThreadFetcher is the external page supplier: one blocking call per thread
// URL. Implementations enforce their own timeout and fail with a
// distinguishable error; the mirror never retries.
type ThreadFetcher interface {
	FetchThread(ctx context.Context, url string) (*fetch.Result, error)
}

// Service is the thread mirror orchestrator.
type Service struct {
	store        *store.Store
	fetcher      ThreadFetcher
	logger       *slog.Logger
	config       *Config
	history      *SearchHistory
	now          func() time.Time
	urlValidator func(string) error
	newID        idgen.Generator
}

// ServiceOption configures a Service beyond the required arguments.
type ServiceOption func(*Service)

// WithClock sets the time source. Tests use this to age cache entries.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator sets the row ID strategy.
func WithIDGenerator(gen idgen.Generator) ServiceOption {
	return func(s *Service) { s.newID = gen }
}

// WithURLValidator replaces the thread URL validator (default
// safeurl.Validate).
func WithURLValidator(v func(string) error) ServiceOption {
	return func(s *Service) { s.urlValidator = v }
}

// New creates a mirror Service on an already-opened database. The schema is
// applied and the normalized-column backfill runs once before the service
// accepts work.
func New(db *sql.DB, fetcher ThreadFetcher, cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = defaultConfig()
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	svc := &Service{
		fetcher:      fetcher,
		logger:       logger,
		config:       cfg,
		history:      NewSearchHistory(cfg.HistorySize),
		now:          time.Now,
		urlValidator: safeurl.Validate,
		newID:        idgen.Default,
	}
	for _, opt := range opts {
		opt(svc)
	}

	svc.store = store.New(db,
		store.WithIDGenerator(svc.newID),
		store.WithClock(func() int64 { return svc.now().UnixMilli() }),
	)

	if err := store.ApplySchema(db); err != nil {
		return nil, fmt.Errorf("mirror: apply schema: %w", err)
	}
	repaired, err := svc.store.BackfillNormalized(context.Background())
	if err != nil {
		return nil, fmt.Errorf("mirror: backfill: %w", err)
	}
	if repaired > 0 {
		logger.Info("normalized columns backfilled", "rows", repaired)
	}

	return svc, nil
}

// PostsCached returns the posts of one thread, refreshing from the remote
// source first when no cache entry exists or the snapshot is older than the
// TTL. The refreshed flag reports whether a fetch happened.
//
// Fetch failures propagate unchanged and leave the cache untouched; callers
// that want stale data on failure use CachedSnapshot separately.
func (s *Service) PostsCached(ctx context.Context, threadURL string) (posts []*store.CachedPost, refreshed bool, err error) {
	if err := s.urlValidator(threadURL); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidThreadURL, err)
	}

	entry, err := s.store.GetCacheEntry(ctx, threadURL)
	if err != nil {
		return nil, false, err
	}

	if entry != nil && s.now().UnixMilli()-entry.FetchedAt < s.config.TTL.Milliseconds() {
		// Fresh: touch access time and serve the stored snapshot unchanged.
		if err := s.store.TouchCacheEntry(ctx, threadURL); err != nil {
			s.logger.Warn("cache touch failed", "thread", threadURL, "error", err)
		}
		posts, err := s.store.ListCachedPosts(ctx, threadURL)
		return posts, false, err
	}

	res, err := s.fetcher.FetchThread(ctx, threadURL)
	if err != nil {
		return nil, false, err
	}

	cached := make([]*store.CachedPost, len(res.Posts))
	for i, rp := range res.Posts {
		cached[i] = &store.CachedPost{
			Seq:      rp.Seq,
			PostedAt: rp.PostedAt,
			Body:     rp.Body,
			Anchors:  rp.Anchors,
		}
	}
	if err := s.store.ReplaceThread(ctx, threadURL, cached); err != nil {
		return nil, false, err
	}

	// Feed the durable archive. A failure here never fails the read; the
	// cache refresh already committed and the next refresh retries.
	if err := s.ingestArchive(ctx, threadURL, res); err != nil {
		s.logger.Warn("archive ingest failed", "thread", threadURL, "error", err)
	}

	// Eviction is its own unit: it may fail without affecting the refresh.
	if evicted, err := s.store.EvictOverflow(ctx, s.config.MaxCachedThreads); err != nil {
		s.logger.Warn("cache eviction failed", "error", err)
	} else if len(evicted) > 0 {
		s.logger.Info("cache evicted", "threads", len(evicted))
	}

	posts, err = s.store.ListCachedPosts(ctx, threadURL)
	return posts, true, err
}

// CachedSnapshot returns the stored cache entry and posts without any fetch
// or TTL check. ErrThreadNotCached when the thread is not in the cache.
func (s *Service) CachedSnapshot(ctx context.Context, threadURL string) (*store.CacheEntry, []*store.CachedPost, error) {
	entry, err := s.store.GetCacheEntry(ctx, threadURL)
	if err != nil {
		return nil, nil, err
	}
	if entry == nil {
		return nil, nil, ErrThreadNotCached
	}
	posts, err := s.store.ListCachedPosts(ctx, threadURL)
	return entry, posts, err
}

func (s *Service) ingestArchive(ctx context.Context, threadURL string, res *fetch.Result) error {
	if err := s.store.UpsertThread(ctx, threadURL, res.Title); err != nil {
		return err
	}
	posts := make([]*store.Post, len(res.Posts))
	for i, rp := range res.Posts {
		posts[i] = &store.Post{
			ThreadID: threadURL,
			Seq:      rp.Seq,
			PostedAt: rp.PostedAt,
			Body:     rp.Body,
			Anchors:  rp.Anchors,
		}
	}
	return s.store.UpsertPosts(ctx, threadURL, posts)
}

// Search evaluates a query against the archived posts and records it in the
// per-process history. Invalid pagination is clamped, never rejected; an
// unconditioned query yields zero hits.
func (s *Service) Search(ctx context.Context, q search.Query) (*search.Result, error) {
	posts, threads, err := s.store.ListAllPosts(ctx)
	if err != nil {
		return nil, err
	}
	res := search.Evaluate(q, posts, threads)

	if !q.Empty() {
		s.history.Add(SearchRecord{
			Keyword:      q.Keyword,
			ThreadFilter: q.ThreadFilter,
			TagTokens:    q.TagTokens,
			TagMode:      q.TagMode,
			HitCount:     res.HitCount,
			At:           s.now(),
		})
	}
	return res, nil
}

// BuildReplyTree materializes the reply tree rooted at one archived post.
func (s *Service) BuildReplyTree(ctx context.Context, postID string) ([]replytree.Node, error) {
	root, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, store.ErrPostNotFound
	}
	posts, err := s.store.ListThreadPosts(ctx, root.ThreadID)
	if err != nil {
		return nil, err
	}
	return replytree.Build(posts, root), nil
}

// SetPostTags replaces the owner tag set of one archived post.
func (s *Service) SetPostTags(ctx context.Context, postID, tags string) error {
	return s.store.SetPostTags(ctx, postID, tags)
}

// DeleteThread drops a thread's cache entry (cascading its snapshot) and,
// when dropArchive is set, its archived posts as well. Each tier is one
// independent unit.
func (s *Service) DeleteThread(ctx context.Context, threadURL string, dropArchive bool) error {
	if err := s.store.DeleteCacheEntry(ctx, threadURL); err != nil {
		return err
	}
	if dropArchive {
		return s.store.DeleteThreadArchive(ctx, threadURL)
	}
	return nil
}

// RecentSearches returns the remembered searches, newest first.
func (s *Service) RecentSearches() []SearchRecord {
	return s.history.Recent()
}

// ResetSearchHistory clears the per-process search history.
func (s *Service) ResetSearchHistory() {
	s.history.Reset()
}

// Stats reports cache and archive counters.
func (s *Service) Stats(ctx context.Context) (*store.Stats, error) {
	return s.store.GetStats(ctx)
}

// IsFetchFailure reports whether err originated in the page supplier, as
// opposed to storage or validation.
func IsFetchFailure(err error) bool {
	var fe *fetch.Error
	return errors.As(err, &fe)
}
