package mirror

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kuroyagi/resmirror/mirror/search"
	"github.com/kuroyagi/resmirror/mirror/store"
)

// RegisterHTTP registers the mirror endpoints on a chi router.
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Get("/api/v1/threads/posts", s.handleThreadPosts)
	r.Delete("/api/v1/threads", s.handleDeleteThread)
	r.Get("/api/v1/search", s.handleSearch)
	r.Put("/api/v1/posts/{post_id}/tags", s.handleSetTags)
	r.Get("/api/v1/searches/recent", s.handleRecentSearches)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/stats", s.handleStats)
}

// threadPostsResponse is the JSON body of GET /api/v1/threads/posts.
type threadPostsResponse struct {
	ThreadID   string              `json:"thread_id"`
	Refreshed  bool                `json:"refreshed"`
	Stale      bool                `json:"stale,omitempty"`
	FetchError string              `json:"fetch_error,omitempty"`
	Posts      []*store.CachedPost `json:"posts"`
}

// handleThreadPosts serves a thread's posts, refreshing from the remote
// source when the snapshot is stale. When the fetch fails but an older
// snapshot exists, it serves that snapshot marked stale instead of erroring.
func (s *Service) handleThreadPosts(w http.ResponseWriter, r *http.Request) {
	threadURL := r.URL.Query().Get("url")
	if threadURL == "" {
		jsonErr(w, "url is required", http.StatusBadRequest)
		return
	}

	posts, refreshed, err := s.PostsCached(r.Context(), threadURL)
	if err != nil {
		if errors.Is(err, ErrInvalidThreadURL) {
			jsonErr(w, err.Error(), http.StatusBadRequest)
			return
		}
		if IsFetchFailure(err) {
			// Stale fallback: an expired snapshot beats no answer.
			entry, stale, snapErr := s.CachedSnapshot(r.Context(), threadURL)
			if snapErr == nil && entry != nil {
				s.logger.Warn("serving stale snapshot after fetch failure",
					"thread", threadURL, "error", err)
				writeJSON(w, http.StatusOK, threadPostsResponse{
					ThreadID:   threadURL,
					Stale:      true,
					FetchError: err.Error(),
					Posts:      stale,
				})
				return
			}
			jsonErr(w, err.Error(), http.StatusBadGateway)
			return
		}
		s.logger.Error("thread posts failed", "thread", threadURL, "error", err)
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, threadPostsResponse{
		ThreadID:  threadURL,
		Refreshed: refreshed,
		Posts:     posts,
	})
}

func (s *Service) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	threadURL := r.URL.Query().Get("url")
	if threadURL == "" {
		jsonErr(w, "url is required", http.StatusBadRequest)
		return
	}
	dropArchive := r.URL.Query().Get("archive") == "true"

	if err := s.DeleteThread(r.Context(), threadURL, dropArchive); err != nil {
		s.logger.Error("thread delete failed", "thread", threadURL, "error", err)
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"archive_dropped": dropArchive,
	})
}

func (s *Service) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := search.Query{
		Keyword:      r.URL.Query().Get("q"),
		ThreadFilter: r.URL.Query().Get("thread"),
		TagMode:      search.TagMode(r.URL.Query().Get("mode")),
	}
	if tags := r.URL.Query().Get("tags"); tags != "" {
		for _, t := range strings.Split(tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				q.TagTokens = append(q.TagTokens, t)
			}
		}
	}
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.Page = n
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.PageSize = n
		}
	}

	res, err := s.Search(r.Context(), q)
	if err != nil {
		s.logger.Error("search failed", "error", err)
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleSetTags(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "post_id")

	r.Body = http.MaxBytesReader(w, r.Body, 32*1024)
	var req struct {
		Tags string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.SetPostTags(r.Context(), postID, req.Tags); err != nil {
		if errors.Is(err, store.ErrPostNotFound) {
			jsonErr(w, "post not found", http.StatusNotFound)
			return
		}
		s.logger.Error("set tags failed", "post", postID, "error", err)
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": postID, "status": "ok"})
}

func (s *Service) handleRecentSearches(w http.ResponseWriter, r *http.Request) {
	recs := s.RecentSearches()
	if recs == nil {
		recs = []SearchRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Service) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DB.PingContext(r.Context()); err != nil {
		jsonErr(w, "database unreachable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats failed", "error", err)
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
