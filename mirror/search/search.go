// Package search evaluates normalized predicates against the archived posts
// and shapes paginated, per-thread-grouped result blocks.
//
// Matching is purely in-memory over normalized columns; there is no
// relevance scoring, only substring and boundary-token containment.
package search

import (
	"strings"

	"github.com/kuroyagi/resmirror/anchor"
	"github.com/kuroyagi/resmirror/mirror/replytree"
	"github.com/kuroyagi/resmirror/mirror/store"
	"github.com/kuroyagi/resmirror/normtext"
)

// TagMode selects how a multi-token tag predicate combines.
type TagMode string

const (
	// TagModeAnd requires every token present as a boundary match.
	TagModeAnd TagMode = "and"
	// TagModeOr requires at least one token present.
	TagModeOr TagMode = "or"
)

// PageSizes is the allow-list for page_size. Values outside it are replaced
// by DefaultPageSize rather than rejected.
var PageSizes = []int{10, 20, 50, 100}

// DefaultPageSize is used when the requested page size is not allowed.
const DefaultPageSize = 20

// contextWindow is the half-width of the sequence-number window attached to
// each hit. Gaps in sequence numbers shrink the window; they are not filled.
const contextWindow = 5

// Query carries the raw search input. All text is normalized inside Evaluate.
type Query struct {
	Keyword      string
	ThreadFilter string
	TagTokens    []string
	TagMode      TagMode
	Page         int
	PageSize     int
}

// Empty reports whether no effective predicate was supplied. Emptiness is
// judged after normalization: a keyword, filter or tag token that normalizes
// to nothing (whitespace only, decorative full-width spaces) is no predicate.
// An unconditioned query returns no hits rather than a full dump.
func (q Query) Empty() bool {
	if normtext.Normalize(q.Keyword) != "" || normtext.Normalize(q.ThreadFilter) != "" {
		return false
	}
	for _, t := range q.TagTokens {
		if normtext.Normalize(t) != "" {
			return false
		}
	}
	return true
}

// Entry is one hit with its conversational context attached.
type Entry struct {
	Root          *store.Post      `json:"root_post"`
	Context       []*store.Post    `json:"context_posts,omitempty"`
	ReplyTree     []replytree.Node `json:"reply_tree,omitempty"`
	AnchorTargets []*store.Post    `json:"anchor_targets,omitempty"`
}

// Block groups the entries of one thread under a single header.
type Block struct {
	ThreadID    string  `json:"thread_id"`
	ThreadTitle string  `json:"thread_title"`
	Entries     []Entry `json:"entries"`
}

// Result is one page of search output. HitCount is the total over all pages;
// Page is the effective (clamped) page number.
type Result struct {
	HitCount int     `json:"hit_count"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
	LastPage int     `json:"last_page"`
	Blocks   []Block `json:"result_blocks"`
}

// Evaluate runs the query against the candidate posts. posts must be in
// candidate scan order (store.ListAllPosts); the hit order, cross-thread
// block order and pagination all derive from it.
func Evaluate(q Query, posts []*store.Post, threads map[string]*store.Thread) *Result {
	pageSize := clampPageSize(q.PageSize)
	page := q.Page
	if page < 1 {
		page = 1
	}

	res := &Result{Page: page, PageSize: pageSize, LastPage: 1}
	if q.Empty() {
		res.Page = 1
		return res
	}

	keyword := normtext.Normalize(q.Keyword)
	threadFilter := normtext.Normalize(q.ThreadFilter)
	var tagTokens []string
	for _, t := range q.TagTokens {
		if n := normtext.Normalize(t); n != "" {
			tagTokens = append(tagTokens, n)
		}
	}
	mode := TagMode(strings.ToLower(strings.TrimSpace(string(q.TagMode))))
	if mode != TagModeOr {
		mode = TagModeAnd
	}

	// Thread filter decisions are per-thread; cache them across posts.
	threadOK := make(map[string]bool)
	matchesThread := func(id string) bool {
		if threadFilter == "" {
			return true
		}
		ok, seen := threadOK[id]
		if !seen {
			ok = strings.Contains(normtext.Normalize(id), threadFilter)
			if !ok {
				if t := threads[id]; t != nil {
					ok = strings.Contains(t.NormalizedTitle, threadFilter)
				}
			}
			threadOK[id] = ok
		}
		return ok
	}

	byThread := make(map[string][]*store.Post)
	for _, p := range posts {
		byThread[p.ThreadID] = append(byThread[p.ThreadID], p)
	}

	var hits []*store.Post
	for _, p := range posts {
		if !matchesThread(p.ThreadID) {
			continue
		}
		if keyword != "" && !strings.Contains(p.NormalizedBody, keyword) {
			continue
		}
		if len(tagTokens) > 0 && !matchesTags(p.NormalizedTags, tagTokens, mode) {
			continue
		}
		hits = append(hits, p)
	}

	res.HitCount = len(hits)
	res.LastPage = (len(hits) + pageSize - 1) / pageSize
	if res.LastPage < 1 {
		res.LastPage = 1
	}
	if page > res.LastPage {
		page = res.LastPage
	}
	res.Page = page

	start := (page - 1) * pageSize
	if start > len(hits) {
		start = len(hits)
	}
	end := start + pageSize
	if end > len(hits) {
		end = len(hits)
	}

	// Group the page window by thread, preserving first-encounter order.
	blockIdx := make(map[string]int)
	for _, hit := range hits[start:end] {
		i, ok := blockIdx[hit.ThreadID]
		if !ok {
			title := ""
			if t := threads[hit.ThreadID]; t != nil {
				title = t.Title
			}
			res.Blocks = append(res.Blocks, Block{ThreadID: hit.ThreadID, ThreadTitle: title})
			i = len(res.Blocks) - 1
			blockIdx[hit.ThreadID] = i
		}
		res.Blocks[i].Entries = append(res.Blocks[i].Entries, buildEntry(hit, byThread[hit.ThreadID]))
	}

	return res
}

func buildEntry(hit *store.Post, threadPosts []*store.Post) Entry {
	e := Entry{Root: hit}

	if hit.Seq != nil {
		for _, p := range threadPosts {
			if p.ID == hit.ID || p.Seq == nil {
				continue
			}
			d := *p.Seq - *hit.Seq
			if d >= -contextWindow && d <= contextWindow {
				e.Context = append(e.Context, p)
			}
		}
	}

	e.ReplyTree = replytree.Build(threadPosts, hit)

	for _, target := range hit.Anchors {
		for _, p := range threadPosts {
			if p.Seq != nil && *p.Seq == int64(target) {
				e.AnchorTargets = append(e.AnchorTargets, p)
				break
			}
		}
	}

	return e
}

func matchesTags(field string, tokens []string, mode TagMode) bool {
	if field == "" {
		return false
	}
	for _, tok := range tokens {
		has := anchor.BoundContains(field, tok)
		if mode == TagModeAnd && !has {
			return false
		}
		if mode == TagModeOr && has {
			return true
		}
	}
	return mode == TagModeAnd
}

func clampPageSize(n int) int {
	for _, allowed := range PageSizes {
		if n == allowed {
			return n
		}
	}
	return DefaultPageSize
}
