package search

import (
	"testing"

	"github.com/kuroyagi/resmirror/anchor"
	"github.com/kuroyagi/resmirror/mirror/store"
	"github.com/kuroyagi/resmirror/normtext"
)

func seq(n int64) *int64 { return &n }

func mkpost(id, thread string, s *int64, body, tags string, anchors ...int) *store.Post {
	return &store.Post{
		ID:             id,
		ThreadID:       thread,
		Seq:            s,
		Body:           body,
		Anchors:        anchor.Set(anchors),
		Tags:           tags,
		NormalizedBody: normtext.Normalize(body),
		NormalizedTags: anchor.Bound(normtext.Tokens(tags)),
	}
}

func mkthread(id, title string) *store.Thread {
	return &store.Thread{ID: id, Title: title, NormalizedTitle: normtext.Normalize(title)}
}

func TestEvaluate_EmptyQueryNoHits(t *testing.T) {
	// WHAT: A query with no predicate returns zero hits, page 1.
	// WHY: An unconditioned search must not dump the whole archive.
	posts := []*store.Post{mkpost("p1", "t1", seq(1), "hello", "")}
	threads := map[string]*store.Thread{"t1": mkthread("t1", "")}

	res := Evaluate(Query{Page: 7, PageSize: 50}, posts, threads)
	if res.HitCount != 0 {
		t.Errorf("hit count: got %d, want 0", res.HitCount)
	}
	if res.Page != 1 || res.LastPage != 1 {
		t.Errorf("pages: got page=%d last=%d, want 1/1", res.Page, res.LastPage)
	}
	if len(res.Blocks) != 0 {
		t.Errorf("blocks: got %d, want 0", len(res.Blocks))
	}
}

func TestEvaluate_WhitespaceTagTokenIsEmptyQuery(t *testing.T) {
	// WHAT: A query whose only tag token normalizes to nothing (a plain or
	// full-width space) counts as unconditioned and returns zero hits.
	// WHY: Emptiness must be judged after normalization; otherwise a vacuous
	// token passes the gate with zero effective predicates and every post
	// sails through the matcher.
	posts := []*store.Post{
		mkpost("p1", "t1", seq(1), "hello", ""),
		mkpost("p2", "t1", seq(2), "goodbye", ""),
	}
	threads := map[string]*store.Thread{"t1": mkthread("t1", "")}

	for _, token := range []string{" ", "　", "  \t "} {
		q := Query{TagTokens: []string{token}}
		if !q.Empty() {
			t.Errorf("token %q: Empty() = false, want true", token)
		}
		res := Evaluate(q, posts, threads)
		if res.HitCount != 0 || len(res.Blocks) != 0 {
			t.Errorf("token %q: got %d hits, want 0", token, res.HitCount)
		}
		if res.Page != 1 {
			t.Errorf("token %q: page = %d, want 1", token, res.Page)
		}
	}
}

func TestEvaluate_KeywordSubstring(t *testing.T) {
	// WHAT: A keyword hits every post whose body contains it, and the more
	// specific body matches too ("hello" hits both "hello" and "hello world").
	posts := []*store.Post{
		mkpost("p1", "t1", seq(1), "hello", ""),
		mkpost("p2", "t1", seq(2), "hello world", ""),
		mkpost("p3", "t1", seq(3), "goodbye", ""),
	}
	threads := map[string]*store.Thread{"t1": mkthread("t1", "")}

	res := Evaluate(Query{Keyword: "hello"}, posts, threads)
	if res.HitCount != 2 {
		t.Fatalf("hit count: got %d, want 2", res.HitCount)
	}
	if len(res.Blocks) != 1 {
		t.Fatalf("blocks: got %d, want 1", len(res.Blocks))
	}
	entries := res.Blocks[0].Entries
	if len(entries) != 2 || entries[0].Root.ID != "p1" || entries[1].Root.ID != "p2" {
		t.Errorf("entries: got %d, want p1 then p2", len(entries))
	}
}

func TestEvaluate_KeywordNormalization(t *testing.T) {
	// WHAT: A full-width, upper-case keyword matches a half-width lower-case
	// body and vice versa.
	// WHY: Matching runs on the normalized columns, never raw text.
	posts := []*store.Post{
		mkpost("p1", "t1", seq(1), "Hello World", ""),
		mkpost("p2", "t1", seq(2), "ＨＥＬＬＯ　ＷＯＲＬＤ", ""),
	}
	threads := map[string]*store.Thread{"t1": mkthread("t1", "")}

	res := Evaluate(Query{Keyword: "ＨｅＬＬｏ"}, posts, threads)
	if res.HitCount != 2 {
		t.Errorf("full-width keyword: got %d hits, want 2", res.HitCount)
	}

	res = Evaluate(Query{Keyword: "hello world"}, posts, threads)
	if res.HitCount != 2 {
		t.Errorf("collapsed keyword: got %d hits, want 2", res.HitCount)
	}
}

func TestEvaluate_ThreadFilter(t *testing.T) {
	// WHAT: The thread filter matches either the thread URL or its title,
	// normalized; posts of other threads are excluded before other
	// predicates run.
	posts := []*store.Post{
		mkpost("p1", "https://example.com/go-talk", seq(1), "hello", ""),
		mkpost("p2", "https://example.com/other", seq(1), "hello", ""),
	}
	threads := map[string]*store.Thread{
		"https://example.com/go-talk": mkthread("https://example.com/go-talk", "Go Talk"),
		"https://example.com/other":   mkthread("https://example.com/other", "Rust Corner"),
	}

	res := Evaluate(Query{Keyword: "hello", ThreadFilter: "go-talk"}, posts, threads)
	if res.HitCount != 1 || res.Blocks[0].ThreadID != "https://example.com/go-talk" {
		t.Errorf("URL filter: got %d hits", res.HitCount)
	}

	res = Evaluate(Query{Keyword: "hello", ThreadFilter: "rust corner"}, posts, threads)
	if res.HitCount != 1 || res.Blocks[0].ThreadID != "https://example.com/other" {
		t.Errorf("title filter: got %d hits", res.HitCount)
	}
}

func TestEvaluate_TagModes(t *testing.T) {
	// WHAT: AND requires every token as a boundary match; OR requires any.
	// A post tagged only "a" is excluded by AND{a,b} but included by OR{a,b}.
	posts := []*store.Post{
		mkpost("p1", "t1", seq(1), "x", "a"),
		mkpost("p2", "t1", seq(2), "x", "a, b"),
		mkpost("p3", "t1", seq(3), "x", ""),
	}
	threads := map[string]*store.Thread{"t1": mkthread("t1", "")}

	and := Evaluate(Query{TagTokens: []string{"a", "b"}, TagMode: TagModeAnd}, posts, threads)
	if and.HitCount != 1 || and.Blocks[0].Entries[0].Root.ID != "p2" {
		t.Errorf("AND: got %d hits", and.HitCount)
	}

	or := Evaluate(Query{TagTokens: []string{"a", "b"}, TagMode: TagModeOr}, posts, threads)
	if or.HitCount != 2 {
		t.Errorf("OR: got %d hits, want 2", or.HitCount)
	}
}

func TestEvaluate_TagModeCaseInsensitive(t *testing.T) {
	// WHAT: "OR", "Or" and " or " all select OR semantics.
	// WHY: The mode string arrives from query parameters and tool inputs;
	// a silent fallback to AND on a capitalized value would invert results.
	posts := []*store.Post{
		mkpost("p1", "t1", seq(1), "x", "a"),
		mkpost("p2", "t1", seq(2), "x", "a, b"),
	}
	threads := map[string]*store.Thread{"t1": mkthread("t1", "")}

	for _, mode := range []TagMode{"OR", "Or", " or "} {
		res := Evaluate(Query{TagTokens: []string{"a", "b"}, TagMode: mode}, posts, threads)
		if res.HitCount != 2 {
			t.Errorf("mode %q: got %d hits, want 2", mode, res.HitCount)
		}
	}
}

func TestEvaluate_TagBoundaryNoPrefixMatch(t *testing.T) {
	// WHAT: Token "go" does not match a post tagged "golang".
	// WHY: Tag matching is whole-token via boundary wrapping, not substring.
	posts := []*store.Post{
		mkpost("p1", "t1", seq(1), "x", "golang"),
		mkpost("p2", "t1", seq(2), "x", "go"),
	}
	threads := map[string]*store.Thread{"t1": mkthread("t1", "")}

	res := Evaluate(Query{TagTokens: []string{"go"}}, posts, threads)
	if res.HitCount != 1 || res.Blocks[0].Entries[0].Root.ID != "p2" {
		t.Errorf("boundary match: got %d hits", res.HitCount)
	}
}

func TestEvaluate_UntaggedNeverMatchesTagPredicate(t *testing.T) {
	// WHAT: Posts with an empty tag set never match a tag predicate, in
	// either mode.
	posts := []*store.Post{mkpost("p1", "t1", seq(1), "x", "")}
	threads := map[string]*store.Thread{"t1": mkthread("t1", "")}

	for _, mode := range []TagMode{TagModeAnd, TagModeOr} {
		res := Evaluate(Query{TagTokens: []string{"a"}, TagMode: mode}, posts, threads)
		if res.HitCount != 0 {
			t.Errorf("mode %s: got %d hits, want 0", mode, res.HitCount)
		}
	}
}

func TestEvaluate_PaginationClamp(t *testing.T) {
	// WHAT: page 3 with size 10 over 5 hits clamps to the last page (1);
	// a disallowed page size falls back to the default.
	var posts []*store.Post
	for i := 1; i <= 5; i++ {
		posts = append(posts, mkpost(
			string(rune('a'+i)), "t1", seq(int64(i)), "needle", ""))
	}
	threads := map[string]*store.Thread{"t1": mkthread("t1", "")}

	res := Evaluate(Query{Keyword: "needle", Page: 3, PageSize: 10}, posts, threads)
	if res.Page != 1 || res.LastPage != 1 {
		t.Errorf("clamp: got page=%d last=%d, want 1/1", res.Page, res.LastPage)
	}
	if res.HitCount != 5 {
		t.Errorf("hit count: got %d, want 5", res.HitCount)
	}

	res = Evaluate(Query{Keyword: "needle", PageSize: 7}, posts, threads)
	if res.PageSize != DefaultPageSize {
		t.Errorf("page size: got %d, want %d", res.PageSize, DefaultPageSize)
	}
}

func TestEvaluate_PageWindow(t *testing.T) {
	// WHAT: Page 2 with size 10 over 15 hits carries hits 11..15, and
	// HitCount still reports the total.
	var posts []*store.Post
	for i := 1; i <= 15; i++ {
		posts = append(posts, mkpost(
			"p"+string(rune('a'+i)), "t1", seq(int64(i)), "needle", ""))
	}
	threads := map[string]*store.Thread{"t1": mkthread("t1", "")}

	res := Evaluate(Query{Keyword: "needle", Page: 2, PageSize: 10}, posts, threads)
	if res.HitCount != 15 || res.LastPage != 2 {
		t.Fatalf("totals: got hits=%d last=%d, want 15/2", res.HitCount, res.LastPage)
	}
	var n int
	for _, b := range res.Blocks {
		n += len(b.Entries)
	}
	if n != 5 {
		t.Errorf("page entries: got %d, want 5", n)
	}
	if first := res.Blocks[0].Entries[0].Root; *first.Seq != 11 {
		t.Errorf("first entry on page 2: got seq %d, want 11", *first.Seq)
	}
}

func TestEvaluate_BlocksGroupByThread(t *testing.T) {
	// WHAT: Hits from two threads form two blocks in first-encounter order,
	// each carrying its thread title.
	posts := []*store.Post{
		mkpost("p1", "t1", seq(1), "needle", ""),
		mkpost("p2", "t2", seq(1), "needle", ""),
		mkpost("p3", "t1", seq(2), "needle", ""),
	}
	threads := map[string]*store.Thread{
		"t1": mkthread("t1", "First"),
		"t2": mkthread("t2", "Second"),
	}

	res := Evaluate(Query{Keyword: "needle"}, posts, threads)
	if len(res.Blocks) != 2 {
		t.Fatalf("blocks: got %d, want 2", len(res.Blocks))
	}
	if res.Blocks[0].ThreadID != "t1" || res.Blocks[1].ThreadID != "t2" {
		t.Errorf("block order: got %s, %s", res.Blocks[0].ThreadID, res.Blocks[1].ThreadID)
	}
	if res.Blocks[0].ThreadTitle != "First" {
		t.Errorf("title: got %q", res.Blocks[0].ThreadTitle)
	}
	if len(res.Blocks[0].Entries) != 2 {
		t.Errorf("t1 entries: got %d, want 2", len(res.Blocks[0].Entries))
	}
}

func TestEvaluate_ContextWindow(t *testing.T) {
	// WHAT: The context is the same-thread posts within five sequence
	// numbers of the hit, excluding the hit itself; gaps shrink the window
	// rather than being filled.
	posts := []*store.Post{
		mkpost("p1", "t1", seq(1), "x", ""),
		mkpost("p4", "t1", seq(4), "x", ""),
		mkpost("p10", "t1", seq(10), "needle", ""),
		mkpost("p14", "t1", seq(14), "x", ""),
		mkpost("p16", "t1", seq(16), "x", ""),
		mkpost("orphan", "t1", nil, "x", ""),
	}
	threads := map[string]*store.Thread{"t1": mkthread("t1", "")}

	res := Evaluate(Query{Keyword: "needle"}, posts, threads)
	if res.HitCount != 1 {
		t.Fatalf("hits: got %d", res.HitCount)
	}
	ctx := res.Blocks[0].Entries[0].Context
	var ids []string
	for _, p := range ctx {
		ids = append(ids, p.ID)
	}
	// Window is seq 5..15: only p14 qualifies. p4 (d=-6), p16 (d=+6) and the
	// seq-less orphan are out.
	if len(ids) != 1 || ids[0] != "p14" {
		t.Errorf("context: got %v, want [p14]", ids)
	}
}

func TestEvaluate_EntryCarriesTreeAndTargets(t *testing.T) {
	// WHAT: Each entry materializes the hit's reply tree and the posts its
	// own anchors point to.
	posts := []*store.Post{
		mkpost("p1", "t1", seq(1), "opening", ""),
		mkpost("p2", "t1", seq(2), "needle", "", 1),
		mkpost("p3", "t1", seq(3), "agreed", "", 2),
	}
	threads := map[string]*store.Thread{"t1": mkthread("t1", "")}

	res := Evaluate(Query{Keyword: "needle"}, posts, threads)
	if res.HitCount != 1 {
		t.Fatalf("hits: got %d", res.HitCount)
	}
	e := res.Blocks[0].Entries[0]
	if len(e.ReplyTree) != 1 || e.ReplyTree[0].Post.ID != "p3" || e.ReplyTree[0].Depth != 0 {
		t.Errorf("reply tree: got %+v", e.ReplyTree)
	}
	if len(e.AnchorTargets) != 1 || e.AnchorTargets[0].ID != "p1" {
		t.Errorf("anchor targets: got %+v", e.AnchorTargets)
	}
}
