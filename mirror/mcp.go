package mirror

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kuroyagi/resmirror/mirror/search"
	"github.com/kuroyagi/resmirror/mirror/store"
)

// RegisterMCP registers all mirror tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerThreadPosts(srv)
	s.registerSearch(srv)
	s.registerSetTags(srv)
	s.registerRecentSearches(srv)
	s.registerStats(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

// --- thread posts ---

func (s *Service) registerThreadPosts(srv *mcp.Server) {
	type req struct {
		URL string `json:"url"`
	}
	type resp struct {
		ThreadID  string              `json:"thread_id"`
		Refreshed bool                `json:"refreshed"`
		Posts     []*store.CachedPost `json:"posts"`
	}

	tool := &mcp.Tool{
		Name:        "mirror_thread_posts",
		Description: "Get the posts of a discussion thread, refreshing the local cache from the remote source when stale",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Thread URL"},
		}, []string{"url"}),
	}

	mcp.AddTool(srv, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in req) (*mcp.CallToolResult, resp, error) {
		posts, refreshed, err := s.PostsCached(ctx, in.URL)
		if err != nil {
			return nil, resp{}, err
		}
		return nil, resp{ThreadID: in.URL, Refreshed: refreshed, Posts: posts}, nil
	})
}

// --- search ---

func (s *Service) registerSearch(srv *mcp.Server) {
	type req struct {
		Keyword      string   `json:"keyword"`
		ThreadFilter string   `json:"thread_filter"`
		Tags         []string `json:"tags"`
		TagMode      string   `json:"tag_mode"`
		Page         int      `json:"page"`
		PageSize     int      `json:"page_size"`
	}

	tool := &mcp.Tool{
		Name:        "mirror_search",
		Description: "Search the archived posts by keyword, thread filter and tags; results are grouped per thread",
		InputSchema: inputSchema(map[string]any{
			"keyword":       map[string]any{"type": "string", "description": "Substring matched against post bodies"},
			"thread_filter": map[string]any{"type": "string", "description": "Substring matched against thread URL or title"},
			"tags":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Tag tokens"},
			"tag_mode":      map[string]any{"type": "string", "description": "Tag combination: and (default) or or"},
			"page":          map[string]any{"type": "integer", "description": "Page number, 1-based"},
			"page_size":     map[string]any{"type": "integer", "description": "Hits per page: 10, 20, 50 or 100"},
		}, nil),
	}

	mcp.AddTool(srv, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in req) (*mcp.CallToolResult, *search.Result, error) {
		res, err := s.Search(ctx, search.Query{
			Keyword:      in.Keyword,
			ThreadFilter: in.ThreadFilter,
			TagTokens:    in.Tags,
			TagMode:      search.TagMode(in.TagMode),
			Page:         in.Page,
			PageSize:     in.PageSize,
		})
		if err != nil {
			return nil, nil, err
		}
		return nil, res, nil
	})
}

// --- tags ---

func (s *Service) registerSetTags(srv *mcp.Server) {
	type req struct {
		PostID string `json:"post_id"`
		Tags   string `json:"tags"`
	}
	type resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}

	tool := &mcp.Tool{
		Name:        "mirror_set_tags",
		Description: "Replace the owner tag set of one archived post (comma or whitespace separated)",
		InputSchema: inputSchema(map[string]any{
			"post_id": map[string]any{"type": "string", "description": "Archived post ID"},
			"tags":    map[string]any{"type": "string", "description": "New tag string, empty to clear"},
		}, []string{"post_id"}),
	}

	mcp.AddTool(srv, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in req) (*mcp.CallToolResult, resp, error) {
		if err := s.SetPostTags(ctx, in.PostID, in.Tags); err != nil {
			return nil, resp{}, err
		}
		return nil, resp{ID: in.PostID, Status: "ok"}, nil
	})
}

// --- history ---

func (s *Service) registerRecentSearches(srv *mcp.Server) {
	type req struct{}
	type resp struct {
		Searches []SearchRecord `json:"searches"`
	}

	tool := &mcp.Tool{
		Name:        "mirror_recent_searches",
		Description: "List the most recent searches, newest first",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	mcp.AddTool(srv, tool, func(_ context.Context, _ *mcp.CallToolRequest, _ req) (*mcp.CallToolResult, resp, error) {
		recs := s.RecentSearches()
		if recs == nil {
			recs = []SearchRecord{}
		}
		return nil, resp{Searches: recs}, nil
	})
}

// --- stats ---

func (s *Service) registerStats(srv *mcp.Server) {
	type req struct{}

	tool := &mcp.Tool{
		Name:        "mirror_stats",
		Description: "Report cache and archive row counts",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	mcp.AddTool(srv, tool, func(ctx context.Context, _ *mcp.CallToolRequest, _ req) (*mcp.CallToolResult, *store.Stats, error) {
		st, err := s.Stats(ctx)
		if err != nil {
			return nil, nil, err
		}
		return nil, st, nil
	})
}
