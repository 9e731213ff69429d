package regradar

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/regradar/kit"
	"github.com/hazyhaar/regradar/regradar/internal/store"
)

// RegisterMCP registers the radar tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerListChanges(srv)
	s.registerGetDocument(srv)
	s.registerListSources(srv)
	s.registerRunNow(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func (s *Service) registerListChanges(srv *mcp.Server) {
	type req struct {
		StartDate string  `json:"start_date"`
		EndDate   string  `json:"end_date"`
		SourceID  int64   `json:"source_id"`
		MinScore  float64 `json:"min_score"`
		Limit     int     `json:"limit"`
		Offset    int     `json:"offset"`
		Sort      string  `json:"sort"`
		Order     string  `json:"order"`
	}

	tool := &mcp.Tool{
		Name:        "regradar_list_changes",
		Description: "List published impact assessments with filters, pagination and sorting",
		InputSchema: inputSchema(map[string]any{
			"start_date": map[string]any{"type": "string", "description": "Inclusive lower bound, RFC3339 or YYYY-MM-DD"},
			"end_date":   map[string]any{"type": "string", "description": "Inclusive upper bound, RFC3339 or YYYY-MM-DD"},
			"source_id":  map[string]any{"type": "integer", "description": "Restrict to one source"},
			"min_score":  map[string]any{"type": "number", "description": "Minimum score"},
			"limit":      map[string]any{"type": "integer", "description": "Page size (default 50, max 200)"},
			"offset":     map[string]any{"type": "integer", "description": "Page offset"},
			"sort":       map[string]any{"type": "string", "description": "created_at or score"},
			"order":      map[string]any{"type": "string", "description": "asc or desc"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		f := store.ChangeFilter{
			SourceID:  p.SourceID,
			Limit:     p.Limit,
			Offset:    p.Offset,
			SortField: p.Sort,
			SortDir:   p.Order,
		}
		if p.StartDate != "" {
			ms, err := parseMCPDate(p.StartDate)
			if err != nil {
				return nil, err
			}
			f.Since = &ms
		}
		if p.EndDate != "" {
			ms, err := parseMCPDate(p.EndDate)
			if err != nil {
				return nil, err
			}
			f.Until = &ms
		}
		if p.MinScore > 0 {
			f.MinScore = &p.MinScore
		}
		if err := f.Normalize(); err != nil {
			return nil, err
		}
		records, err := s.store.ListChanges(ctx, f)
		if err != nil {
			return nil, err
		}
		total, err := s.store.CountChanges(ctx, f)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"changes": records,
			"count":   len(records),
			"total":   total,
			"limit":   f.Limit,
			"offset":  f.Offset,
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[req])
}

func (s *Service) registerGetDocument(srv *mcp.Server) {
	type req struct {
		ID int64 `json:"id"`
	}

	tool := &mcp.Tool{
		Name:        "regradar_get_document",
		Description: "Get a document with its full version history",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "integer", "description": "Document ID"},
		}, []string{"id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		doc, err := s.store.GetDocument(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, fmt.Errorf("document %d not found", p.ID)
		}
		versions, err := s.store.ListVersions(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"document": doc, "versions": versions}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[req])
}

func (s *Service) registerListSources(srv *mcp.Server) {
	type req struct{}

	tool := &mcp.Tool{
		Name:        "regradar_list_sources",
		Description: "List all monitored sources with their fetch status",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		sources, err := s.store.ListSources(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"sources": sources, "count": len(sources)}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[req])
}

func (s *Service) registerRunNow(srv *mcp.Server) {
	type req struct{}

	tool := &mcp.Tool{
		Name:        "regradar_run_now",
		Description: "Run the monitoring pipeline once over all enabled sources",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.RunOnce(ctx)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[req])
}

// decodeInto unmarshals MCP arguments into *T.
func decodeInto[T any](r *mcp.CallToolRequest) (any, error) {
	var p T
	if len(r.Params.Arguments) > 0 {
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func parseMCPDate(s string) (int64, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("invalid date %q", s)
}
