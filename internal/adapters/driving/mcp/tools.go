package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

// QueryInput is the input schema for the query_similar tool.
type QueryInput struct {
	Text     string `json:"text,omitempty" jsonschema:"a text description to match against images"`
	ObjectID string `json:"object_id,omitempty" jsonschema:"id of an indexed object to use as the query image"`
	URL      string `json:"url,omitempty" jsonschema:"URL of an image to use as the query"`
	EntityID string `json:"entity_id,omitempty" jsonschema:"restrict hits to one entity"`
	TopK     int    `json:"top_k,omitempty" jsonschema:"number of raw hits to retrieve (default 20, max 100)"`
	Entities int    `json:"entities,omitempty" jsonschema:"number of ranked entities to return (default 10)"`
}

// QueryOutput is the output schema for the query_similar tool.
type QueryOutput struct {
	Entities []EntityOutput `json:"entities"`
	Hits     int            `json:"hits"`
}

// EntityOutput is one ranked entity.
type EntityOutput struct {
	EntityID         string  `json:"entity_id"`
	Label            string  `json:"label,omitempty"`
	Score            float64 `json:"score"`
	BestScore        float64 `json:"best_score"`
	RepresentativeID string  `json:"representative_id"`
}

// ReindexInput is the input schema for the reindex tool.
type ReindexInput struct {
	LimitFolders int  `json:"limit_folders,omitempty" jsonschema:"maximum folders to visit (default 25, -1 for all)"`
	MaxChanged   *int `json:"max_changed,omitempty" jsonschema:"change budget for the run (default 40, 0 for none, -1 for unbounded)"`
	Stateless    bool `json:"stateless,omitempty" jsonschema:"process an explicit slice without moving the cursor"`
	Start        int  `json:"start,omitempty" jsonschema:"slice offset for stateless runs"`
	DryRun       bool `json:"dry_run,omitempty" jsonschema:"embed and upsert without recording signatures or moving the cursor"`
}

// StatusInput is the (empty) input schema for the reindex_status tool.
type StatusInput struct{}

// UpsertInput is the input schema for the upsert_object tool.
type UpsertInput struct {
	ObjectID string `json:"object_id" jsonschema:"id of the object to embed and index"`
}

// UpsertOutput reports an upsert.
type UpsertOutput struct {
	ObjectID string `json:"object_id"`
	Indexed  bool   `json:"indexed"`
}

// ReindexOutput summarises a reindex pass.
type ReindexOutput struct {
	RunID           string `json:"run_id"`
	Mode            string `json:"mode"`
	Start           int    `json:"start"`
	NextCursor      int    `json:"next_cursor"`
	TotalFolders    int    `json:"total_folders"`
	FoldersVisited  int    `json:"folders_visited"`
	Scanned         int    `json:"scanned"`
	Changed         int    `json:"changed"`
	SkippedFolders  int    `json:"skipped_folders"`
	StoppedByBudget bool   `json:"stopped_by_budget"`
	DryRun          bool   `json:"dry_run"`
}

// StatusOutput is the persisted reindex status.
type StatusOutput struct {
	LastRun        string `json:"last_run"`
	Cursor         int    `json:"cursor"`
	TotalFolders   int    `json:"total_folders"`
	FoldersVisited int    `json:"folders_visited"`
	Scanned        int    `json:"scanned"`
	Changed        int    `json:"changed"`
	RunID          string `json:"run_id,omitempty"`
}

// Defaults for tool-triggered reindex passes.
const (
	defaultLimitFolders = 25
	defaultMaxChanged   = 40
)

// errNoStatus is returned when no stateful run has completed.
var errNoStatus = errors.New("no stateful reindex run has completed yet")

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query_similar",
		Description: "Find the entities whose images are most similar to a text, image URL or indexed object",
	}, s.handleQuery)

	if s.ports.Reindex != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "reindex",
			Description: "Run one bounded round-robin reindex pass over the image collection",
		}, s.handleReindex)

		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "reindex_status",
			Description: "Show the persisted reindex cursor and last run counters",
		}, s.handleStatus)
	}

	if s.ports.Index != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "upsert_object",
			Description: "Embed and index a single object regardless of its change signature",
		}, s.handleUpsert)
	}
}

// handleQuery handles the query_similar tool invocation.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	req := domain.QueryRequest{
		Text:     input.Text,
		ObjectID: input.ObjectID,
		URL:      input.URL,
		TopK:     input.TopK,
		Entities: input.Entities,
	}
	if input.EntityID != "" {
		req.Filter = map[string]string{domain.MetaEntityID: input.EntityID}
	}

	resp, err := s.ports.Search.Query(ctx, req)
	if err != nil {
		return nil, QueryOutput{}, err
	}

	output := QueryOutput{
		Entities: make([]EntityOutput, len(resp.Entities)),
		Hits:     len(resp.Hits),
	}
	for i, e := range resp.Entities {
		output.Entities[i] = EntityOutput{
			EntityID:         e.EntityID,
			Label:            e.Label,
			Score:            e.Score,
			BestScore:        e.BestScore,
			RepresentativeID: e.RepresentativeID,
		}
	}
	return nil, output, nil
}

// handleReindex handles the reindex tool invocation.
func (s *Server) handleReindex(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ReindexInput,
) (*mcp.CallToolResult, ReindexOutput, error) {
	opts := domain.ReindexOptions{
		Mode:         domain.ModeStateful,
		LimitFolders: input.LimitFolders,
		MaxChanged:   defaultMaxChanged,
		Start:        input.Start,
		DryRun:       input.DryRun,
	}
	if input.Stateless {
		opts.Mode = domain.ModeStateless
	}
	if opts.LimitFolders == 0 {
		opts.LimitFolders = defaultLimitFolders
	}
	if input.MaxChanged != nil {
		opts.MaxChanged = *input.MaxChanged
	}

	result, err := s.ports.Reindex.Run(ctx, opts)
	if err != nil {
		return nil, ReindexOutput{}, err
	}
	return nil, ReindexOutput{
		RunID:           result.RunID,
		Mode:            string(result.Mode),
		Start:           result.Start,
		NextCursor:      result.NextCursor,
		TotalFolders:    result.TotalFolders,
		FoldersVisited:  result.Counts.FoldersVisited,
		Scanned:         result.Counts.Scanned,
		Changed:         result.Counts.Changed,
		SkippedFolders:  result.Counts.SkippedFolders,
		StoppedByBudget: result.StoppedByBudget,
		DryRun:          result.DryRun,
	}, nil
}

// handleStatus handles the reindex_status tool invocation.
func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	status, err := s.ports.Reindex.Status(ctx)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	if status == nil {
		return nil, StatusOutput{}, errNoStatus
	}
	return nil, StatusOutput{
		LastRun:        status.LastRun.UTC().Format(time.RFC3339),
		Cursor:         status.Cursor,
		TotalFolders:   status.TotalFolders,
		FoldersVisited: status.Counts.FoldersVisited,
		Scanned:        status.Counts.Scanned,
		Changed:        status.Counts.Changed,
		RunID:          status.RunID,
	}, nil
}

// handleUpsert handles the upsert_object tool invocation.
func (s *Server) handleUpsert(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input UpsertInput,
) (*mcp.CallToolResult, UpsertOutput, error) {
	if err := s.ports.Index.UpsertObject(ctx, input.ObjectID); err != nil {
		return nil, UpsertOutput{}, err
	}
	return nil, UpsertOutput{ObjectID: input.ObjectID, Indexed: true}, nil
}
