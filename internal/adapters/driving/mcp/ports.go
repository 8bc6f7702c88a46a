package mcp

import (
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search answers similarity queries.
	Search driving.SearchService

	// Reindex runs reindex passes and exposes the registry and status.
	// Reindex tools and resources are omitted when nil.
	Reindex driving.ReindexService

	// Index upserts single objects. The upsert tool is omitted when nil.
	Index driving.IndexService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
