package driving

import (
	"context"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

// SearchService answers similarity queries with entity-level ranking.
type SearchService interface {
	// Query embeds the request input, queries the index and aggregates hits by entity.
	Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error)
}
