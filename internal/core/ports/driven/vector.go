package driven

import (
	"context"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

// VectorIndex stores vectors and answers similarity queries.
// Every backend must behave identically: Upsert overwrites by id, Query
// returns hits ordered by descending similarity, and a non-empty filter
// restricts hits to entries whose metadata matches it.
type VectorIndex interface {
	// Upsert inserts or overwrites entries by id.
	Upsert(ctx context.Context, entries []domain.VectorEntry) error

	// Query finds the topK most similar entries to vector.
	Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]domain.QueryHit, error)

	// Backend names the implementation (local, vectorize, memory).
	Backend() string

	// Close releases resources.
	Close() error
}
