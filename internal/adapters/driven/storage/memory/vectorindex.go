package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/sercha-vision/internal/adapters/driven/vector/similarity"
	"github.com/custodia-labs/sercha-vision/internal/core/domain"
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driven"
)

// BackendMemory names the in-memory index backend.
const BackendMemory = "memory"

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is an in-memory brute-force vector index.
type VectorIndex struct {
	mu         sync.RWMutex
	dimensions int
	entries    map[string]domain.VectorEntry
}

// NewVectorIndex creates an empty index. dimensions of 0 accepts any length.
func NewVectorIndex(dimensions int) *VectorIndex {
	return &VectorIndex{
		dimensions: dimensions,
		entries:    make(map[string]domain.VectorEntry),
	}
}

// Upsert inserts or overwrites entries by id.
func (v *VectorIndex) Upsert(_ context.Context, entries []domain.VectorEntry) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, e := range entries {
		if v.dimensions > 0 && len(e.Values) != v.dimensions {
			return domain.ValidationError("vector",
				fmt.Sprintf("entry %s: dimension mismatch: expected %d, got %d", e.ID, v.dimensions, len(e.Values)))
		}
	}
	for _, e := range entries {
		e.Values = append([]float32(nil), e.Values...)
		v.entries[e.ID] = e
	}
	return nil
}

// Query returns the topK entries most similar to vector.
func (v *VectorIndex) Query(_ context.Context, vector []float32, topK int, filter map[string]string) ([]domain.QueryHit, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	ranker := similarity.NewRanker(vector, filter)
	for id, e := range v.entries {
		ranker.Add(id, e.Values, e.Metadata)
	}
	return ranker.Top(topK), nil
}

// Len returns the number of stored entries.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.entries)
}

// Backend returns BackendMemory.
func (v *VectorIndex) Backend() string {
	return BackendMemory
}

// Close is a no-op.
func (v *VectorIndex) Close() error {
	return nil
}
