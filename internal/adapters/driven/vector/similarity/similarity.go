// Package similarity scores and ranks vectors for the in-process index
// backends.
package similarity

import (
	"math"
	"sort"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Ranker accumulates scored candidates and returns the best topK.
type Ranker struct {
	query  []float32
	filter map[string]string
	hits   []domain.QueryHit
}

// NewRanker creates a ranker for one query.
func NewRanker(query []float32, filter map[string]string) *Ranker {
	return &Ranker{query: query, filter: filter}
}

// Add scores a candidate unless its metadata fails the filter.
func (r *Ranker) Add(id string, values []float32, metadata map[string]string) {
	if !domain.MatchesFilter(metadata, r.filter) {
		return
	}
	r.hits = append(r.hits, domain.QueryHit{
		ID:       id,
		Score:    Cosine(r.query, values),
		Metadata: metadata,
	})
}

// Top returns up to topK hits by descending score; ties keep id order.
func (r *Ranker) Top(topK int) []domain.QueryHit {
	sort.Slice(r.hits, func(i, j int) bool {
		if r.hits[i].Score != r.hits[j].Score {
			return r.hits[i].Score > r.hits[j].Score
		}
		return r.hits[i].ID < r.hits[j].ID
	})
	if topK >= 0 && len(r.hits) > topK {
		return r.hits[:topK]
	}
	return r.hits
}
