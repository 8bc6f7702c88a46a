package services

import (
	"math"
	"sort"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

// AggregateHits groups raw hits by entity and ranks the entities.
//
// Each entity keeps its top domain.MaxTopHits hits by score. Its score is the
// discounted sum of those hits, hit i weighted by 1/log2(i+2), so lower-ranked
// corroborating hits count for less rather than nothing. Entities are sorted
// by that score, then by best single hit, and truncated to topN. Hits whose
// metadata has no valid entity id are dropped.
func AggregateHits(hits []domain.QueryHit, topN int) []domain.EntityResult {
	groups := make(map[string][]domain.QueryHit)
	order := make([]string, 0)
	for _, hit := range hits {
		entityID, ok := domain.NormalizeEntityID(hit.Metadata[domain.MetaEntityID])
		if !ok {
			continue
		}
		if _, seen := groups[entityID]; !seen {
			order = append(order, entityID)
		}
		groups[entityID] = append(groups[entityID], hit)
	}

	results := make([]domain.EntityResult, 0, len(groups))
	for _, entityID := range order {
		group := groups[entityID]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Score > group[j].Score
		})
		if len(group) > domain.MaxTopHits {
			group = group[:domain.MaxTopHits]
		}

		var score float64
		for i, hit := range group {
			score += hit.Score * rankWeight(i)
		}

		top := make([]domain.QueryHit, len(group))
		copy(top, group)
		results = append(results, domain.EntityResult{
			EntityID:         entityID,
			Label:            group[0].Metadata[domain.MetaLabel],
			Score:            roundTo(score, 5),
			BestScore:        group[0].Score,
			RepresentativeID: group[0].ID,
			TopHits:          top,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].BestScore > results[j].BestScore
	})
	if topN >= 0 && len(results) > topN {
		results = results[:topN]
	}
	return results
}

// rankWeight is the discount for the hit at 0-indexed rank i.
func rankWeight(i int) float64 {
	return 1 / math.Log2(float64(i)+2)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
