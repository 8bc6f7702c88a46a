package domain

// Vector metadata keys.
const (
	MetaEntityID = "entity_id"
	MetaLabel    = "label"
	MetaFolderID = "folder_id"
	MetaName     = "name"
)

// MaxTopHits is the number of hits retained and scored per entity.
const MaxTopHits = 3

// VectorEntry is one record in the vector index. ID equals the source object
// id so upserting the same object overwrites its previous vector.
type VectorEntry struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// QueryHit is one raw similarity match.
type QueryHit struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// EntityResult is the aggregated, ranked result for one logical entity.
// It is derived from hits and never persisted.
type EntityResult struct {
	EntityID         string     `json:"entity_id"`
	Label            string     `json:"label,omitempty"`
	Score            float64    `json:"score"`
	BestScore        float64    `json:"best_score"`
	RepresentativeID string     `json:"representative_id"`
	TopHits          []QueryHit `json:"top_hits"`
}

// EntryMetadata builds vector metadata for an object of the given entity.
func EntryMetadata(entityID, label, folderID, name string) map[string]string {
	md := map[string]string{MetaEntityID: entityID}
	if label != "" {
		md[MetaLabel] = label
	}
	if folderID != "" {
		md[MetaFolderID] = folderID
	}
	if name != "" {
		md[MetaName] = name
	}
	return md
}

// MatchesFilter reports whether metadata carries every key/value in filter.
func MatchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}
