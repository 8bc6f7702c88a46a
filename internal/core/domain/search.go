package domain

// Query limits.
const (
	DefaultTopK     = 20
	MaxTopK         = 100
	DefaultEntities = 10
)

// QueryRequest describes a similarity query. Exactly one of ObjectID, URL,
// Data or Text must be set.
type QueryRequest struct {
	ObjectID string
	URL      string
	Data     []byte
	Text     string

	// TopK is the number of raw hits requested from the index.
	TopK int

	// Entities is the number of aggregated entities returned.
	Entities int

	// Filter restricts hits to matching metadata.
	Filter map[string]string
}

// QueryResponse carries both raw hits and the entity-level ranking.
type QueryResponse struct {
	Hits     []QueryHit     `json:"hits"`
	Entities []EntityResult `json:"entities"`
}

// UpsertBytesRequest indexes raw bytes under an explicit id and entity.
type UpsertBytesRequest struct {
	ID       string
	EntityID string
	Label    string
	Data     []byte
}
