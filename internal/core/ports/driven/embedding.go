package driven

import "context"

// EmbeddingService generates vector embeddings from images and text.
// Image and text embeddings share one vector space so text can query images.
//
// Implementations may include:
//   - CLIP-style inference servers exposing an /embeddings endpoint
//   - Hosted multimodal embedding APIs
type EmbeddingService interface {
	// EmbedImage generates a vector embedding for encoded image bytes.
	EmbedImage(ctx context.Context, data []byte) ([]float32, error)

	// EmbedText generates a vector embedding for the given text.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	// This is fixed per deployment and must match the VectorIndex.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
