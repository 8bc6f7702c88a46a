package driving

import (
	"context"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

// IndexService upserts objects into the vector index on demand.
type IndexService interface {
	// UpsertFolder runs change detection for a single folder.
	UpsertFolder(ctx context.Context, folderID string, opts domain.DetectOptions) (domain.DetectResult, error)

	// UpsertObject embeds and indexes one object regardless of its signature.
	UpsertObject(ctx context.Context, objectID string) error

	// UpsertBytes embeds raw image bytes under an explicit id and entity.
	UpsertBytes(ctx context.Context, req domain.UpsertBytesRequest) error
}
