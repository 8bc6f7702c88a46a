package driving

import (
	"context"
	"io"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

// UploadService streams bytes into the remote store.
type UploadService interface {
	// Upload opens a resumable session and streams r through it in chunks.
	// It returns the finalised remote object.
	Upload(ctx context.Context, meta domain.UploadMetadata, r io.Reader) (*domain.Object, error)
}
