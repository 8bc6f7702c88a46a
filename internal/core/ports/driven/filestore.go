package driven

import (
	"context"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

// FileStore is the remote, hierarchical object store holding the collection.
type FileStore interface {
	// ListFolders returns the direct child folders of parentID.
	ListFolders(ctx context.Context, parentID string) ([]domain.Folder, error)

	// ListImages returns the image objects directly inside folderID,
	// in the store's listing order.
	ListImages(ctx context.Context, folderID string) ([]domain.Object, error)

	// FindSubfolder looks up a child folder by exact name.
	// A missing folder is reported with ok=false, never as an error.
	FindSubfolder(ctx context.Context, parentID, name string) (folder domain.Folder, ok bool, err error)

	// GetFolder returns a folder's metadata.
	// Returns domain.ErrNotFound if it does not exist.
	GetFolder(ctx context.Context, folderID string) (*domain.Folder, error)

	// GetObject returns an object's metadata.
	// Returns domain.ErrNotFound if it does not exist.
	GetObject(ctx context.Context, objectID string) (*domain.Object, error)

	// FetchBytes downloads an object's content.
	FetchBytes(ctx context.Context, objectID string) ([]byte, error)

	// InitiateUpload opens a resumable upload session.
	InitiateUpload(ctx context.Context, meta domain.UploadMetadata) (domain.UploadSession, error)

	// PutChunk sends bytes [start, end] of an upload whose total length is
	// total (domain.UnknownSize when not yet known). An empty data slice with
	// a known total finalises the upload.
	PutChunk(ctx context.Context, session domain.UploadSession, start, end, total int64, data []byte) (domain.ChunkResult, error)
}
