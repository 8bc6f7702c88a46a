package driving

import (
	"context"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

// ReindexService runs bounded round-robin reindex passes over the collection.
type ReindexService interface {
	// Run executes one pass. Stateful passes advance the persisted cursor;
	// stateless passes process an explicit slice and persist nothing.
	Run(ctx context.Context, opts domain.ReindexOptions) (*domain.ReindexResult, error)

	// RefreshFolders relists the collection root and replaces the folder registry.
	RefreshFolders(ctx context.Context) ([]domain.Folder, error)

	// Folders returns the folder registry as last persisted.
	Folders(ctx context.Context) ([]domain.Folder, error)

	// Status returns the persisted reindex status, or nil if no stateful run
	// has completed yet.
	Status(ctx context.Context) (*domain.ReindexStatus, error)

	// History returns up to limit recent scheduled runs, newest first.
	// It is empty when scheduled runs are not recorded.
	History(ctx context.Context, limit int) ([]domain.TaskResult, error)
}
