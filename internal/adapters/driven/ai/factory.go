// Package ai provides factory functions for the embedding service and the
// vector index backend.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-vision/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-vision/internal/adapters/driven/embedding/clip"
	"github.com/custodia-labs/sercha-vision/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-vision/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-vision/internal/adapters/driven/vector/vectorize"
	"github.com/custodia-labs/sercha-vision/internal/core/domain"
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// Vector backends.
const (
	BackendLocal     = sqlite.BackendLocal
	BackendVectorize = vectorize.Backend
	BackendMemory    = memory.BackendMemory
)

// InitResult contains the services built for one process.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	VectorIndex      driven.VectorIndex
	Warnings         []string // Non-fatal issues, such as a probed backend choice.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.VectorIndex != nil {
		r.VectorIndex.Close()
	}
}

// Init builds the embedding service and the vector index it feeds.
// local may be nil when the metadata store is not SQLite; the local backend
// is then unavailable.
func Init(ctx context.Context, cfg *file.Config, local *sqlite.Store) (*InitResult, error) {
	embedder, err := CreateAndValidateEmbeddingService(ctx, cfg.Embedding)
	if err != nil {
		return nil, err
	}

	backend, warning := ResolveBackend(cfg.Vector, local != nil)
	index, err := CreateVectorIndex(backend, cfg.Vector, local, embedder.Dimensions())
	if err != nil {
		embedder.Close()
		return nil, err
	}

	result := &InitResult{EmbeddingService: embedder, VectorIndex: index}
	if warning != "" {
		result.Warnings = append(result.Warnings, warning)
	}
	return result, nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
func CreateAndValidateEmbeddingService(ctx context.Context, cfg file.EmbeddingConfig) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// CreateEmbeddingService creates the embedding service without contacting it.
func CreateEmbeddingService(cfg file.EmbeddingConfig) (driven.EmbeddingService, error) {
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	svc, err := clip.NewEmbeddingService(clip.Config{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Timeout:    timeout,
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// ResolveBackend returns the configured backend, or probes one when the
// backend is left empty: the in-process index when a local store is
// available, otherwise the REST index when its identifiers are configured.
func ResolveBackend(cfg file.VectorConfig, haveLocal bool) (backend, warning string) {
	if cfg.Backend != "" {
		return cfg.Backend, ""
	}
	switch {
	case haveLocal:
		return BackendLocal, ""
	case cfg.RemoteConfigured():
		return BackendVectorize, "local vector index unavailable, using vectorize"
	default:
		return "", ""
	}
}

// CreateVectorIndex creates the vector index for backend.
func CreateVectorIndex(backend string, cfg file.VectorConfig, local *sqlite.Store, dimensions int) (driven.VectorIndex, error) {
	switch backend {
	case BackendLocal:
		if local == nil {
			return nil, domain.ConfigurationError("vector.backend", "local backend requires the sqlite metadata store")
		}
		return local.VectorIndex(dimensions), nil

	case BackendVectorize:
		index, err := vectorize.New(vectorize.Config{
			AccountID: cfg.AccountID,
			IndexName: cfg.IndexName,
			APIToken:  cfg.APIToken,
			BaseURL:   cfg.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		return index, nil

	case BackendMemory:
		return memory.NewVectorIndex(dimensions), nil

	case "":
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorIndexUnavailable,
			domain.ConfigurationError("vector.backend", "no backend configured"))

	default:
		return nil, domain.ConfigurationError("vector.backend", fmt.Sprintf("unsupported backend %q", backend))
	}
}
