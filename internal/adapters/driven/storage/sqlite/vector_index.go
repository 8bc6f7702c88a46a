package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/sercha-vision/internal/adapters/driven/vector/similarity"
	"github.com/custodia-labs/sercha-vision/internal/core/domain"
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driven"
)

// BackendLocal names the in-process index backend.
const BackendLocal = "local"

// VectorIndex is the in-process vector index. Vectors are stored as
// little-endian float32 blobs and scored with exhaustive cosine similarity,
// which is adequate for collections of a few hundred thousand images.
type VectorIndex struct {
	store      *Store
	dimensions int
}

var _ driven.VectorIndex = (*VectorIndex)(nil)

// Upsert inserts or overwrites entries in one transaction.
func (v *VectorIndex) Upsert(ctx context.Context, entries []domain.VectorEntry) error {
	for _, e := range entries {
		if err := v.checkDimensions(e.Values); err != nil {
			return fmt.Errorf("entry %s: %w", e.ID, err)
		}
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (id, entity_id, embedding, metadata, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			entity_id = excluded.entity_id,
			embedding = excluded.embedding,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		metadataJSON, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata for %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.Metadata[domain.MetaEntityID],
			float32SliceToBytes(e.Values), string(metadataJSON)); err != nil {
			return fmt.Errorf("upserting vector %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vectors: %w", err)
	}
	return nil
}

// Query scores every stored vector matching the filter against vector.
func (v *VectorIndex) Query(
	ctx context.Context,
	vector []float32,
	topK int,
	filter map[string]string,
) ([]domain.QueryHit, error) {
	if err := v.checkDimensions(vector); err != nil {
		return nil, err
	}

	query := "SELECT id, embedding, metadata FROM vectors"
	var args []any
	// The entity column is indexed; other filter keys are checked in Go.
	if entityID, ok := filter[domain.MetaEntityID]; ok {
		query += " WHERE entity_id = ?"
		args = append(args, entityID)
	}

	rows, err := v.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	ranker := similarity.NewRanker(vector, filter)
	for rows.Next() {
		var (
			id           string
			blob         []byte
			metadataJSON string
		)
		if err := rows.Scan(&id, &blob, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scanning vector: %w", err)
		}
		var metadata map[string]string
		if metadataJSON != "" && metadataJSON != "null" {
			if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
				return nil, fmt.Errorf("unmarshalling metadata for %s: %w", id, err)
			}
		}
		ranker.Add(id, bytesToFloat32Slice(blob), metadata)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
	}

	return ranker.Top(topK), nil
}

// Count returns the number of stored vectors.
func (v *VectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := v.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting vectors: %w", err)
	}
	return n, nil
}

// Backend returns BackendLocal.
func (v *VectorIndex) Backend() string {
	return BackendLocal
}

// Close is a no-op; the owning Store closes the database.
func (v *VectorIndex) Close() error {
	return nil
}

func (v *VectorIndex) checkDimensions(values []float32) error {
	if v.dimensions > 0 && len(values) != v.dimensions {
		return domain.ValidationError("vector",
			fmt.Sprintf("dimension mismatch: expected %d, got %d", v.dimensions, len(values)))
	}
	return nil
}
