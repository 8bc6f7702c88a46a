package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driven"
)

const seenKeyPrefix = "seen:"

// SignatureStore persists, per folder, the signature of every object last
// embedded and indexed. Each folder's record is one key, read and written
// whole.
type SignatureStore struct {
	store driven.MetadataStore
}

// NewSignatureStore creates a signature store over a metadata store.
func NewSignatureStore(store driven.MetadataStore) *SignatureStore {
	return &SignatureStore{store: store}
}

// Load returns the folder's seen record. An absent record is empty, not an error.
func (s *SignatureStore) Load(ctx context.Context, folderID string) (domain.SeenRecord, error) {
	entry, ok, err := s.store.Get(ctx, seenKeyPrefix+folderID)
	if err != nil {
		return nil, fmt.Errorf("load seen record %s: %w", folderID, err)
	}
	record := make(domain.SeenRecord)
	if !ok || len(entry.Value) == 0 {
		return record, nil
	}
	if err := json.Unmarshal(entry.Value, &record); err != nil {
		return nil, fmt.Errorf("decode seen record %s: %w", folderID, err)
	}
	return record, nil
}

// Save replaces the folder's seen record in one write.
func (s *SignatureStore) Save(ctx context.Context, folderID string, record domain.SeenRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode seen record %s: %w", folderID, err)
	}
	if err := s.store.Put(ctx, seenKeyPrefix+folderID, data); err != nil {
		return fmt.Errorf("save seen record %s: %w", folderID, err)
	}
	return nil
}
