package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-vision/internal/core/ports/driven"
)

// Ensure MetadataStore implements the interface.
var _ driven.MetadataStore = (*MetadataStore)(nil)

// MetadataStore is an in-memory implementation of driven.MetadataStore.
type MetadataStore struct {
	mu      sync.RWMutex
	entries map[string]driven.Entry
}

// NewMetadataStore creates a new in-memory metadata store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		entries: make(map[string]driven.Entry),
	}
}

// Get returns a copy of the entry stored under key.
func (s *MetadataStore) Get(_ context.Context, key string) (driven.Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	if !ok {
		return driven.Entry{}, false, nil
	}
	entry.Value = append([]byte(nil), entry.Value...)
	return entry, true, nil
}

// Put stores value unconditionally.
func (s *MetadataStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(key, value)
	return nil
}

// CompareAndSwap stores value only if the key's version equals expected.
func (s *MetadataStore) CompareAndSwap(_ context.Context, key string, expected int64, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries[key].Version != expected {
		return false, nil
	}
	s.put(key, value)
	return true, nil
}

// Close is a no-op.
func (s *MetadataStore) Close() error {
	return nil
}

// put writes a new version of key (caller must hold lock).
func (s *MetadataStore) put(key string, value []byte) {
	s.entries[key] = driven.Entry{
		Value:   append([]byte(nil), value...),
		Version: s.entries[key].Version + 1,
	}
}
