package driven

import "context"

// Entry is a stored value and its version. Versions start at 1 and grow by
// one on every write; version 0 means the key is absent.
type Entry struct {
	Value   []byte
	Version int64
}

// MetadataStore is the key-value store backing the signature store, the
// folder registry and the reindex status.
type MetadataStore interface {
	// Get returns the entry for key. ok is false if the key is absent.
	Get(ctx context.Context, key string) (entry Entry, ok bool, err error)

	// Put stores value unconditionally.
	Put(ctx context.Context, key string, value []byte) error

	// CompareAndSwap stores value only if the key's current version equals
	// expected (0 = key must be absent). It reports whether the write happened.
	CompareAndSwap(ctx context.Context, key string, expected int64, value []byte) (bool, error)

	// Close releases resources.
	Close() error
}
