package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-vision/internal/core/ports/driven"
)

// kvStore implements driven.MetadataStore over the kv table. Every write
// bumps the row's version.
type kvStore struct {
	store *Store
}

var _ driven.MetadataStore = (*kvStore)(nil)

// Get returns the value and version stored under key.
func (s *kvStore) Get(ctx context.Context, key string) (driven.Entry, bool, error) {
	var entry driven.Entry
	err := s.store.db.QueryRowContext(ctx,
		"SELECT value, version FROM kv WHERE key = ?", key,
	).Scan(&entry.Value, &entry.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return driven.Entry{}, false, nil
	}
	if err != nil {
		return driven.Entry{}, false, fmt.Errorf("reading key %s: %w", key, err)
	}
	return entry, true, nil
}

// Put stores value unconditionally.
func (s *kvStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, version, updated_at)
		VALUES (?, ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			version = kv.version + 1,
			updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("writing key %s: %w", key, err)
	}
	return nil
}

// CompareAndSwap writes value only if the stored version equals expected.
// expected 0 means the key must not exist yet.
func (s *kvStore) CompareAndSwap(ctx context.Context, key string, expected int64, value []byte) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if expected == 0 {
		res, err = s.store.db.ExecContext(ctx, `
			INSERT INTO kv (key, value, version, updated_at)
			VALUES (?, ?, 1, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO NOTHING
		`, key, value)
	} else {
		res, err = s.store.db.ExecContext(ctx, `
			UPDATE kv SET value = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
			WHERE key = ? AND version = ?
		`, value, key, expected)
	}
	if err != nil {
		return false, fmt.Errorf("swapping key %s: %w", key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("swapping key %s: %w", key, err)
	}
	return n == 1, nil
}

// Close is a no-op; the owning Store closes the database.
func (s *kvStore) Close() error {
	return nil
}
