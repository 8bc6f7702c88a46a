// Package bolt provides a bbolt-backed MetadataStore, an alternative to the
// SQLite store for single-process deployments.
package bolt

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/custodia-labs/sercha-vision/internal/core/ports/driven"
)

// DatabaseFile is the file name of the database inside the data directory.
const DatabaseFile = "vision.bolt"

var bucketKV = []byte("kv")

// versionSize is the length of the version prefix stored before each value.
const versionSize = 8

// Store implements driven.MetadataStore over one bbolt bucket. Each record
// is an 8-byte big-endian version followed by the value.
type Store struct {
	db *bbolt.DB
}

var _ driven.MetadataStore = (*Store)(nil)

// NewStore opens (or creates) the database in dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dataDir, DatabaseFile), 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketKV)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating kv bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Get returns the entry stored under key.
func (s *Store) Get(_ context.Context, key string) (driven.Entry, bool, error) {
	var (
		entry driven.Entry
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketKV).Get([]byte(key))
		if raw == nil {
			return nil
		}
		e, err := decodeEntry(raw)
		if err != nil {
			return fmt.Errorf("key %s: %w", key, err)
		}
		entry, found = e, true
		return nil
	})
	if err != nil {
		return driven.Entry{}, false, err
	}
	return entry, found, nil
}

// Put stores value unconditionally and bumps the version.
func (s *Store) Put(_ context.Context, key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketKV)
		current, err := currentVersion(b, key)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), encodeEntry(current+1, value))
	})
}

// CompareAndSwap writes value only if the stored version equals expected.
func (s *Store) CompareAndSwap(_ context.Context, key string, expected int64, value []byte) (bool, error) {
	swapped := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketKV)
		current, err := currentVersion(b, key)
		if err != nil {
			return err
		}
		if current != expected {
			return nil
		}
		swapped = true
		return b.Put([]byte(key), encodeEntry(current+1, value))
	})
	if err != nil {
		return false, err
	}
	return swapped, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func currentVersion(b *bbolt.Bucket, key string) (int64, error) {
	raw := b.Get([]byte(key))
	if raw == nil {
		return 0, nil
	}
	e, err := decodeEntry(raw)
	if err != nil {
		return 0, fmt.Errorf("key %s: %w", key, err)
	}
	return e.Version, nil
}

func encodeEntry(version int64, value []byte) []byte {
	buf := make([]byte, versionSize+len(value))
	binary.BigEndian.PutUint64(buf, uint64(version))
	copy(buf[versionSize:], value)
	return buf
}

// decodeEntry copies out of raw, which bbolt only keeps valid inside the transaction.
func decodeEntry(raw []byte) (driven.Entry, error) {
	if len(raw) < versionSize {
		return driven.Entry{}, fmt.Errorf("corrupt record of %d bytes", len(raw))
	}
	value := make([]byte, len(raw)-versionSize)
	copy(value, raw[versionSize:])
	return driven.Entry{
		Value:   value,
		Version: int64(binary.BigEndian.Uint64(raw)),
	}, nil
}
