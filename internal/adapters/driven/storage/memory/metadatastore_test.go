package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetadataStore(t *testing.T) {
	store := NewMetadataStore()
	require.NotNil(t, store)
	assert.NotNil(t, store.entries)
}

func TestMetadataStore_PutGet(t *testing.T) {
	ctx := context.Background()
	store := NewMetadataStore()

	value := []byte("v1")
	require.NoError(t, store.Put(ctx, "k", value))
	value[0] = 'x' // caller mutation must not leak in

	entry, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), entry.Value)
	assert.Equal(t, int64(1), entry.Version)
}

func TestMetadataStore_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := NewMetadataStore()

	ok, err := store.CompareAndSwap(ctx, "k", 0, []byte("a"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CompareAndSwap(ctx, "k", 0, []byte("b"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.CompareAndSwap(ctx, "k", 1, []byte("c"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMetadataStore_ConcurrentCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := NewMetadataStore()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.CompareAndSwap(ctx, "reindex:status", 0, []byte("x"))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
