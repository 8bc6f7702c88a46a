package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-vision/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-vision/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestOpenStores(t *testing.T) {
	for _, backend := range []string{file.MetadataSQLite, file.MetadataBolt, file.MetadataMemory} {
		t.Run(backend, func(t *testing.T) {
			st, err := openStores(file.MetadataConfig{Backend: backend, DataDir: t.TempDir()})
			require.NoError(t, err)
			assert.NotNil(t, st.metadata)
			assert.Equal(t, backend == file.MetadataSQLite, st.local != nil)
			assert.Equal(t, backend == file.MetadataSQLite, st.scheduler != nil)
			assert.NoError(t, st.close())
		})
	}

	_, err := openStores(file.MetadataConfig{Backend: "redis"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestBootstrap_RequiresDrive(t *testing.T) {
	path := writeConfig(t, `
[metadata]
backend = "memory"
`)
	_, err := bootstrap(context.Background(), cli.BootstrapOptions{ConfigPath: path, LogOverridden: true})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "drive.root_folder_id")
}

func TestBootstrap_WithoutEmbedding(t *testing.T) {
	path := writeConfig(t, `
[drive]
root_folder_id = "root"
access_token = "token"

[metadata]
backend = "memory"

[server]
addr = ":9191"
`)
	svc, err := bootstrap(context.Background(), cli.BootstrapOptions{ConfigPath: path, LogOverridden: true})
	require.NoError(t, err)
	defer svc.Close()

	assert.NotNil(t, svc.Reindex)
	assert.NotNil(t, svc.Search)
	assert.NotNil(t, svc.Upload)
	assert.NotNil(t, svc.Scheduler)
	assert.NotNil(t, svc.Metrics)
	assert.Equal(t, ":9191", svc.ServerAddr)
	assert.Equal(t, "root", svc.UploadParentID)

	// Without an embedding service nothing can be embedded.
	assert.ErrorIs(t, svc.Index.UpsertObject(context.Background(), "img-1"), domain.ErrEmbeddingUnavailable)

	_, err = svc.Search.Query(context.Background(), domain.QueryRequest{Text: "chair"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}
