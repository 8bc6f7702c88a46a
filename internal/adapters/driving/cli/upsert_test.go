package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

func TestUpsertCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, cmd := range upsertCmd.Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"folder", "object", "file"}, names)
}

func TestUpsertFolderCmd(t *testing.T) {
	svc, cleanup := setupTestServices()
	defer cleanup()
	svc.index.result = domain.DetectResult{Scanned: 4, Changed: 2}

	out, err := execute(t, "upsert", "folder", "f1")
	require.NoError(t, err)
	assert.Equal(t, "f1", svc.index.folderID)
	assert.Equal(t, domain.DetectOptions{MaxChanged: domain.Unbounded}, svc.index.folderOpts)
	assert.Contains(t, out, "Folder f1: 4 scanned, 2 changed.")
}

func TestUpsertFolderCmd_Skipped(t *testing.T) {
	svc, cleanup := setupTestServices()
	defer cleanup()
	svc.index.result = domain.DetectResult{Skipped: true}

	out, err := execute(t, "upsert", "folder", "f1", "--dry-run", "--max-changed", "3")
	require.NoError(t, err)
	assert.Equal(t, domain.DetectOptions{MaxChanged: 3, DryRun: true}, svc.index.folderOpts)
	assert.Contains(t, out, "skipped")
}

func TestUpsertObjectCmd(t *testing.T) {
	svc, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "upsert", "object", "img-1")
	require.NoError(t, err)
	assert.Equal(t, "img-1", svc.index.objectID)
	assert.Contains(t, out, "Object img-1 indexed.")
}

func TestUpsertObjectCmd_Error(t *testing.T) {
	svc, cleanup := setupTestServices()
	defer cleanup()
	svc.index.err = domain.ErrEmbeddingUnavailable

	_, err := execute(t, "upsert", "object", "img-1")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestUpsertFileCmd(t *testing.T) {
	svc, cleanup := setupTestServices()
	defer cleanup()

	path := filepath.Join(t.TempDir(), "chair-front.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o600))

	out, err := execute(t, "upsert", "file", path, "--entity", "12", "--label", "Chair")
	require.NoError(t, err)
	assert.Equal(t, domain.UpsertBytesRequest{
		ID: "chair-front", EntityID: "12", Label: "Chair", Data: []byte("png"),
	}, svc.index.bytesReq)
	assert.Contains(t, out, "indexed as chair-front")
}

func TestUpsertFileCmd_RequiresEntity(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "upsert", "file", "x.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"entity" not set`)
}
