package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

func TestQueryCmd_Use(t *testing.T) {
	assert.Equal(t, "query [text]", queryCmd.Use)
}

func TestQueryCmd_ErrorsWithoutService(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	searchService = nil

	_, err := execute(t, "query", "chair")
	assert.ErrorIs(t, err, errSearchNotConfigured)
}

func TestQueryCmd_Text(t *testing.T) {
	svc, cleanup := setupTestServices()
	defer cleanup()
	svc.search.resp = &domain.QueryResponse{
		Hits: []domain.QueryHit{{ID: "a"}, {ID: "b"}},
		Entities: []domain.EntityResult{
			{EntityID: "0007", Label: "Oak Chair", Score: 1.75, BestScore: 0.9, RepresentativeID: "a"},
		},
	}

	out, err := execute(t, "query", "oak chair", "-k", "30", "-n", "5", "--entity", "7")
	require.NoError(t, err)

	assert.Equal(t, "oak chair", svc.search.lastReq.Text)
	assert.Equal(t, 30, svc.search.lastReq.TopK)
	assert.Equal(t, 5, svc.search.lastReq.Entities)
	assert.Equal(t, map[string]string{domain.MetaEntityID: "0007"}, svc.search.lastReq.Filter)
	assert.Contains(t, out, "[1] 0007 Oak Chair  1.7500 (best 0.9000)")
	assert.Contains(t, out, "representative: a")
	assert.Contains(t, out, "2 hits ranked into 1 items.")
}

func TestQueryCmd_TextFlagAndArgConflict(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "query", "--text", "a", "b")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestQueryCmd_File(t *testing.T) {
	svc, cleanup := setupTestServices()
	defer cleanup()

	path := filepath.Join(t.TempDir(), "q.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0o600))

	out, err := execute(t, "query", "--file", path)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), svc.search.lastReq.Data)
	assert.Contains(t, out, "No matches found.")
}

func TestQueryCmd_InvalidEntity(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "query", "--object", "x", "--entity", "chair")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestQueryCmd_JSON(t *testing.T) {
	svc, cleanup := setupTestServices()
	defer cleanup()
	svc.search.resp = &domain.QueryResponse{Entities: []domain.EntityResult{{EntityID: "0001"}}}

	out, err := execute(t, "query", "--url", "https://example.com/a.jpg", "--json")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.jpg", svc.search.lastReq.URL)
	assert.Contains(t, out, `"entity_id": "0001"`)
}
