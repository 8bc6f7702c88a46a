package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

func readRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleFoldersResource(t *testing.T) {
	reindex := &mockReindexService{folders: []domain.Folder{
		{ID: "f1", Name: "0001 Chair"},
		{ID: "f2", Name: "0002 Table"},
	}}
	server := newTestServer(t, &Ports{Search: &mockSearchService{}, Reindex: reindex})

	result, err := server.handleFoldersResource(context.Background(), readRequest(uriScheme+"folders"))
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "application/json", result.Contents[0].MIMEType)

	var folders []struct {
		Index int    `json:"index"`
		ID    string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &folders))
	require.Len(t, folders, 2)
	assert.Equal(t, 1, folders[1].Index)
	assert.Equal(t, "f2", folders[1].ID)
}

func TestServer_handleFoldersResource_Error(t *testing.T) {
	reindex := &mockReindexService{err: errors.New("kv down")}
	server := newTestServer(t, &Ports{Search: &mockSearchService{}, Reindex: reindex})

	_, err := server.handleFoldersResource(context.Background(), readRequest(uriScheme+"folders"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kv down")
}

func TestServer_handleStatusResource(t *testing.T) {
	t.Run("null before first run", func(t *testing.T) {
		server := newTestServer(t, &Ports{Search: &mockSearchService{}, Reindex: &mockReindexService{}})

		result, err := server.handleStatusResource(context.Background(), readRequest(uriScheme+"status"))
		require.NoError(t, err)
		assert.Equal(t, "null", result.Contents[0].Text)
	})

	t.Run("cursor", func(t *testing.T) {
		reindex := &mockReindexService{status: &domain.ReindexStatus{Cursor: 6, TotalFolders: 10}}
		server := newTestServer(t, &Ports{Search: &mockSearchService{}, Reindex: reindex})

		result, err := server.handleStatusResource(context.Background(), readRequest(uriScheme+"status"))
		require.NoError(t, err)

		var status domain.ReindexStatus
		require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &status))
		assert.Equal(t, 6, status.Cursor)
	})
}
