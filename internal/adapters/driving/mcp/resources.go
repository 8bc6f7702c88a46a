package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for resources.
	uriScheme = "sercha-vision://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	if s.ports.Reindex == nil {
		return
	}

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "folders",
		Name:        "folders",
		Description: "The folder registry in cursor order",
		MIMEType:    "application/json",
	}, s.handleFoldersResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "status",
		Name:        "status",
		Description: "The persisted reindex status",
		MIMEType:    "application/json",
	}, s.handleStatusResource)
}

// handleFoldersResource returns the folder registry.
func (s *Server) handleFoldersResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	folders, err := s.ports.Reindex.Folders(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading folders: %w", err)
	}

	// Index is the folder's cursor position.
	type folderInfo struct {
		Index int    `json:"index"`
		ID    string `json:"id"`
		Name  string `json:"name"`
	}

	infos := make([]folderInfo, len(folders))
	for i, f := range folders {
		infos[i] = folderInfo{Index: i, ID: f.ID, Name: f.Name}
	}
	return jsonResource(req.Params.URI, infos)
}

// handleStatusResource returns the reindex status, or null before the first run.
func (s *Server) handleStatusResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	status, err := s.ports.Reindex.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading status: %w", err)
	}
	return jsonResource(req.Params.URI, status)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
