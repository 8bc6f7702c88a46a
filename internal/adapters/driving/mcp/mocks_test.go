package mcp

import (
	"context"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	resp    *domain.QueryResponse
	err     error
	lastReq domain.QueryRequest
}

func (m *mockSearchService) Query(_ context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	if m.resp == nil {
		return &domain.QueryResponse{}, nil
	}
	return m.resp, nil
}

// mockReindexService is a mock implementation of driving.ReindexService.
type mockReindexService struct {
	history  []domain.TaskResult
	historyN int
	result   *domain.ReindexResult
	status   *domain.ReindexStatus
	folders  []domain.Folder
	err      error
	lastOpts domain.ReindexOptions
}

func (m *mockReindexService) Run(_ context.Context, opts domain.ReindexOptions) (*domain.ReindexResult, error) {
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockReindexService) RefreshFolders(_ context.Context) ([]domain.Folder, error) {
	return m.folders, m.err
}

func (m *mockReindexService) Folders(_ context.Context) ([]domain.Folder, error) {
	return m.folders, m.err
}

func (m *mockReindexService) Status(_ context.Context) (*domain.ReindexStatus, error) {
	return m.status, m.err
}

func (m *mockReindexService) History(_ context.Context, limit int) ([]domain.TaskResult, error) {
	m.historyN = limit
	if len(m.history) > limit {
		return m.history[:limit], m.err
	}
	return m.history, m.err
}

// mockIndexService is a mock implementation of driving.IndexService.
type mockIndexService struct {
	err      error
	upserted []string
}

func (m *mockIndexService) UpsertFolder(
	_ context.Context,
	_ string,
	_ domain.DetectOptions,
) (domain.DetectResult, error) {
	return domain.DetectResult{}, m.err
}

func (m *mockIndexService) UpsertObject(_ context.Context, objectID string) error {
	if m.err != nil {
		return m.err
	}
	m.upserted = append(m.upserted, objectID)
	return nil
}

func (m *mockIndexService) UpsertBytes(_ context.Context, _ domain.UpsertBytesRequest) error {
	return m.err
}
