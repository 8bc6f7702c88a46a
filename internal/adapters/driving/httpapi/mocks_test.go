package httpapi

import (
	"context"
	"io"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

type mockReindexService struct {
	history  []domain.TaskResult
	historyN int
	result   *domain.ReindexResult
	status   *domain.ReindexStatus
	folders  []domain.Folder
	err      error
	lastOpts domain.ReindexOptions
	refresh  int
}

func (m *mockReindexService) Run(_ context.Context, opts domain.ReindexOptions) (*domain.ReindexResult, error) {
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockReindexService) RefreshFolders(_ context.Context) ([]domain.Folder, error) {
	m.refresh++
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

type mockIndexService struct {
	err        error
	folderOpts domain.DetectOptions
	objectID   string
	bytesReq   domain.UpsertBytesRequest
}

func (m *mockIndexService) UpsertFolder(
	_ context.Context,
	_ string,
	opts domain.DetectOptions,
) (domain.DetectResult, error) {
	m.folderOpts = opts
	return domain.DetectResult{Scanned: 3, Changed: 1}, m.err
}

func (m *mockIndexService) UpsertObject(_ context.Context, objectID string) error {
	m.objectID = objectID
	return m.err
}

func (m *mockIndexService) UpsertBytes(_ context.Context, req domain.UpsertBytesRequest) error {
	m.bytesReq = req
	return m.err
}

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
	return m.resp, nil
}

type mockUploadService struct {
	err      error
	lastMeta domain.UploadMetadata
	body     []byte
}

func (m *mockUploadService) Upload(_ context.Context, meta domain.UploadMetadata, r io.Reader) (*domain.Object, error) {
	m.lastMeta = meta
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.body = data
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Object{ID: "new-1", Name: meta.Name, Size: int64(len(data))}, nil
}
