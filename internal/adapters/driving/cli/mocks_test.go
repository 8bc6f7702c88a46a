package cli

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

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
	runs     int
}

func (m *mockReindexService) Run(_ context.Context, opts domain.ReindexOptions) (*domain.ReindexResult, error) {
	m.runs++
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &domain.ReindexResult{Mode: opts.Mode, DryRun: opts.DryRun}, nil
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

type mockIndexService struct {
	err        error
	folderID   string
	folderOpts domain.DetectOptions
	objectID   string
	bytesReq   domain.UpsertBytesRequest
	result     domain.DetectResult
}

func (m *mockIndexService) UpsertFolder(
	_ context.Context,
	folderID string,
	opts domain.DetectOptions,
) (domain.DetectResult, error) {
	m.folderID = folderID
	m.folderOpts = opts
	return m.result, m.err
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
	if m.resp == nil {
		return &domain.QueryResponse{}, nil
	}
	return m.resp, nil
}

type mockUploadService struct {
	err   error
	metas []domain.UploadMetadata
	body  []byte
}

func (m *mockUploadService) Upload(_ context.Context, meta domain.UploadMetadata, r io.Reader) (*domain.Object, error) {
	m.metas = append(m.metas, meta)
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.body = data
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Object{ID: "obj-1", Name: meta.Name, Size: int64(len(data))}, nil
}

type testServices struct {
	reindex *mockReindexService
	index   *mockIndexService
	search  *mockSearchService
	upload  *mockUploadService
}

// setupTestServices installs mock services and returns a cleanup function
// restoring the previous ones.
func setupTestServices() (*testServices, func()) {
	oldReindex, oldIndex, oldSearch, oldUpload := reindexService, indexService, searchService, uploadService
	oldParent, oldBootstrap := uploadParentID, bootstrap

	svc := &testServices{
		reindex: &mockReindexService{},
		index:   &mockIndexService{},
		search:  &mockSearchService{},
		upload:  &mockUploadService{},
	}
	reindexService = svc.reindex
	indexService = svc.index
	searchService = svc.search
	uploadService = svc.upload
	uploadParentID = "inbox"
	bootstrap = nil

	return svc, func() {
		reindexService, indexService, searchService, uploadService = oldReindex, oldIndex, oldSearch, oldUpload
		uploadParentID, bootstrap = oldParent, oldBootstrap
	}
}

// execute runs the root command with args and returns its combined output.
// Flags are reset afterwards so values do not leak between tests.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
