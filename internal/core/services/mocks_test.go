package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driven"
)

// --- Mock implementations for service testing ---

// mockFileStore implements driven.FileStore over an in-memory folder tree.
type mockFileStore struct {
	mu         sync.Mutex
	folders    map[string]domain.Folder
	children   map[string][]string // parent id -> child folder ids
	images     map[string][]domain.Object
	content    map[string][]byte
	fetchCalls []string
	listErr    error
	fetchErr   error
	listFails  map[string]error // folder id -> ListImages error
}

func newMockFileStore() *mockFileStore {
	return &mockFileStore{
		folders:   make(map[string]domain.Folder),
		children:  make(map[string][]string),
		images:    make(map[string][]domain.Object),
		content:   make(map[string][]byte),
		listFails: make(map[string]error),
	}
}

func (m *mockFileStore) addFolder(parentID, id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.folders[id] = domain.Folder{ID: id, Name: name, ParentID: parentID}
	m.children[parentID] = append(m.children[parentID], id)
}

func (m *mockFileStore) addImage(folderID, id, checksum string) domain.Object {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj := domain.Object{
		ID:        id,
		Name:      id + ".jpg",
		MIMEType:  "image/jpeg",
		Size:      int64(len(id)),
		Signature: domain.Signature{Checksum: checksum, ModifiedTime: "2024-01-01T00:00:00Z"},
		ParentID:  folderID,
	}
	m.images[folderID] = append(m.images[folderID], obj)
	m.content[id] = []byte("img:" + id)
	return obj
}

func (m *mockFileStore) touch(folderID, id, checksum string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, obj := range m.images[folderID] {
		if obj.ID == id {
			m.images[folderID][i].Signature.Checksum = checksum
		}
	}
}

func (m *mockFileStore) fetches() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.fetchCalls...)
}

func (m *mockFileStore) ListFolders(_ context.Context, parentID string) ([]domain.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	result := make([]domain.Folder, 0, len(m.children[parentID]))
	for _, id := range m.children[parentID] {
		result = append(result, m.folders[id])
	}
	return result, nil
}

func (m *mockFileStore) ListImages(_ context.Context, folderID string) ([]domain.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.listFails[folderID]; err != nil {
		return nil, err
	}
	return append([]domain.Object(nil), m.images[folderID]...), nil
}

func (m *mockFileStore) FindSubfolder(_ context.Context, parentID, name string) (domain.Folder, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.children[parentID] {
		if m.folders[id].Name == name {
			return m.folders[id], true, nil
		}
	}
	return domain.Folder{}, false, nil
}

func (m *mockFileStore) GetFolder(_ context.Context, folderID string) (*domain.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.folders[folderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &f, nil
}

func (m *mockFileStore) GetObject(_ context.Context, objectID string) (*domain.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, objs := range m.images {
		for _, obj := range objs {
			if obj.ID == objectID {
				o := obj
				return &o, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockFileStore) FetchBytes(_ context.Context, objectID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls = append(m.fetchCalls, objectID)
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	data, ok := m.content[objectID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (m *mockFileStore) InitiateUpload(context.Context, domain.UploadMetadata) (domain.UploadSession, error) {
	return domain.UploadSession{}, fmt.Errorf("not supported by mockFileStore")
}

func (m *mockFileStore) PutChunk(context.Context, domain.UploadSession, int64, int64, int64, []byte) (domain.ChunkResult, error) {
	return domain.ChunkResult{}, fmt.Errorf("not supported by mockFileStore")
}

// mockEmbedder implements driven.EmbeddingService. Vectors are derived from
// the input so different inputs produce different vectors.
type mockEmbedder struct {
	mu         sync.Mutex
	imageCalls int
	textCalls  []string
	err        error

	// When set, EmbedImage signals entered and waits for release.
	entered chan struct{}
	release chan struct{}
}

func (m *mockEmbedder) EmbedImage(_ context.Context, data []byte) ([]float32, error) {
	m.mu.Lock()
	m.imageCalls++
	err, entered, release := m.err, m.entered, m.release
	m.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	return []float32{float32(len(data)), 1, 0}, nil
}

func (m *mockEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.textCalls = append(m.textCalls, text)
	if m.err != nil {
		return nil, m.err
	}
	return []float32{0, 1, float32(len(text))}, nil
}

func (m *mockEmbedder) Dimensions() int { return 3 }

func (m *mockEmbedder) ModelName() string { return "mock-clip" }

func (m *mockEmbedder) Ping(context.Context) error { return nil }

func (m *mockEmbedder) Close() error { return nil }

func (m *mockEmbedder) images() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.imageCalls
}

// mockVectorIndex implements driven.VectorIndex and records upserts.
type mockVectorIndex struct {
	mu          sync.Mutex
	entries     map[string]domain.VectorEntry
	upsertCalls [][]domain.VectorEntry
	hits        []domain.QueryHit
	lastTopK    int
	lastFilter  map[string]string
	upsertErr   error
	queryErr    error
}

func newMockVectorIndex() *mockVectorIndex {
	return &mockVectorIndex{entries: make(map[string]domain.VectorEntry)}
}

func (m *mockVectorIndex) Upsert(_ context.Context, entries []domain.VectorEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upsertCalls = append(m.upsertCalls, append([]domain.VectorEntry(nil), entries...))
	for _, e := range entries {
		m.entries[e.ID] = e
	}
	return nil
}

func (m *mockVectorIndex) Query(_ context.Context, _ []float32, topK int, filter map[string]string) ([]domain.QueryHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTopK = topK
	m.lastFilter = filter
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.hits, nil
}

func (m *mockVectorIndex) Backend() string { return "mock" }

func (m *mockVectorIndex) Close() error { return nil }

func (m *mockVectorIndex) upserts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.upsertCalls)
}

func (m *mockVectorIndex) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// mockMetadataStore implements driven.MetadataStore with versioned entries.
// beforeCAS runs before each CompareAndSwap and may mutate the store to
// simulate a concurrent writer.
type mockMetadataStore struct {
	mu        sync.Mutex
	entries   map[string]driven.Entry
	putKeys   []string
	getErr    error
	beforeCAS func(m *mockMetadataStore)
}

func newMockMetadataStore() *mockMetadataStore {
	return &mockMetadataStore{entries: make(map[string]driven.Entry)}
}

func (m *mockMetadataStore) Get(_ context.Context, key string) (driven.Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return driven.Entry{}, false, m.getErr
	}
	e, ok := m.entries[key]
	return e, ok, nil
}

func (m *mockMetadataStore) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(key, value)
	return nil
}

func (m *mockMetadataStore) putLocked(key string, value []byte) {
	e := m.entries[key]
	m.entries[key] = driven.Entry{Value: append([]byte(nil), value...), Version: e.Version + 1}
	m.putKeys = append(m.putKeys, key)
}

func (m *mockMetadataStore) CompareAndSwap(_ context.Context, key string, expected int64, value []byte) (bool, error) {
	if m.beforeCAS != nil {
		hook := m.beforeCAS
		m.beforeCAS = nil
		hook(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[key].Version != expected {
		return false, nil
	}
	m.putLocked(key, value)
	return true, nil
}

func (m *mockMetadataStore) Close() error { return nil }

func (m *mockMetadataStore) writes(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, k := range m.putKeys {
		if k == key {
			n++
		}
	}
	return n
}

// mockMetrics implements driven.MetricsRecorder.
type mockMetrics struct {
	mu       sync.Mutex
	reindex  int
	uploads  []int64
	queries  int
	failures int
}

func (m *mockMetrics) ObserveReindex(_ *domain.ReindexResult, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reindex++
	if err != nil {
		m.failures++
	}
}

func (m *mockMetrics) ObserveUpload(bytes int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, bytes)
	if err != nil {
		m.failures++
	}
}

func (m *mockMetrics) ObserveQuery(_ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	if err != nil {
		m.failures++
	}
}

// mockSchedulerStore implements driven.SchedulerStore for testing.
type mockSchedulerStore struct {
	mu      sync.RWMutex
	tasks   map[string]*domain.ScheduledTask
	results map[string][]domain.TaskResult
	getErr  error
}

func newMockSchedulerStore() *mockSchedulerStore {
	return &mockSchedulerStore{
		tasks:   make(map[string]*domain.ScheduledTask),
		results: make(map[string][]domain.TaskResult),
	}
}

func (m *mockSchedulerStore) GetTask(_ context.Context, taskID string) (*domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	task, exists := m.tasks[taskID]
	if !exists {
		return nil, nil
	}
	taskCopy := *task
	return &taskCopy, nil
}

func (m *mockSchedulerStore) SaveTask(_ context.Context, task *domain.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	taskCopy := *task
	m.tasks[task.ID] = &taskCopy
	return nil
}

func (m *mockSchedulerStore) RecordResult(_ context.Context, result *domain.TaskResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[result.TaskID] = append(m.results[result.TaskID], *result)
	return nil
}

func (m *mockSchedulerStore) GetTaskHistory(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.results[taskID]
	results := make([]domain.TaskResult, 0, len(stored))
	for i := len(stored) - 1; i >= 0 && len(results) < limit; i-- {
		results = append(results, stored[i])
	}
	return results, nil
}

func (m *mockSchedulerStore) PruneHistory(_ context.Context, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, results := range m.results {
		if len(results) > keep {
			m.results[id] = results[len(results)-keep:]
		}
	}
	return nil
}

func (m *mockSchedulerStore) history(taskID string) []domain.TaskResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.TaskResult(nil), m.results[taskID]...)
}

// mockReindexService implements driving.ReindexService for scheduler tests.
type mockReindexService struct {
	mu      sync.Mutex
	calls   []domain.ReindexOptions
	err     error
	release chan struct{}
}

func (m *mockReindexService) Run(_ context.Context, opts domain.ReindexOptions) (*domain.ReindexResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, opts)
	release := m.release
	err := m.err
	m.mu.Unlock()
	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	return &domain.ReindexResult{RunID: "run-1", Mode: opts.Mode, Counts: domain.RunCounts{Changed: 3}}, nil
}

func (m *mockReindexService) RefreshFolders(context.Context) ([]domain.Folder, error) {
	return nil, nil
}

func (m *mockReindexService) Folders(context.Context) ([]domain.Folder, error) {
	return nil, nil
}

func (m *mockReindexService) Status(context.Context) (*domain.ReindexStatus, error) {
	return nil, nil
}

func (m *mockReindexService) History(context.Context, int) ([]domain.TaskResult, error) {
	return nil, nil
}

func (m *mockReindexService) runs() []domain.ReindexOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ReindexOptions(nil), m.calls...)
}
