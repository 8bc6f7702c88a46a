package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-vision/internal/logger"
)

// Ensure ReindexService implements the interface.
var _ driving.ReindexService = (*ReindexService)(nil)

const (
	statusKey = "reindex:status"

	// statefulRunKey serialises stateful runs within one process.
	statefulRunKey = "reindex:stateful"
)

// ReindexService is the round-robin scheduler. It walks the folder registry
// in bounded slices, resuming from a persisted cursor, so that repeated runs
// eventually revisit every folder.
type ReindexService struct {
	store        driven.MetadataStore
	files        driven.FileStore
	registry     *FolderRegistry
	detector     *ChangeDetector
	metrics      driven.MetricsRecorder
	history      driven.SchedulerStore
	rootFolderID string

	runs     singleflight.Group
	activeMu sync.Mutex
	active   *domain.ReindexOptions
	now      func() time.Time
}

// statefulRun is the value shared with callers joining an in-flight run.
type statefulRun struct {
	opts   domain.ReindexOptions
	result *domain.ReindexResult
}

// NewReindexService creates a reindex service. metrics may be nil.
func NewReindexService(
	store driven.MetadataStore,
	files driven.FileStore,
	registry *FolderRegistry,
	detector *ChangeDetector,
	metrics driven.MetricsRecorder,
	rootFolderID string,
) *ReindexService {
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	return &ReindexService{
		store:        store,
		files:        files,
		registry:     registry,
		detector:     detector,
		metrics:      metrics,
		rootFolderID: rootFolderID,
		now:          time.Now,
	}
}

// Run executes one reindex pass.
func (s *ReindexService) Run(ctx context.Context, opts domain.ReindexOptions) (*domain.ReindexResult, error) {
	if opts.LimitFolders == 0 {
		return nil, domain.ValidationError("limit_folders", "must be positive or unbounded")
	}
	if opts.Start < 0 {
		return nil, domain.ValidationError("start", "must not be negative")
	}

	started := s.now()
	var (
		result *domain.ReindexResult
		err    error
	)
	switch opts.Mode {
	case "", domain.ModeStateful:
		opts.Mode = domain.ModeStateful
		if opts.DryRun {
			// Dry runs never commit, so they need no serialisation.
			result, err = s.runStateful(ctx, opts)
			break
		}
		result, err = s.runSerialised(ctx, opts)
	case domain.ModeStateless:
		result, err = s.runStateless(ctx, opts)
	default:
		return nil, domain.ValidationError("mode", fmt.Sprintf("unknown mode %q", opts.Mode))
	}

	s.metrics.ObserveReindex(result, s.now().Sub(started), err)
	if err != nil {
		logger.Error("Reindex run failed: %v", err)
		return nil, err
	}
	logger.Info("Reindex %s run %s: folders=%d scanned=%d changed=%d next=%d/%d",
		result.Mode, result.RunID, result.Counts.FoldersVisited, result.Counts.Scanned,
		result.Counts.Changed, result.NextCursor, result.TotalFolders)
	return result, nil
}

// runSerialised runs a committing stateful pass. A concurrent caller with
// the same options joins the in-flight run and shares its result; one with
// different options gets ErrRunInProgress.
func (s *ReindexService) runSerialised(ctx context.Context, opts domain.ReindexOptions) (*domain.ReindexResult, error) {
	if active, ok := s.activeOptions(); ok && active != opts {
		return nil, rejectJoin(active, opts)
	}

	v, err, shared := s.runs.Do(statefulRunKey, func() (any, error) {
		s.setActive(&opts)
		defer s.setActive(nil)
		result, err := s.runStateful(ctx, opts)
		return statefulRun{opts: opts, result: result}, err
	})
	if err != nil {
		return nil, err
	}
	run := v.(statefulRun)
	if shared {
		if run.opts != opts {
			return nil, rejectJoin(run.opts, opts)
		}
		logger.Debug("Joined in-flight stateful reindex run %s", run.result.RunID)
	}
	return run.result, nil
}

func (s *ReindexService) activeOptions() (domain.ReindexOptions, bool) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	if s.active == nil {
		return domain.ReindexOptions{}, false
	}
	return *s.active, true
}

func (s *ReindexService) setActive(opts *domain.ReindexOptions) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	if opts == nil {
		s.active = nil
		return
	}
	copied := *opts
	s.active = &copied
}

func rejectJoin(active, requested domain.ReindexOptions) error {
	logger.Warn("Stateful reindex already running with limit=%d max_changed=%d; rejecting limit=%d max_changed=%d",
		active.LimitFolders, active.MaxChanged, requested.LimitFolders, requested.MaxChanged)
	return fmt.Errorf("stateful run with limit=%d max_changed=%d: %w",
		active.LimitFolders, active.MaxChanged, domain.ErrRunInProgress)
}

// runStateful advances the persisted cursor. The status is only committed
// when every visited folder succeeded, so a failed run retries the same window.
func (s *ReindexService) runStateful(ctx context.Context, opts domain.ReindexOptions) (*domain.ReindexResult, error) {
	folders, err := s.registry.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(folders) == 0 {
		folders, err = s.registry.Refresh(ctx)
		if err != nil {
			return nil, err
		}
	}

	status, version, err := s.loadStatus(ctx)
	if err != nil {
		return nil, err
	}

	total := len(folders)
	start := status.ValidCursor(total)
	result, err := s.visit(ctx, folders, start, opts)
	if err != nil {
		return nil, err
	}
	result.Mode = domain.ModeStateful

	if opts.DryRun {
		return result, nil
	}

	next := domain.ReindexStatus{
		LastRun:      s.now().UTC(),
		Cursor:       result.NextCursor,
		TotalFolders: total,
		Counts:       result.Counts,
		RunID:        result.RunID,
	}
	if err := s.commitStatus(ctx, version, next); err != nil {
		return nil, err
	}
	return result, nil
}

// runStateless processes [start, start+limit) of a freshly listed folder
// list, clamped to its end, and persists no scheduler state.
func (s *ReindexService) runStateless(ctx context.Context, opts domain.ReindexOptions) (*domain.ReindexResult, error) {
	folders, err := ListSortedFolders(ctx, s.files, s.rootFolderID)
	if err != nil {
		return nil, err
	}
	start := 0
	if len(folders) > 0 {
		start = opts.Start % len(folders)
	}
	result, err := s.visit(ctx, folders, start, opts)
	if err != nil {
		return nil, err
	}
	result.Mode = domain.ModeStateless
	return result, nil
}

// visit runs change detection over up to opts.LimitFolders folders from
// start. A slice never crosses the end of the list; the cursor wraps to 0
// instead, so ceil(total/limit) unbounded runs sweep every folder and land
// back on the starting cursor. The cursor moves past every visited folder
// whether or not it produced changes.
func (s *ReindexService) visit(
	ctx context.Context,
	folders []domain.Folder,
	start int,
	opts domain.ReindexOptions,
) (*domain.ReindexResult, error) {
	total := len(folders)
	result := &domain.ReindexResult{
		RunID:        uuid.NewString(),
		Start:        start,
		NextCursor:   start,
		TotalFolders: total,
		DryRun:       opts.DryRun,
		Folders:      []domain.FolderReport{},
	}
	if total == 0 {
		return result, nil
	}

	limit := opts.LimitFolders
	if limit < 0 || limit > total {
		limit = total
	}
	if start+limit > total {
		limit = total - start
	}

	budgetSpent := func() bool {
		return opts.MaxChanged >= 0 && result.Counts.Changed >= opts.MaxChanged
	}

	for i := 0; i < limit; i++ {
		if budgetSpent() {
			result.StoppedByBudget = true
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pos := (start + i) % total
		folder := folders[pos]
		target := TargetFromFolder(folder)

		remaining := domain.Unbounded
		if opts.MaxChanged >= 0 {
			remaining = opts.MaxChanged - result.Counts.Changed
		}
		res, err := s.detector.Detect(ctx, target, domain.DetectOptions{
			MaxChanged: remaining,
			DryRun:     opts.DryRun,
		})
		if err != nil {
			return nil, fmt.Errorf("reindex folder %s (%s): %w", folder.ID, folder.Name, err)
		}

		result.Counts.Add(res)
		result.Folders = append(result.Folders, domain.FolderReport{
			FolderID:     folder.ID,
			Name:         folder.Name,
			EntityID:     target.EntityID,
			DetectResult: res,
		})
		result.NextCursor = (pos + 1) % total

		if budgetSpent() && i < limit-1 {
			result.StoppedByBudget = true
			break
		}
	}
	return result, nil
}

// RefreshFolders relists the collection root and replaces the registry.
func (s *ReindexService) RefreshFolders(ctx context.Context) ([]domain.Folder, error) {
	return s.registry.Refresh(ctx)
}

// SetHistory attaches the store scheduled runs are recorded in.
func (s *ReindexService) SetHistory(store driven.SchedulerStore) {
	s.history = store
}

// History returns recent scheduled runs, newest first.
func (s *ReindexService) History(ctx context.Context, limit int) ([]domain.TaskResult, error) {
	if limit <= 0 {
		return nil, domain.ValidationError("limit", "must be positive")
	}
	if s.history == nil {
		return []domain.TaskResult{}, nil
	}
	results, err := s.history.GetTaskHistory(ctx, domain.TaskIDReindex, limit)
	if err != nil {
		return nil, fmt.Errorf("load run history: %w", err)
	}
	if results == nil {
		results = []domain.TaskResult{}
	}
	return results, nil
}

// Folders returns the persisted folder registry.
func (s *ReindexService) Folders(ctx context.Context) ([]domain.Folder, error) {
	return s.registry.Load(ctx)
}

// Status returns the persisted reindex status, or nil if none exists.
func (s *ReindexService) Status(ctx context.Context) (*domain.ReindexStatus, error) {
	status, version, err := s.loadStatus(ctx)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, nil
	}
	return status, nil
}

// loadStatus reads the status and its version. An absent or undecodable
// status yields a zero status so the cursor restarts at 0.
func (s *ReindexService) loadStatus(ctx context.Context) (*domain.ReindexStatus, int64, error) {
	entry, ok, err := s.store.Get(ctx, statusKey)
	if err != nil {
		return nil, 0, fmt.Errorf("load reindex status: %w", err)
	}
	if !ok {
		return &domain.ReindexStatus{}, 0, nil
	}
	var status domain.ReindexStatus
	if err := json.Unmarshal(entry.Value, &status); err != nil {
		logger.Warn("Discarding undecodable reindex status: %v", err)
		return &domain.ReindexStatus{}, entry.Version, nil
	}
	return &status, entry.Version, nil
}

// commitStatus writes the status only if nobody else committed since it was read.
func (s *ReindexService) commitStatus(ctx context.Context, version int64, status domain.ReindexStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode reindex status: %w", err)
	}
	swapped, err := s.store.CompareAndSwap(ctx, statusKey, version, data)
	if err != nil {
		return fmt.Errorf("save reindex status: %w", err)
	}
	if !swapped {
		return fmt.Errorf("commit cursor %d: %w", status.Cursor, domain.ErrStatusConflict)
	}
	return nil
}

// IsConflict reports whether err means another run won the cursor.
func IsConflict(err error) bool {
	return errors.Is(err, domain.ErrStatusConflict) || errors.Is(err, domain.ErrRunInProgress)
}
