package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-vision/internal/logger"
)

// historyRetention is the number of task results kept per task.
const historyRetention = 100

// Scheduler fires periodic stateful reindex passes with fixed, conservative
// budgets. Each tick is fire-and-forget; a tick that finds the previous pass
// still running is recorded as skipped.
type Scheduler struct {
	config  domain.SchedulerConfig
	store   driven.SchedulerStore
	reindex driving.ReindexService

	tickEvery time.Duration
	inFlight  atomic.Bool

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler with configuration.
// store may be nil, in which case no task history is kept.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	reindex driving.ReindexService,
) *Scheduler {
	return &Scheduler{
		config:    config,
		store:     store,
		reindex:   reindex,
		tickEvery: time.Minute,
	}
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	if !s.config.Enabled || !s.config.Reindex.Enabled {
		s.mu.Unlock()
		logger.Info("Scheduler disabled")
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if err := s.ensureTask(ctx); err != nil {
		logger.Warn("scheduler: failed to initialise tasks: %v", err)
	}

	return s.run(ctx)
}

// Stop gracefully shuts down the scheduler and waits for an in-flight pass.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// Trigger fires one scheduled pass without waiting for it. It reports
// false if a scheduled pass is still running.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		logger.Warn("scheduler: previous reindex pass still running, skipping tick")
		s.record(ctx, &domain.TaskResult{
			TaskID:    domain.TaskIDReindex,
			StartedAt: time.Now(),
			EndedAt:   time.Now(),
			Error:     domain.ErrRunInProgress.Error(),
		})
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)
		s.runReindex(ctx)
	}()
	return true
}

// ensureTask creates or updates the reindex task in the store.
func (s *Scheduler) ensureTask(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	cfg := s.config.Reindex
	task, err := s.store.GetTask(ctx, domain.TaskIDReindex)
	if err != nil {
		return err
	}

	if task == nil {
		task = &domain.ScheduledTask{
			ID:       domain.TaskIDReindex,
			Name:     "Round-robin reindex",
			Interval: cfg.Interval,
			Enabled:  cfg.Enabled,
			NextRun:  time.Now(),
		}
	} else {
		if task.Interval != cfg.Interval {
			task.Interval = cfg.Interval
			task.NextRun = time.Now().Add(cfg.Interval)
		}
		task.Enabled = cfg.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context) error {
	s.checkAndTrigger(ctx)

	ticker := time.NewTicker(s.tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger fires the reindex task when it is due. Without a store
// every tick interval is treated as due.
func (s *Scheduler) checkAndTrigger(ctx context.Context) {
	if s.store == nil {
		s.Trigger(ctx)
		return
	}

	task, err := s.store.GetTask(ctx, domain.TaskIDReindex)
	if err != nil {
		logger.Warn("scheduler: failed to load task: %v", err)
		return
	}
	if task == nil || !task.Enabled {
		return
	}
	now := time.Now()
	if task.NextRun.IsZero() || !task.NextRun.After(now) {
		s.Trigger(ctx)
	}
}

// runReindex executes one stateful pass and records its outcome.
func (s *Scheduler) runReindex(ctx context.Context) {
	cfg := s.config.Reindex
	result := &domain.TaskResult{
		TaskID:    domain.TaskIDReindex,
		StartedAt: time.Now(),
	}

	run, err := s.reindex.Run(ctx, domain.ReindexOptions{
		Mode:         domain.ModeStateful,
		LimitFolders: cfg.LimitFolders,
		MaxChanged:   cfg.MaxChanged,
	})

	result.EndedAt = time.Now()
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Success = true
		result.RunID = run.RunID
		result.ItemsProcessed = run.Counts.Changed
	}

	if s.store != nil {
		task, getErr := s.store.GetTask(ctx, domain.TaskIDReindex)
		if getErr == nil && task != nil {
			task.LastRun = result.StartedAt
			task.NextRun = result.EndedAt.Add(task.Interval)
			task.LastError = result.Error
			if result.Success {
				task.LastSuccess = result.EndedAt
			}
			if saveErr := s.store.SaveTask(ctx, task); saveErr != nil {
				logger.Warn("scheduler: failed to save task %s: %v", task.ID, saveErr)
			}
		}
	}
	s.record(ctx, result)
}

// record logs a task result and prunes old history.
func (s *Scheduler) record(ctx context.Context, result *domain.TaskResult) {
	if s.store == nil {
		return
	}
	if err := s.store.RecordResult(ctx, result); err != nil {
		logger.Warn("scheduler: failed to record result for %s: %v", result.TaskID, err)
	}
	if err := s.store.PruneHistory(ctx, historyRetention); err != nil {
		logger.Warn("scheduler: failed to prune history: %v", err)
	}
}
