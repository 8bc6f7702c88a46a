package domain

import "time"

// ScheduledTask represents a recurring background task.
type ScheduledTask struct {
	// ID is the unique identifier for the task.
	ID string

	// Name is a human-readable name for the task.
	Name string

	// Interval defines how often the task should run.
	Interval time.Duration

	// LastRun is when the task last ran.
	LastRun time.Time

	// NextRun is when the task should run next.
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// LastSuccess is when the task last completed successfully.
	LastSuccess time.Time

	// Enabled indicates whether the task is active.
	Enabled bool
}

// TaskResult represents the outcome of a task execution.
type TaskResult struct {
	// TaskID identifies which task was run.
	TaskID string `json:"task_id"`

	// RunID correlates the result with the reindex run it executed.
	RunID string `json:"run_id,omitempty"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	// Success indicates whether the task completed without error.
	Success bool `json:"success"`

	// Error contains the error message if Success is false.
	Error string `json:"error,omitempty"`

	// ItemsProcessed is the number of changed objects re-embedded.
	ItemsProcessed int `json:"items_processed"`
}

// Duration returns how long the run took.
func (r TaskResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler.
	Enabled bool

	// Reindex configures the periodic stateful reindex pass.
	Reindex ReindexTaskConfig
}

// ReindexTaskConfig holds the fixed, conservative budgets of a scheduled tick.
type ReindexTaskConfig struct {
	Enabled      bool
	Interval     time.Duration
	LimitFolders int
	MaxChanged   int
}

// DefaultSchedulerConfig returns sensible defaults for the scheduler.
// Budgets are small so one tick stays well inside a host invocation limit.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		Reindex: ReindexTaskConfig{
			Enabled:      true,
			Interval:     15 * time.Minute,
			LimitFolders: 25,
			MaxChanged:   40,
		},
	}
}

// Task IDs for built-in tasks.
const (
	TaskIDReindex = "reindex"
)
