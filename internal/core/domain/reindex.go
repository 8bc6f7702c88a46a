package domain

import "time"

// Unbounded disables a change or folder budget when passed as a limit.
const Unbounded = -1

// ReindexMode selects how the round-robin scheduler tracks its position.
type ReindexMode string

const (
	// ModeStateful reads and commits the persisted cursor.
	ModeStateful ReindexMode = "stateful"
	// ModeStateless processes an explicit slice of a freshly listed,
	// name-sorted folder list and persists nothing.
	ModeStateless ReindexMode = "stateless"
)

// ReindexOptions bounds one reindex pass.
type ReindexOptions struct {
	// Mode is stateful unless set otherwise.
	Mode ReindexMode

	// LimitFolders is the maximum number of folders visited.
	LimitFolders int

	// MaxChanged is the change budget across the whole run.
	// Unbounded (negative) disables it.
	MaxChanged int

	// Start is the slice offset for stateless runs.
	Start int

	// DryRun embeds and upserts as usual but records no signatures and
	// leaves the status and cursor untouched.
	DryRun bool
}

// RunCounts accumulates counters across one run.
type RunCounts struct {
	FoldersVisited int `json:"folders_visited"`
	Scanned        int `json:"scanned"`
	Changed        int `json:"changed"`
	SkippedFolders int `json:"skipped_folders"`
}

// Add folds a folder's detection result into the run counters.
func (c *RunCounts) Add(r DetectResult) {
	c.FoldersVisited++
	c.Scanned += r.Scanned
	c.Changed += r.Changed
	if r.Skipped {
		c.SkippedFolders++
	}
}

// ReindexStatus is the persisted state of the stateful scheduler.
// Cursor is always in [0, TotalFolders) and wraps modulo TotalFolders.
type ReindexStatus struct {
	LastRun      time.Time `json:"last_run"`
	Cursor       int       `json:"cursor"`
	TotalFolders int       `json:"total_folders"`
	Counts       RunCounts `json:"counts"`
	RunID        string    `json:"run_id,omitempty"`
}

// ValidCursor returns the cursor if it addresses a folder in a registry of
// size total, or 0 otherwise.
func (s *ReindexStatus) ValidCursor(total int) int {
	if s == nil || total <= 0 || s.Cursor < 0 || s.Cursor >= total {
		return 0
	}
	return s.Cursor
}

// DetectOptions bounds a single-folder change detection.
type DetectOptions struct {
	// MaxChanged caps the number of changed objects processed.
	// Unbounded (negative) disables it.
	MaxChanged int

	// DryRun suppresses the seen-record write.
	DryRun bool
}

// DetectResult is the outcome of one folder's change detection.
type DetectResult struct {
	Scanned int  `json:"scanned"`
	Changed int  `json:"changed"`
	Skipped bool `json:"skipped"`
}

// FolderReport describes one visited folder within a run.
type FolderReport struct {
	FolderID string `json:"folder_id"`
	Name     string `json:"name"`
	EntityID string `json:"entity_id,omitempty"`
	DetectResult
}

// ReindexResult is returned by a reindex pass.
type ReindexResult struct {
	RunID        string         `json:"run_id"`
	Mode         ReindexMode    `json:"mode"`
	Start        int            `json:"start"`
	NextCursor   int            `json:"next_cursor"`
	TotalFolders int            `json:"total_folders"`
	Counts       RunCounts      `json:"counts"`
	Folders      []FolderReport `json:"folders"`
	DryRun       bool           `json:"dry_run"`

	// StoppedByBudget is true when the change budget ended the run before
	// LimitFolders folders were visited.
	StoppedByBudget bool `json:"stopped_by_budget"`
}
