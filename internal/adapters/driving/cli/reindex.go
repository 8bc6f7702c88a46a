package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

var (
	reindexStateless    bool
	reindexStart        int
	reindexLimitFolders int
	reindexMaxChanged   int
	reindexDryRun       bool
	reindexJSON         bool
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Run one round-robin reindex pass",
	Long: `Visits a bounded slice of the collection folders and re-embeds images
whose checksum or modified time changed since they were last indexed.

By default the pass resumes from the persisted cursor and advances it.
With --stateless the folders are listed fresh, sorted by name, and the slice
starting at --start is processed without touching the cursor.

Use a negative --max-changed to disable the change budget.`,
	Args:        cobra.NoArgs,
	Annotations: requireServices(),
	RunE:        runReindex,
}

func init() {
	reindexCmd.Flags().BoolVar(&reindexStateless, "stateless", false, "process an explicit slice without moving the cursor")
	reindexCmd.Flags().IntVar(&reindexStart, "start", 0, "slice offset for stateless runs")
	reindexCmd.Flags().IntVarP(&reindexLimitFolders, "limit-folders", "n", 25, "maximum folders to visit")
	reindexCmd.Flags().IntVar(&reindexMaxChanged, "max-changed", 40, "change budget for the whole run")
	reindexCmd.Flags().BoolVar(&reindexDryRun, "dry-run", false, "embed and upsert without recording signatures or moving the cursor")
	reindexCmd.Flags().BoolVar(&reindexJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, _ []string) error {
	if reindexService == nil {
		return errReindexNotConfigured
	}

	opts := domain.ReindexOptions{
		Mode:         domain.ModeStateful,
		LimitFolders: reindexLimitFolders,
		MaxChanged:   reindexMaxChanged,
		DryRun:       reindexDryRun,
	}
	if reindexStateless {
		opts.Mode = domain.ModeStateless
		opts.Start = reindexStart
	} else if cmd.Flags().Changed("start") {
		return domain.ValidationError("start", "only valid with --stateless")
	}

	result, err := reindexService.Run(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	if reindexJSON {
		return printJSON(cmd, result)
	}

	for i := range result.Folders {
		f := result.Folders[i]
		switch {
		case f.Skipped:
			cmd.Printf("  %-30s skipped (no item number)\n", f.Name)
		case f.Changed > 0:
			cmd.Printf("  %-30s %d/%d changed\n", f.Name, f.Changed, f.Scanned)
		default:
			cmd.Printf("  %-30s up to date (%d)\n", f.Name, f.Scanned)
		}
	}

	prefix := ""
	if result.DryRun {
		prefix = "[dry run] "
	}
	cmd.Printf("%sVisited %d of %d folders, scanned %d images, %d changed.\n",
		prefix, result.Counts.FoldersVisited, result.TotalFolders,
		result.Counts.Scanned, result.Counts.Changed)
	if result.StoppedByBudget {
		cmd.Println("Stopped early: change budget reached.")
	}
	if result.Mode == domain.ModeStateful {
		cmd.Printf("Next cursor: %d\n", result.NextCursor)
	}
	return nil
}

var foldersJSON bool

var foldersCmd = &cobra.Command{
	Use:         "folders",
	Short:       "Inspect the folder registry",
	Annotations: requireServices(),
}

var foldersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered folders in cursor order",
	Args:  cobra.NoArgs,
	RunE:  runFoldersList,
}

var foldersRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Relist the collection root and replace the registry",
	Args:  cobra.NoArgs,
	RunE:  runFoldersRefresh,
}

func init() {
	foldersCmd.PersistentFlags().BoolVar(&foldersJSON, "json", false, "output folders as JSON")
	foldersCmd.AddCommand(foldersListCmd)
	foldersCmd.AddCommand(foldersRefreshCmd)
	rootCmd.AddCommand(foldersCmd)
}

func runFoldersList(cmd *cobra.Command, _ []string) error {
	if reindexService == nil {
		return errReindexNotConfigured
	}
	folders, err := reindexService.Folders(cmd.Context())
	if err != nil {
		return fmt.Errorf("loading folders: %w", err)
	}
	return outputFolders(cmd, folders)
}

func runFoldersRefresh(cmd *cobra.Command, _ []string) error {
	if reindexService == nil {
		return errReindexNotConfigured
	}
	folders, err := reindexService.RefreshFolders(cmd.Context())
	if err != nil {
		return fmt.Errorf("refreshing folders: %w", err)
	}
	if !foldersJSON {
		cmd.Printf("Registry refreshed: %d folders.\n", len(folders))
	}
	return outputFolders(cmd, folders)
}

func outputFolders(cmd *cobra.Command, folders []domain.Folder) error {
	if foldersJSON {
		return printJSON(cmd, folders)
	}
	if len(folders) == 0 {
		cmd.Println("No folders registered. Run 'sercha-vision folders refresh'.")
		return nil
	}
	for i, f := range folders {
		entity := "-"
		if id, _, ok := domain.ParseFolderName(f.Name); ok {
			entity = id
		}
		cmd.Printf("%5d  %-6s %s (%s)\n", i, entity, f.Name, f.ID)
	}
	return nil
}

var (
	statusJSON    bool
	statusHistory int
)

var statusCmd = &cobra.Command{
	Use:         "status",
	Short:       "Show the reindex cursor, last run counters and recent scheduled runs",
	Args:        cobra.NoArgs,
	Annotations: requireServices(),
	RunE:        runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	statusCmd.Flags().IntVar(&statusHistory, "history", 5, "number of recent scheduled runs to show (0 to hide)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if reindexService == nil {
		return errReindexNotConfigured
	}
	if statusHistory < 0 {
		return domain.ValidationError("history", "must not be negative")
	}
	status, err := reindexService.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("loading status: %w", err)
	}
	history := []domain.TaskResult{}
	if statusHistory > 0 {
		history, err = reindexService.History(cmd.Context(), statusHistory)
		if err != nil {
			return fmt.Errorf("loading run history: %w", err)
		}
	}

	if statusJSON {
		return printJSON(cmd, struct {
			Status  *domain.ReindexStatus `json:"status"`
			History []domain.TaskResult   `json:"history"`
		}{status, history})
	}

	if status == nil {
		cmd.Println("No stateful reindex run has completed yet.")
	} else {
		cmd.Printf("Last run:  %s", status.LastRun.Local().Format(time.RFC1123))
		if status.RunID != "" {
			cmd.Printf(" (%s)", status.RunID)
		}
		cmd.Println()
		cmd.Printf("Cursor:    %d of %d folders\n", status.Cursor, status.TotalFolders)
		cmd.Printf("Last pass: %d folders, %d scanned, %d changed\n",
			status.Counts.FoldersVisited, status.Counts.Scanned, status.Counts.Changed)
	}

	if len(history) == 0 {
		return nil
	}
	cmd.Println()
	cmd.Println("Recent scheduled runs:")
	for _, r := range history {
		outcome := "ok"
		if !r.Success {
			outcome = "failed: " + r.Error
		}
		cmd.Printf("  %s  %4d changed  %6s  %s\n",
			r.StartedAt.Local().Format(time.DateTime), r.ItemsProcessed,
			r.Duration().Round(time.Millisecond), outcome)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
