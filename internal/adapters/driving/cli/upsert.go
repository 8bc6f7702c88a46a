package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

var (
	upsertMaxChanged int
	upsertDryRun     bool
	upsertEntity     string
	upsertLabel      string
	upsertID         string
)

var upsertCmd = &cobra.Command{
	Use:         "upsert",
	Short:       "Index a single folder, object or local file",
	Annotations: requireServices(),
}

var upsertFolderCmd = &cobra.Command{
	Use:   "folder [folder-id]",
	Short: "Run change detection for one folder",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpsertFolder,
}

var upsertObjectCmd = &cobra.Command{
	Use:   "object [object-id]",
	Short: "Embed one object regardless of its signature",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpsertObject,
}

var upsertFileCmd = &cobra.Command{
	Use:   "file [path]",
	Short: "Embed a local image under an explicit item number",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpsertFile,
}

func init() {
	upsertFolderCmd.Flags().IntVar(&upsertMaxChanged, "max-changed", domain.Unbounded, "change budget (negative = unbounded)")
	upsertFolderCmd.Flags().BoolVar(&upsertDryRun, "dry-run", false, "embed and upsert without recording signatures or moving the cursor")

	upsertFileCmd.Flags().StringVar(&upsertEntity, "entity", "", "item number the image belongs to (required)")
	upsertFileCmd.Flags().StringVar(&upsertLabel, "label", "", "item label")
	upsertFileCmd.Flags().StringVar(&upsertID, "id", "", "vector id (default: file name)")
	_ = upsertFileCmd.MarkFlagRequired("entity")

	upsertCmd.AddCommand(upsertFolderCmd)
	upsertCmd.AddCommand(upsertObjectCmd)
	upsertCmd.AddCommand(upsertFileCmd)
	rootCmd.AddCommand(upsertCmd)
}

func runUpsertFolder(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errIndexNotConfigured
	}
	result, err := indexService.UpsertFolder(cmd.Context(), args[0], domain.DetectOptions{
		MaxChanged: upsertMaxChanged,
		DryRun:     upsertDryRun,
	})
	if err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	if result.Skipped {
		cmd.Printf("Folder %s skipped: its name has no item number.\n", args[0])
		return nil
	}
	cmd.Printf("Folder %s: %d scanned, %d changed.\n", args[0], result.Scanned, result.Changed)
	return nil
}

func runUpsertObject(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errIndexNotConfigured
	}
	if err := indexService.UpsertObject(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	cmd.Printf("Object %s indexed.\n", args[0])
	return nil
}

func runUpsertFile(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errIndexNotConfigured
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}
	id := upsertID
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}
	if err := indexService.UpsertBytes(cmd.Context(), domain.UpsertBytesRequest{
		ID:       id,
		EntityID: upsertEntity,
		Label:    upsertLabel,
		Data:     data,
	}); err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	cmd.Printf("%s indexed as %s.\n", args[0], id)
	return nil
}
