package cli

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

var (
	uploadParent  string
	uploadName    string
	uploadMIME    string
	uploadQuiet   bool
	uploadWatch   string
	uploadInclude string
)

var uploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Short: "Upload an image into the collection",
	Long: `Streams a file into Drive over a resumable upload session. Large files are
sent in chunks and a chunk that is only partly acknowledged is resent from
the acknowledged offset.

Use "-" to read from stdin; --name is then required.

With --watch DIR the command keeps running and uploads every new file under
DIR that matches --include once it stops changing.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: requireServices(),
	RunE:        runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadParent, "parent", "", "destination folder id (default from config)")
	uploadCmd.Flags().StringVar(&uploadName, "name", "", "remote file name (default: local name)")
	uploadCmd.Flags().StringVar(&uploadMIME, "mime", "", "content type (default: detected)")
	uploadCmd.Flags().BoolVarP(&uploadQuiet, "quiet", "q", false, "hide the progress bar")
	uploadCmd.Flags().StringVar(&uploadWatch, "watch", "", "watch a directory and upload new files")
	uploadCmd.Flags().StringVar(&uploadInclude, "include", "**/*.{jpg,jpeg,png,webp,gif}", "glob of files to upload in watch mode")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	if uploadService == nil {
		return errUploadNotConfigured
	}

	parent := uploadParent
	if parent == "" {
		parent = uploadParentID
	}

	if uploadWatch != "" {
		if len(args) > 0 {
			return domain.ValidationError("file", "not allowed with --watch")
		}
		w, err := newUploadWatcher(uploadWatch, uploadInclude, func(ctx context.Context, path string) error {
			return uploadPath(ctx, cmd, path, parent, "", "")
		})
		if err != nil {
			return err
		}
		cmd.Printf("Watching %s for %s\n", uploadWatch, uploadInclude)
		return w.Run(cmd.Context())
	}

	if len(args) == 0 {
		return domain.ValidationError("file", "required")
	}
	if args[0] == "-" {
		if uploadName == "" {
			return domain.ValidationError("name", "required when reading stdin")
		}
		meta := domain.UploadMetadata{
			Name:     uploadName,
			MIMEType: uploadMIME,
			ParentID: parent,
			Size:     domain.UnknownSize,
		}
		return uploadReader(cmd, meta, cmd.InOrStdin())
	}
	return uploadPath(cmd.Context(), cmd, args[0], parent, uploadName, uploadMIME)
}

// uploadPath uploads one local file.
func uploadPath(ctx context.Context, cmd *cobra.Command, path, parent, name, mimeType string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return domain.ValidationError("file", path+" is a directory")
	}
	if name == "" {
		name = filepath.Base(path)
	}
	if mimeType == "" {
		mimeType, err = detectMIME(f)
		if err != nil {
			return err
		}
	}

	meta := domain.UploadMetadata{Name: name, MIMEType: mimeType, ParentID: parent, Size: info.Size()}
	return uploadReaderContext(ctx, cmd, meta, f)
}

func uploadReader(cmd *cobra.Command, meta domain.UploadMetadata, r io.Reader) error {
	return uploadReaderContext(cmd.Context(), cmd, meta, r)
}

func uploadReaderContext(ctx context.Context, cmd *cobra.Command, meta domain.UploadMetadata, r io.Reader) error {
	var progress io.Writer = io.Discard
	if !uploadQuiet {
		progress = cmd.ErrOrStderr()
	}
	bar := progressbar.NewOptions64(meta.Size,
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription(meta.Name),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)

	obj, err := uploadService.Upload(ctx, meta, io.TeeReader(r, bar))
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("upload %s failed: %w", meta.Name, err)
	}
	cmd.Printf("Uploaded %s (%s, %d bytes)\n", obj.Name, obj.ID, obj.Size)
	return nil
}

// detectMIME guesses the content type from the extension, then from the
// first bytes. The file offset is restored.
func detectMIME(f *os.File) (string, error) {
	if t := mime.TypeByExtension(filepath.Ext(f.Name())); t != "" {
		return t, nil
	}
	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading %s: %w", f.Name(), err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewinding %s: %w", f.Name(), err)
	}
	return http.DetectContentType(head[:n]), nil
}
