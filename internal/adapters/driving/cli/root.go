// Package cli provides the sercha-vision command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-vision/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-vision/internal/logger"
)

// annotationServices marks commands that need the application services.
const annotationServices = "services"

// Scheduler runs periodic reindex passes until stopped.
type Scheduler interface {
	Start(ctx context.Context) error
	Stop() error
}

// Services holds everything the commands drive. Any field may be nil when
// the corresponding backend is not configured.
type Services struct {
	Reindex   driving.ReindexService
	Index     driving.IndexService
	Search    driving.SearchService
	Upload    driving.UploadService
	Scheduler Scheduler
	Metrics   http.Handler

	// ServerAddr is the default listen address for serve.
	ServerAddr string

	// UploadParentID is the default destination folder for uploads.
	UploadParentID string

	// Close releases stores and clients.
	Close func()
}

// BootstrapOptions are passed from the global flags to the bootstrap function.
type BootstrapOptions struct {
	ConfigPath string

	// LogOverridden is set when logging was configured by flags, which take
	// precedence over the config file.
	LogOverridden bool
}

// BootstrapFunc builds the services from configuration.
type BootstrapFunc func(ctx context.Context, opts BootstrapOptions) (*Services, error)

var (
	version   = "dev"
	bootstrap BootstrapFunc

	reindexService driving.ReindexService
	indexService   driving.IndexService
	searchService  driving.SearchService
	uploadService  driving.UploadService
	scheduler      Scheduler
	metricsHandler http.Handler
	serverAddr     = ":8080"
	uploadParentID string
	closeServices  func()
)

var (
	configPath string
	verbose    bool
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "sercha-vision",
	Short: "Keep an image similarity index in sync with a Drive collection",
	Long: `Sercha Vision watches a Google Drive folder tree where every sub-folder
is one catalogue item, embeds new and changed images with a CLIP-style model
and keeps a vector index up to date so images can be matched back to items.

Reindexing walks the folders round-robin in small slices, so a large
collection is covered by repeated bounded runs.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "config file (default ~/.sercha-vision/config.toml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", "", "log format: text or json")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetBootstrap registers the function that builds services for commands
// that need them.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// SetServices installs already-built services.
func SetServices(s *Services) {
	if s == nil {
		return
	}
	reindexService = s.Reindex
	indexService = s.Index
	searchService = s.Search
	uploadService = s.Upload
	scheduler = s.Scheduler
	metricsHandler = s.Metrics
	if s.ServerAddr != "" {
		serverAddr = s.ServerAddr
	}
	uploadParentID = s.UploadParentID
	closeServices = s.Close
}

func setup(cmd *cobra.Command, _ []string) error {
	if logFormat != "" {
		logger.SetFormat(logFormat)
	}
	if logLevel != "" {
		if err := logger.SetLevel(logLevel); err != nil {
			return err
		}
	}
	logger.SetVerbose(verbose)

	if bootstrap == nil || !needsServices(cmd) {
		return nil
	}

	svc, err := bootstrap(cmd.Context(), BootstrapOptions{
		ConfigPath:    configPath,
		LogOverridden: verbose || logLevel != "" || logFormat != "",
	})
	if err != nil {
		return fmt.Errorf("initialising services: %w", err)
	}
	SetServices(svc)
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if closeServices != nil {
		closeServices()
		closeServices = nil
	}
	return nil
}

// needsServices reports whether cmd or one of its parents is annotated as
// requiring services.
func needsServices(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationServices] == "true" {
			return true
		}
	}
	return false
}

// requireServices is the annotation set on commands that need bootstrap.
func requireServices() map[string]string {
	return map[string]string{annotationServices: "true"}
}

var (
	errReindexNotConfigured = errors.New("reindex service not configured")
	errIndexNotConfigured   = errors.New("index service not configured")
	errSearchNotConfigured  = errors.New("search service not configured")
	errUploadNotConfigured  = errors.New("upload service not configured")
)
