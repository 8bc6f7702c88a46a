package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-vision/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/sercha-vision/internal/logger"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 10 * time.Second

var (
	serveAddr        string
	serveNoScheduler bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run the background scheduler",
	Long: `Starts the HTTP trigger surface and, unless disabled, the scheduler that
runs a small stateful reindex pass on every interval.

Endpoints:
  POST /v1/reindex          run one reindex pass
  GET  /v1/folders          list the folder registry
  POST /v1/folders/refresh  relist the collection root
  GET  /v1/status           show the persisted cursor
  POST /v1/upsert           index a folder, object or image
  POST /v1/query            rank items by similarity
  POST /v1/upload           stream a file into the collection
  GET  /metrics             Prometheus metrics
  GET  /healthz             liveness`,
	Args:        cobra.NoArgs,
	Annotations: requireServices(),
	RunE:        runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "do not run scheduled reindex passes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if reindexService == nil {
		return errReindexNotConfigured
	}

	server, err := httpapi.NewServer(&httpapi.Ports{
		Reindex:        reindexService,
		Index:          indexService,
		Search:         searchService,
		Upload:         uploadService,
		Metrics:        metricsHandler,
		UploadParentID: uploadParentID,
	})
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = serverAddr
	}
	if err := server.Start(addr); err != nil {
		return err
	}
	cmd.Printf("Listening on http://%s\n", server.Addr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if scheduler != nil && !serveNoScheduler {
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				logger.Error("Scheduler stopped: %v", err)
			}
		}()
		defer func() {
			if err := scheduler.Stop(); err != nil {
				logger.Warn("Stopping scheduler: %v", err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-server.Errors():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown: %v", err)
	}
	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}
