// Package httpapi provides the HTTP trigger surface: manual reindex,
// upserts, similarity queries, uploads and the Prometheus endpoint.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-vision/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-vision/internal/logger"
)

// ErrMissingReindexService is returned when the server is built without a
// reindex service.
var ErrMissingReindexService = errors.New("reindex service is required")

// Ports holds the services the HTTP surface drives. Only Reindex is required.
type Ports struct {
	Reindex driving.ReindexService
	Index   driving.IndexService
	Search  driving.SearchService
	Upload  driving.UploadService
	Metrics http.Handler

	// UploadParentID is used when an upload names no parent.
	UploadParentID string
}

// Server serves the HTTP API.
type Server struct {
	ports *Ports

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	errChan  chan error
}

// NewServer creates a server for the given ports.
func NewServer(ports *Ports) (*Server, error) {
	if ports == nil || ports.Reindex == nil {
		return nil, ErrMissingReindexService
	}
	return &Server{ports: ports, errChan: make(chan error, 1)}, nil
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /v1/reindex", s.handleReindex)
	mux.HandleFunc("GET /v1/folders", s.handleFolders)
	mux.HandleFunc("POST /v1/folders/refresh", s.handleRefreshFolders)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("POST /v1/upsert", s.handleUpsert)
	mux.HandleFunc("POST /v1/query", s.handleQuery)
	mux.HandleFunc("POST /v1/upload", s.handleUpload)
	if s.ports.Metrics != nil {
		mux.Handle("GET /metrics", s.ports.Metrics)
	}
	return logRequests(mux)
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case s.errChan <- err:
			default:
			}
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Errors reports a fatal serve error.
func (s *Server) Errors() <-chan error {
	return s.errChan
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(started))
	})
}
