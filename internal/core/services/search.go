package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-vision/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// MaxQueryImageSize caps images fetched by URL for a query (20MB).
const MaxQueryImageSize = 20 * 1024 * 1024

// SearchService embeds a query, fetches raw hits from the vector index and
// ranks them per entity.
type SearchService struct {
	files       driven.FileStore
	embedder    driven.EmbeddingService
	vectorIndex driven.VectorIndex
	metrics     driven.MetricsRecorder
	httpClient  *http.Client
}

// NewSearchService creates a new search service. metrics may be nil.
func NewSearchService(
	files driven.FileStore,
	embedder driven.EmbeddingService,
	vectorIndex driven.VectorIndex,
	metrics driven.MetricsRecorder,
) *SearchService {
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	return &SearchService{
		files:       files,
		embedder:    embedder,
		vectorIndex: vectorIndex,
		metrics:     metrics,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SetHTTPClient replaces the client used to fetch query images by URL.
func (s *SearchService) SetHTTPClient(c *http.Client) {
	s.httpClient = c
}

// Query performs a similarity query.
func (s *SearchService) Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	if err := validateQuery(&req); err != nil {
		return nil, err
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if s.vectorIndex == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}

	started := time.Now()
	resp, err := s.query(ctx, req)
	s.metrics.ObserveQuery(time.Since(started), err)
	return resp, err
}

func (s *SearchService) query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	vec, err := s.embedQuery(ctx, req)
	if err != nil {
		return nil, err
	}

	hits, err := s.vectorIndex.Query(ctx, vec, req.TopK, req.Filter)
	if err != nil {
		return nil, fmt.Errorf("query vector index: %w", err)
	}
	logger.Debug("Vector query (%s) returned %d hits", s.vectorIndex.Backend(), len(hits))

	return &domain.QueryResponse{
		Hits:     hits,
		Entities: AggregateHits(hits, req.Entities),
	}, nil
}

// embedQuery turns whichever input the request carries into a vector.
func (s *SearchService) embedQuery(ctx context.Context, req domain.QueryRequest) ([]float32, error) {
	switch {
	case req.Text != "":
		return s.embedder.EmbedText(ctx, req.Text)
	case len(req.Data) > 0:
		return s.embedder.EmbedImage(ctx, req.Data)
	case req.ObjectID != "":
		data, err := s.files.FetchBytes(ctx, req.ObjectID)
		if err != nil {
			return nil, fmt.Errorf("fetch query object %s: %w", req.ObjectID, err)
		}
		return s.embedder.EmbedImage(ctx, data)
	default:
		data, err := s.fetchURL(ctx, req.URL)
		if err != nil {
			return nil, err
		}
		return s.embedder.EmbedImage(ctx, data)
	}
}

func (s *SearchService) fetchURL(ctx context.Context, url string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, domain.ValidationError("url", err.Error())
	}
	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch query url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("query url %s: %w", url, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewUpstreamError("query-url", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxQueryImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read query url: %w", err)
	}
	if len(data) > MaxQueryImageSize {
		return nil, domain.ValidationError("url", "image exceeds size limit")
	}
	return data, nil
}

// validateQuery checks that exactly one input is set and applies limits.
func validateQuery(req *domain.QueryRequest) error {
	req.Text = strings.TrimSpace(req.Text)
	req.URL = strings.TrimSpace(req.URL)

	inputs := 0
	for _, set := range []bool{req.ObjectID != "", req.URL != "", len(req.Data) > 0, req.Text != ""} {
		if set {
			inputs++
		}
	}
	if inputs != 1 {
		return domain.ValidationError("query", "exactly one of object id, url, bytes or text is required")
	}
	if req.URL != "" && !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		return domain.ValidationError("url", "must be http or https")
	}

	switch {
	case req.TopK == 0:
		req.TopK = domain.DefaultTopK
	case req.TopK < 0 || req.TopK > domain.MaxTopK:
		return domain.ValidationError("top_k", fmt.Sprintf("must be between 1 and %d", domain.MaxTopK))
	}
	if req.Entities <= 0 {
		req.Entities = domain.DefaultEntities
	}
	return nil
}
