// Package clip provides an embedding service adapter for multimodal
// (image and text) embedding APIs that speak the Jina/OpenAI embeddings
// wire format.
package clip

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.jina.ai/v1"
	DefaultModel   = "jina-clip-v2"
	DefaultTimeout = 60 * time.Second
)

// Model dimensions for known multimodal embedding models.
var modelDimensions = map[string]int{
	"jina-clip-v1":     768,
	"jina-clip-v2":     1024,
	"clip-vit-b-32":    512,
	"clip-vit-l-14":    768,
	"siglip-base-p16":  768,
	"siglip-large-384": 1024,
}

// Config holds configuration for the CLIP embedding service.
type Config struct {
	// BaseURL is the API base URL (default: https://api.jina.ai/v1).
	BaseURL string

	// APIKey is sent as a bearer token when set. Self-hosted servers may not need one.
	APIKey string

	// Model is the embedding model to use (default: jina-clip-v2).
	Model string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration

	// Dimensions overrides the known dimension for the model.
	Dimensions int
}

// EmbeddingService embeds images and text into one shared vector space.
type EmbeddingService struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions int
}

// embeddingInput is one multimodal input; exactly one field is set.
type embeddingInput struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// embeddingRequest is the API request format.
type embeddingRequest struct {
	Model string           `json:"model"`
	Input []embeddingInput `json:"input"`
}

// embeddingResponse is the API response format.
type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Detail string `json:"detail,omitempty"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewEmbeddingService creates a new CLIP embedding service.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		var ok bool
		dimensions, ok = modelDimensions[cfg.Model]
		if !ok {
			return nil, domain.ConfigurationError("embedding.dimensions",
				fmt.Sprintf("unknown model %q needs explicit dimensions", cfg.Model))
		}
	}

	return &EmbeddingService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: dimensions,
	}, nil
}

// EmbedImage generates a vector embedding for encoded image bytes.
func (s *EmbeddingService) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, domain.ValidationError("image", "empty image")
	}
	return s.embed(ctx, embeddingInput{Image: base64.StdEncoding.EncodeToString(data)})
}

// EmbedText generates a vector embedding for the given text.
func (s *EmbeddingService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, domain.ValidationError("text", "empty text")
	}
	return s.embed(ctx, embeddingInput{Text: text})
}

func (s *EmbeddingService) embed(ctx context.Context, input embeddingInput) ([]float32, error) {
	jsonBody, err := json.Marshal(embeddingRequest{
		Model: s.model,
		Input: []embeddingInput{input},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/embeddings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewUpstreamError("embedding", resp.StatusCode, errorDetail(body))
	}

	var embedResp embeddingResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if embedResp.Error != nil {
		return nil, domain.NewUpstreamError("embedding", resp.StatusCode, embedResp.Error.Message)
	}
	if len(embedResp.Data) == 0 {
		return nil, domain.NewUpstreamError("embedding", resp.StatusCode, "no embedding returned")
	}

	values := embedResp.Data[0].Embedding
	if len(values) != s.dimensions {
		return nil, domain.NewUpstreamError("embedding", resp.StatusCode,
			fmt.Sprintf("expected %d dimensions, got %d", s.dimensions, len(values)))
	}

	embedding := make([]float32, len(values))
	for i, v := range values {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

// errorDetail extracts a readable message from an error body.
func errorDetail(body []byte) string {
	var embedResp embeddingResponse
	if err := json.Unmarshal(body, &embedResp); err == nil {
		if embedResp.Error != nil && embedResp.Error.Message != "" {
			return embedResp.Error.Message
		}
		if embedResp.Detail != "" {
			return embedResp.Detail
		}
	}
	return string(body)
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable and returns vectors of the
// configured size by embedding a short text.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if _, err := s.EmbedText(ctx, "ping"); err != nil {
		return fmt.Errorf("clip: ping failed: %w", err)
	}
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
