// Package vectorize implements driven.VectorIndex against the Cloudflare
// Vectorize REST API.
package vectorize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driven"
)

// Backend names this index backend.
const Backend = "vectorize"

const (
	// DefaultBaseURL is the Cloudflare API root.
	DefaultBaseURL = "https://api.cloudflare.com/client/v4"

	// DefaultTimeout bounds each REST call.
	DefaultTimeout = 30 * time.Second
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Config holds configuration for the Vectorize index.
type Config struct {
	AccountID string
	IndexName string
	APIToken  string
	BaseURL   string
	Timeout   time.Duration
}

// Index is a REST client for one Vectorize index.
type Index struct {
	client *resty.Client
}

// New creates an index client. AccountID, IndexName and APIToken are required.
func New(cfg Config) (*Index, error) {
	if cfg.AccountID == "" {
		return nil, domain.ConfigurationError("vector.account_id", "required for the vectorize backend")
	}
	if cfg.IndexName == "" {
		return nil, domain.ConfigurationError("vector.index_name", "required for the vectorize backend")
	}
	if cfg.APIToken == "" {
		return nil, domain.ConfigurationError("vector.api_token", "required for the vectorize backend")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	baseURL := fmt.Sprintf("%s/accounts/%s/vectorize/v2/indexes/%s",
		strings.TrimSuffix(cfg.BaseURL, "/"), cfg.AccountID, cfg.IndexName)

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIToken)

	return &Index{client: client}, nil
}

// envelope is the common Cloudflare API response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Errors  []apiMessage    `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

type apiMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type ndjsonRecord struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type queryRequest struct {
	Vector         []float32         `json:"vector"`
	TopK           int               `json:"topK"`
	ReturnMetadata string            `json:"returnMetadata"`
	ReturnValues   bool              `json:"returnValues"`
	Filter         map[string]string `json:"filter,omitempty"`
}

type queryResult struct {
	Count   int `json:"count"`
	Matches []struct {
		ID       string            `json:"id"`
		Score    float64           `json:"score"`
		Metadata map[string]string `json:"metadata"`
	} `json:"matches"`
}

// Upsert sends entries as newline-delimited JSON, one record per line.
func (x *Index) Upsert(ctx context.Context, entries []domain.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, e := range entries {
		if err := enc.Encode(ndjsonRecord{ID: e.ID, Values: e.Values, Metadata: e.Metadata}); err != nil {
			return fmt.Errorf("encoding vector %s: %w", e.ID, err)
		}
	}

	resp, err := x.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-ndjson").
		SetBody(body.Bytes()).
		Post("/upsert")
	if err != nil {
		return fmt.Errorf("vectorize upsert: %w", err)
	}
	_, err = decode(resp)
	return err
}

// Query returns the topK matches for vector, with metadata.
func (x *Index) Query(
	ctx context.Context,
	vector []float32,
	topK int,
	filter map[string]string,
) ([]domain.QueryHit, error) {
	resp, err := x.client.R().
		SetContext(ctx).
		SetBody(queryRequest{
			Vector:         vector,
			TopK:           topK,
			ReturnMetadata: "all",
			Filter:         filter,
		}).
		Post("/query")
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	raw, err := decode(resp)
	if err != nil {
		return nil, err
	}
	var result queryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding vectorize matches: %w", err)
	}

	hits := make([]domain.QueryHit, 0, len(result.Matches))
	for _, m := range result.Matches {
		hits = append(hits, domain.QueryHit{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return hits, nil
}

// Backend returns Backend.
func (x *Index) Backend() string {
	return Backend
}

// Close is a no-op.
func (x *Index) Close() error {
	return nil
}

// decode unwraps the response envelope, mapping failures to UpstreamError.
func decode(resp *resty.Response) (json.RawMessage, error) {
	var env envelope
	decodeErr := json.Unmarshal(resp.Body(), &env)

	if resp.IsError() || decodeErr != nil || !env.Success {
		detail := resp.String()
		if decodeErr == nil && len(env.Errors) > 0 {
			msgs := make([]string, len(env.Errors))
			for i, m := range env.Errors {
				msgs[i] = fmt.Sprintf("%d: %s", m.Code, m.Message)
			}
			detail = strings.Join(msgs, "; ")
		}
		return nil, domain.NewUpstreamError(Backend, resp.StatusCode(), detail)
	}
	return env.Result, nil
}
