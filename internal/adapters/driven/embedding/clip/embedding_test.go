package clip

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

func newTestServer(t *testing.T, dims int, check func(req embeddingRequest)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if check != nil {
			check(req)
		}

		embedding := make([]float64, dims)
		embedding[0] = 1
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": embedding, "index": 0}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	svc, err := NewEmbeddingService(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.Equal(t, 1024, svc.Dimensions())
	assert.Equal(t, DefaultBaseURL, svc.baseURL)
}

func TestNewEmbeddingService_UnknownModelNeedsDimensions(t *testing.T) {
	_, err := NewEmbeddingService(Config{Model: "custom"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	svc, err := NewEmbeddingService(Config{Model: "custom", Dimensions: 64})
	require.NoError(t, err)
	assert.Equal(t, 64, svc.Dimensions())
}

func TestEmbeddingService_EmbedImage(t *testing.T) {
	image := []byte{0xff, 0xd8, 0xff}
	server := newTestServer(t, 4, func(req embeddingRequest) {
		require.Len(t, req.Input, 1)
		assert.Equal(t, "clip-test", req.Model)
		assert.Equal(t, base64.StdEncoding.EncodeToString(image), req.Input[0].Image)
		assert.Empty(t, req.Input[0].Text)
	})

	svc, err := NewEmbeddingService(Config{BaseURL: server.URL, APIKey: "key", Model: "clip-test", Dimensions: 4})
	require.NoError(t, err)

	vec, err := svc.EmbedImage(context.Background(), image)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 0}, vec)
}

func TestEmbeddingService_EmbedText(t *testing.T) {
	var texts []string
	server := newTestServer(t, 4, func(req embeddingRequest) {
		texts = append(texts, req.Input[0].Text)
	})

	svc, err := NewEmbeddingService(Config{BaseURL: server.URL, APIKey: "key", Model: "clip-test", Dimensions: 4})
	require.NoError(t, err)

	_, err = svc.EmbedText(context.Background(), "oak chair")
	require.NoError(t, err)
	require.NoError(t, svc.Ping(context.Background()))
	assert.Equal(t, []string{"oak chair", "ping"}, texts)
}

func TestEmbeddingService_DimensionMismatch(t *testing.T) {
	server := newTestServer(t, 3, nil)

	svc, err := NewEmbeddingService(Config{BaseURL: server.URL, APIKey: "key", Model: "clip-test", Dimensions: 4})
	require.NoError(t, err)

	_, err = svc.EmbedText(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestEmbeddingService_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"image could not be decoded"}`))
	}))
	defer server.Close()

	svc, err := NewEmbeddingService(Config{BaseURL: server.URL, Model: "clip-vit-b-32"})
	require.NoError(t, err)

	_, err = svc.EmbedImage(context.Background(), []byte("not an image"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Contains(t, err.Error(), "image could not be decoded")
}

func TestEmbeddingService_RejectsEmptyInput(t *testing.T) {
	svc, err := NewEmbeddingService(Config{})
	require.NoError(t, err)

	_, err = svc.EmbedImage(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.EmbedText(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestEmbeddingService_Unreachable(t *testing.T) {
	svc, err := NewEmbeddingService(Config{BaseURL: "http://127.0.0.1:1", Model: "clip-vit-b-32"})
	require.NoError(t, err)

	err = svc.Ping(context.Background())
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}
