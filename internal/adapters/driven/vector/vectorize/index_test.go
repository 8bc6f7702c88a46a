package vectorize

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

const indexPath = "/accounts/acct/vectorize/v2/indexes/images"

func newTestIndex(t *testing.T, handler http.HandlerFunc) *Index {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	index, err := New(Config{AccountID: "acct", IndexName: "images", APIToken: "tok", BaseURL: server.URL})
	require.NoError(t, err)
	return index
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(Config{IndexName: "i", APIToken: "t"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	_, err = New(Config{AccountID: "a", APIToken: "t"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	_, err = New(Config{AccountID: "a", IndexName: "i"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestIndex_UpsertSendsNDJSON(t *testing.T) {
	var lines []ndjsonRecord
	index := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, indexPath+"/upsert", r.URL.Path)
		assert.Equal(t, "application/x-ndjson", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		scanner := bufio.NewScanner(r.Body)
		for scanner.Scan() {
			var rec ndjsonRecord
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
			lines = append(lines, rec)
		}
		_, _ = w.Write([]byte(`{"success":true,"errors":[],"result":{"mutationId":"m1"}}`))
	})

	err := index.Upsert(context.Background(), []domain.VectorEntry{
		{ID: "a", Values: []float32{1, 0}, Metadata: domain.EntryMetadata("0001", "", "f1", "a.jpg")},
		{ID: "b", Values: []float32{0, 1}},
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "a", lines[0].ID)
	assert.Equal(t, "0001", lines[0].Metadata[domain.MetaEntityID])
	assert.Equal(t, []float32{0, 1}, lines[1].Values)
}

func TestIndex_UpsertEmptyIsNoop(t *testing.T) {
	index := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	require.NoError(t, index.Upsert(context.Background(), nil))
}

func TestIndex_Query(t *testing.T) {
	index := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, indexPath+"/query", r.URL.Path)
		var req queryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 5, req.TopK)
		assert.Equal(t, "all", req.ReturnMetadata)
		assert.Equal(t, "0002", req.Filter[domain.MetaEntityID])

		_, _ = w.Write([]byte(`{"success":true,"result":{"count":1,"matches":[
			{"id":"b","score":0.91,"metadata":{"entity_id":"0002"}}]}}`))
	})

	hits, err := index.Query(context.Background(), []float32{1, 0}, 5,
		map[string]string{domain.MetaEntityID: "0002"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)
	assert.InDelta(t, 0.91, hits[0].Score, 1e-9)
	assert.Equal(t, "0002", hits[0].Metadata[domain.MetaEntityID])
}

func TestIndex_ErrorsAreUpstream(t *testing.T) {
	index := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"errors":[{"code":40006,"message":"dimension mismatch"}]}`))
	})

	_, err := index.Query(context.Background(), []float32{1}, 5, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.True(t, strings.Contains(err.Error(), "dimension mismatch"))

	var upstream *domain.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusBadRequest, upstream.Status)
}

func TestIndex_UnsuccessfulEnvelope(t *testing.T) {
	index := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"errors":[{"code":1000,"message":"index not found"}]}`))
	})

	err := index.Upsert(context.Background(), []domain.VectorEntry{{ID: "a", Values: []float32{1}}})
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Equal(t, Backend, index.Backend())
}

func TestIndex_FailedRequestIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	index := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"success":false,"errors":[{"code":7010,"message":"service unavailable"}]}`))
	})

	err := index.Upsert(context.Background(), []domain.VectorEntry{{ID: "a", Values: []float32{1}}})
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Equal(t, int32(1), calls.Load())
}
