package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

func TestRecorder_ObserveReindex(t *testing.T) {
	r := NewRecorder()

	r.ObserveReindex(&domain.ReindexResult{
		Mode:         domain.ModeStateful,
		NextCursor:   7,
		TotalFolders: 40,
		Counts:       domain.RunCounts{FoldersVisited: 5, Scanned: 30, Changed: 4},
	}, 2*time.Second, nil)
	r.ObserveReindex(nil, time.Second, errors.New("drive down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.reindexRuns.WithLabelValues("stateful", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.reindexRuns.WithLabelValues("unknown", "error")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.objectsChanged))
	assert.Equal(t, 30.0, testutil.ToFloat64(r.objectsScanned))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.cursor))
	assert.Equal(t, 40.0, testutil.ToFloat64(r.registryFolders))
}

func TestRecorder_DryRunLeavesCursorGauge(t *testing.T) {
	r := NewRecorder()
	r.ObserveReindex(&domain.ReindexResult{Mode: domain.ModeStateful, NextCursor: 3, DryRun: true}, 0, nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.cursor))
}

func TestRecorder_ObserveUploadAndQuery(t *testing.T) {
	r := NewRecorder()
	r.ObserveUpload(1024, nil)
	r.ObserveUpload(0, errors.New("boom"))
	r.ObserveQuery(50*time.Millisecond, nil)

	assert.Equal(t, 1024.0, testutil.ToFloat64(r.uploadBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.uploads.WithLabelValues("error")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.queryDuration))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.ObserveQuery(time.Millisecond, nil)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "sercha_vision_query_duration_seconds")
}
