// Package metrics provides a Prometheus implementation of driven.MetricsRecorder.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
	"github.com/custodia-labs/sercha-vision/internal/core/ports/driven"
)

// Ensure Recorder implements the interface.
var _ driven.MetricsRecorder = (*Recorder)(nil)

const namespace = "sercha_vision"

// Recorder records service metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	reindexRuns     *prometheus.CounterVec
	reindexDuration *prometheus.HistogramVec
	foldersVisited  prometheus.Counter
	objectsScanned  prometheus.Counter
	objectsChanged  prometheus.Counter
	cursor          prometheus.Gauge
	registryFolders prometheus.Gauge
	uploads         *prometheus.CounterVec
	uploadBytes     prometheus.Counter
	queryDuration   *prometheus.HistogramVec
}

// NewRecorder creates a recorder with process and Go collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		reindexRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reindex_runs_total",
			Help:      "Reindex runs by mode and outcome.",
		}, []string{"mode", "status"}),
		reindexDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reindex_duration_seconds",
			Help:      "Reindex run duration in seconds.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"mode"}),
		foldersVisited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reindex_folders_visited_total",
			Help:      "Folders visited by reindex runs.",
		}),
		objectsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reindex_objects_scanned_total",
			Help:      "Objects listed by reindex runs.",
		}),
		objectsChanged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reindex_objects_changed_total",
			Help:      "Changed objects embedded and upserted by reindex runs.",
		}),
		cursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reindex_cursor",
			Help:      "Folder cursor after the last stateful run.",
		}),
		registryFolders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_folders",
			Help:      "Folders in the registry at the last stateful run.",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Resumable uploads by outcome.",
		}, []string{"status"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes acknowledged by finished uploads.",
		}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Similarity query latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.reindexRuns, r.reindexDuration,
		r.foldersVisited, r.objectsScanned, r.objectsChanged,
		r.cursor, r.registryFolders,
		r.uploads, r.uploadBytes,
		r.queryDuration,
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveReindex records a finished reindex run.
func (r *Recorder) ObserveReindex(result *domain.ReindexResult, elapsed time.Duration, err error) {
	mode := "unknown"
	if result != nil {
		mode = string(result.Mode)
	}
	r.reindexRuns.WithLabelValues(mode, status(err)).Inc()
	r.reindexDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	if err != nil || result == nil {
		return
	}

	r.foldersVisited.Add(float64(result.Counts.FoldersVisited))
	r.objectsScanned.Add(float64(result.Counts.Scanned))
	r.objectsChanged.Add(float64(result.Counts.Changed))
	if result.Mode == domain.ModeStateful && !result.DryRun {
		r.cursor.Set(float64(result.NextCursor))
		r.registryFolders.Set(float64(result.TotalFolders))
	}
}

// ObserveUpload records a finished upload.
func (r *Recorder) ObserveUpload(bytes int64, err error) {
	r.uploads.WithLabelValues(status(err)).Inc()
	if bytes > 0 {
		r.uploadBytes.Add(float64(bytes))
	}
}

// ObserveQuery records the latency of a similarity query.
func (r *Recorder) ObserveQuery(elapsed time.Duration, err error) {
	r.queryDuration.WithLabelValues(status(err)).Observe(elapsed.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
