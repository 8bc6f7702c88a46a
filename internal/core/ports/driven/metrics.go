package driven

import (
	"time"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

// MetricsRecorder observes finished operations.
type MetricsRecorder interface {
	// ObserveReindex records a finished run; err is nil on success.
	ObserveReindex(result *domain.ReindexResult, elapsed time.Duration, err error)

	// ObserveUpload records bytes transferred by a finished upload.
	ObserveUpload(bytes int64, err error)

	// ObserveQuery records the latency of a similarity query.
	ObserveQuery(elapsed time.Duration, err error)
}

// NopMetrics discards every observation.
type NopMetrics struct{}

// ObserveReindex implements MetricsRecorder.
func (NopMetrics) ObserveReindex(*domain.ReindexResult, time.Duration, error) {}

// ObserveUpload implements MetricsRecorder.
func (NopMetrics) ObserveUpload(int64, error) {}

// ObserveQuery implements MetricsRecorder.
func (NopMetrics) ObserveQuery(time.Duration, error) {}
