package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the feed scanner
type Metrics struct {
	ScansTotal           prometheus.Counter
	ScanErrorsTotal      prometheus.Counter
	ChunksTotal          prometheus.Counter
	TransientRetryTotal  prometheus.Counter
	WindowShrinksTotal   prometheus.Counter
	TipsReturned         prometheus.Histogram
	ScanDurationSeconds  prometheus.Histogram
}

// NewMetrics creates and registers all feed metrics against reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ScansTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tipjar",
			Subsystem: "feed",
			Name:      "scans_total",
			Help:      "Total number of feed scans started",
		}),
		ScanErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tipjar",
			Subsystem: "feed",
			Name:      "scan_errors_total",
			Help:      "Total number of feed scans that failed",
		}),
		ChunksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tipjar",
			Subsystem: "feed",
			Name:      "chunks_total",
			Help:      "Total number of log range queries issued",
		}),
		TransientRetryTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tipjar",
			Subsystem: "feed",
			Name:      "transient_retries_total",
			Help:      "Total number of transient provider failures retried",
		}),
		WindowShrinksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tipjar",
			Subsystem: "feed",
			Name:      "window_shrinks_total",
			Help:      "Total number of scan window halvings under provider pressure",
		}),
		TipsReturned: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tipjar",
			Subsystem: "feed",
			Name:      "tips_returned",
			Help:      "Number of tips returned per scan",
			Buckets:   []float64{0, 1, 2, 5, 10, 20},
		}),
		ScanDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tipjar",
			Subsystem: "feed",
			Name:      "scan_duration_seconds",
			Help:      "Scan duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) recordScan() {
	if m != nil {
		m.ScansTotal.Inc()
	}
}

func (m *Metrics) recordScanError() {
	if m != nil {
		m.ScanErrorsTotal.Inc()
	}
}

func (m *Metrics) recordChunk() {
	if m != nil {
		m.ChunksTotal.Inc()
	}
}

func (m *Metrics) recordTransientRetry() {
	if m != nil {
		m.TransientRetryTotal.Inc()
	}
}

func (m *Metrics) recordWindowShrink() {
	if m != nil {
		m.WindowShrinksTotal.Inc()
	}
}

func (m *Metrics) recordResult(tips int, seconds float64) {
	if m != nil {
		m.TipsReturned.Observe(float64(tips))
		m.ScanDurationSeconds.Observe(seconds)
	}
}
