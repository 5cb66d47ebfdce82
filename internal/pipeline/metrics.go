package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the slice pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	SlicesProcessed prometheus.Counter
	SlicesEmpty     prometheus.Counter
	SlicesFailed    prometheus.Counter
	SlicesSkipped   prometheus.Counter
	SamplesCleaned  prometheus.Counter
	SamplesRejected prometheus.Counter
	CycleDuration   prometheus.Histogram
	CacheEntries    prometheus.Gauge
	LastCycleUnix   prometheus.Gauge
}

// NewMetrics registers the pipeline instruments with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SlicesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "amts_slices_processed_total",
			Help: "Slices that completed processing with new cleaned samples.",
		}),
		SlicesEmpty: factory.NewCounter(prometheus.CounterOpts{
			Name: "amts_slices_empty_total",
			Help: "Slices that ended in the Empty terminal (nothing to do).",
		}),
		SlicesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "amts_slices_failed_total",
			Help: "Slices whose processing raised an isolated error.",
		}),
		SlicesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "amts_slices_skipped_total",
			Help: "Changed slices skipped because the row is inactive.",
		}),
		SamplesCleaned: factory.NewCounter(prometheus.CounterOpts{
			Name: "amts_samples_cleaned_total",
			Help: "Cleaned samples published to output sinks.",
		}),
		SamplesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "amts_samples_rejected_total",
			Help: "Samples rejected by the MAD outlier filter.",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "amts_cycle_duration_seconds",
			Help:    "Wall time of one watcher run cycle.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		CacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "amts_cache_entries",
			Help: "Slices currently tracked by the cache.",
		}),
		LastCycleUnix: factory.NewGauge(prometheus.GaugeOpts{
			Name: "amts_last_cycle_timestamp_seconds",
			Help: "Unix time of the last completed run cycle.",
		}),
	}
}

func (m *Metrics) observeResult(res SliceResult) {
	if m == nil {
		return
	}
	switch res.State {
	case StateDone:
		m.SlicesProcessed.Inc()
		m.SamplesCleaned.Add(float64(res.Cleaned))
		m.SamplesRejected.Add(float64(res.Rejected))
	case StateEmpty:
		m.SlicesEmpty.Inc()
	}
}
