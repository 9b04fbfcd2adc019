package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Episode metrics
	EpisodesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_episodes_total",
			Help: "Total number of episodes completed, by outcome",
		},
		[]string{"outcome"},
	)

	QualityRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memory_quality_rejections_total",
			Help: "Total number of episodes rejected by the quality gate",
		},
	)

	EpisodesStored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "memory_episodes_stored",
			Help: "Current number of episodes held in storage",
		},
	)

	// Synchronizer metrics
	SyncConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memory_sync_conflicts_total",
			Help: "Total number of synchronizer conflicts resolved durable-wins",
		},
	)

	SyncErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memory_sync_errors_total",
			Help: "Total number of synchronizer errors",
		},
	)

	SyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "memory_sync_duration_seconds",
			Help:    "Time taken for a two-phase commit or reconcile pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Query cache metrics
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memory_query_cache_hits_total",
			Help: "Total number of query cache hits",
		},
	)

	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memory_query_cache_misses_total",
			Help: "Total number of query cache misses",
		},
	)

	CacheEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_query_cache_evictions_total",
			Help: "Total number of query cache evictions, by reason",
		},
		[]string{"reason"},
	)

	// Capacity manager metrics
	EvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_capacity_evictions_total",
			Help: "Total number of episodes evicted, by policy",
		},
		[]string{"policy"},
	)

	// Extraction queue metrics
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "memory_extraction_queue_depth",
			Help: "Current depth of the pattern extraction queue",
		},
	)

	QueueProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_extraction_processed_total",
			Help: "Total number of episodes processed by extraction workers, by status",
		},
		[]string{"status"},
	)

	ActiveWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "memory_extraction_active_workers",
			Help: "Current number of active extraction workers",
		},
	)

	ExtractionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "memory_extraction_duration_seconds",
			Help:    "Time taken for a single extraction-worker pass over one episode",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "memory_circuit_breaker_state",
			Help: "Circuit breaker state by tier (0=closed, 0.5=half_open, 1=open)",
		},
		[]string{"tier"},
	)

	// Retrieval metrics
	RetrievalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "memory_retrieval_duration_seconds",
			Help:    "Time taken to serve a retrieval query end to end",
			Buckets: prometheus.DefBuckets,
		},
	)

	RetrievalResultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memory_retrieval_results_total",
			Help: "Total number of items returned across all retrieval queries",
		},
	)
)

func init() {
	prometheus.MustRegister(
		EpisodesTotal,
		QualityRejectionsTotal,
		EpisodesStored,
		SyncConflictsTotal,
		SyncErrorsTotal,
		SyncDuration,
		CacheHitsTotal,
		CacheMissesTotal,
		CacheEvictionsTotal,
		EvictionsTotal,
		QueueDepth,
		QueueProcessedTotal,
		ActiveWorkers,
		ExtractionDuration,
		CircuitBreakerState,
		RetrievalDuration,
		RetrievalResultsTotal,
	)
}

// Handler returns the Prometheus HTTP handler for exposing /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
