package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Storage metrics
	NumKeys = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storage_num_keys",
			Help: "Number of keys in the live map",
		},
	)

	NumBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storage_data_bytes",
			Help: "Size of stored data in bytes",
		},
	)

	NumCommits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storage_num_commits",
			Help: "Total number of commits written to the commit log",
		},
	)

	CommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storage_commit_seconds",
			Help:    "Duration of commit-log writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CommitErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storage_commit_errors",
			Help: "Total number of errors during commit",
		},
	)

	// Checkpoint metrics
	NumDBUpserts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storage_db_upserts",
			Help: "Total number of checkpoint upserts",
		},
	)

	NumDBDeletes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storage_db_deletes",
			Help: "Total number of checkpoint deletes",
		},
	)

	NumDBFlush = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storage_db_num_flush",
			Help: "Total number of checkpoint flushes",
		},
	)

	FlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storage_flush_seconds",
			Help:    "Duration of checkpoint flushes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	FlushErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storage_flush_errors",
			Help: "Total number of errors during flush",
		},
	)

	// Server metrics
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Request duration in seconds by command",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	RequestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "request_errors",
			Help: "Exceptions thrown in request handlers by command",
		},
		[]string{"command"},
	)

	BytesIn = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bytes_in",
			Help: "Network bytes received",
		},
	)

	BytesOut = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bytes_out",
			Help: "Network bytes sent",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(NumKeys)
	prometheus.MustRegister(NumBytes)
	prometheus.MustRegister(NumCommits)
	prometheus.MustRegister(CommitDuration)
	prometheus.MustRegister(CommitErrors)
	prometheus.MustRegister(NumDBUpserts)
	prometheus.MustRegister(NumDBDeletes)
	prometheus.MustRegister(NumDBFlush)
	prometheus.MustRegister(FlushDuration)
	prometheus.MustRegister(FlushErrors)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(RequestErrors)
	prometheus.MustRegister(BytesIn)
	prometheus.MustRegister(BytesOut)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
