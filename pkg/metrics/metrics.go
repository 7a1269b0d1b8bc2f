// Package metrics defines prometheus metrics for repository operations.
//
// A nil *Metrics is valid and records nothing, so that library code may
// always call it.
package metrics

import (
	"time"

	"github.com/ccsi/dmflite/pkg/errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "dmflite"

	// OutcomeSuccess labels operations which succeeded
	OutcomeSuccess = "success"

	// OutcomeFailure labels operations which returned an error
	OutcomeFailure = "failure"
)

// Metrics about a repository
type Metrics struct {
	operations   *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	commits      *prometheus.CounterVec
	blobBytes    prometheus.Counter
	dedupSkipped prometheus.Counter
	replayed     prometheus.Counter
}

// New builds repository metrics and registers them
func New(registry prometheus.Registerer, repo string) (*Metrics, error) {
	labels := prometheus.Labels{"repo": repo}
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "operations_total",
			Help:        "Total number of repository operations, by operation and outcome",
			ConstLabels: labels,
		}, []string{"operation", "outcome"}),

		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "operation_latency_seconds",
			Help:        "Latency of repository operations in seconds",
			ConstLabels: labels,
			Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		}, []string{"operation"}),

		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "history_entries_total",
			Help:        "Total number of history entries committed, by action",
			ConstLabels: labels,
		}, []string{"action"}),

		blobBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "blob_bytes_total",
			Help:        "Total number of content bytes stored",
			ConstLabels: labels,
		}),

		dedupSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "dedup_skipped_total",
			Help:        "Total number of uploads skipped because the content was identical",
			ConstLabels: labels,
		}),

		replayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "index_replayed_total",
			Help:        "Total number of history entries replayed onto the index",
			ConstLabels: labels,
		}),
	}

	var err error
	register := func(c prometheus.Collector) prometheus.Collector {
		if err != nil {
			return c
		}
		if e := registry.Register(c); e != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(e, &already) {
				return already.ExistingCollector
			}
			err = e
		}
		return c
	}
	m.operations = register(m.operations).(*prometheus.CounterVec)
	m.latency = register(m.latency).(*prometheus.HistogramVec)
	m.commits = register(m.commits).(*prometheus.CounterVec)
	m.blobBytes = register(m.blobBytes).(prometheus.Counter)
	m.dedupSkipped = register(m.dedupSkipped).(prometheus.Counter)
	m.replayed = register(m.replayed).(prometheus.Counter)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Observe records the outcome and latency of an operation
func (m *Metrics) Observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Committed counts a history entry
func (m *Metrics) Committed(action string) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(action).Inc()
}

// BlobStored counts stored content bytes
func (m *Metrics) BlobStored(size int) {
	if m == nil {
		return
	}
	m.blobBytes.Add(float64(size))
}

// DedupSkipped counts an upload found identical to the latest version
func (m *Metrics) DedupSkipped() {
	if m == nil {
		return
	}
	m.dedupSkipped.Inc()
}

// Replayed counts entries replayed onto the index
func (m *Metrics) Replayed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.replayed.Add(float64(n))
}
