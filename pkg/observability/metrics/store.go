package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every docstream metric name.
const Namespace = "docstream"

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// StoreMetrics records document store activity. A nil *StoreMetrics is a
// valid no-op recorder.
type StoreMetrics struct {
	operations     *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	reloads        *prometheus.CounterVec
	documents      *prometheus.GaugeVec
	skippedEntries *prometheus.CounterVec
}

// NewStoreMetrics creates the store collectors and registers them with reg.
func NewStoreMetrics(reg prometheus.Registerer) (*StoreMetrics, error) {
	m := &StoreMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Document store operations by collection, operation and outcome.",
		}, []string{"collection", "operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Document store operation latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"collection", "operation"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_reloads_total",
			Help:      "Full cache reloads from the message log.",
		}, []string{"collection", "outcome"}),
		documents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "cache_documents",
			Help:      "Documents held by the cache after the last reload or write.",
		}, []string{"collection"}),
		skippedEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "skipped_entries_total",
			Help:      "Log entries ignored during reload, by reason.",
		}, []string{"collection", "reason"}),
	}
	var err error
	if m.operations, err = register(reg, m.operations); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.reloads, err = register(reg, m.reloads); err != nil {
		return nil, err
	}
	if m.documents, err = register(reg, m.documents); err != nil {
		return nil, err
	}
	if m.skippedEntries, err = register(reg, m.skippedEntries); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveOperation records one operation.
func (m *StoreMetrics) ObserveOperation(collection, operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(collection, operation, outcome(err)).Inc()
	m.duration.WithLabelValues(collection, operation).Observe(elapsed.Seconds())
}

// ObserveReload records a reload and, on success, the resulting cache size.
func (m *StoreMetrics) ObserveReload(collection string, documents int, err error) {
	if m == nil {
		return
	}
	m.reloads.WithLabelValues(collection, outcome(err)).Inc()
	if err == nil {
		m.documents.WithLabelValues(collection).Set(float64(documents))
	}
}

// SetDocuments updates the cache size gauge.
func (m *StoreMetrics) SetDocuments(collection string, documents int) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(collection).Set(float64(documents))
}

// SkippedEntry counts a log entry ignored during reload.
func (m *StoreMetrics) SkippedEntry(collection, reason string) {
	if m == nil {
		return
	}
	m.skippedEntries.WithLabelValues(collection, reason).Inc()
}

// register reuses an identical collector already registered with reg.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
