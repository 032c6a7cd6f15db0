// Package metrics exposes memory manager activity as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics mirrors the manager's stats counters. A nil *Metrics is a no-op.
type Metrics struct {
	stored            *prometheus.CounterVec
	retrievals        prometheus.Counter
	retrieved         prometheus.Counter
	retrievalDuration prometheus.Histogram
	evictions         *prometheus.CounterVec
	promoted          prometheus.Counter
	sweeps            *prometheus.CounterVec
	forgotten         *prometheus.CounterVec
	tierItems         *prometheus.GaugeVec
}

// New registers the collectors on reg under namespace.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		stored: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_stored_total",
			Help:      "Items stored, by destination tier.",
		}, []string{"tier"}),
		retrievals: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "Retrieval queries served.",
		}),
		retrieved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_retrieved_total",
			Help:      "Items returned by retrieval queries.",
		}),
		retrievalDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Retrieval latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		evictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capacity_evictions_total",
			Help:      "Items pushed out of a bounded tier.",
		}, []string{"tier"}),
		promoted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consolidation_promotions_total",
			Help:      "Short-term items promoted to long-term.",
		}),
		sweeps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Background sweep cycles, by sweep.",
		}, []string{"sweep"}),
		forgotten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_forgotten_total",
			Help:      "Short-term items deleted, by sweep.",
		}, []string{"sweep"}),
		tierItems: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tier_items",
			Help:      "Items currently held, by tier.",
		}, []string{"tier"}),
	}
}

// Sweep label values.
const (
	SweepConsolidation = "consolidation"
	SweepForgetting    = "forgetting"
)

func (m *Metrics) ObserveStore(tier string) {
	if m == nil {
		return
	}
	m.stored.WithLabelValues(tier).Inc()
}

func (m *Metrics) ObserveRetrieval(d time.Duration, hits int) {
	if m == nil {
		return
	}
	m.retrievals.Inc()
	m.retrieved.Add(float64(hits))
	m.retrievalDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveEviction(tier string) {
	if m == nil {
		return
	}
	m.evictions.WithLabelValues(tier).Inc()
}

func (m *Metrics) ObserveSweep(sweep string, promoted, forgotten int) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues(sweep).Inc()
	m.promoted.Add(float64(promoted))
	m.forgotten.WithLabelValues(sweep).Add(float64(forgotten))
}

func (m *Metrics) SetTierItems(tier string, n int) {
	if m == nil {
		return
	}
	m.tierItems.WithLabelValues(tier).Set(float64(n))
}
