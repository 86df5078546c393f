// Copyright © 2024 The ELPS authors

// Package metrics holds the Prometheus collectors of the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cljsym"

// Resolution outcomes.
const (
	OutcomeResolved = "resolved"
	OutcomeEmpty    = "empty"
	OutcomeSkipped  = "skipped"
)

// Metrics groups the collectors.  A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	StatesComputed  prometheus.Counter
	StatesDiscarded prometheus.Counter
	StatesCancelled prometheus.Counter
	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec
	Resolutions     *prometheus.CounterVec
	ResolveSeconds  prometheus.Histogram
	FilesIndexed    prometheus.Gauge
}

// New creates the collectors and registers them with reg.  A nil reg leaves
// them unregistered, which suits tests and embedded use.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StatesComputed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_states_computed_total",
			Help:      "Per-file states computed by role assignment.",
		}),
		StatesDiscarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_states_discarded_total",
			Help:      "Redundantly computed per-file states dropped in favor of an earlier result.",
		}),
		StatesCancelled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_states_cancelled_total",
			Help:      "Role assignment passes interrupted by cancellation.",
		}),
		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache hits by cache name.",
		}, []string{"cache"}),
		CacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache misses by cache name.",
		}, []string{"cache"}),
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Symbol resolutions by outcome.",
		}, []string{"outcome"}),
		ResolveSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Latency of a single symbol resolution.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		FilesIndexed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_files",
			Help:      "Files currently held by the definition registry.",
		}),
	}
}

func (m *Metrics) StateComputed() {
	if m != nil {
		m.StatesComputed.Inc()
	}
}

func (m *Metrics) StateDiscarded() {
	if m != nil {
		m.StatesDiscarded.Inc()
	}
}

func (m *Metrics) StateCancelled() {
	if m != nil {
		m.StatesCancelled.Inc()
	}
}

func (m *Metrics) CacheHit(cache string) {
	if m != nil {
		m.CacheHits.WithLabelValues(cache).Inc()
	}
}

func (m *Metrics) CacheMiss(cache string) {
	if m != nil {
		m.CacheMisses.WithLabelValues(cache).Inc()
	}
}

func (m *Metrics) Resolved(outcome string, seconds float64) {
	if m != nil {
		m.Resolutions.WithLabelValues(outcome).Inc()
		m.ResolveSeconds.Observe(seconds)
	}
}

func (m *Metrics) SetFiles(n int) {
	if m != nil {
		m.FilesIndexed.Set(float64(n))
	}
}
