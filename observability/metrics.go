package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics wraps collectors tracking adjudication engine health.
type EngineMetrics struct {
	decisions      *prometheus.CounterVec
	declineReasons *prometheus.CounterVec
	replays        prometheus.Counter
	conflicts      prometheus.Counter
	malformed      prometheus.Counter
	latency        prometheus.Histogram
	customers      prometheus.Gauge
}

var (
	engineMetricsOnce sync.Once
	engineRegistry    *EngineMetrics
)

// Engine returns the lazily-initialised metrics registry for the
// adjudication engine.
func Engine() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "loadgate",
				Subsystem: "engine",
				Name:      "decisions_total",
				Help:      "Total adjudication decisions segmented by outcome.",
			}, []string{"outcome"}),
			declineReasons: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "loadgate",
				Subsystem: "engine",
				Name:      "decline_reasons_total",
				Help:      "Total decline reason codes attached to decisions.",
			}, []string{"reason"}),
			replays: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "loadgate",
				Subsystem: "engine",
				Name:      "replays_total",
				Help:      "Count of records classified as idempotent replays.",
			}),
			conflicts: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "loadgate",
				Subsystem: "engine",
				Name:      "conflicts_total",
				Help:      "Count of records declined as identifier conflicts.",
			}),
			malformed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "loadgate",
				Subsystem: "engine",
				Name:      "malformed_total",
				Help:      "Count of records declined as malformed input.",
			}),
			latency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "loadgate",
				Subsystem: "engine",
				Name:      "decision_latency_seconds",
				Help:      "Latency distribution for per-record adjudication.",
				Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
			}),
			customers: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "loadgate",
				Subsystem: "engine",
				Name:      "window_customers",
				Help:      "Number of distinct customers with window state.",
			}),
		}
		prometheus.MustRegister(
			engineRegistry.decisions,
			engineRegistry.declineReasons,
			engineRegistry.replays,
			engineRegistry.conflicts,
			engineRegistry.malformed,
			engineRegistry.latency,
			engineRegistry.customers,
		)
	})
	return engineRegistry
}

// ObserveDecision records one adjudicated decision and its pipeline latency.
func (m *EngineMetrics) ObserveDecision(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	normalized := strings.ToLower(strings.TrimSpace(outcome))
	if normalized == "" {
		normalized = "unknown"
	}
	m.decisions.WithLabelValues(normalized).Inc()
	m.latency.Observe(duration.Seconds())
}

// RecordReason counts one decline reason code.
func (m *EngineMetrics) RecordReason(reason string) {
	if m == nil {
		return
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "UNKNOWN"
	}
	m.declineReasons.WithLabelValues(reason).Inc()
}

// RecordReplay counts one idempotent replay.
func (m *EngineMetrics) RecordReplay() {
	if m == nil {
		return
	}
	m.replays.Inc()
}

// RecordConflict counts one identifier conflict.
func (m *EngineMetrics) RecordConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

// RecordMalformed counts one malformed input record.
func (m *EngineMetrics) RecordMalformed() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}

// SetCustomerCount publishes the number of customers with window state.
func (m *EngineMetrics) SetCustomerCount(n int) {
	if m == nil {
		return
	}
	m.customers.Set(float64(n))
}
