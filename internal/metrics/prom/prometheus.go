// Package prom exposes experiment cache metrics to a Prometheus
// registry.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/LavishGent/abcache/internal/types"
)

const subsystem = "experiment_cache"

// Recorder implements types.MetricsRecorder with Prometheus vectors.
type Recorder struct {
	lookups       *prometheus.CounterVec
	loads         *prometheus.CounterVec
	loadDuration  *prometheus.HistogramVec
	evictions     *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	circuit       *prometheus.CounterVec
}

func NewRecorder(namespace string) *Recorder {
	return &Recorder{
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "lookups_total",
				Help:      "Count of experiment set lookups by tenant and result (hit or miss).",
			},
			[]string{"tenant", "result"},
		),
		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "loads_total",
				Help:      "Count of gateway loads by tenant and outcome (ok or error).",
			},
			[]string{"tenant", "outcome"},
		),
		loadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "load_duration_seconds",
				Help:      "Latency of gateway loads in seconds.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"tenant"},
		),
		evictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "evictions_total",
				Help:      "Count of experiment sets evicted by the LRU policy.",
			},
			[]string{"tenant"},
		),
		invalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "invalidations_total",
				Help:      "Count of explicit invalidations.",
			},
			[]string{"tenant"},
		),
		circuit: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "circuit_breaker_transitions_total",
				Help:      "Count of gateway circuit breaker state transitions.",
			},
			[]string{"from", "to"},
		),
	}
}

// Register adds all vectors to reg.
func (r *Recorder) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{r.lookups, r.loads, r.loadDuration, r.evictions, r.invalidations, r.circuit} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) RecordHit(tenant string) {
	r.lookups.WithLabelValues(tenant, "hit").Inc()
}

func (r *Recorder) RecordMiss(tenant string) {
	r.lookups.WithLabelValues(tenant, "miss").Inc()
}

func (r *Recorder) RecordLoad(tenant string, latency time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.loads.WithLabelValues(tenant, outcome).Inc()
	r.loadDuration.WithLabelValues(tenant).Observe(latency.Seconds())
}

func (r *Recorder) RecordEviction(tenant string) {
	r.evictions.WithLabelValues(tenant).Inc()
}

func (r *Recorder) RecordInvalidation(tenant string) {
	r.invalidations.WithLabelValues(tenant).Inc()
}

func (r *Recorder) RecordCircuitBreakerStateChange(from, to string) {
	r.circuit.WithLabelValues(from, to).Inc()
}

var _ types.MetricsRecorder = (*Recorder)(nil)
