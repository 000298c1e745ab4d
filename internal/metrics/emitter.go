package metrics

import (
	"time"

	"github.com/LavishGent/abcache/internal/types"
)

// Metric names sent through a Publisher.
const (
	MetricLookup         = "lookup"
	MetricLoad           = "load"
	MetricLoadLatency    = "load.latency"
	MetricEviction       = "eviction"
	MetricInvalidation   = "invalidation"
	MetricCircuitChange  = "circuit_breaker.state_change"
	eventCircuitOpenText = "The gateway circuit breaker opened; loads fail fast until it recovers."
)

// Emitter forwards recorder events to a Publisher as tagged metrics.
type Emitter struct {
	publisher types.Publisher
}

func NewEmitter(publisher types.Publisher) *Emitter {
	return &Emitter{publisher: publisher}
}

func (e *Emitter) RecordHit(tenant string) {
	e.publisher.Incr(MetricLookup, TenantTag(tenant), StatusTag("hit"))
}

func (e *Emitter) RecordMiss(tenant string) {
	e.publisher.Incr(MetricLookup, TenantTag(tenant), StatusTag("miss"))
}

func (e *Emitter) RecordLoad(tenant string, latency time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.publisher.Incr(MetricLoad, TenantTag(tenant), StatusTag(status))
	e.publisher.Timing(MetricLoadLatency, latency, TenantTag(tenant))
}

func (e *Emitter) RecordEviction(tenant string) {
	e.publisher.Incr(MetricEviction, TenantTag(tenant))
}

func (e *Emitter) RecordInvalidation(tenant string) {
	e.publisher.Incr(MetricInvalidation, TenantTag(tenant))
}

func (e *Emitter) RecordCircuitBreakerStateChange(from, to string) {
	e.publisher.Incr(MetricCircuitChange, Tag("from", from), CircuitStateTag(to))
	if to == "open" {
		e.publisher.Event("abcache circuit breaker open", eventCircuitOpenText, "warning", CircuitStateTag(to))
	}
}

var _ types.MetricsRecorder = (*Emitter)(nil)
