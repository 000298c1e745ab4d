package metrics

import (
	"time"

	"github.com/LavishGent/abcache/internal/types"
)

// NoOpTracker is a no-operation metrics recorder for testing.
type NoOpTracker struct{}

func NewNoOpTracker() *NoOpTracker {
	return &NoOpTracker{}
}

func (t *NoOpTracker) RecordHit(tenant string)                                    {}
func (t *NoOpTracker) RecordMiss(tenant string)                                   {}
func (t *NoOpTracker) RecordLoad(tenant string, latency time.Duration, err error) {}
func (t *NoOpTracker) RecordEviction(tenant string)                               {}
func (t *NoOpTracker) RecordInvalidation(tenant string)                           {}
func (t *NoOpTracker) RecordCircuitBreakerStateChange(from, to string)            {}

// Snapshot returns empty metrics.
func (t *NoOpTracker) Snapshot() types.MetricsSnapshot { return types.MetricsSnapshot{} }

// Reset does nothing.
func (t *NoOpTracker) Reset() {}

// NoOpPublisher is a no-operation metrics publisher for testing or when disabled.
type NoOpPublisher struct{}

func NewNoOpPublisher() *NoOpPublisher {
	return &NoOpPublisher{}
}

func (p *NoOpPublisher) Gauge(name string, value float64, tags ...string)           {}
func (p *NoOpPublisher) Incr(name string, tags ...string)                           {}
func (p *NoOpPublisher) Count(name string, value int64, tags ...string)             {}
func (p *NoOpPublisher) Histogram(name string, value float64, tags ...string)       {}
func (p *NoOpPublisher) Timing(name string, duration time.Duration, tags ...string) {}
func (p *NoOpPublisher) Event(title, text, alertType string, tags ...string)        {}
func (p *NoOpPublisher) PublishHealthMetrics(metrics *types.PublisherHealthMetrics) {}
func (p *NoOpPublisher) Close() error                                               { return nil }

var _ types.MetricsRecorder = (*NoOpTracker)(nil)
var _ types.Publisher = (*NoOpPublisher)(nil)
