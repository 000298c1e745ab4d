package types

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ManagerOptions holds dependencies injected into the experiment service.
type ManagerOptions struct {
	// Logger is the structured logger to use.
	Logger Logger

	// Metrics receives per-operation events.
	Metrics MetricsRecorder

	// Gateway overrides the gateway built from config.
	Gateway Gateway

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// Registerer receives the Prometheus collectors when
	// Metrics.Prometheus is enabled. Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// CacheEnabled overrides Cache.Enabled when non-nil.
	CacheEnabled *bool

	// DisableResilience disables circuit breaker, retry and bulkhead.
	DisableResilience bool
}

// Now returns the configured clock's time.
func (o *ManagerOptions) Now() time.Time {
	if o == nil || o.Clock == nil {
		return time.Now()
	}
	return o.Clock()
}
