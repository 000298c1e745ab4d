package types

import "time"

// HealthStatus represents the overall health state.
type HealthStatus int

const (
	// HealthStatusHealthy indicates all systems operating normally.
	HealthStatusHealthy HealthStatus = iota + 1
	// HealthStatusDegraded indicates loads are failing but resident sets are served.
	HealthStatusDegraded
	// HealthStatusUnhealthy indicates the service is closed.
	HealthStatusUnhealthy
)

// String returns the string representation of health status.
func (s HealthStatus) String() string {
	switch s {
	case HealthStatusHealthy:
		return "healthy"
	case HealthStatusDegraded:
		return "degraded"
	case HealthStatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// CacheStats is a point-in-time view of the experiment cache counters.
type CacheStats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Invalidations int64 `json:"invalidations"`
	Evictions     int64 `json:"evictions"`
	LoadFailures  int64 `json:"loadFailures"`
	SharedWaits   int64 `json:"sharedWaits"`
	Reloads       int64 `json:"reloads"`
	Size          int   `json:"cacheSize"`
	Capacity      int   `json:"capacity"`
	Enabled       bool  `json:"cacheEnabled"`
}

// HitRatio returns hits / (hits + misses), or 0 before any lookup.
func (s CacheStats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// HealthMetrics contains overall service health information.
type HealthMetrics struct {
	Timestamp time.Time
	Gateway   GatewayHealthMetrics
	Cache     CacheStats
	Status    HealthStatus
}

// GatewayHealthMetrics describes the backing store as seen through the
// resilience policy.
type GatewayHealthMetrics struct {
	LastErrorTime       time.Time
	LastError           string
	CircuitBreakerState string
	Available           bool
}

// MetricsSnapshot contains a point-in-time view of tracked metrics.
//
//nolint:govet // Metrics struct with many counters - grouping by category improves readability
type MetricsSnapshot struct {
	Timestamp time.Time
	// Lookup counters
	Hits   int64
	Misses int64
	// Load counters
	Loads        int64
	LoadFailures int64
	// Index counters
	Evictions     int64
	Invalidations int64

	// Load latency (milliseconds)
	AvgLoadLatencyMs float64
	P50LoadLatencyMs float64
	P95LoadLatencyMs float64
	P99LoadLatencyMs float64

	CircuitBreakerState   string
	CircuitBreakerChanges int64
}

// HitRatio calculates the lookup hit ratio.
func (s *MetricsSnapshot) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// LoadFailureRatio calculates the fraction of loads that failed.
func (s *MetricsSnapshot) LoadFailureRatio() float64 {
	if s.Loads == 0 {
		return 0
	}
	return float64(s.LoadFailures) / float64(s.Loads)
}

// PublisherHealthMetrics is the periodic health batch sent to a Publisher.
type PublisherHealthMetrics struct {
	CacheSize            int
	CacheCapacity        int
	HitRatio             float64
	LoadFailureRatio     float64
	AverageLoadLatencyMs float64
	CacheEnabled         bool
	GatewayAvailable     bool
}
