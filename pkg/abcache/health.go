package abcache

import (
	"github.com/LavishGent/abcache/internal/types"
)

// Re-export health types from internal/types.
type (
	// HealthStatus represents the overall health state.
	HealthStatus = types.HealthStatus

	// HealthMetrics contains overall service health information.
	HealthMetrics = types.HealthMetrics

	// GatewayHealthMetrics contains backing store health details.
	GatewayHealthMetrics = types.GatewayHealthMetrics

	// CacheStats contains the experiment cache counters.
	CacheStats = types.CacheStats

	// MetricsSnapshot contains a point-in-time view of tracked metrics.
	MetricsSnapshot = types.MetricsSnapshot

	PublisherHealthMetrics = types.PublisherHealthMetrics
)

// Re-export health status constants.
const (
	HealthStatusHealthy   = types.HealthStatusHealthy
	HealthStatusDegraded  = types.HealthStatusDegraded
	HealthStatusUnhealthy = types.HealthStatusUnhealthy
)
