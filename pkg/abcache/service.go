package abcache

import (
	"context"
	"time"

	"github.com/LavishGent/abcache/internal/cache"
	"github.com/LavishGent/abcache/internal/types"
)

// Service serves per-tenant experiment configuration and variant
// assignments. It is safe for concurrent use.
type Service interface {
	ExperimentSet(ctx context.Context, tenant string) (*ExperimentSet, error)
	ActiveExperiments(ctx context.Context, tenant string, now time.Time) ([]Experiment, error)
	MeeGroupID(ctx context.Context, tenant string) (string, bool, error)
	VariantForUser(ctx context.Context, tenant, userID string, experimentID int64) (Variant, bool, error)
	GroupScore(ctx context.Context, tenant, userID string) (float64, bool, error)
	Tenants(ctx context.Context) ([]string, error)
	Invalidate(tenant string) error
	InvalidateAll() error
	Reload(ctx context.Context) error
	Preload(ctx context.Context) error
	Stats() CacheStats
	MetricsSnapshot() MetricsSnapshot
	CacheEnabled() bool
	Health(ctx context.Context) (*HealthMetrics, error)
	Close() error
	CloseWithTimeout(timeout time.Duration) error
}

// Publisher sends metrics to an external backend such as DataDog.
type Publisher = types.Publisher

var _ Service = (*cache.Manager)(nil)
