package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/LavishGent/abcache/internal/transform"
	"github.com/LavishGent/abcache/internal/types"
)

// setSource is what the Manager reads experiment sets from.
type setSource interface {
	Get(ctx context.Context, tenant string) (*types.ExperimentSet, error)
	Invalidate(tenant string)
	InvalidateAll()
	Reload(ctx context.Context) error
	Preload(ctx context.Context) error
	Stats() types.CacheStats
	Close() error
}

var (
	_ setSource = (*ExperimentCache)(nil)
	_ setSource = (*DirectSource)(nil)
)

// DirectSource is the uncached path: every Get loads the tenant through
// the same loader the cache uses. Invalidation and reload are no-ops.
type DirectSource struct {
	loader       types.SetLoader
	metrics      types.MetricsRecorder
	logger       *slog.Logger
	misses       atomic.Int64
	loadFailures atomic.Int64
	closed       atomic.Bool
}

// NewDirectSource creates the uncached path over gateway and transformer.
func NewDirectSource(gateway types.Gateway, transformer *transform.Transformer, opts Options) *DirectSource {
	return newDirectSource(transform.NewLoader(gateway, transformer, opts.Clock), opts)
}

func newDirectSource(loader types.SetLoader, opts Options) *DirectSource {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectSource{
		loader:  loader,
		metrics: opts.Metrics,
		logger:  logger.With("component", "direct-source"),
	}
}

// Get loads the tenant. Each call counts as a miss.
func (d *DirectSource) Get(ctx context.Context, tenant string) (set *types.ExperimentSet, err error) {
	if d.closed.Load() {
		return nil, types.ErrClosed
	}

	d.misses.Add(1)
	if d.metrics != nil {
		d.metrics.RecordMiss(tenant)
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Panic while loading experiment set", "tenant", tenant, "panic", r)
			set, err = nil, types.NewLoadError(OpLoad, tenant, fmt.Errorf("panic: %v", r))
		}
		if d.metrics != nil {
			d.metrics.RecordLoad(tenant, time.Since(start), err)
		}
		if err != nil {
			d.loadFailures.Add(1)
		}
	}()

	set, err = d.loader.Load(ctx, tenant)
	if err != nil && !types.IsLoadError(err) {
		err = types.NewLoadError(OpLoad, tenant, err)
	}
	return set, err
}

func (d *DirectSource) Invalidate(tenant string) {}

func (d *DirectSource) InvalidateAll() {}

func (d *DirectSource) Reload(ctx context.Context) error { return nil }

func (d *DirectSource) Preload(ctx context.Context) error { return nil }

// Stats reports direct loads as misses with Enabled false.
func (d *DirectSource) Stats() types.CacheStats {
	return types.CacheStats{
		Misses:       d.misses.Load(),
		LoadFailures: d.loadFailures.Load(),
	}
}

func (d *DirectSource) Close() error {
	d.closed.Store(true)
	return nil
}
