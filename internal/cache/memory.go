package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/LavishGent/abcache/internal/config"
	"github.com/LavishGent/abcache/internal/transform"
	"github.com/LavishGent/abcache/internal/types"
)

// OpLoad is the LoadError op for failures outside the loader itself,
// such as a recovered panic.
const OpLoad = "load"

const (
	defaultCapacity          = 100
	defaultLoadTimeout       = 10 * time.Second
	defaultReloadConcurrency = 8
)

// Options holds the optional collaborators of an ExperimentCache.
type Options struct {
	Logger  *slog.Logger
	Metrics types.MetricsRecorder
	// Clock stamps LoadedAt on new sets. Defaults to time.Now.
	Clock func() time.Time
}

// ExperimentCache keeps the most recently used tenants' experiment sets in
// memory and loads missing tenants through the gateway. Concurrent misses
// for one tenant share a single load.
type ExperimentCache struct {
	loader  types.SetLoader
	gateway types.Gateway
	metrics types.MetricsRecorder
	logger  *slog.Logger

	// mu guards index and removing. Loads never run under it.
	mu       sync.Mutex
	index    *simplelru.LRU[string, *types.ExperimentSet]
	removing bool

	flights singleflight.Group

	capacity          int
	loadTimeout       time.Duration
	reloadConcurrency int

	hits          atomic.Int64
	misses        atomic.Int64
	invalidations atomic.Int64
	evictions     atomic.Int64
	loadFailures  atomic.Int64
	sharedWaits   atomic.Int64
	reloads       atomic.Int64

	closed atomic.Bool
}

// New creates an ExperimentCache that loads tenants from gateway and builds
// their sets with transformer.
func New(cfg config.CacheConfig, gateway types.Gateway, transformer *transform.Transformer, opts Options) (*ExperimentCache, error) {
	return newExperimentCache(cfg, gateway, transform.NewLoader(gateway, transformer, opts.Clock), opts)
}

func newExperimentCache(cfg config.CacheConfig, gateway types.Gateway, loader types.SetLoader, opts Options) (*ExperimentCache, error) {
	if gateway == nil {
		return nil, errors.New("experiment cache requires a gateway")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &ExperimentCache{
		loader:            loader,
		gateway:           gateway,
		metrics:           opts.Metrics,
		logger:            logger.With("component", "experiment-cache"),
		capacity:          cfg.Capacity,
		loadTimeout:       cfg.LoadTimeout,
		reloadConcurrency: cfg.ReloadConcurrency,
	}
	if c.capacity <= 0 {
		c.capacity = defaultCapacity
	}
	if c.loadTimeout <= 0 {
		c.loadTimeout = defaultLoadTimeout
	}
	if c.reloadConcurrency <= 0 {
		c.reloadConcurrency = defaultReloadConcurrency
	}

	index, err := simplelru.NewLRU(c.capacity, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU index: %w", err)
	}
	c.index = index

	return c, nil
}

// onEvict runs under mu. Explicit removals are not evictions.
func (c *ExperimentCache) onEvict(tenant string, _ *types.ExperimentSet) {
	if c.removing {
		return
	}
	c.evictions.Add(1)
	if c.metrics != nil {
		c.metrics.RecordEviction(tenant)
	}
	c.logger.Debug("Evicted experiment set", "tenant", tenant)
}

// Get returns the tenant's experiment set, loading it on a miss. All callers
// waiting on the same load receive the same set or the same error. A caller
// whose ctx ends stops waiting; the load itself keeps running.
func (c *ExperimentCache) Get(ctx context.Context, tenant string) (*types.ExperimentSet, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}

	c.mu.Lock()
	set, ok := c.index.Get(tenant)
	c.mu.Unlock()
	if ok {
		c.hits.Add(1)
		if c.metrics != nil {
			c.metrics.RecordHit(tenant)
		}
		return set, nil
	}

	return c.await(ctx, tenant, true)
}

// Peek returns the resident set without touching recency or counters.
func (c *ExperimentCache) Peek(tenant string) (*types.ExperimentSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.Peek(tenant)
}

// await joins or starts the tenant's flight. Only a flight started by Get
// counts as a miss. A Get flight first re-checks the index: a previous
// flight may have stored the set after the caller's lookup and already
// been forgotten by the group.
func (c *ExperimentCache) await(ctx context.Context, tenant string, fromGet bool) (*types.ExperimentSet, error) {
	var led bool
	ch := c.flights.DoChan(tenant, func() (any, error) {
		led = true
		if fromGet {
			c.mu.Lock()
			set, ok := c.index.Get(tenant)
			c.mu.Unlock()
			if ok {
				c.hits.Add(1)
				if c.metrics != nil {
					c.metrics.RecordHit(tenant)
				}
				return set, nil
			}

			c.misses.Add(1)
			if c.metrics != nil {
				c.metrics.RecordMiss(tenant)
			}
		}
		return c.load(ctx, tenant)
	})

	select {
	case res := <-ch:
		if !led {
			c.sharedWaits.Add(1)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*types.ExperimentSet), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load runs inside a flight. It is detached from the caller's cancellation,
// bounded by the load timeout and never panics.
func (c *ExperimentCache) load(ctx context.Context, tenant string) (set *types.ExperimentSet, err error) {
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Panic while loading experiment set", "tenant", tenant, "panic", r)
			set, err = nil, types.NewLoadError(OpLoad, tenant, fmt.Errorf("panic: %v", r))
		}

		latency := time.Since(start)
		if c.metrics != nil {
			c.metrics.RecordLoad(tenant, latency, err)
		}
		if err != nil {
			c.loadFailures.Add(1)
			c.logger.Warn("Experiment set load failed", "tenant", tenant, "latency", latency, "error", err)
			return
		}

		c.mu.Lock()
		c.index.Add(tenant, set)
		c.mu.Unlock()
		c.logger.Debug("Experiment set loaded",
			"tenant", tenant,
			"set_id", set.ID(),
			"experiments", set.Len(),
			"latency", latency,
		)
	}()

	set, err = c.loader.Load(loadCtx, tenant)
	if err != nil && !types.IsLoadError(err) {
		err = types.NewLoadError(OpLoad, tenant, err)
	}
	return set, err
}

// Invalidate drops the tenant's resident set. A load already in flight for
// the tenant is not affected and caches its result when it completes.
func (c *ExperimentCache) Invalidate(tenant string) {
	c.mu.Lock()
	c.removing = true
	c.index.Remove(tenant)
	c.removing = false
	c.mu.Unlock()

	c.invalidations.Add(1)
	if c.metrics != nil {
		c.metrics.RecordInvalidation(tenant)
	}
}

// InvalidateAll drops every resident set as one invalidation.
func (c *ExperimentCache) InvalidateAll() {
	c.mu.Lock()
	c.removing = true
	c.index.Purge()
	c.removing = false
	c.mu.Unlock()

	c.invalidations.Add(1)
	if c.metrics != nil {
		c.metrics.RecordInvalidation("")
	}
}

// Reload loads every tenant the gateway lists and replaces its entry.
// Resident tenants no longer listed are dropped. A tenant whose load fails
// keeps its previous set; the failures are joined into the returned error.
func (c *ExperimentCache) Reload(ctx context.Context) error {
	return c.refreshAll(ctx, "reload")
}

// Preload warms the cache with every listed tenant.
func (c *ExperimentCache) Preload(ctx context.Context) error {
	return c.refreshAll(ctx, "preload")
}

func (c *ExperimentCache) refreshAll(ctx context.Context, reason string) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	start := time.Now()
	tenants, err := c.gateway.ListTenants(ctx)
	if err != nil {
		return fmt.Errorf("%s: list tenants: %w", reason, err)
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(c.reloadConcurrency)
	for _, tenant := range tenants {
		g.Go(func() error {
			if _, err := c.await(ctx, tenant, false); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	pruned := c.prune(tenants)
	c.reloads.Add(1)

	c.logger.Info("Experiment sets refreshed",
		"reason", reason,
		"tenants", len(tenants),
		"failed", len(errs),
		"pruned", pruned,
		"duration", time.Since(start),
	)

	return errors.Join(errs...)
}

// prune removes resident tenants missing from listed.
func (c *ExperimentCache) prune(listed []string) int {
	keep := make(map[string]struct{}, len(listed))
	for _, t := range listed {
		keep[t] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.removing = true
	defer func() { c.removing = false }()

	var n int
	for _, tenant := range c.index.Keys() {
		if _, ok := keep[tenant]; !ok {
			c.index.Remove(tenant)
			n++
		}
	}
	return n
}

// Len returns the number of resident sets.
func (c *ExperimentCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *ExperimentCache) Stats() types.CacheStats {
	return types.CacheStats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Invalidations: c.invalidations.Load(),
		Evictions:     c.evictions.Load(),
		LoadFailures:  c.loadFailures.Load(),
		SharedWaits:   c.sharedWaits.Load(),
		Reloads:       c.reloads.Load(),
		Size:          c.Len(),
		Capacity:      c.capacity,
		Enabled:       true,
	}
}

// Close drops all resident sets. Subsequent calls return ErrClosed.
func (c *ExperimentCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.mu.Lock()
	c.removing = true
	c.index.Purge()
	c.removing = false
	c.mu.Unlock()
	return nil
}
