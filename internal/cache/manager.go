package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/LavishGent/abcache/internal/bucketing"
	"github.com/LavishGent/abcache/internal/config"
	"github.com/LavishGent/abcache/internal/logging"
	"github.com/LavishGent/abcache/internal/metrics"
	"github.com/LavishGent/abcache/internal/metrics/datadog"
	"github.com/LavishGent/abcache/internal/metrics/prom"
	"github.com/LavishGent/abcache/internal/repository"
	"github.com/LavishGent/abcache/internal/resilience"
	"github.com/LavishGent/abcache/internal/transform"
	"github.com/LavishGent/abcache/internal/types"
)

// DefaultShutdownTimeout is the default timeout for shutting down the manager.
const DefaultShutdownTimeout = 30 * time.Second

// DefaultBackgroundOpTimeout is the default timeout for background operations.
const DefaultBackgroundOpTimeout = 5 * time.Second

// Manager serves experiment sets and bucketing decisions per tenant, either
// through the ExperimentCache or, when caching is disabled, by loading on
// every call.
type Manager struct {
	source         setSource
	gateway        *repository.ResilientGateway
	policy         *resilience.Policy
	config         *config.Config
	metrics        types.MetricsRecorder
	tracker        *metrics.Tracker
	publisher      types.Publisher
	background     *metrics.BackgroundPublisher
	logger         *slog.Logger
	keyValidator   *types.KeyValidator
	closers        []io.Closer
	now            func() time.Time
	shutdownCancel context.CancelFunc
	shutdownCtx    context.Context
	bgWg           sync.WaitGroup
	bgMu           sync.Mutex
	bgTimeout      time.Duration
	cacheEnabled   bool
	closed         atomic.Bool
}

// NewManager creates a Manager from cfg. The config is copied; opts may be nil.
//
//nolint:gocyclo // Configuration initialization requires multiple conditional checks
func NewManager(cfg *config.Config, opts *types.ManagerOptions) (*Manager, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c := *cfg
	cfg = &c

	if opts == nil {
		opts = &types.ManagerOptions{}
	}

	logger := logging.New(opts.Logger).With("component", "experiment-manager")

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	m := &Manager{
		config:         cfg,
		logger:         logger,
		now:            opts.Now,
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
		cacheEnabled:   cfg.Cache.Enabled,
		bgTimeout:      max(DefaultBackgroundOpTimeout, cfg.Cache.LoadTimeout),
	}

	if opts.CacheEnabled != nil {
		m.cacheEnabled = *opts.CacheEnabled
	}
	if opts.DisableResilience {
		cfg.CircuitBreaker.Enabled = false
		cfg.Retry.Enabled = false
		cfg.Bulkhead.Enabled = false
	}

	if cfg.KeyValidation.Enabled {
		m.keyValidator = types.NewKeyValidator(cfg.KeyValidation.ToTypesConfig())
	}

	gw := opts.Gateway
	if gw == nil {
		opened, err := repository.Open(cfg, logger)
		if err != nil {
			shutdownCancel()
			return nil, err
		}
		if closer, ok := opened.(io.Closer); ok {
			m.closers = append(m.closers, closer)
		}
		gw = opened
	}

	m.setupMetrics(opts)

	m.policy = resilience.NewPolicy(cfg)
	m.policy.SetOnCircuitStateChange(func(from, to resilience.State) {
		logger.Info("Circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
		if m.metrics != nil {
			m.metrics.RecordCircuitBreakerStateChange(from.String(), to.String())
		}
	})
	m.gateway = repository.NewResilientGateway(gw, m.policy)

	transformer := transform.New(transform.Options{
		Logger:         logger,
		ValidateRanges: cfg.Transform.ValidateRanges,
	})
	sourceOpts := Options{
		Logger:  logger,
		Metrics: m.metrics,
		Clock:   opts.Clock,
	}

	if m.cacheEnabled {
		ec, err := New(cfg.Cache, m.gateway, transformer, sourceOpts)
		if err != nil {
			shutdownCancel()
			return nil, errors.Join(err, m.closeAll())
		}
		m.source = ec
	} else {
		logger.Info("Experiment cache disabled, loading on every call")
		m.source = NewDirectSource(m.gateway, transformer, sourceOpts)
	}

	if m.background != nil {
		m.background.Start(shutdownCtx)
	}

	if m.cacheEnabled && cfg.Cache.PreloadOnStart {
		m.runBackground(func(ctx context.Context) {
			if err := m.source.Preload(ctx); err != nil {
				m.logger.Warn("Preload finished with errors", "error", err)
			}
		})
	}

	return m, nil
}

// setupMetrics combines the caller's recorder with the configured backends.
func (m *Manager) setupMetrics(opts *types.ManagerOptions) {
	cfg := m.config.Metrics
	recorders := []types.MetricsRecorder{opts.Metrics}

	if cfg.Enabled {
		m.tracker = metrics.NewTracker()
		recorders = append(recorders, m.tracker)

		publisher, err := datadog.NewPublisher(&cfg.DataDog, m.logger)
		if err != nil {
			m.logger.Warn("Failed to create DataDog publisher, logging metrics instead", "error", err)
			publisher = metrics.NewLoggingPublisher(m.logger)
		} else if cfg.DataDog.Enabled {
			recorders = append(recorders, metrics.NewEmitter(publisher))
		} else {
			publisher = metrics.NewLoggingPublisher(m.logger)
		}
		m.publisher = publisher
		if cfg.PublishInterval > 0 {
			m.background = metrics.NewBackgroundPublisher(publisher, cfg.PublishInterval, m.healthMetrics, m.logger)
		}
	}

	if cfg.Prometheus.Enabled {
		reg := opts.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		rec := prom.NewRecorder(cfg.Prometheus.Namespace)
		if err := rec.Register(reg); err != nil {
			m.logger.Warn("Failed to register Prometheus metrics", "error", err)
		} else {
			recorders = append(recorders, rec)
		}
		if err := reg.Register(prom.NewStatsCollector(cfg.Prometheus.Namespace, m.Stats)); err != nil {
			m.logger.Warn("Failed to register Prometheus stats collector", "error", err)
		}
	}

	m.metrics = metrics.NewMulti(recorders...)
}

func (m *Manager) healthMetrics() *types.PublisherHealthMetrics {
	return metrics.HealthFromSnapshot(m.tracker.Snapshot(), m.Stats(), m.gateway.Health().Available)
}

// ExperimentSet returns the tenant's current experiment set.
func (m *Manager) ExperimentSet(ctx context.Context, tenant string) (*types.ExperimentSet, error) {
	if m.closed.Load() {
		return nil, types.ErrClosed
	}
	if err := m.validateKey(tenant); err != nil {
		return nil, err
	}
	return m.source.Get(ctx, tenant)
}

// ActiveExperiments returns the experiments that are ACTIVE with
// StartTime <= now <= EndTime.
func (m *Manager) ActiveExperiments(ctx context.Context, tenant string, now time.Time) ([]types.Experiment, error) {
	set, err := m.ExperimentSet(ctx, tenant)
	if err != nil {
		return nil, err
	}
	return set.Active(now), nil
}

// MeeGroupID returns the tenant's group id. ok is false when it has none.
func (m *Manager) MeeGroupID(ctx context.Context, tenant string) (string, bool, error) {
	set, err := m.ExperimentSet(ctx, tenant)
	if err != nil {
		return "", false, err
	}
	id, ok := set.MeeGroupID()
	return id, ok, nil
}

// VariantForUser buckets userID into one of the experiment's variants.
// ok is false when the experiment is unknown or no variant covers the score.
func (m *Manager) VariantForUser(ctx context.Context, tenant, userID string, experimentID int64) (types.Variant, bool, error) {
	set, err := m.ExperimentSet(ctx, tenant)
	if err != nil {
		return types.Variant{}, false, err
	}

	exp, ok := set.Experiment(experimentID)
	if !ok {
		m.logger.Debug("Unknown experiment",
			"tenant", tenant,
			"experiment_id", strconv.FormatInt(experimentID, 10),
		)
		return types.Variant{}, false, nil
	}

	v, ok := bucketing.Assign(userID, experimentID, exp.Variants)
	return v, ok, nil
}

// GroupScore returns userID's score against the tenant's mee group. ok is
// false when the tenant has no group.
func (m *Manager) GroupScore(ctx context.Context, tenant, userID string) (float64, bool, error) {
	group, ok, err := m.MeeGroupID(ctx, tenant)
	if err != nil || !ok {
		return 0, false, err
	}
	return bucketing.GroupScore(userID, group), true, nil
}

// Invalidate drops the tenant's cached set. No-op on the direct path.
func (m *Manager) Invalidate(tenant string) error {
	if m.closed.Load() {
		return types.ErrClosed
	}
	if err := m.validateKey(tenant); err != nil {
		return err
	}
	m.source.Invalidate(tenant)
	m.logger.Debug("Tenant invalidated", "tenant", tenant)
	return nil
}

// InvalidateAll drops every cached set. No-op on the direct path.
func (m *Manager) InvalidateAll() error {
	if m.closed.Load() {
		return types.ErrClosed
	}
	m.source.InvalidateAll()
	m.logger.Info("All tenants invalidated")
	return nil
}

// Reload refreshes every tenant the gateway lists. No-op on the direct path.
func (m *Manager) Reload(ctx context.Context) error {
	if m.closed.Load() {
		return types.ErrClosed
	}
	return m.source.Reload(ctx)
}

// Preload warms the cache with every listed tenant.
func (m *Manager) Preload(ctx context.Context) error {
	if m.closed.Load() {
		return types.ErrClosed
	}
	return m.source.Preload(ctx)
}

// Tenants lists the tenants known to the gateway.
func (m *Manager) Tenants(ctx context.Context) ([]string, error) {
	if m.closed.Load() {
		return nil, types.ErrClosed
	}
	return m.gateway.ListTenants(ctx)
}

// Stats returns the cache counters, or those of the direct path when the cache is off.
func (m *Manager) Stats() types.CacheStats {
	if m.source == nil {
		return types.CacheStats{}
	}
	return m.source.Stats()
}

// CacheEnabled reports whether sets are served from the cache.
func (m *Manager) CacheEnabled() bool {
	return m.cacheEnabled
}

// MetricsSnapshot returns the tracked load latencies and counters. It is
// empty when Metrics.Enabled is false.
func (m *Manager) MetricsSnapshot() types.MetricsSnapshot {
	if m.tracker == nil {
		return types.MetricsSnapshot{}
	}
	return m.tracker.Snapshot()
}

// Health returns the overall service health.
func (m *Manager) Health(ctx context.Context) (*types.HealthMetrics, error) {
	h := &types.HealthMetrics{
		Timestamp: m.now(),
		Gateway:   m.gateway.Health(),
		Cache:     m.Stats(),
	}

	switch {
	case m.closed.Load():
		h.Status = types.HealthStatusUnhealthy
	case !h.Gateway.Available:
		h.Status = types.HealthStatusDegraded
	default:
		h.Status = types.HealthStatusHealthy
	}

	return h, nil
}

// Close releases all resources using the configured shutdown timeout.
func (m *Manager) Close() error {
	timeout := m.config.Cache.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return m.CloseWithTimeout(timeout)
}

// CloseWithTimeout waits up to timeout for background operations, then
// releases the cache, metrics publishers and gateway. A timeout yields
// ErrShutdownTimeout but the remaining resources are still closed.
func (m *Manager) CloseWithTimeout(timeout time.Duration) error {
	// Holding bgMu keeps runBackground from adding to bgWg once closed is set.
	m.bgMu.Lock()
	if m.closed.Swap(true) {
		m.bgMu.Unlock()
		return nil
	}
	m.shutdownCancel()
	m.bgMu.Unlock()

	m.logger.Info("Closing experiment manager, waiting for background operations", "timeout", timeout)

	done := make(chan struct{})
	go func() {
		m.bgWg.Wait()
		close(done)
	}()

	var errs []error
	select {
	case <-done:
	case <-time.After(timeout):
		m.logger.Warn("Shutdown timeout exceeded, proceeding with close", "timeout", timeout)
		errs = append(errs, types.ErrShutdownTimeout)
	}

	if m.background != nil {
		m.background.Stop()
	}
	if err := m.source.Close(); err != nil {
		errs = append(errs, err)
	}
	if m.publisher != nil {
		if err := m.publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.closeAll(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (m *Manager) closeAll() error {
	var errs []error
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// runBackground executes fn in a goroutine tracked for graceful shutdown.
// fn receives a context cancelled on shutdown. Nothing runs once closed.
func (m *Manager) runBackground(fn func(ctx context.Context)) {
	m.bgMu.Lock()
	if m.closed.Load() {
		m.bgMu.Unlock()
		return
	}
	m.bgWg.Add(1)
	m.bgMu.Unlock()

	go func() {
		defer m.bgWg.Done()
		ctx, cancel := context.WithTimeout(m.shutdownCtx, m.bgTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (m *Manager) validateKey(tenant string) error {
	if m.keyValidator == nil {
		return nil
	}
	return m.keyValidator.Validate(tenant)
}
