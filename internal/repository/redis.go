package repository

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LavishGent/abcache/internal/config"
	"github.com/LavishGent/abcache/internal/resilience"
	"github.com/LavishGent/abcache/internal/types"
)

const (
	disconnectErrorThreshold = 5

	// maxPayloadBytes bounds a single stored row list.
	maxPayloadBytes = 8 << 20
)

// RedisGateway reads experiment configuration published to Redis.
//
// Layout under the configured prefix:
//
//	tenants                 set of tenants with an active group
//	group:<tenant>          mee group id
//	experiments:<tenant>    encoded []ExperimentRow
//	variants:<experimentID> encoded []VariantRow
type RedisGateway struct {
	client      *redis.Client
	config      config.RedisConfig
	logger      *slog.Logger
	experiments Codec[[]types.ExperimentRow]
	variants    Codec[[]types.VariantRow]

	mu            sync.RWMutex
	connected     atomic.Bool
	lastError     error
	lastErrorTime time.Time
	errorCount    atomic.Int64
}

func NewRedisGateway(cfg config.RedisConfig, logger *slog.Logger) (*RedisGateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	expCodec, err := CodecByName[[]types.ExperimentRow](cfg.Codec)
	if err != nil {
		return nil, err
	}
	varCodec, err := CodecByName[[]types.VariantRow](cfg.Codec)
	if err != nil {
		return nil, err
	}

	opts := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password.Value(),
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	}

	if cfg.EnableTLS {
		opts.TLSConfig = &tls.Config{
			InsecureSkipVerify: cfg.TLSSkipVerify, //nolint:gosec // opt-in via config
		}
		if cfg.TLSSkipVerify {
			logger.Warn("TLS certificate verification is disabled - this is insecure for production use")
		}
	}

	g := &RedisGateway{
		client:      redis.NewClient(opts),
		config:      cfg,
		logger:      logger.With("component", "redis-gateway"),
		experiments: LimitCodec[[]types.ExperimentRow]{Inner: expCodec, MaxDecode: maxPayloadBytes},
		variants:    LimitCodec[[]types.VariantRow]{Inner: varCodec, MaxDecode: maxPayloadBytes},
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout(cfg))
	defer cancel()

	if err := g.client.Ping(ctx).Err(); err != nil {
		g.logger.Warn("Redis initial connection failed", "error", err)
		g.setError(err)
	} else {
		g.connected.Store(true)
		g.logger.Info("Redis connected", "address", cfg.Address, "codec", codecName(cfg.Codec))
	}

	return g, nil
}

func dialTimeout(cfg config.RedisConfig) time.Duration {
	if cfg.DialTimeout > 0 {
		return cfg.DialTimeout
	}
	return 5 * time.Second
}

func codecName(name string) string {
	if name == "" {
		return CodecJSON
	}
	return name
}

func (g *RedisGateway) IsAvailable() bool {
	return g.connected.Load()
}

func (g *RedisGateway) key(parts ...string) string {
	k := g.config.KeyPrefix
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += p
	}
	return k
}

func (g *RedisGateway) tenantsKey() string            { return g.key("tenants") }
func (g *RedisGateway) groupKey(tenant string) string { return g.key("group", tenant) }

func (g *RedisGateway) experimentsKey(tenant string) string {
	return g.key("experiments", tenant)
}

func (g *RedisGateway) variantsKey(id int64) string {
	return g.key("variants", strconv.FormatInt(id, 10))
}

// ensureConnected tries one reconnect when the gateway was marked down.
func (g *RedisGateway) ensureConnected(ctx context.Context) error {
	if g.connected.Load() {
		return nil
	}
	if err := g.Reconnect(ctx); err != nil {
		return fmt.Errorf("%w: %v", types.ErrUnavailable, err)
	}
	return nil
}

func (g *RedisGateway) MeeGroupID(ctx context.Context, tenant string) (string, bool, error) {
	if err := g.ensureConnected(ctx); err != nil {
		return "", false, err
	}

	id, err := g.client.Get(ctx, g.groupKey(tenant)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			g.clearError()
			return "", false, nil
		}
		g.handleError(err)
		return "", false, err
	}
	g.clearError()
	return id, id != "", nil
}

func (g *RedisGateway) ExperimentsByTenant(ctx context.Context, tenant string) ([]types.ExperimentRow, error) {
	if err := g.ensureConnected(ctx); err != nil {
		return nil, err
	}

	data, err := g.client.Get(ctx, g.experimentsKey(tenant)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			g.clearError()
			return nil, nil
		}
		g.handleError(err)
		return nil, err
	}
	g.clearError()

	rows, err := g.experiments.Decode(data)
	if err != nil {
		return nil, resilience.Permanent(&types.MalformedDataError{
			Tenant: tenant,
			Field:  "experiments",
			Err:    err,
		})
	}
	return rows, nil
}

func (g *RedisGateway) VariantsByExperimentIDs(ctx context.Context, ids []int64) ([]types.VariantRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if err := g.ensureConnected(ctx); err != nil {
		return nil, err
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = g.variantsKey(id)
	}

	results, err := g.client.MGet(ctx, keys...).Result()
	if err != nil {
		g.handleError(err)
		return nil, err
	}
	g.clearError()

	var out []types.VariantRow
	for i, result := range results {
		str, ok := result.(string)
		if !ok {
			continue
		}
		rows, err := g.variants.Decode([]byte(str))
		if err != nil {
			return nil, resilience.Permanent(&types.MalformedDataError{
				Field:        "variants",
				ExperimentID: ids[i],
				Err:          err,
			})
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (g *RedisGateway) ListTenants(ctx context.Context) ([]string, error) {
	if err := g.ensureConnected(ctx); err != nil {
		return nil, err
	}

	tenants, err := g.client.SMembers(ctx, g.tenantsKey()).Result()
	if err != nil {
		g.handleError(err)
		return nil, err
	}
	g.clearError()
	slices.Sort(tenants)
	return tenants, nil
}

// Publish writes a tenant's data in one transaction, replacing what was
// stored before.
func (g *RedisGateway) Publish(ctx context.Context, tenant string, data TenantData) error {
	if err := types.ValidateKey(tenant); err != nil {
		return err
	}

	expBytes, err := g.experiments.Encode(data.Experiments)
	if err != nil {
		return fmt.Errorf("encode experiments: %w", err)
	}

	byExperiment := make(map[int64][]types.VariantRow)
	for _, row := range data.Variants {
		byExperiment[row.ExperimentID] = append(byExperiment[row.ExperimentID], row)
	}
	varBytes := make(map[int64][]byte, len(data.Experiments))
	for _, exp := range data.Experiments {
		b, err := g.variants.Encode(byExperiment[exp.ID])
		if err != nil {
			return fmt.Errorf("encode variants of experiment %d: %w", exp.ID, err)
		}
		varBytes[exp.ID] = b
	}

	_, err = g.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if data.MeeGroupID == "" {
			pipe.Del(ctx, g.groupKey(tenant))
			pipe.SRem(ctx, g.tenantsKey(), tenant)
		} else {
			pipe.Set(ctx, g.groupKey(tenant), data.MeeGroupID, 0)
			pipe.SAdd(ctx, g.tenantsKey(), tenant)
		}
		pipe.Set(ctx, g.experimentsKey(tenant), expBytes, 0)
		for id, b := range varBytes {
			pipe.Set(ctx, g.variantsKey(id), b, 0)
		}
		return nil
	})
	if err != nil {
		g.handleError(err)
		return err
	}
	g.clearError()

	g.logger.Debug("Published tenant",
		"tenant", tenant,
		"experiments", len(data.Experiments),
		"variants", len(data.Variants),
	)
	return nil
}

// Remove deletes everything stored for tenant.
func (g *RedisGateway) Remove(ctx context.Context, tenant string) error {
	rows, err := g.ExperimentsByTenant(ctx, tenant)
	if err != nil && !types.IsMalformedData(err) {
		return err
	}

	keys := []string{g.groupKey(tenant), g.experimentsKey(tenant)}
	for _, row := range rows {
		keys = append(keys, g.variantsKey(row.ID))
	}

	_, err = g.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.SRem(ctx, g.tenantsKey(), tenant)
		return nil
	})
	if err != nil {
		g.handleError(err)
		return err
	}
	g.clearError()
	return nil
}

func (g *RedisGateway) Close() error {
	g.connected.Store(false)
	return g.client.Close()
}

func (g *RedisGateway) handleError(err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastError = err
	g.lastErrorTime = time.Now()
	count := g.errorCount.Add(1)

	if count >= disconnectErrorThreshold {
		if g.connected.CompareAndSwap(true, false) {
			g.logger.Warn("Redis marked as disconnected after errors",
				"error_count", count,
				"last_error", err,
			)
		}
	}
}

func (g *RedisGateway) clearError() {
	if g.errorCount.Swap(0) > 0 {
		if g.connected.CompareAndSwap(false, true) {
			g.logger.Info("Redis connection restored")
		}
	}
}

func (g *RedisGateway) setError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastError = err
	g.lastErrorTime = time.Now()
	g.connected.Store(false)
}

func (g *RedisGateway) LastError() (error, time.Time) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastError, g.lastErrorTime
}

func (g *RedisGateway) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

func (g *RedisGateway) Reconnect(ctx context.Context) error {
	if err := g.client.Ping(ctx).Err(); err != nil {
		g.setError(err)
		return err
	}
	g.connected.Store(true)
	g.errorCount.Store(0)
	g.logger.Info("Redis reconnected successfully")
	return nil
}

var _ types.Gateway = (*RedisGateway)(nil)
