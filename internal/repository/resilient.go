package repository

import (
	"context"
	"sync"
	"time"

	"github.com/LavishGent/abcache/internal/resilience"
	"github.com/LavishGent/abcache/internal/types"
)

// ResilientGateway runs every call of the wrapped gateway through a
// resilience policy.
type ResilientGateway struct {
	inner  types.Gateway
	policy *resilience.Policy

	mu            sync.RWMutex
	lastError     error
	lastErrorTime time.Time
}

func NewResilientGateway(inner types.Gateway, policy *resilience.Policy) *ResilientGateway {
	if policy == nil {
		policy = resilience.NewDisabledPolicy()
	}
	return &ResilientGateway{inner: inner, policy: policy}
}

func (g *ResilientGateway) Policy() *resilience.Policy {
	return g.policy
}

func (g *ResilientGateway) MeeGroupID(ctx context.Context, tenant string) (string, bool, error) {
	type result struct {
		id string
		ok bool
	}
	r, err := resilience.Call(ctx, g.policy, func(ctx context.Context) (result, error) {
		id, ok, err := g.inner.MeeGroupID(ctx, tenant)
		return result{id: id, ok: ok}, err
	})
	g.observe(err)
	return r.id, r.ok, err
}

func (g *ResilientGateway) ExperimentsByTenant(ctx context.Context, tenant string) ([]types.ExperimentRow, error) {
	rows, err := resilience.Call(ctx, g.policy, func(ctx context.Context) ([]types.ExperimentRow, error) {
		return g.inner.ExperimentsByTenant(ctx, tenant)
	})
	g.observe(err)
	return rows, err
}

func (g *ResilientGateway) VariantsByExperimentIDs(ctx context.Context, ids []int64) ([]types.VariantRow, error) {
	rows, err := resilience.Call(ctx, g.policy, func(ctx context.Context) ([]types.VariantRow, error) {
		return g.inner.VariantsByExperimentIDs(ctx, ids)
	})
	g.observe(err)
	return rows, err
}

func (g *ResilientGateway) ListTenants(ctx context.Context) ([]string, error) {
	tenants, err := resilience.Call(ctx, g.policy, func(ctx context.Context) ([]string, error) {
		return g.inner.ListTenants(ctx)
	})
	g.observe(err)
	return tenants, err
}

func (g *ResilientGateway) observe(err error) {
	if err == nil {
		return
	}
	g.mu.Lock()
	g.lastError = err
	g.lastErrorTime = time.Now()
	g.mu.Unlock()
}

// Health reports the last failure and the breaker state.
func (g *ResilientGateway) Health() types.GatewayHealthMetrics {
	g.mu.RLock()
	defer g.mu.RUnlock()

	h := types.GatewayHealthMetrics{
		LastErrorTime:       g.lastErrorTime,
		CircuitBreakerState: g.policy.CircuitState().String(),
		Available:           !g.policy.IsCircuitOpen(),
	}
	if g.lastError != nil {
		h.LastError = g.lastError.Error()
	}
	if a, ok := g.inner.(interface{ IsAvailable() bool }); ok && !a.IsAvailable() {
		h.Available = false
	}
	return h
}

var _ types.Gateway = (*ResilientGateway)(nil)
