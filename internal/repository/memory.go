package repository

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/abcache/internal/types"
)

// Gateway operations passed to a MemoryGateway hook.
const (
	OpMeeGroupID  = "mee-group"
	OpExperiments = "experiments"
	OpVariants    = "variants"
	OpListTenants = "tenants"
)

// TenantData is everything stored for one tenant. An empty MeeGroupID
// means the tenant has no active group.
type TenantData struct {
	MeeGroupID  string                `json:"meeGroupId" msgpack:"meeGroupId" cbor:"meeGroupId"`
	Experiments []types.ExperimentRow `json:"experiments" msgpack:"experiments" cbor:"experiments"`
	Variants    []types.VariantRow    `json:"variants" msgpack:"variants" cbor:"variants"`
}

// Hook runs before every gateway call. A non-nil error fails the call.
type Hook func(ctx context.Context, op, tenant string) error

// CallCounts is the number of calls served per operation.
type CallCounts struct {
	MeeGroupID  int64
	Experiments int64
	Variants    int64
	ListTenants int64
}

// MemoryGateway is an in-process Gateway. It backs tests, examples and
// the "memory" driver.
type MemoryGateway struct {
	mu      sync.RWMutex
	tenants map[string]TenantData
	owners  map[int64]string
	hook    Hook
	latency time.Duration

	meeGroupCalls    atomic.Int64
	experimentsCalls atomic.Int64
	variantsCalls    atomic.Int64
	listCalls        atomic.Int64
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		tenants: make(map[string]TenantData),
		owners:  make(map[int64]string),
	}
}

// PutTenant stores or replaces a tenant's data.
func (g *MemoryGateway) PutTenant(tenant string, data TenantData) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.dropOwnersLocked(tenant)
	data = TenantData{
		MeeGroupID:  data.MeeGroupID,
		Experiments: cloneExperimentRows(data.Experiments),
		Variants:    cloneVariantRows(data.Variants),
	}
	g.tenants[tenant] = data
	for _, row := range data.Experiments {
		g.owners[row.ID] = tenant
	}
}

func (g *MemoryGateway) RemoveTenant(tenant string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dropOwnersLocked(tenant)
	delete(g.tenants, tenant)
}

func (g *MemoryGateway) dropOwnersLocked(tenant string) {
	old, ok := g.tenants[tenant]
	if !ok {
		return
	}
	for _, row := range old.Experiments {
		if g.owners[row.ID] == tenant {
			delete(g.owners, row.ID)
		}
	}
}

// SetHook installs h for all subsequent calls. nil removes it.
func (g *MemoryGateway) SetHook(h Hook) {
	g.mu.Lock()
	g.hook = h
	g.mu.Unlock()
}

// SetLatency delays every call by d, honoring context cancellation.
func (g *MemoryGateway) SetLatency(d time.Duration) {
	g.mu.Lock()
	g.latency = d
	g.mu.Unlock()
}

func (g *MemoryGateway) Calls() CallCounts {
	return CallCounts{
		MeeGroupID:  g.meeGroupCalls.Load(),
		Experiments: g.experimentsCalls.Load(),
		Variants:    g.variantsCalls.Load(),
		ListTenants: g.listCalls.Load(),
	}
}

func (g *MemoryGateway) ResetCalls() {
	g.meeGroupCalls.Store(0)
	g.experimentsCalls.Store(0)
	g.variantsCalls.Store(0)
	g.listCalls.Store(0)
}

func (g *MemoryGateway) before(ctx context.Context, op, tenant string) error {
	g.mu.RLock()
	hook, latency := g.hook, g.latency
	g.mu.RUnlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	if hook != nil {
		if err := hook(ctx, op, tenant); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (g *MemoryGateway) MeeGroupID(ctx context.Context, tenant string) (string, bool, error) {
	g.meeGroupCalls.Add(1)
	if err := g.before(ctx, OpMeeGroupID, tenant); err != nil {
		return "", false, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	data, ok := g.tenants[tenant]
	if !ok || data.MeeGroupID == "" {
		return "", false, nil
	}
	return data.MeeGroupID, true, nil
}

func (g *MemoryGateway) ExperimentsByTenant(ctx context.Context, tenant string) ([]types.ExperimentRow, error) {
	g.experimentsCalls.Add(1)
	if err := g.before(ctx, OpExperiments, tenant); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	return cloneExperimentRows(g.tenants[tenant].Experiments), nil
}

func (g *MemoryGateway) VariantsByExperimentIDs(ctx context.Context, ids []int64) ([]types.VariantRow, error) {
	g.variantsCalls.Add(1)

	g.mu.RLock()
	var tenant string
	if len(ids) > 0 {
		tenant = g.owners[ids[0]]
	}
	g.mu.RUnlock()

	if err := g.before(ctx, OpVariants, tenant); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []types.VariantRow
	seen := make(map[string]bool)
	for _, id := range ids {
		owner, ok := g.owners[id]
		if !ok || seen[owner] {
			continue
		}
		seen[owner] = true
		for _, row := range g.tenants[owner].Variants {
			if slices.Contains(ids, row.ExperimentID) {
				out = append(out, cloneVariantRow(row))
			}
		}
	}
	return out, nil
}

// ListTenants returns tenants that have an active group, sorted.
func (g *MemoryGateway) ListTenants(ctx context.Context) ([]string, error) {
	g.listCalls.Add(1)
	if err := g.before(ctx, OpListTenants, ""); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	tenants := make([]string, 0, len(g.tenants))
	for tenant, data := range g.tenants {
		if data.MeeGroupID != "" {
			tenants = append(tenants, tenant)
		}
	}
	slices.Sort(tenants)
	return tenants, nil
}

func cloneExperimentRows(rows []types.ExperimentRow) []types.ExperimentRow {
	if rows == nil {
		return nil
	}
	out := make([]types.ExperimentRow, len(rows))
	for i, row := range rows {
		row.AttributeFilter = slices.Clone(row.AttributeFilter)
		out[i] = row
	}
	return out
}

func cloneVariantRow(row types.VariantRow) types.VariantRow {
	row.Value = slices.Clone(row.Value)
	return row
}

func cloneVariantRows(rows []types.VariantRow) []types.VariantRow {
	if rows == nil {
		return nil
	}
	out := make([]types.VariantRow, len(rows))
	for i, row := range rows {
		out[i] = cloneVariantRow(row)
	}
	return out
}

var _ types.Gateway = (*MemoryGateway)(nil)
