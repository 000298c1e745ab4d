package repository

import (
	"context"

	"github.com/LavishGent/abcache/internal/types"
)

// MockGateway is a mock implementation of types.Gateway for testing.
type MockGateway struct {
	MeeGroupIDFunc              func(ctx context.Context, tenant string) (string, bool, error)
	ExperimentsByTenantFunc     func(ctx context.Context, tenant string) ([]types.ExperimentRow, error)
	VariantsByExperimentIDsFunc func(ctx context.Context, ids []int64) ([]types.VariantRow, error)
	ListTenantsFunc             func(ctx context.Context) ([]string, error)
}

func (m *MockGateway) MeeGroupID(ctx context.Context, tenant string) (string, bool, error) {
	if m.MeeGroupIDFunc != nil {
		return m.MeeGroupIDFunc(ctx, tenant)
	}
	return "", false, nil
}

func (m *MockGateway) ExperimentsByTenant(ctx context.Context, tenant string) ([]types.ExperimentRow, error) {
	if m.ExperimentsByTenantFunc != nil {
		return m.ExperimentsByTenantFunc(ctx, tenant)
	}
	return []types.ExperimentRow{}, nil
}

func (m *MockGateway) VariantsByExperimentIDs(ctx context.Context, ids []int64) ([]types.VariantRow, error) {
	if m.VariantsByExperimentIDsFunc != nil {
		return m.VariantsByExperimentIDsFunc(ctx, ids)
	}
	return []types.VariantRow{}, nil
}

func (m *MockGateway) ListTenants(ctx context.Context) ([]string, error) {
	if m.ListTenantsFunc != nil {
		return m.ListTenantsFunc(ctx)
	}
	return []string{}, nil
}

var _ types.Gateway = (*MockGateway)(nil)
