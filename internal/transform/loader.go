package transform

import (
	"context"
	"time"

	"github.com/LavishGent/abcache/internal/types"
)

// Load operations reported in LoadError.Op.
const (
	OpMeeGroup    = "mee-group"
	OpExperiments = "experiments"
	OpVariants    = "variants"
	OpTransform   = "transform"
)

// Loader reads a tenant's rows from a gateway and builds its ExperimentSet.
type Loader struct {
	gateway     types.Gateway
	transformer *Transformer
	now         func() time.Time
}

// NewLoader returns a Loader. A nil clock means time.Now.
func NewLoader(gateway types.Gateway, transformer *Transformer, clock func() time.Time) *Loader {
	if clock == nil {
		clock = time.Now
	}
	return &Loader{
		gateway:     gateway,
		transformer: transformer,
		now:         clock,
	}
}

// Load fetches and transforms the tenant's configuration. A tenant the
// gateway does not know yields an empty set. Failures are *types.LoadError.
func (l *Loader) Load(ctx context.Context, tenant string) (*types.ExperimentSet, error) {
	groupID, hasGroup, err := l.gateway.MeeGroupID(ctx, tenant)
	if err != nil {
		return nil, types.NewLoadError(OpMeeGroup, tenant, err)
	}

	expRows, err := l.gateway.ExperimentsByTenant(ctx, tenant)
	if err != nil {
		return nil, types.NewLoadError(OpExperiments, tenant, err)
	}

	var varRows []types.VariantRow
	if len(expRows) > 0 {
		ids := make([]int64, len(expRows))
		for i, row := range expRows {
			ids[i] = row.ID
		}
		varRows, err = l.gateway.VariantsByExperimentIDs(ctx, ids)
		if err != nil {
			return nil, types.NewLoadError(OpVariants, tenant, err)
		}
	}

	var group *types.GroupRow
	if hasGroup {
		group = &types.GroupRow{Tenant: tenant, MeeGroupID: groupID}
	}

	set, err := l.transformer.Build(tenant, group, expRows, varRows, l.now())
	if err != nil {
		return nil, types.NewLoadError(OpTransform, tenant, err)
	}
	return set, nil
}

var _ types.SetLoader = (*Loader)(nil)
