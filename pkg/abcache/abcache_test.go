package abcache_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/LavishGent/abcache/pkg/abcache"
)

var (
	testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	testEnd   = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
)

func shopData() abcache.TenantData {
	return abcache.TenantData{
		MeeGroupID: "grp-shop",
		Experiments: []abcache.ExperimentRow{{
			ID:              7,
			Name:            "checkout",
			Kind:            "RANDOM",
			Status:          "ACTIVE",
			AttributeFilter: []byte(`{}`),
			StartTime:       testStart,
			EndTime:         testEnd,
		}},
		Variants: []abcache.VariantRow{
			{ID: 71, ExperimentID: 7, Key: "control", Value: []byte(`{"price":100}`), RangeStart: 0, RangeEnd: 50},
			{ID: 72, ExperimentID: 7, Key: "treatment", Value: []byte(`{"price":90}`), RangeStart: 50, RangeEnd: 100},
		},
	}
}

func newService(t *testing.T, opts ...abcache.ManagerOption) (abcache.Service, *abcache.MemoryGateway) {
	t.Helper()
	gw := abcache.NewMemoryGateway()
	gw.PutTenant("shop", shopData())

	svc, err := abcache.NewFromConfig(abcache.TestConfig(), append([]abcache.ManagerOption{abcache.WithGateway(gw)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, gw
}

func TestService_VariantForUser(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	variant, ok, err := svc.VariantForUser(ctx, "shop", "alice", 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "control", variant.Key)

	variant, ok, err = svc.VariantForUser(ctx, "shop", "user-2", 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "treatment", variant.Key)

	_, ok, err = svc.VariantForUser(ctx, "shop", "alice", 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_GroupScore(t *testing.T) {
	svc, _ := newService(t)

	score, ok, err := svc.GroupScore(context.Background(), "shop", "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 93.99, score, 1e-9)
	assert.Equal(t, abcache.Score("alice", "grp-shop"), score)
}

func TestService_CacheDisabled(t *testing.T) {
	cached, _ := newService(t)
	direct, gw := newService(t, abcache.WithCacheEnabled(false))
	ctx := context.Background()

	assert.True(t, cached.CacheEnabled())
	assert.False(t, direct.CacheEnabled())

	for i := 0; i < 3; i++ {
		want, err := cached.ActiveExperiments(ctx, "shop", testStart.Add(time.Hour))
		require.NoError(t, err)
		got, err := direct.ActiveExperiments(ctx, "shop", testStart.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	assert.EqualValues(t, 3, gw.Calls().Experiments)
	assert.EqualValues(t, 3, direct.Stats().Misses)
	assert.False(t, direct.Stats().Enabled)
}

func TestService_Invalidate(t *testing.T) {
	svc, gw := newService(t)
	ctx := context.Background()

	before, err := svc.ExperimentSet(ctx, "shop")
	require.NoError(t, err)

	data := shopData()
	data.MeeGroupID = "grp-new"
	gw.PutTenant("shop", data)

	cached, err := svc.ExperimentSet(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, before.ID(), cached.ID())

	require.NoError(t, svc.Invalidate("shop"))
	after, err := svc.ExperimentSet(ctx, "shop")
	require.NoError(t, err)
	assert.NotEqual(t, before.ID(), after.ID())

	group, ok := after.MeeGroupID()
	assert.True(t, ok)
	assert.Equal(t, "grp-new", group)
}

func TestService_Errors(t *testing.T) {
	svc, gw := newService(t)
	ctx := context.Background()

	_, err := svc.ExperimentSet(ctx, "")
	assert.True(t, abcache.IsInvalidKey(err))

	data := shopData()
	data.Variants[0].Value = []byte(`{broken`)
	gw.PutTenant("shop", data)

	_, err = svc.ExperimentSet(ctx, "shop")
	require.Error(t, err)
	assert.True(t, abcache.IsLoadError(err))
	assert.True(t, abcache.IsMalformedData(err))
	assert.ErrorIs(t, err, abcache.ErrMalformedData)

	var loadErr *abcache.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "shop", loadErr.Tenant)

	require.NoError(t, svc.Close())
	_, err = svc.ExperimentSet(ctx, "shop")
	assert.True(t, errors.Is(err, abcache.ErrClosed))
}

func TestService_Health(t *testing.T) {
	svc, _ := newService(t)

	health, err := svc.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, abcache.HealthStatusHealthy, health.Status)
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abcache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"gateway":{"driver":"memory"},"metrics":{"enabled":false}}`), 0o600))

	svc, err := abcache.NewFromFile(path)
	require.NoError(t, err)
	defer svc.Close()

	tenants, err := svc.Tenants(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tenants)
}

func TestNewFromFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abcache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"gateway":`), 0o600))

	_, err := abcache.NewFromFile(path)
	assert.Error(t, err)
}

func TestConfig(t *testing.T) {
	cfg := abcache.Config()
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "mysql", cfg.Gateway.Driver)

	test := abcache.TestConfig()
	assert.Equal(t, "memory", test.Gateway.Driver)
	assert.False(t, test.Metrics.Enabled)
}

func TestLoggerAdapters(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	svc, _ := newService(t, abcache.WithLogger(abcache.ZapLogger(zap.New(core))))
	require.NoError(t, svc.Reload(context.Background()))
	assert.NotZero(t, logs.FilterMessage("Experiment sets refreshed").Len())

	base, hook := logrustest.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	svc, _ = newService(t, abcache.WithLogger(abcache.LogrusLogger(logrus.NewEntry(base))))
	require.NoError(t, svc.Reload(context.Background()))

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Message == "Experiment sets refreshed" {
			found = true
		}
	}
	assert.True(t, found)
}
