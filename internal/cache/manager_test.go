package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/LavishGent/abcache/internal/bucketing"
	"github.com/LavishGent/abcache/internal/config"
	"github.com/LavishGent/abcache/internal/repository"
	"github.com/LavishGent/abcache/internal/types"
)

// testConfig returns a minimal configuration for testing.
func testConfig() *config.Config {
	return config.ForTesting()
}

// seededGateway holds two tenants. "shop" has one running, one inactive and
// one future experiment; "blog" has no mee group.
func seededGateway() *repository.MemoryGateway {
	gw := repository.NewMemoryGateway()

	shop := tenantData("grp-shop", 7)
	inactive := shop.Experiments[0]
	inactive.ID, inactive.Name, inactive.Status = 8, "banner", "INACTIVE"
	future := shop.Experiments[0]
	future.ID, future.Name, future.StartTime = 9, "future", testEnd.Add(-time.Hour)
	shop.Experiments = append(shop.Experiments, inactive, future)
	shop.Variants = append(shop.Variants,
		types.VariantRow{ID: 81, ExperimentID: 8, Key: "only", Value: []byte(`"x"`), RangeStart: 0, RangeEnd: 100},
		types.VariantRow{ID: 91, ExperimentID: 9, Key: "a", Value: []byte(`1`), RangeStart: 0, RangeEnd: 30},
		types.VariantRow{ID: 92, ExperimentID: 9, Key: "b", Value: []byte(`2`), RangeStart: 30, RangeEnd: 100},
	)
	gw.PutTenant("shop", shop)
	gw.PutTenant("blog", tenantData("", 20))
	return gw
}

func newTestManager(t *testing.T, cfg *config.Config, opts *types.ManagerOptions) *Manager {
	t.Helper()
	m, err := NewManager(cfg, opts)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func boolPtr(b bool) *bool { return &b }

func TestNewManager(t *testing.T) {
	t.Run("creates manager with defaults", func(t *testing.T) {
		m := newTestManager(t, testConfig(), nil)
		if !m.CacheEnabled() {
			t.Error("Expected cache to be enabled")
		}
		if _, ok := m.source.(*ExperimentCache); !ok {
			t.Errorf("source = %T, want *ExperimentCache", m.source)
		}
	})

	t.Run("cache disabled via options", func(t *testing.T) {
		m := newTestManager(t, testConfig(), &types.ManagerOptions{CacheEnabled: boolPtr(false)})
		if m.CacheEnabled() {
			t.Error("Expected cache to be disabled")
		}
		if _, ok := m.source.(*DirectSource); !ok {
			t.Errorf("source = %T, want *DirectSource", m.source)
		}
	})

	t.Run("does not modify the caller's config", func(t *testing.T) {
		cfg := testConfig()
		cfg.Retry.Enabled = true
		newTestManager(t, cfg, &types.ManagerOptions{DisableResilience: true})
		if !cfg.Retry.Enabled {
			t.Error("caller config was modified")
		}
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		cfg := testConfig()
		cfg.Gateway.Driver = "oracle"
		if _, err := NewManager(cfg, nil); err == nil {
			t.Fatal("NewManager() error = nil, want error")
		}
	})
}

func TestManagerExperimentSet(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, testConfig(), &types.ManagerOptions{Gateway: seededGateway()})

	set, err := m.ExperimentSet(ctx, "shop")
	if err != nil {
		t.Fatalf("ExperimentSet() error = %v", err)
	}
	if set.Len() != 3 {
		t.Errorf("Len() = %d, want 3", set.Len())
	}

	for _, tenant := range []string{"", "has space", "ctl\x00"} {
		if _, err := m.ExperimentSet(ctx, tenant); !types.IsInvalidKey(err) {
			t.Errorf("ExperimentSet(%q) error = %v, want invalid key", tenant, err)
		}
	}
}

func TestManagerActiveExperiments(t *testing.T) {
	m := newTestManager(t, testConfig(), &types.ManagerOptions{Gateway: seededGateway()})

	//nolint:govet // Test table - alignment not critical
	tests := []struct {
		name string
		now  time.Time
		want []int64
	}{
		{"before start", testStart.Add(-time.Second), nil},
		{"at start", testStart, []int64{7}},
		{"running", testStart.Add(24 * time.Hour), []int64{7}},
		{"future started", testEnd.Add(-time.Minute), []int64{7, 9}},
		{"at end", testEnd, []int64{7, 9}},
		{"after end", testEnd.Add(time.Second), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			active, err := m.ActiveExperiments(context.Background(), "shop", tt.now)
			if err != nil {
				t.Fatalf("ActiveExperiments() error = %v", err)
			}
			var ids []int64
			for _, e := range active {
				ids = append(ids, e.ID)
			}
			if diff := cmp.Diff(tt.want, ids); diff != "" {
				t.Errorf("active ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestManagerVariantForUser(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, testConfig(), &types.ManagerOptions{Gateway: seededGateway()})

	set, err := m.ExperimentSet(ctx, "shop")
	if err != nil {
		t.Fatalf("ExperimentSet() error = %v", err)
	}
	exp, _ := set.Experiment(7)

	for i := range 20 {
		user := fmt.Sprintf("user-%d", i)
		got, ok, err := m.VariantForUser(ctx, "shop", user, 7)
		if err != nil {
			t.Fatalf("VariantForUser() error = %v", err)
		}
		want, wantOK := bucketing.Assign(user, 7, exp.Variants)
		if ok != wantOK || got.ID != want.ID {
			t.Errorf("VariantForUser(%s) = %d, %v, want %d, %v", user, got.ID, ok, want.ID, wantOK)
		}
		if !got.Contains(bucketing.Score(user, "7")) {
			t.Errorf("variant %s does not contain the user's score", got.Key)
		}
	}

	t.Run("unknown experiment", func(t *testing.T) {
		v, ok, err := m.VariantForUser(ctx, "shop", "user-1", 404)
		if err != nil || ok || v.ID != 0 {
			t.Errorf("VariantForUser() = %+v, %v, %v, want zero, false, nil", v, ok, err)
		}
	})

	t.Run("load failure surfaces", func(t *testing.T) {
		gw := seededGateway()
		boom := errors.New("down")
		gw.SetHook(func(ctx context.Context, op, tenant string) error { return boom })
		failing := newTestManager(t, testConfig(), &types.ManagerOptions{Gateway: gw})

		_, _, err := failing.VariantForUser(ctx, "shop", "user-1", 7)
		if !errors.Is(err, boom) || !types.IsLoadError(err) {
			t.Errorf("VariantForUser() error = %v, want LoadError wrapping %v", err, boom)
		}
	})
}

func TestManagerMeeGroup(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, testConfig(), &types.ManagerOptions{Gateway: seededGateway()})

	group, ok, err := m.MeeGroupID(ctx, "shop")
	if err != nil || !ok || group != "grp-shop" {
		t.Fatalf("MeeGroupID() = %q, %v, %v", group, ok, err)
	}

	score, ok, err := m.GroupScore(ctx, "shop", "user-1")
	if err != nil || !ok {
		t.Fatalf("GroupScore() = %v, %v, %v", score, ok, err)
	}
	if want := bucketing.GroupScore("user-1", "grp-shop"); score != want {
		t.Errorf("GroupScore() = %v, want %v", score, want)
	}

	if _, ok, err := m.GroupScore(ctx, "blog", "user-1"); err != nil || ok {
		t.Errorf("GroupScore(blog) ok = %v err = %v, want false, nil", ok, err)
	}
}

func TestManagerCacheDirectParity(t *testing.T) {
	ctx := context.Background()
	gw := seededGateway()
	cached := newTestManager(t, testConfig(), &types.ManagerOptions{Gateway: gw})
	direct := newTestManager(t, testConfig(), &types.ManagerOptions{Gateway: gw, CacheEnabled: boolPtr(false)})

	type result struct {
		Variant types.Variant
		OK      bool
	}

	for _, tenant := range []string{"shop", "blog", "unknown"} {
		for _, experimentID := range []int64{7, 8, 9, 20, 404} {
			for i := range 50 {
				user := fmt.Sprintf("u%d", i)
				cv, cok, cerr := cached.VariantForUser(ctx, tenant, user, experimentID)
				dv, dok, derr := direct.VariantForUser(ctx, tenant, user, experimentID)
				if cerr != nil || derr != nil {
					t.Fatalf("errors: cached %v, direct %v", cerr, derr)
				}
				if diff := cmp.Diff(result{dv, dok}, result{cv, cok}); diff != "" {
					t.Fatalf("%s/%d/%s mismatch (-direct +cached):\n%s", tenant, experimentID, user, diff)
				}
			}
		}

		now := testStart.Add(time.Hour)
		ca, err := cached.ActiveExperiments(ctx, tenant, now)
		if err != nil {
			t.Fatal(err)
		}
		da, err := direct.ActiveExperiments(ctx, tenant, now)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(da, ca); diff != "" {
			t.Errorf("%s active experiments mismatch (-direct +cached):\n%s", tenant, diff)
		}
	}

	cs, ds := cached.Stats(), direct.Stats()
	if !cs.Enabled || ds.Enabled {
		t.Errorf("enabled = %v/%v, want true/false", cs.Enabled, ds.Enabled)
	}
	if cs.Misses != 3 {
		t.Errorf("cached misses = %d, want 3", cs.Misses)
	}
	if ds.Misses != 3*5*50+3 || ds.Hits != 0 {
		t.Errorf("direct hits, misses = %d, %d, want 0, %d", ds.Hits, ds.Misses, 3*5*50+3)
	}
}

func TestManagerDirectPathNoOps(t *testing.T) {
	ctx := context.Background()
	gw := seededGateway()
	m := newTestManager(t, testConfig(), &types.ManagerOptions{Gateway: gw, CacheEnabled: boolPtr(false)})

	if err := m.Invalidate("shop"); err != nil {
		t.Errorf("Invalidate() error = %v", err)
	}
	if err := m.InvalidateAll(); err != nil {
		t.Errorf("InvalidateAll() error = %v", err)
	}
	if err := m.Reload(ctx); err != nil {
		t.Errorf("Reload() error = %v", err)
	}
	if calls := gw.Calls(); calls.ListTenants != 0 {
		t.Errorf("ListTenants calls = %d, want 0", calls.ListTenants)
	}
	if stats := m.Stats(); stats.Invalidations != 0 || stats.Capacity != 0 {
		t.Errorf("stats = %+v, want zero invalidations and capacity", stats)
	}
}

func TestManagerInvalidateAndReload(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, testConfig(), &types.ManagerOptions{Gateway: seededGateway()})

	before, err := m.ExperimentSet(ctx, "shop")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Invalidate("shop"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if err := m.Invalidate(""); !types.IsInvalidKey(err) {
		t.Errorf("Invalidate(\"\") error = %v, want invalid key", err)
	}

	after, err := m.ExperimentSet(ctx, "shop")
	if err != nil {
		t.Fatal(err)
	}
	if after.ID() == before.ID() {
		t.Error("set not reloaded after invalidation")
	}

	if err := m.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	tenants, err := m.Tenants(ctx)
	if err != nil {
		t.Fatalf("Tenants() error = %v", err)
	}
	if diff := cmp.Diff([]string{"shop"}, tenants); diff != "" {
		t.Errorf("tenants mismatch (-want +got):\n%s", diff)
	}

	if err := m.InvalidateAll(); err != nil {
		t.Fatalf("InvalidateAll() error = %v", err)
	}
	stats := m.Stats()
	if stats.Size != 0 || stats.Invalidations != 2 || stats.Reloads != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestManagerPreloadOnStart(t *testing.T) {
	gw := repository.NewMemoryGateway()
	gw.PutTenant("a", tenantData("grp-a", 1))
	gw.PutTenant("b", tenantData("grp-b", 2))

	cfg := testConfig()
	cfg.Cache.PreloadOnStart = true
	m := newTestManager(t, cfg, &types.ManagerOptions{Gateway: gw})

	deadline := time.Now().Add(2 * time.Second)
	for m.Stats().Size < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("preload did not finish, size = %d", m.Stats().Size)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManagerCircuitBreaker(t *testing.T) {
	ctx := context.Background()
	gw := seededGateway()
	boom := errors.New("connection refused")
	gw.SetHook(func(ctx context.Context, op, tenant string) error { return boom })

	cfg := testConfig()
	cfg.CircuitBreaker.Enabled = true
	cfg.CircuitBreaker.FailureThreshold = 1
	cfg.CircuitBreaker.OpenDuration = time.Hour
	cfg.Metrics.Enabled = true
	cfg.Metrics.PublishInterval = 0
	m := newTestManager(t, cfg, &types.ManagerOptions{Gateway: gw})

	if _, err := m.ExperimentSet(ctx, "shop"); !errors.Is(err, boom) {
		t.Fatalf("first ExperimentSet() error = %v, want %v", err, boom)
	}
	if _, err := m.ExperimentSet(ctx, "shop"); !types.IsCircuitOpen(err) {
		t.Fatalf("second ExperimentSet() error = %v, want circuit open", err)
	}

	h, err := m.Health(ctx)
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if h.Status != types.HealthStatusDegraded {
		t.Errorf("Status = %v, want degraded", h.Status)
	}
	if h.Gateway.CircuitBreakerState != "open" {
		t.Errorf("CircuitBreakerState = %q, want open", h.Gateway.CircuitBreakerState)
	}

	snap := m.MetricsSnapshot()
	if snap.CircuitBreakerState != "open" || snap.CircuitBreakerChanges != 1 {
		t.Errorf("snapshot circuit = %q/%d, want open/1", snap.CircuitBreakerState, snap.CircuitBreakerChanges)
	}
	if snap.LoadFailures != 2 {
		t.Errorf("snapshot load failures = %d, want 2", snap.LoadFailures)
	}
}

func TestManagerHealth(t *testing.T) {
	ctx := context.Background()
	m, err := NewManager(testConfig(), &types.ManagerOptions{Gateway: seededGateway()})
	if err != nil {
		t.Fatal(err)
	}

	h, err := m.Health(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if h.Status != types.HealthStatusHealthy || !h.Gateway.Available {
		t.Errorf("health = %+v, want healthy", h)
	}

	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	h, _ = m.Health(ctx)
	if h.Status != types.HealthStatusUnhealthy {
		t.Errorf("Status after close = %v, want unhealthy", h.Status)
	}
}

func TestManagerPrometheus(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	cfg := testConfig()
	cfg.Metrics.Prometheus = config.PrometheusConfig{Enabled: true, Namespace: "abtest"}
	m := newTestManager(t, cfg, &types.ManagerOptions{Gateway: seededGateway(), Registerer: reg})

	for range 3 {
		if _, err := m.ExperimentSet(ctx, "shop"); err != nil {
			t.Fatal(err)
		}
	}

	expected := `
# HELP abtest_experiment_cache_lookups_total Count of experiment set lookups by tenant and result (hit or miss).
# TYPE abtest_experiment_cache_lookups_total counter
abtest_experiment_cache_lookups_total{result="hit",tenant="shop"} 2
abtest_experiment_cache_lookups_total{result="miss",tenant="shop"} 1
# HELP abtest_experiment_cache_size Number of experiment sets resident in the cache.
# TYPE abtest_experiment_cache_size gauge
abtest_experiment_cache_size 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"abtest_experiment_cache_lookups_total", "abtest_experiment_cache_size")
	if err != nil {
		t.Error(err)
	}
}

func TestManagerBackgroundPublishing(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	cfg := testConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.PublishInterval = 10 * time.Millisecond
	m, err := NewManager(cfg, &types.ManagerOptions{Gateway: seededGateway(), Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.ExperimentSet(context.Background(), "shop"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, "health_metrics") || !strings.Contains(out, "cache_size=1") {
		t.Errorf("health metrics not published:\n%s", out)
	}
}

func TestManagerClose(t *testing.T) {
	ctx := context.Background()

	t.Run("operations fail after close", func(t *testing.T) {
		m, err := NewManager(testConfig(), &types.ManagerOptions{Gateway: seededGateway()})
		if err != nil {
			t.Fatal(err)
		}
		if err := m.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if err := m.Close(); err != nil {
			t.Fatalf("second Close() error = %v", err)
		}

		if _, err := m.ExperimentSet(ctx, "shop"); !errors.Is(err, types.ErrClosed) {
			t.Errorf("ExperimentSet() error = %v, want ErrClosed", err)
		}
		if _, _, err := m.VariantForUser(ctx, "shop", "u", 7); !errors.Is(err, types.ErrClosed) {
			t.Errorf("VariantForUser() error = %v, want ErrClosed", err)
		}
		if err := m.Invalidate("shop"); !errors.Is(err, types.ErrClosed) {
			t.Errorf("Invalidate() error = %v, want ErrClosed", err)
		}
		if err := m.Reload(ctx); !errors.Is(err, types.ErrClosed) {
			t.Errorf("Reload() error = %v, want ErrClosed", err)
		}
	})

	t.Run("times out on stuck background work", func(t *testing.T) {
		m, err := NewManager(testConfig(), &types.ManagerOptions{Gateway: seededGateway()})
		if err != nil {
			t.Fatal(err)
		}

		release := make(chan struct{})
		defer close(release)
		m.runBackground(func(ctx context.Context) { <-release })

		err = m.CloseWithTimeout(10 * time.Millisecond)
		if !errors.Is(err, types.ErrShutdownTimeout) {
			t.Errorf("CloseWithTimeout() error = %v, want ErrShutdownTimeout", err)
		}
	})

	t.Run("background work is skipped once closed", func(t *testing.T) {
		m, err := NewManager(testConfig(), &types.ManagerOptions{Gateway: seededGateway()})
		if err != nil {
			t.Fatal(err)
		}
		_ = m.Close()

		ran := false
		m.runBackground(func(ctx context.Context) { ran = true })
		m.bgWg.Wait()
		if ran {
			t.Error("background function ran after close")
		}
	})
}
