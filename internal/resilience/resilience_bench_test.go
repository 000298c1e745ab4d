package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LavishGent/abcache/internal/config"
	"github.com/LavishGent/abcache/internal/types"
)

func BenchmarkCircuitBreaker_Allow(b *testing.B) {
	cb := NewCircuitBreaker(config.CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenDuration:     30 * time.Second,
	})

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = cb.Allow()
	}
}

func BenchmarkRetry_FailThenSucceed(b *testing.B) {
	rp := NewRetryPolicy(config.RetryConfig{
		Enabled:        true,
		MaxAttempts:    3,
		InitialBackoff: time.Microsecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     2.0,
	})
	ctx := context.Background()
	transient := errors.New("connection reset")

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		attempt := 0
		_ = rp.Do(ctx, func(context.Context) error {
			attempt++
			if attempt == 1 {
				return transient
			}
			return nil
		})
	}
}

func BenchmarkBulkhead_Parallel(b *testing.B) {
	bh := NewBulkhead(config.BulkheadConfig{
		Enabled:        true,
		MaxConcurrent:  100,
		MaxQueue:       50,
		AcquireTimeout: 100 * time.Millisecond,
	})
	ctx := context.Background()
	op := func(context.Context) error { return nil }

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = bh.Do(ctx, op)
		}
	})
}

func BenchmarkPolicy_CallRows(b *testing.B) {
	rows := []types.ExperimentRow{{ID: 1, Name: "checkout", Kind: "RANDOM", Status: "ACTIVE"}}
	fetch := func(context.Context) ([]types.ExperimentRow, error) { return rows, nil }
	ctx := context.Background()

	for _, bc := range []struct {
		name   string
		policy *Policy
	}{
		{"enabled", NewPolicy(config.DefaultConfig())},
		{"disabled", NewDisabledPolicy()},
	} {
		b.Run(bc.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _ = Call(ctx, bc.policy, fetch)
			}
		})
	}
}
