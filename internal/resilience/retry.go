package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/LavishGent/abcache/internal/config"
)

// RetryPolicy retries transient failures with exponential backoff.
type RetryPolicy struct {
	initialBackoff time.Duration
	maxBackoff     time.Duration
	multiplier     float64
	maxAttempts    int
	jitter         bool

	totalRetries atomic.Int64
	totalSuccess atomic.Int64
	totalFailure atomic.Int64
}

func NewRetryPolicy(cfg config.RetryConfig) *RetryPolicy {
	rp := &RetryPolicy{
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		multiplier:     cfg.Multiplier,
		jitter:         cfg.Jitter,
	}

	if rp.maxAttempts <= 0 {
		rp.maxAttempts = 3
	}
	if rp.initialBackoff <= 0 {
		rp.initialBackoff = 100 * time.Millisecond
	}
	if rp.maxBackoff <= 0 {
		rp.maxBackoff = 2 * time.Second
	}
	if rp.multiplier <= 0 {
		rp.multiplier = 2.0
	}

	return rp
}

// Do calls fn until it succeeds, returns a non-retryable error, the
// attempts are exhausted, or ctx ends.
func (rp *RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= rp.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			rp.totalSuccess.Add(1)
			return nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == rp.maxAttempts {
			break
		}

		rp.totalRetries.Add(1)

		timer := time.NewTimer(rp.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			rp.totalFailure.Add(1)
			return ctx.Err()
		case <-timer.C:
		}
	}

	rp.totalFailure.Add(1)
	return lastErr
}

func (rp *RetryPolicy) backoff(attempt int) time.Duration {
	d := float64(rp.initialBackoff) * math.Pow(rp.multiplier, float64(attempt-1))
	if d > float64(rp.maxBackoff) {
		d = float64(rp.maxBackoff)
	}

	// +/-25%
	if rp.jitter {
		spread := d * 0.25
		d += rand.Float64()*2*spread - spread
	}

	return time.Duration(d)
}

// Stats returns retry counters.
func (rp *RetryPolicy) Stats() (retries, success, failure int64) {
	return rp.totalRetries.Load(), rp.totalSuccess.Load(), rp.totalFailure.Load()
}
