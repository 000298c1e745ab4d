package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/LavishGent/abcache/internal/config"
	"github.com/LavishGent/abcache/internal/types"
)

func fastRetry(attempts int) *RetryPolicy {
	return NewRetryPolicy(config.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	})
}

func TestRetryPolicyDo(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		rp := fastRetry(3)
		calls := 0
		err := rp.Do(context.Background(), func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return syscall.ECONNRESET
			}
			return nil
		})
		if err != nil {
			t.Fatalf("err = %v", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
		retries, success, failure := rp.Stats()
		if retries != 2 || success != 1 || failure != 0 {
			t.Errorf("Stats() = %d, %d, %d", retries, success, failure)
		}
	})

	t.Run("returns last error when exhausted", func(t *testing.T) {
		rp := fastRetry(2)
		calls := 0
		err := rp.Do(context.Background(), func(ctx context.Context) error {
			calls++
			return fmt.Errorf("attempt %d: %w", calls, errBackend)
		})
		if !errors.Is(err, errBackend) || err.Error() != "attempt 2: backend down" {
			t.Errorf("err = %v", err)
		}
		if calls != 2 {
			t.Errorf("calls = %d, want 2", calls)
		}
	})

	t.Run("does not retry permanent errors", func(t *testing.T) {
		rp := fastRetry(5)
		calls := 0
		err := rp.Do(context.Background(), func(ctx context.Context) error {
			calls++
			return Permanent(errBackend)
		})
		if !errors.Is(err, errBackend) || !IsPermanent(err) {
			t.Errorf("err = %v", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		rp := NewRetryPolicy(config.RetryConfig{MaxAttempts: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour})
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := rp.Do(ctx, func(ctx context.Context) error {
			calls++
			cancel()
			return errBackend
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})
}

func TestRetryBackoff(t *testing.T) {
	rp := NewRetryPolicy(config.RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
		Multiplier:     2,
	})

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for i, w := range want {
		if got := rp.backoff(i + 1); got != w {
			t.Errorf("backoff(%d) = %v, want %v", i+1, got, w)
		}
	}

	rp.jitter = true
	for i := 0; i < 100; i++ {
		d := rp.backoff(1)
		if d < 75*time.Millisecond || d > 125*time.Millisecond {
			t.Fatalf("jittered backoff %v outside +/-25%%", d)
		}
	}
}

type timeoutErr struct{ timeout bool }

func (e timeoutErr) Error() string   { return "net" }
func (e timeoutErr) Timeout() bool   { return e.timeout }
func (e timeoutErr) Temporary() bool { return false }

var _ net.Error = timeoutErr{}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want bool
	}{
		{nil, "nil", false},
		{errBackend, "generic", true},
		{syscall.ECONNREFUSED, "connection refused", true},
		{&net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, "wrapped refused", true},
		{timeoutErr{timeout: true}, "net timeout", true},
		{timeoutErr{timeout: false}, "net non-timeout", false},
		{types.ErrCircuitOpen, "circuit open", false},
		{types.ErrBulkheadFull, "bulkhead full", false},
		{context.Canceled, "canceled", false},
		{context.DeadlineExceeded, "deadline", false},
		{Permanent(errBackend), "permanent", false},
		{&types.MalformedDataError{Err: errBackend}, "malformed", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestPermanentNil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}
