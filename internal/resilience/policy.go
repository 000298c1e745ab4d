package resilience

import (
	"context"

	"github.com/LavishGent/abcache/internal/config"
)

// Executor runs a call under some protection.
type Executor interface {
	Do(ctx context.Context, fn func(context.Context) error) error
}

// Policy combines bulkhead, retry and circuit breaker. Any component
// disabled in config is skipped.
type Policy struct {
	circuitBreaker *CircuitBreaker
	retry          *RetryPolicy
	bulkhead       *Bulkhead
}

func NewPolicy(cfg *config.Config) *Policy {
	p := &Policy{}
	if cfg.CircuitBreaker.Enabled {
		p.circuitBreaker = NewCircuitBreaker(cfg.CircuitBreaker)
	}
	if cfg.Retry.Enabled {
		p.retry = NewRetryPolicy(cfg.Retry)
	}
	if cfg.Bulkhead.Enabled {
		p.bulkhead = NewBulkhead(cfg.Bulkhead)
	}
	return p
}

// NewDisabledPolicy returns a policy that calls through directly.
func NewDisabledPolicy() *Policy {
	return &Policy{}
}

// Do runs fn through Bulkhead -> Retry -> CircuitBreaker. The breaker is
// innermost so every attempt, retries included, counts toward its state.
func (p *Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	call := fn

	if p.circuitBreaker != nil {
		inner := call
		call = func(ctx context.Context) error {
			return p.circuitBreaker.Do(func() error { return inner(ctx) })
		}
	}

	if p.retry != nil {
		inner := call
		call = func(ctx context.Context) error {
			return p.retry.Do(ctx, inner)
		}
	}

	if p.bulkhead != nil {
		return p.bulkhead.Do(ctx, call)
	}
	return call(ctx)
}

// Call runs fn through ex and returns its result.
func Call[T any](ctx context.Context, ex Executor, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := ex.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (p *Policy) CircuitState() State {
	if p.circuitBreaker == nil {
		return StateClosed
	}
	return p.circuitBreaker.State()
}

func (p *Policy) IsCircuitOpen() bool {
	return p.CircuitState() == StateOpen
}

// SetOnCircuitStateChange is a no-op when the breaker is disabled.
func (p *Policy) SetOnCircuitStateChange(fn func(from, to State)) {
	if p.circuitBreaker != nil {
		p.circuitBreaker.SetOnStateChange(fn)
	}
}

// PolicyStats aggregates the counters of all enabled components.
type PolicyStats struct {
	CircuitState     State
	Retries          int64
	BulkheadActive   int
	BulkheadRejected int64
}

func (p *Policy) Stats() PolicyStats {
	s := PolicyStats{CircuitState: p.CircuitState()}
	if p.retry != nil {
		s.Retries, _, _ = p.retry.Stats()
	}
	if p.bulkhead != nil {
		b := p.bulkhead.Stats()
		s.BulkheadActive = b.Active
		s.BulkheadRejected = b.TotalRejected
	}
	return s
}
