// Package resilience provides fault tolerance patterns for gateway calls.
package resilience

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/abcache/internal/config"
)

type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops calling a failing backing store until it has had
// time to recover.
type CircuitBreaker struct {
	now func() time.Time

	onStateChange func(from, to State)
	openedAt      time.Time

	openDuration time.Duration

	failureThreshold    int
	successThreshold    int
	halfOpenMaxRequests int

	consecutiveFails int
	consecutiveSuccs int
	halfOpenRequests int

	mu    sync.Mutex
	state atomic.Int32
}

// stateTransition is collected under the mutex and invoked after it is released.
type stateTransition struct {
	callback func(from, to State)
	from     State
	to       State
}

func (t *stateTransition) invoke() {
	if t != nil && t.callback != nil {
		t.callback(t.from, t.to)
	}
}

func NewCircuitBreaker(cfg config.CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{
		now:                 time.Now,
		failureThreshold:    cfg.FailureThreshold,
		successThreshold:    cfg.SuccessThreshold,
		openDuration:        cfg.OpenDuration,
		halfOpenMaxRequests: cfg.HalfOpenMaxRequests,
	}

	if cb.failureThreshold <= 0 {
		cb.failureThreshold = 5
	}
	if cb.successThreshold <= 0 {
		cb.successThreshold = 2
	}
	if cb.openDuration <= 0 {
		cb.openDuration = 30 * time.Second
	}
	if cb.halfOpenMaxRequests <= 0 {
		cb.halfOpenMaxRequests = 3
	}

	cb.state.Store(int32(StateClosed))
	return cb
}

// Do runs fn if the circuit allows it. Errors that say nothing about the
// backing store (cancellation, malformed rows) do not change the state.
func (cb *CircuitBreaker) Do(fn func() error) error {
	if !cb.Allow() {
		return ErrCircuitOpen
	}

	err := fn()
	if countsAsFailure(err) {
		cb.RecordFailure()
	} else {
		cb.RecordSuccess()
	}
	return err
}

// Allow reports whether a call may proceed, moving an expired open circuit
// to half-open.
func (cb *CircuitBreaker) Allow() bool {
	switch State(cb.state.Load()) {
	case StateClosed:
		return true

	case StateOpen:
		var transition *stateTransition
		allowed := false

		cb.mu.Lock()
		if State(cb.state.Load()) == StateOpen && cb.now().Sub(cb.openedAt) >= cb.openDuration {
			transition = cb.transitionTo(StateHalfOpen)
			cb.halfOpenRequests = 1
			allowed = true
		}
		cb.mu.Unlock()

		transition.invoke()
		return allowed

	case StateHalfOpen:
		cb.mu.Lock()
		allowed := cb.halfOpenRequests < cb.halfOpenMaxRequests
		if allowed {
			cb.halfOpenRequests++
		}
		cb.mu.Unlock()
		return allowed

	default:
		return true
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	var transition *stateTransition

	cb.mu.Lock()
	switch State(cb.state.Load()) {
	case StateClosed:
		cb.consecutiveFails = 0
	case StateHalfOpen:
		cb.consecutiveSuccs++
		if cb.consecutiveSuccs >= cb.successThreshold {
			transition = cb.transitionTo(StateClosed)
		}
	}
	cb.mu.Unlock()

	transition.invoke()
}

func (cb *CircuitBreaker) RecordFailure() {
	var transition *stateTransition

	cb.mu.Lock()
	switch State(cb.state.Load()) {
	case StateClosed:
		cb.consecutiveFails++
		if cb.consecutiveFails >= cb.failureThreshold {
			transition = cb.transitionTo(StateOpen)
		}
	case StateHalfOpen:
		transition = cb.transitionTo(StateOpen)
	}
	cb.mu.Unlock()

	transition.invoke()
}

// transitionTo must be called with mu held. The returned transition must
// be invoked after mu is released.
func (cb *CircuitBreaker) transitionTo(next State) *stateTransition {
	prev := State(cb.state.Load())
	if prev == next {
		return nil
	}

	switch next {
	case StateClosed:
		cb.consecutiveFails = 0
		cb.consecutiveSuccs = 0
		cb.halfOpenRequests = 0
	case StateOpen:
		cb.openedAt = cb.now()
		cb.consecutiveSuccs = 0
	case StateHalfOpen:
		cb.consecutiveSuccs = 0
		cb.halfOpenRequests = 0
	}

	cb.state.Store(int32(next))

	if cb.onStateChange == nil {
		return nil
	}
	return &stateTransition{from: prev, to: next, callback: cb.onStateChange}
}

func (cb *CircuitBreaker) State() State {
	return State(cb.state.Load())
}

func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

// SetOnStateChange registers a callback run synchronously after each
// transition, outside the breaker's lock.
func (cb *CircuitBreaker) SetOnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Reset closes the circuit and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	cb.consecutiveSuccs = 0
	cb.halfOpenRequests = 0
	cb.state.Store(int32(StateClosed))
}

// Stats returns a snapshot of the breaker counters.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerStats{
		State:            cb.State(),
		ConsecutiveFails: cb.consecutiveFails,
		ConsecutiveSuccs: cb.consecutiveSuccs,
		HalfOpenRequests: cb.halfOpenRequests,
	}
}

type CircuitBreakerStats struct {
	State            State
	ConsecutiveFails int
	ConsecutiveSuccs int
	HalfOpenRequests int
}
