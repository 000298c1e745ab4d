package types

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrClosed          = errors.New("abcache: closed")
	ErrInvalidKey      = errors.New("abcache: invalid tenant key")
	ErrCircuitOpen     = errors.New("abcache: circuit breaker open")
	ErrBulkheadFull    = errors.New("abcache: bulkhead at capacity")
	ErrBulkheadTimeout = errors.New("abcache: bulkhead timeout")
	ErrShutdownTimeout = errors.New("abcache: shutdown timeout waiting for background operations")
	ErrMalformedData   = errors.New("abcache: malformed stored data")
	ErrUnavailable     = errors.New("abcache: gateway unavailable")
)

// LoadError is returned when producing a tenant's ExperimentSet fails.
// Failed loads are never cached.
type LoadError struct {
	Tenant string
	Op     string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("abcache %s [%s]: %v", e.Op, e.Tenant, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func NewLoadError(op, tenant string, err error) *LoadError {
	return &LoadError{
		Op:     op,
		Tenant: tenant,
		Err:    err,
	}
}

// MalformedDataError reports a stored value that could not be interpreted.
// VariantID is zero when the offending field belongs to the experiment.
type MalformedDataError struct {
	Err          error
	Tenant       string
	Field        string
	ExperimentID int64
	VariantID    int64
}

func (e *MalformedDataError) Error() string {
	if e.VariantID != 0 {
		return fmt.Sprintf("malformed %s for tenant %q experiment %d variant %d: %v",
			e.Field, e.Tenant, e.ExperimentID, e.VariantID, e.Err)
	}
	return fmt.Sprintf("malformed %s for tenant %q experiment %d: %v",
		e.Field, e.Tenant, e.ExperimentID, e.Err)
}

func (e *MalformedDataError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrMalformedData) match any MalformedDataError.
func (e *MalformedDataError) Is(target error) bool {
	return target == ErrMalformedData
}

func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

func IsMalformedData(err error) bool {
	return errors.Is(err, ErrMalformedData)
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

func IsInvalidKey(err error) bool {
	return errors.Is(err, ErrInvalidKey)
}

// IsRetryable reports whether a gateway call that failed with err may
// succeed when attempted again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Circuit open is not retryable - need to wait for recovery
	if IsCircuitOpen(err) {
		return false
	}

	if errors.Is(err, ErrClosed) || IsInvalidKey(err) {
		return false
	}

	// Retrying does not fix bad rows
	if IsMalformedData(err) {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	return true
}
