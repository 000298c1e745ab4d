package abcache

import (
	"github.com/LavishGent/abcache/internal/types"
)

type (
	// LoadError reports a tenant whose experiment set could not be produced.
	LoadError = types.LoadError
	// MalformedDataError reports a stored value that could not be parsed.
	MalformedDataError = types.MalformedDataError
)

var (
	// ErrClosed indicates that the service has been closed.
	ErrClosed = types.ErrClosed
	// ErrInvalidKey indicates that a tenant key is invalid.
	ErrInvalidKey = types.ErrInvalidKey
	// ErrCircuitOpen indicates that the gateway circuit breaker is open.
	ErrCircuitOpen = types.ErrCircuitOpen
	// ErrBulkheadFull indicates that the bulkhead is at capacity.
	ErrBulkheadFull = types.ErrBulkheadFull
	// ErrBulkheadTimeout indicates that the bulkhead acquisition timed out.
	ErrBulkheadTimeout = types.ErrBulkheadTimeout
	// ErrShutdownTimeout indicates that background work outlived Close.
	ErrShutdownTimeout = types.ErrShutdownTimeout
	// ErrMalformedData matches any MalformedDataError.
	ErrMalformedData = types.ErrMalformedData
	// ErrUnavailable indicates that the gateway cannot be reached.
	ErrUnavailable = types.ErrUnavailable
)

func IsLoadError(err error) bool {
	return types.IsLoadError(err)
}

func IsMalformedData(err error) bool {
	return types.IsMalformedData(err)
}

// IsCircuitOpen returns true if the error indicates the circuit breaker is open.
func IsCircuitOpen(err error) bool {
	return types.IsCircuitOpen(err)
}

func IsInvalidKey(err error) bool {
	return types.IsInvalidKey(err)
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	return types.IsRetryable(err)
}
