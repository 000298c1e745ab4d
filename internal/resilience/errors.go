package resilience

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"

	"github.com/LavishGent/abcache/internal/types"
)

var (
	ErrCircuitOpen     = types.ErrCircuitOpen
	ErrBulkheadFull    = types.ErrBulkheadFull
	ErrBulkheadTimeout = types.ErrBulkheadTimeout
)

// permanentError marks a failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the retry policy gives up immediately. The
// circuit breaker still counts it as a failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, types.ErrCircuitOpen)
}

func IsBulkheadError(err error) bool {
	return errors.Is(err, types.ErrBulkheadFull) || errors.Is(err, types.ErrBulkheadTimeout)
}

// IsRetryable determines if an error is transient and worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if IsPermanent(err) || IsBulkheadError(err) || !types.IsRetryable(err) {
		return false
	}

	// The caller gave up; another attempt would be cancelled too.
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	// Other network errors are only worth another attempt on timeout.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return true
}

// countsAsFailure reports whether err says something about the health of
// the backing store. Caller cancellation and local rejections do not.
func countsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || IsCircuitOpen(err) || IsBulkheadError(err) {
		return false
	}
	return !types.IsMalformedData(err) && !types.IsInvalidKey(err)
}
