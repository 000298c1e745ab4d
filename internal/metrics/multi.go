package metrics

import (
	"time"

	"github.com/LavishGent/abcache/internal/types"
)

// Multi fans every event out to each recorder in order.
type Multi []types.MetricsRecorder

// NewMulti drops nil recorders. It returns nil when none remain.
func NewMulti(recorders ...types.MetricsRecorder) types.MetricsRecorder {
	var m Multi
	for _, r := range recorders {
		if r != nil {
			m = append(m, r)
		}
	}
	switch len(m) {
	case 0:
		return nil
	case 1:
		return m[0]
	}
	return m
}

func (m Multi) RecordHit(tenant string) {
	for _, r := range m {
		r.RecordHit(tenant)
	}
}

func (m Multi) RecordMiss(tenant string) {
	for _, r := range m {
		r.RecordMiss(tenant)
	}
}

func (m Multi) RecordLoad(tenant string, latency time.Duration, err error) {
	for _, r := range m {
		r.RecordLoad(tenant, latency, err)
	}
}

func (m Multi) RecordEviction(tenant string) {
	for _, r := range m {
		r.RecordEviction(tenant)
	}
}

func (m Multi) RecordInvalidation(tenant string) {
	for _, r := range m {
		r.RecordInvalidation(tenant)
	}
}

func (m Multi) RecordCircuitBreakerStateChange(from, to string) {
	for _, r := range m {
		r.RecordCircuitBreakerStateChange(from, to)
	}
}

var _ types.MetricsRecorder = Multi(nil)
