// Package metrics collects experiment cache metrics and publishes them.
package metrics

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/abcache/internal/types"
)

const (
	defaultLatencyBufferSize = 10000
)

// Tracker aggregates recorder events across tenants.
type Tracker struct {
	hits          atomic.Int64
	misses        atomic.Int64
	loads         atomic.Int64
	loadFailures  atomic.Int64
	evictions     atomic.Int64
	invalidations atomic.Int64

	latencyMu     sync.RWMutex
	latencyBuffer []time.Duration
	latencyIndex  int
	latencyCount  int

	cbMu           sync.RWMutex
	cbState        string
	cbStateChanges atomic.Int64
}

func NewTracker() *Tracker {
	return &Tracker{
		latencyBuffer: make([]time.Duration, defaultLatencyBufferSize),
		cbState:       "closed",
	}
}

func (t *Tracker) RecordHit(tenant string) {
	t.hits.Add(1)
}

func (t *Tracker) RecordMiss(tenant string) {
	t.misses.Add(1)
}

// RecordLoad records one gateway load and its latency.
func (t *Tracker) RecordLoad(tenant string, latency time.Duration, err error) {
	t.loads.Add(1)
	if err != nil {
		t.loadFailures.Add(1)
	}
	t.recordLatency(latency)
}

func (t *Tracker) RecordEviction(tenant string) {
	t.evictions.Add(1)
}

func (t *Tracker) RecordInvalidation(tenant string) {
	t.invalidations.Add(1)
}

// RecordCircuitBreakerStateChange records circuit breaker state transitions.
func (t *Tracker) RecordCircuitBreakerStateChange(from, to string) {
	t.cbStateChanges.Add(1)
	t.cbMu.Lock()
	t.cbState = to
	t.cbMu.Unlock()
}

// recordLatency adds a latency measurement using a circular buffer.
func (t *Tracker) recordLatency(latency time.Duration) {
	t.latencyMu.Lock()
	t.latencyBuffer[t.latencyIndex] = latency
	t.latencyIndex = (t.latencyIndex + 1) % len(t.latencyBuffer)
	if t.latencyCount < len(t.latencyBuffer) {
		t.latencyCount++
	}
	t.latencyMu.Unlock()
}

// Snapshot returns current metrics snapshot.
func (t *Tracker) Snapshot() types.MetricsSnapshot {
	t.latencyMu.RLock()
	count := t.latencyCount
	latencyCopy := make([]time.Duration, count)
	if count > 0 {
		if count < len(t.latencyBuffer) {
			copy(latencyCopy, t.latencyBuffer[:count])
		} else {
			// Buffer is full - oldest data starts at latencyIndex
			firstPart := len(t.latencyBuffer) - t.latencyIndex
			copy(latencyCopy[:firstPart], t.latencyBuffer[t.latencyIndex:])
			copy(latencyCopy[firstPart:], t.latencyBuffer[:t.latencyIndex])
		}
	}
	t.latencyMu.RUnlock()

	t.cbMu.RLock()
	state := t.cbState
	t.cbMu.RUnlock()

	snapshot := types.MetricsSnapshot{
		Timestamp:             time.Now(),
		Hits:                  t.hits.Load(),
		Misses:                t.misses.Load(),
		Loads:                 t.loads.Load(),
		LoadFailures:          t.loadFailures.Load(),
		Evictions:             t.evictions.Load(),
		Invalidations:         t.invalidations.Load(),
		CircuitBreakerState:   state,
		CircuitBreakerChanges: t.cbStateChanges.Load(),
	}

	if len(latencyCopy) > 0 {
		slices.Sort(latencyCopy)
		snapshot.AvgLoadLatencyMs = toMillis(avgDuration(latencyCopy))
		snapshot.P50LoadLatencyMs = toMillis(percentile(latencyCopy, 50))
		snapshot.P95LoadLatencyMs = toMillis(percentile(latencyCopy, 95))
		snapshot.P99LoadLatencyMs = toMillis(percentile(latencyCopy, 99))
	}

	return snapshot
}

// Reset clears all metrics.
func (t *Tracker) Reset() {
	t.hits.Store(0)
	t.misses.Store(0)
	t.loads.Store(0)
	t.loadFailures.Store(0)
	t.evictions.Store(0)
	t.invalidations.Store(0)
	t.cbStateChanges.Store(0)

	t.cbMu.Lock()
	t.cbState = "closed"
	t.cbMu.Unlock()

	t.latencyMu.Lock()
	t.latencyIndex = 0
	t.latencyCount = 0
	t.latencyMu.Unlock()
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func avgDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations))
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := (len(sorted) - 1) * p / 100
	return sorted[idx]
}

var _ types.MetricsRecorder = (*Tracker)(nil)
