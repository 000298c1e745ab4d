package resilience

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/LavishGent/abcache/internal/config"
)

// Bulkhead caps concurrent gateway calls. Up to maxQueue callers wait at
// most acquireTimeout for a slot; the rest are rejected immediately.
type Bulkhead struct {
	slots          chan struct{}
	acquireTimeout time.Duration
	maxQueue       int

	active        atomic.Int32
	queued        atomic.Int32
	rejectedCount atomic.Int64
	totalExecuted atomic.Int64
}

func NewBulkhead(cfg config.BulkheadConfig) *Bulkhead {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 32
	}
	maxQueue := cfg.MaxQueue
	if maxQueue < 0 {
		maxQueue = 0
	}
	acquireTimeout := cfg.AcquireTimeout
	if acquireTimeout <= 0 {
		acquireTimeout = 500 * time.Millisecond
	}

	return &Bulkhead{
		slots:          make(chan struct{}, maxConcurrent),
		maxQueue:       maxQueue,
		acquireTimeout: acquireTimeout,
	}
}

func (b *Bulkhead) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.acquire(ctx); err != nil {
		return err
	}
	defer func() { <-b.slots }()

	b.active.Add(1)
	defer b.active.Add(-1)

	err := fn(ctx)
	b.totalExecuted.Add(1)
	return err
}

func (b *Bulkhead) acquire(ctx context.Context) error {
	select {
	case b.slots <- struct{}{}:
		return nil
	default:
	}

	if int(b.queued.Add(1)) > b.maxQueue {
		b.queued.Add(-1)
		b.rejectedCount.Add(1)
		return ErrBulkheadFull
	}
	defer b.queued.Add(-1)

	timer := time.NewTimer(b.acquireTimeout)
	defer timer.Stop()

	select {
	case b.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		b.rejectedCount.Add(1)
		return ctx.Err()
	case <-timer.C:
		b.rejectedCount.Add(1)
		return ErrBulkheadTimeout
	}
}

// Stats returns a snapshot of the bulkhead counters.
func (b *Bulkhead) Stats() BulkheadStats {
	return BulkheadStats{
		MaxConcurrent: cap(b.slots),
		MaxQueue:      b.maxQueue,
		Active:        int(b.active.Load()),
		Queued:        int(b.queued.Load()),
		TotalExecuted: b.totalExecuted.Load(),
		TotalRejected: b.rejectedCount.Load(),
	}
}

type BulkheadStats struct {
	MaxConcurrent int
	MaxQueue      int
	Active        int
	Queued        int
	TotalExecuted int64
	TotalRejected int64
}
