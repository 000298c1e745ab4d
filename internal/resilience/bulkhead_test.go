package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LavishGent/abcache/internal/config"
)

func TestBulkheadLimitsConcurrency(t *testing.T) {
	b := NewBulkhead(config.BulkheadConfig{
		MaxConcurrent:  3,
		MaxQueue:       100,
		AcquireTimeout: 5 * time.Second,
	})

	var current, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Do(context.Background(), func(ctx context.Context) error {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if peak.Load() > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak.Load())
	}
	if got := b.Stats().TotalExecuted; got != 20 {
		t.Errorf("TotalExecuted = %d, want 20", got)
	}
}

func TestBulkheadRejects(t *testing.T) {
	b := NewBulkhead(config.BulkheadConfig{
		MaxConcurrent:  1,
		MaxQueue:       1,
		AcquireTimeout: 20 * time.Millisecond,
	})

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Do(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	t.Run("timeout while queued", func(t *testing.T) {
		err := b.Do(context.Background(), func(ctx context.Context) error { return nil })
		if !errors.Is(err, ErrBulkheadTimeout) {
			t.Errorf("err = %v, want ErrBulkheadTimeout", err)
		}
	})

	t.Run("full queue", func(t *testing.T) {
		queued := make(chan error, 1)
		go func() {
			queued <- b.Do(context.Background(), func(ctx context.Context) error { return nil })
		}()
		deadline := time.Now().Add(time.Second)
		for b.Stats().Queued == 0 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}

		err := b.Do(context.Background(), func(ctx context.Context) error { return nil })
		if !errors.Is(err, ErrBulkheadFull) {
			t.Errorf("err = %v, want ErrBulkheadFull", err)
		}
		<-queued
	})

	t.Run("cancelled while queued", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := b.Do(ctx, func(ctx context.Context) error { return nil })
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})

	close(release)

	if b.Stats().TotalRejected < 3 {
		t.Errorf("TotalRejected = %d, want >= 3", b.Stats().TotalRejected)
	}
}
