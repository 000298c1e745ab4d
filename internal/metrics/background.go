package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/LavishGent/abcache/internal/types"
)

// BackgroundPublisher publishes health metrics at regular intervals.
type BackgroundPublisher struct {
	publisher types.Publisher
	logger    *slog.Logger
	getHealth func() *types.PublisherHealthMetrics
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	interval  time.Duration
	mu        sync.Mutex
}

// NewBackgroundPublisher calls healthFn on every tick and sends the
// result to publisher.
func NewBackgroundPublisher(
	publisher types.Publisher,
	interval time.Duration,
	healthFn func() *types.PublisherHealthMetrics,
	logger *slog.Logger,
) *BackgroundPublisher {
	if logger == nil {
		logger = slog.Default()
	}

	return &BackgroundPublisher{
		publisher: publisher,
		interval:  interval,
		logger:    logger.With("component", "metrics-background"),
		getHealth: healthFn,
	}
}

// Start begins the publishing loop. It is a no-op when already running.
func (b *BackgroundPublisher) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return
	}

	ctx, b.cancel = context.WithCancel(ctx)
	b.wg.Add(1)
	go b.run(ctx)
	b.logger.Info("Background metrics publisher started", "interval", b.interval)
}

// Stop cancels the loop, waits for the final publish and returns.
func (b *BackgroundPublisher) Stop() {
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	b.wg.Wait()

	b.mu.Lock()
	b.cancel = nil
	b.mu.Unlock()
	b.logger.Info("Background metrics publisher stopped")
}

func (b *BackgroundPublisher) run(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final publish before stopping
			b.publish()
			return
		case <-ticker.C:
			b.publish()
		}
	}
}

func (b *BackgroundPublisher) publish() {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in metrics publisher", "panic", r)
		}
	}()

	if b.getHealth == nil {
		return
	}
	if m := b.getHealth(); m != nil {
		b.publisher.PublishHealthMetrics(m)
	}
}

// PublishNow triggers an immediate metrics publish.
func (b *BackgroundPublisher) PublishNow() {
	b.publish()
}

// HealthFromSnapshot combines tracker and cache counters into a batch.
func HealthFromSnapshot(snap types.MetricsSnapshot, stats types.CacheStats, gatewayAvailable bool) *types.PublisherHealthMetrics {
	return &types.PublisherHealthMetrics{
		CacheEnabled:         stats.Enabled,
		CacheSize:            stats.Size,
		CacheCapacity:        stats.Capacity,
		HitRatio:             snap.HitRatio(),
		LoadFailureRatio:     snap.LoadFailureRatio(),
		AverageLoadLatencyMs: snap.AvgLoadLatencyMs,
		GatewayAvailable:     gatewayAvailable,
	}
}
