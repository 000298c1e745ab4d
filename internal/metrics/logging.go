package metrics

import (
	"log/slog"
	"time"

	"github.com/LavishGent/abcache/internal/types"
)

// LoggingPublisher writes metrics to a slog.Logger at debug level and
// health batches at info level. It is the fallback when no agent is
// configured.
type LoggingPublisher struct {
	logger   *slog.Logger
	baseTags []string
}

func NewLoggingPublisher(logger *slog.Logger, baseTags ...string) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{
		logger:   logger.With("component", "metrics"),
		baseTags: baseTags,
	}
}

func (p *LoggingPublisher) emit(kind, name string, tags []string, args ...any) {
	args = append(args, "name", name, "tags", mergeTags(p.baseTags, tags))
	p.logger.Debug(kind, args...)
}

func (p *LoggingPublisher) Gauge(name string, value float64, tags ...string) {
	p.emit("gauge", name, tags, "value", value)
}

func (p *LoggingPublisher) Incr(name string, tags ...string) {
	p.emit("incr", name, tags)
}

func (p *LoggingPublisher) Count(name string, value int64, tags ...string) {
	p.emit("count", name, tags, "value", value)
}

func (p *LoggingPublisher) Histogram(name string, value float64, tags ...string) {
	p.emit("histogram", name, tags, "value", value)
}

func (p *LoggingPublisher) Timing(name string, duration time.Duration, tags ...string) {
	p.emit("timing", name, tags, "duration_ms", duration.Milliseconds())
}

func (p *LoggingPublisher) Event(title, text, alertType string, tags ...string) {
	p.logger.Info("event",
		"title", title,
		"text", text,
		"alert_type", alertType,
		"tags", mergeTags(p.baseTags, tags),
	)
}

func (p *LoggingPublisher) PublishHealthMetrics(m *types.PublisherHealthMetrics) {
	if m == nil {
		return
	}

	p.logger.Info("health_metrics",
		"cache_enabled", m.CacheEnabled,
		"cache_size", m.CacheSize,
		"cache_capacity", m.CacheCapacity,
		"hit_ratio", m.HitRatio,
		"load_failure_ratio", m.LoadFailureRatio,
		"avg_load_latency_ms", m.AverageLoadLatencyMs,
		"gateway_available", m.GatewayAvailable,
	)
}

func (p *LoggingPublisher) Close() error {
	return nil
}

// mergeTags never aliases base.
func mergeTags(base, tags []string) []string {
	if len(tags) == 0 {
		return base
	}
	if len(base) == 0 {
		return tags
	}
	merged := make([]string, 0, len(base)+len(tags))
	merged = append(merged, base...)
	return append(merged, tags...)
}

var _ types.Publisher = (*LoggingPublisher)(nil)
