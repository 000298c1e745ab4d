// Package datadog provides a DataDog StatsD metrics publisher.
package datadog

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/LavishGent/abcache/internal/config"
	"github.com/LavishGent/abcache/internal/metrics"
	"github.com/LavishGent/abcache/internal/types"
)

// Publisher implements types.Publisher using the DataDog StatsD client.
//
//nolint:govet // Small struct - minimal alignment benefit
type Publisher struct {
	baseTags []string
	client   statsd.ClientInterface
	logger   *slog.Logger
}

// NewPublisher creates a DataDog publisher from config. A disabled config
// yields a no-op publisher. Extra options are passed to the statsd client.
func NewPublisher(cfg *config.DataDogConfig, logger *slog.Logger, opts ...statsd.Option) (types.Publisher, error) {
	if !cfg.Enabled {
		return metrics.NewNoOpPublisher(), nil
	}

	if logger == nil {
		logger = slog.Default()
	}

	addr := net.JoinHostPort(cfg.AgentHost, strconv.Itoa(cfg.Port))

	options := []statsd.Option{
		statsd.WithNamespace(cfg.Prefix + "."),
		statsd.WithTags(cfg.Tags),
	}
	options = append(options, opts...)

	client, err := statsd.New(addr, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create statsd client: %w", err)
	}

	logger.Info("DataDog publisher initialized",
		"address", addr,
		"prefix", cfg.Prefix,
		"tags", cfg.Tags,
	)

	return &Publisher{
		client:   client,
		baseTags: cfg.Tags,
		logger:   logger.With("component", "datadog"),
	}, nil
}

func (p *Publisher) Gauge(name string, value float64, tags ...string) {
	if err := p.client.Gauge(name, value, tags, 1); err != nil {
		p.logger.Debug("Failed to send gauge metric", "name", name, "error", err)
	}
}

func (p *Publisher) Incr(name string, tags ...string) {
	if err := p.client.Incr(name, tags, 1); err != nil {
		p.logger.Debug("Failed to send incr metric", "name", name, "error", err)
	}
}

func (p *Publisher) Count(name string, value int64, tags ...string) {
	if err := p.client.Count(name, value, tags, 1); err != nil {
		p.logger.Debug("Failed to send count metric", "name", name, "error", err)
	}
}

func (p *Publisher) Histogram(name string, value float64, tags ...string) {
	if err := p.client.Histogram(name, value, tags, 1); err != nil {
		p.logger.Debug("Failed to send histogram metric", "name", name, "error", err)
	}
}

func (p *Publisher) Timing(name string, duration time.Duration, tags ...string) {
	if err := p.client.Timing(name, duration, tags, 1); err != nil {
		p.logger.Debug("Failed to send timing metric", "name", name, "error", err)
	}
}

// Event sends a DataDog event. Events do not get the client's global tags,
// so the base tags are added here.
func (p *Publisher) Event(title, text, alertType string, tags ...string) {
	event := &statsd.Event{
		Title:     title,
		Text:      text,
		AlertType: statsd.EventAlertType(alertType),
		Tags:      append(append([]string{}, p.baseTags...), tags...),
	}
	if err := p.client.Event(event); err != nil {
		p.logger.Debug("Failed to send event", "title", title, "error", err)
	}
}

// PublishHealthMetrics publishes a batch of health metrics as gauges.
func (p *Publisher) PublishHealthMetrics(m *types.PublisherHealthMetrics) {
	if m == nil {
		return
	}

	p.Gauge("cache.enabled", boolGauge(m.CacheEnabled))
	p.Gauge("cache.size", float64(m.CacheSize))
	p.Gauge("cache.capacity", float64(m.CacheCapacity))
	p.Gauge("performance.hit_ratio", clamp(m.HitRatio, 0, 1))
	p.Gauge("performance.load_failure_ratio", clamp(m.LoadFailureRatio, 0, 1))
	p.Gauge("performance.average_load_latency_ms", max(0, m.AverageLoadLatencyMs))
	p.Gauge("gateway.available", boolGauge(m.GatewayAvailable))
}

// Close flushes buffered metrics and releases the client.
func (p *Publisher) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp(val, minVal, maxVal float64) float64 {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

var _ types.Publisher = (*Publisher)(nil)
