package abcache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/LavishGent/abcache/internal/logging"
	"github.com/LavishGent/abcache/internal/types"
)

type ManagerOptions = types.ManagerOptions

type ManagerOption func(*ManagerOptions)

func WithLogger(logger Logger) ManagerOption {
	return func(o *ManagerOptions) {
		o.Logger = logger
	}
}

func WithMetrics(metrics MetricsRecorder) ManagerOption {
	return func(o *ManagerOptions) {
		o.Metrics = metrics
	}
}

// WithGateway replaces the gateway that would be built from config.
func WithGateway(gw Gateway) ManagerOption {
	return func(o *ManagerOptions) {
		o.Gateway = gw
	}
}

func WithClock(clock func() time.Time) ManagerOption {
	return func(o *ManagerOptions) {
		o.Clock = clock
	}
}

// WithCacheEnabled overrides Cache.Enabled from config.
func WithCacheEnabled(enabled bool) ManagerOption {
	return func(o *ManagerOptions) {
		o.CacheEnabled = &enabled
	}
}

func WithRegisterer(reg prometheus.Registerer) ManagerOption {
	return func(o *ManagerOptions) {
		o.Registerer = reg
	}
}

func WithoutResilience() ManagerOption {
	return func(o *ManagerOptions) {
		o.DisableResilience = true
	}
}

// ZapLogger adapts a zap logger for WithLogger.
func ZapLogger(l *zap.Logger) Logger {
	return logging.Zap{L: l}
}

// LogrusLogger adapts a logrus entry for WithLogger.
func LogrusLogger(e *logrus.Entry) Logger {
	return logging.Logrus{E: e}
}
