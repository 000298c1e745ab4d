package config

import "time"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Enabled:           true,
			Capacity:          100,
			LoadTimeout:       10 * time.Second,
			ReloadConcurrency: 8,
			PreloadOnStart:    false,
			ShutdownTimeout:   30 * time.Second,
		},
		Transform: TransformConfig{
			ValidateRanges: true,
		},
		KeyValidation: KeyValidationConfig{
			Enabled:         true,
			MaxKeyLength:    256,
			AllowWhitespace: false,
		},
		Gateway: GatewayConfig{
			Driver:          DriverMySQL,
			Host:            "localhost",
			Port:            3306,
			User:            "abtest",
			Database:        "abtest_db",
			Params:          "parseTime=true&loc=UTC",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			QueryTimeout:    5 * time.Second,
		},
		Redis: RedisConfig{
			Address:      "localhost:6379",
			KeyPrefix:    "abcache:",
			Codec:        "json",
			DB:           0,
			PoolSize:     20,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolTimeout:  4 * time.Second,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:             true,
			FailureThreshold:    5,
			SuccessThreshold:    2,
			OpenDuration:        30 * time.Second,
			HalfOpenMaxRequests: 3,
		},
		Retry: RetryConfig{
			Enabled:        true,
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Multiplier:     2.0,
			Jitter:         true,
		},
		Bulkhead: BulkheadConfig{
			Enabled:        true,
			MaxConcurrent:  32,
			MaxQueue:       64,
			AcquireTimeout: 500 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled:         true,
			PublishInterval: 30 * time.Second,
			DataDog: DataDogConfig{
				Enabled:   false,
				AgentHost: "127.0.0.1",
				Port:      8125,
				Prefix:    "abcache",
				Tags:      []string{},
			},
			Prometheus: PrometheusConfig{
				Enabled:   false,
				Namespace: "abcache",
			},
		},
	}
}

// ForTesting returns a minimal configuration suitable for unit tests.
func ForTesting() *Config {
	return &Config{
		Cache: CacheConfig{
			Enabled:           true,
			Capacity:          100,
			LoadTimeout:       2 * time.Second,
			ReloadConcurrency: 4,
			ShutdownTimeout:   time.Second,
		},
		Transform: TransformConfig{
			ValidateRanges: true,
		},
		KeyValidation: KeyValidationConfig{
			Enabled:      true,
			MaxKeyLength: 256,
		},
		Gateway: GatewayConfig{
			Driver:       DriverMemory,
			QueryTimeout: time.Second,
		},
		Redis: RedisConfig{
			Address:      "localhost:6379",
			KeyPrefix:    "abcache-test:",
			Codec:        "json",
			PoolSize:     5,
			MinIdleConns: 1,
			DialTimeout:  1 * time.Second,
			ReadTimeout:  1 * time.Second,
			WriteTimeout: 1 * time.Second,
			PoolTimeout:  1 * time.Second,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:             false,
			FailureThreshold:    3,
			SuccessThreshold:    1,
			OpenDuration:        1 * time.Second,
			HalfOpenMaxRequests: 1,
		},
		Retry: RetryConfig{
			Enabled:        false,
			MaxAttempts:    1,
			InitialBackoff: 10 * time.Millisecond,
			MaxBackoff:     100 * time.Millisecond,
			Multiplier:     2.0,
			Jitter:         false,
		},
		Bulkhead: BulkheadConfig{
			Enabled:        false,
			MaxConcurrent:  10,
			MaxQueue:       5,
			AcquireTimeout: 50 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled:         false,
			PublishInterval: 1 * time.Second,
		},
	}
}

// ForTestingWithRedis returns a test config backed by a Redis gateway.
func ForTestingWithRedis(addr string) *Config {
	cfg := ForTesting()
	cfg.Gateway.Driver = DriverRedis
	cfg.Redis.Address = addr
	return cfg
}
