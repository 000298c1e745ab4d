package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Load loads configuration from a JSON file.
// If the file doesn't exist, returns default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithEnv loads configuration from a JSON file and applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

//nolint:gocyclo // Environment variable parsing requires many conditional checks
func applyEnvOverrides(cfg *Config) {
	// Legacy toggle, superseded by ABCACHE_CACHE_ENABLED.
	if v := os.Getenv("ABTEST_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("ABCACHE_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("ABCACHE_CACHE_CAPACITY"); v != "" {
		cfg.Cache.Capacity = parseInt(v, cfg.Cache.Capacity)
	}
	if v := os.Getenv("ABCACHE_CACHE_LOAD_TIMEOUT"); v != "" {
		cfg.Cache.LoadTimeout = parseDuration(v, cfg.Cache.LoadTimeout)
	}
	if v := os.Getenv("ABCACHE_CACHE_RELOAD_CONCURRENCY"); v != "" {
		cfg.Cache.ReloadConcurrency = parseInt(v, cfg.Cache.ReloadConcurrency)
	}
	if v := os.Getenv("ABCACHE_CACHE_PRELOAD"); v != "" {
		cfg.Cache.PreloadOnStart = parseBool(v)
	}

	if v := os.Getenv("ABCACHE_TRANSFORM_VALIDATE_RANGES"); v != "" {
		cfg.Transform.ValidateRanges = parseBool(v)
	}

	// MYSQL_* names are shared with the existing deployment scripts.
	applyGatewayEnv(cfg, "MYSQL_")
	applyGatewayEnv(cfg, "ABCACHE_GATEWAY_")
	if v := os.Getenv("ABCACHE_GATEWAY_DRIVER"); v != "" {
		cfg.Gateway.Driver = strings.ToLower(strings.TrimSpace(v))
	}
	if cfg.Gateway.TLS == "" && strings.Contains(cfg.Gateway.Host, "azure.com") {
		cfg.Gateway.TLS = "skip-verify"
	}

	if v := os.Getenv("ABCACHE_REDIS_ADDRESS"); v != "" {
		cfg.Redis.Address = v
	}
	if v := os.Getenv("ABCACHE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = NewSecretString(v)
	}
	if v := os.Getenv("ABCACHE_REDIS_DB"); v != "" {
		cfg.Redis.DB = parseInt(v, cfg.Redis.DB)
	}
	if v := os.Getenv("ABCACHE_REDIS_KEY_PREFIX"); v != "" {
		cfg.Redis.KeyPrefix = v
	}
	if v := os.Getenv("ABCACHE_REDIS_CODEC"); v != "" {
		cfg.Redis.Codec = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("ABCACHE_REDIS_ENABLE_TLS"); v != "" {
		cfg.Redis.EnableTLS = parseBool(v)
	}

	if v := os.Getenv("ABCACHE_CIRCUIT_BREAKER_ENABLED"); v != "" {
		cfg.CircuitBreaker.Enabled = parseBool(v)
	}
	if v := os.Getenv("ABCACHE_CIRCUIT_BREAKER_FAILURE_THRESHOLD"); v != "" {
		cfg.CircuitBreaker.FailureThreshold = parseInt(v, cfg.CircuitBreaker.FailureThreshold)
	}
	if v := os.Getenv("ABCACHE_CIRCUIT_BREAKER_OPEN_DURATION"); v != "" {
		cfg.CircuitBreaker.OpenDuration = parseDuration(v, cfg.CircuitBreaker.OpenDuration)
	}

	if v := os.Getenv("ABCACHE_RETRY_ENABLED"); v != "" {
		cfg.Retry.Enabled = parseBool(v)
	}
	if v := os.Getenv("ABCACHE_RETRY_MAX_ATTEMPTS"); v != "" {
		cfg.Retry.MaxAttempts = parseInt(v, cfg.Retry.MaxAttempts)
	}

	if v := os.Getenv("ABCACHE_BULKHEAD_ENABLED"); v != "" {
		cfg.Bulkhead.Enabled = parseBool(v)
	}
	if v := os.Getenv("ABCACHE_BULKHEAD_MAX_CONCURRENT"); v != "" {
		cfg.Bulkhead.MaxConcurrent = parseInt(v, cfg.Bulkhead.MaxConcurrent)
	}

	if v := os.Getenv("ABCACHE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("ABCACHE_METRICS_PUBLISH_INTERVAL"); v != "" {
		cfg.Metrics.PublishInterval = parseDuration(v, cfg.Metrics.PublishInterval)
	}
	if v := os.Getenv("ABCACHE_PROMETHEUS_ENABLED"); v != "" {
		cfg.Metrics.Prometheus.Enabled = parseBool(v)
	}

	if v := os.Getenv("DD_AGENT_HOST"); v != "" {
		cfg.Metrics.DataDog.AgentHost = v
		cfg.Metrics.DataDog.Enabled = true
	}
	if v := os.Getenv("DD_DOGSTATSD_PORT"); v != "" {
		cfg.Metrics.DataDog.Port = parseInt(v, cfg.Metrics.DataDog.Port)
	}
	if v := os.Getenv("DD_SERVICE"); v != "" {
		cfg.Metrics.DataDog.Prefix = v
	}
	if v := os.Getenv("DD_ENV"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "env:"+v)
	}
	if v := os.Getenv("DD_VERSION"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "version:"+v)
	}

	if v := os.Getenv("ABCACHE_DATADOG_ENABLED"); v != "" {
		if os.Getenv("DD_AGENT_HOST") == "" {
			cfg.Metrics.DataDog.Enabled = parseBool(v)
		}
	}
}

func applyGatewayEnv(cfg *Config, prefix string) {
	if v := os.Getenv(prefix + "HOST"); v != "" {
		cfg.Gateway.Host = v
	}
	if v := os.Getenv(prefix + "PORT"); v != "" {
		cfg.Gateway.Port = parseInt(v, cfg.Gateway.Port)
	}
	if v := os.Getenv(prefix + "USER"); v != "" {
		cfg.Gateway.User = v
	}
	if v := os.Getenv(prefix + "PASSWORD"); v != "" {
		cfg.Gateway.Password = NewSecretString(v)
	}
	if v := os.Getenv(prefix + "DATABASE"); v != "" {
		cfg.Gateway.Database = v
	}
	if v := os.Getenv(prefix + "TLS"); v != "" {
		cfg.Gateway.TLS = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be positive")
	}
	if c.Cache.LoadTimeout < 0 {
		return fmt.Errorf("cache.loadTimeout must not be negative")
	}
	if c.Cache.ReloadConcurrency <= 0 {
		return fmt.Errorf("cache.reloadConcurrency must be positive")
	}

	switch c.Gateway.Driver {
	case DriverMySQL:
		if c.Gateway.Host == "" {
			return fmt.Errorf("gateway.host is required for the mysql driver")
		}
		if c.Gateway.Database == "" {
			return fmt.Errorf("gateway.database is required for the mysql driver")
		}
		if c.Gateway.MaxOpenConns < 0 || c.Gateway.MaxIdleConns < 0 {
			return fmt.Errorf("gateway pool sizes must not be negative")
		}
	case DriverRedis:
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address is required for the redis driver")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.poolSize must be positive")
		}
		switch c.Redis.Codec {
		case "", "json", "msgpack", "cbor":
		default:
			return fmt.Errorf("redis.codec %q is not supported", c.Redis.Codec)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("gateway.driver %q is not supported", c.Gateway.Driver)
	}

	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureThreshold <= 0 {
			return fmt.Errorf("circuitBreaker.failureThreshold must be positive")
		}
		if c.CircuitBreaker.OpenDuration <= 0 {
			return fmt.Errorf("circuitBreaker.openDuration must be positive")
		}
	}

	if c.Retry.Enabled {
		if c.Retry.MaxAttempts <= 0 {
			return fmt.Errorf("retry.maxAttempts must be positive")
		}
	}

	if c.Bulkhead.Enabled {
		if c.Bulkhead.MaxConcurrent <= 0 {
			return fmt.Errorf("bulkhead.maxConcurrent must be positive")
		}
	}

	if c.Metrics.Enabled && c.Metrics.PublishInterval <= 0 {
		return fmt.Errorf("metrics.publishInterval must be positive")
	}

	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

func parseInt(s string, defaultVal int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultVal
	}
	return v
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)

	if d, err := time.ParseDuration(s); err == nil {
		return d
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultVal
}
