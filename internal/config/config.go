// Package config provides configuration management for abcache.
package config

import (
	"time"

	"github.com/LavishGent/abcache/internal/types"
)

// SecretString is a string type that redacts its value when marshaled to JSON.
type SecretString = types.SecretString

// NewSecretString creates a new SecretString with the provided value.
func NewSecretString(value string) SecretString {
	return types.NewSecretString(value)
}

// Gateway drivers.
const (
	DriverMySQL  = "mysql"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Config contains all configuration for the experiment service.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type Config struct {
	Cache          CacheConfig          `json:"cache"`
	Transform      TransformConfig      `json:"transform"`
	KeyValidation  KeyValidationConfig  `json:"keyValidation"`
	Gateway        GatewayConfig        `json:"gateway"`
	Redis          RedisConfig          `json:"redis"`
	CircuitBreaker CircuitBreakerConfig `json:"circuitBreaker"`
	Retry          RetryConfig          `json:"retry"`
	Bulkhead       BulkheadConfig       `json:"bulkhead"`
	Metrics        MetricsConfig        `json:"metrics"`
}

// CacheConfig contains configuration for the experiment cache.
type CacheConfig struct {
	// Enabled selects the cached path. When false every lookup loads from
	// the gateway.
	Enabled           bool          `json:"enabled"`
	Capacity          int           `json:"capacity"`
	LoadTimeout       time.Duration `json:"loadTimeout"`
	ReloadConcurrency int           `json:"reloadConcurrency"`
	PreloadOnStart    bool          `json:"preloadOnStart"`
	ShutdownTimeout   time.Duration `json:"shutdownTimeout"`
}

// TransformConfig controls how stored rows become experiment sets.
type TransformConfig struct {
	// ValidateRanges rejects variant lists that are not a partition of [0,100).
	ValidateRanges bool `json:"validateRanges"`
}

// KeyValidationConfig contains configuration for tenant key validation.
type KeyValidationConfig struct {
	ReservedPatterns []string `json:"reservedPatterns"`
	MaxKeyLength     int      `json:"maxKeyLength"`
	Enabled          bool     `json:"enabled"`
	AllowWhitespace  bool     `json:"allowWhitespace"`
}

// ToTypesConfig converts this config to a types.KeyValidationConfig.
func (c KeyValidationConfig) ToTypesConfig() types.KeyValidationConfig {
	return types.KeyValidationConfig{
		MaxKeyLength:     c.MaxKeyLength,
		AllowWhitespace:  c.AllowWhitespace,
		ReservedPatterns: c.ReservedPatterns,
	}
}

// GatewayConfig selects and configures the backing store. TLS is passed
// to the MySQL driver as-is ("true", "false", "skip-verify", "preferred").
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type GatewayConfig struct {
	Driver          string        `json:"driver"`
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	User            string        `json:"user"`
	Password        SecretString  `json:"password"`
	Database        string        `json:"database"`
	Params          string        `json:"params"`
	TLS             string        `json:"tls"`
	MaxOpenConns    int           `json:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime"`
	QueryTimeout    time.Duration `json:"queryTimeout"`
}

// RedisConfig contains configuration for the Redis gateway.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type RedisConfig struct {
	DialTimeout   time.Duration `json:"dialTimeout"`
	ReadTimeout   time.Duration `json:"readTimeout"`
	WriteTimeout  time.Duration `json:"writeTimeout"`
	PoolTimeout   time.Duration `json:"poolTimeout"`
	Password      SecretString  `json:"password"`
	Address       string        `json:"address"`
	KeyPrefix     string        `json:"keyPrefix"`
	Codec         string        `json:"codec"`
	DB            int           `json:"db"`
	PoolSize      int           `json:"poolSize"`
	MinIdleConns  int           `json:"minIdleConns"`
	EnableTLS     bool          `json:"enableTLS"`
	TLSSkipVerify bool          `json:"tlsSkipVerify"`
}

// CircuitBreakerConfig contains configuration for the circuit breaker pattern.
type CircuitBreakerConfig struct {
	Enabled             bool          `json:"enabled"`
	FailureThreshold    int           `json:"failureThreshold"`
	SuccessThreshold    int           `json:"successThreshold"`
	OpenDuration        time.Duration `json:"openDuration"`
	HalfOpenMaxRequests int           `json:"halfOpenMaxRequests"`
}

// RetryConfig contains configuration for the retry pattern.
type RetryConfig struct {
	InitialBackoff time.Duration `json:"initialBackoff"`
	MaxBackoff     time.Duration `json:"maxBackoff"`
	Multiplier     float64       `json:"multiplier"`
	MaxAttempts    int           `json:"maxAttempts"`
	Enabled        bool          `json:"enabled"`
	Jitter         bool          `json:"jitter"`
}

// BulkheadConfig contains configuration for the bulkhead pattern.
type BulkheadConfig struct {
	Enabled        bool          `json:"enabled"`
	MaxConcurrent  int           `json:"maxConcurrent"`
	MaxQueue       int           `json:"maxQueue"`
	AcquireTimeout time.Duration `json:"acquireTimeout"`
}

// MetricsConfig contains configuration for metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type MetricsConfig struct {
	PublishInterval time.Duration    `json:"publishInterval"`
	DataDog         DataDogConfig    `json:"datadog"`
	Prometheus      PrometheusConfig `json:"prometheus"`
	Enabled         bool             `json:"enabled"`
}

// DataDogConfig contains configuration for DataDog metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type DataDogConfig struct {
	Tags      []string `json:"tags"`
	AgentHost string   `json:"agentHost"`
	Prefix    string   `json:"prefix"`
	Port      int      `json:"port"`
	Enabled   bool     `json:"enabled"`
}

// PrometheusConfig controls the Prometheus collector.
type PrometheusConfig struct {
	Namespace string `json:"namespace"`
	Enabled   bool   `json:"enabled"`
}
