package abcache

import (
	"github.com/LavishGent/abcache/internal/bucketing"
	"github.com/LavishGent/abcache/internal/cache"
	"github.com/LavishGent/abcache/internal/config"
	"github.com/LavishGent/abcache/internal/repository"
)

// New creates a Service with the default configuration, which reads from
// MySQL on localhost.
func New(opts ...ManagerOption) (Service, error) {
	return NewFromConfig(config.DefaultConfig(), opts...)
}

// NewFromConfig creates a Service from configuration.
func NewFromConfig(cfg *config.Config, opts ...ManagerOption) (Service, error) {
	managerOpts := &ManagerOptions{}
	for _, opt := range opts {
		opt(managerOpts)
	}
	m, err := cache.NewManager(cfg, managerOpts)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NewFromFile creates a Service from a JSON config file with ABCACHE_*
// environment overrides applied.
func NewFromFile(path string, opts ...ManagerOption) (Service, error) {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, opts...)
}

// NewWithGateway creates a Service with the default configuration reading
// from gw.
func NewWithGateway(gw Gateway, opts ...ManagerOption) (Service, error) {
	return NewFromConfig(config.DefaultConfig(), append([]ManagerOption{WithGateway(gw)}, opts...)...)
}

// Config returns a default configuration that can be modified before creating a Service.
func Config() *config.Config {
	return config.DefaultConfig()
}

// TestConfig returns a configuration suitable for unit tests.
func TestConfig() *config.Config {
	return config.ForTesting()
}

// NewMemoryGateway returns an empty in-process gateway. Populate it with
// PutTenant.
func NewMemoryGateway() *MemoryGateway {
	return repository.NewMemoryGateway()
}

// Score returns userID's bucketing score in [0,100) for experimentID.
func Score(userID, experimentID string) float64 {
	return bucketing.Score(userID, experimentID)
}

// Assign returns the first variant whose range contains userID's score.
func Assign(userID string, experimentID int64, variants []Variant) (Variant, bool) {
	return bucketing.Assign(userID, experimentID, variants)
}
