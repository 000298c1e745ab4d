package repository

import (
	"fmt"
	"log/slog"

	"github.com/LavishGent/abcache/internal/config"
	"github.com/LavishGent/abcache/internal/types"
)

// Open builds the gateway selected by cfg.Gateway.Driver. The returned
// gateway implements io.Closer for the mysql and redis drivers.
func Open(cfg *config.Config, logger *slog.Logger) (types.Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Gateway.Driver {
	case config.DriverMySQL, "":
		db, err := OpenMySQL(cfg.Gateway)
		if err != nil {
			return nil, err
		}
		return NewSQLGateway(db, cfg.Gateway, logger), nil

	case config.DriverRedis:
		return NewRedisGateway(cfg.Redis, logger)

	case config.DriverMemory:
		logger.Warn("Using empty in-memory gateway")
		return NewMemoryGateway(), nil

	default:
		return nil, fmt.Errorf("unknown gateway driver %q", cfg.Gateway.Driver)
	}
}
