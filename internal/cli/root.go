package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LavishGent/abcache/internal/config"
	"github.com/LavishGent/abcache/internal/logging"
	"github.com/LavishGent/abcache/pkg/abcache"
)

// app holds the global flags shared by every command.
type app struct {
	configPath string
	driver     string
	logLevel   string
	noColor    bool

	// gateway replaces the configured one when set.
	gateway abcache.Gateway
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "abctl",
		Short: "Inspect A/B experiment configuration and variant assignments",
		Long: `abctl reads per-tenant experiment configuration through the same cache
and gateway stack used by services embedding abcache.

Configuration is read from a JSON file with ABCACHE_* environment overrides.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to a JSON config file")
	root.PersistentFlags().StringVar(&a.driver, "gateway", "", "Override gateway.driver: mysql, redis or memory")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored log output")

	root.AddCommand(
		newScoreCmd(),
		newShowCmd(a),
		newAssignCmd(a),
		newTenantsCmd(a),
		newStatsCmd(a),
	)
	return root
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// open builds a Service from the global flags. The caller closes it.
func (a *app) open(cmd *cobra.Command) (abcache.Service, error) {
	cfg, err := config.LoadWithEnv(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if a.driver != "" {
		cfg.Gateway.Driver = a.driver
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	// One-shot commands never live long enough to publish.
	cfg.Metrics.Enabled = false

	level, err := logging.ParseLevel(a.logLevel)
	if err != nil {
		return nil, err
	}

	opts := []abcache.ManagerOption{
		abcache.WithLogger(logging.NewConsole(cmd.ErrOrStderr(), level, a.noColor)),
	}
	if a.gateway != nil {
		opts = append(opts, abcache.WithGateway(a.gateway))
	}

	svc, err := abcache.NewFromConfig(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	return svc, nil
}
