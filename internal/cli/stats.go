package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Preload every tenant and print cache statistics",
		Long: `Load every tenant the gateway lists, then print cache counters and
gateway health. Useful to check that all stored configuration parses.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			start := time.Now()
			preloadErr := svc.Preload(cmd.Context())
			elapsed := time.Since(start)

			stats := svc.Stats()
			health, err := svc.Health(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Status:         %s\n", health.Status)
			fmt.Fprintf(out, "Cache enabled:  %v\n", stats.Enabled)
			fmt.Fprintf(out, "Cached tenants: %d/%d\n", stats.Size, stats.Capacity)
			fmt.Fprintf(out, "Loads:          %d failed\n", stats.LoadFailures)
			fmt.Fprintf(out, "Circuit:        %s\n", health.Gateway.CircuitBreakerState)
			fmt.Fprintf(out, "Preload:        %s\n", elapsed.Round(time.Millisecond))

			if preloadErr != nil {
				return fmt.Errorf("preload: %w", preloadErr)
			}
			return nil
		},
	}
}
