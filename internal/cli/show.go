package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/LavishGent/abcache/pkg/abcache"
)

func newShowCmd(a *app) *cobra.Command {
	var (
		activeOnly bool
		at         string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "show <tenant>",
		Short: "Show a tenant's experiments and variants",
		Long: `Show the mee group, experiments and variants configured for a tenant.

Examples:
  abctl show shop
  abctl show shop --active
  abctl show shop --active --at 2025-06-01T00:00:00Z
  abctl show shop --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				now = t
			}

			svc, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			set, err := svc.ExperimentSet(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if asJSON {
				snap := set.Snapshot()
				if activeOnly {
					snap.Experiments = set.Active(now)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}

			experiments := set.Experiments()
			if activeOnly {
				experiments = set.Active(now)
			}
			printSet(cmd.OutOrStdout(), set, experiments)
			return nil
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only experiments running at --at")
	cmd.Flags().StringVar(&at, "at", "", "Evaluation time in RFC 3339 (default now)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the set as JSON")
	return cmd
}

func printSet(w io.Writer, set *abcache.ExperimentSet, experiments []abcache.Experiment) {
	group, ok := set.MeeGroupID()
	if !ok {
		group = "-"
	}
	fmt.Fprintf(w, "Tenant:    %s\n", set.Tenant())
	fmt.Fprintf(w, "Mee group: %s\n", group)
	fmt.Fprintf(w, "Set:       %s (loaded %s)\n\n", set.ID(), set.LoadedAt().Format(time.RFC3339))

	if len(experiments) == 0 {
		fmt.Fprintln(w, "No experiments.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSTATUS\tSTART\tEND\tVARIANTS")
	for _, exp := range experiments {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			exp.ID, exp.Name, exp.Kind, exp.Status,
			exp.StartTime.Format(time.DateOnly), exp.EndTime.Format(time.DateOnly),
			variantSummary(exp.Variants))
	}
	_ = tw.Flush()
}

func variantSummary(variants []abcache.Variant) string {
	if len(variants) == 0 {
		return "-"
	}
	parts := make([]string, len(variants))
	for i, v := range variants {
		parts[i] = fmt.Sprintf("%s[%g,%g)", v.Key, v.RangeStart, v.RangeEnd)
	}
	return strings.Join(parts, " ")
}
