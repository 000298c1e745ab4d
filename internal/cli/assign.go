package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/LavishGent/abcache/pkg/abcache"
)

func newAssignCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <tenant> <user-id> <experiment-id>",
		Short: "Print the variant a user is assigned",
		Long: `Print the variant a user falls into for one of a tenant's experiments.

Examples:
  abctl assign shop user-42 7`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			experimentID, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid experiment id %q", args[2])
			}

			svc, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			variant, ok, err := svc.VariantForUser(cmd.Context(), args[0], args[1], experimentID)
			if err != nil {
				return err
			}

			score := abcache.Score(args[1], args[2])
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintf(out, "score=%.2f variant=- (no variant covers this score or experiment %d is not configured)\n", score, experimentID)
				return nil
			}
			fmt.Fprintf(out, "score=%.2f variant=%s id=%d payload=%s\n", score, variant.Key, variant.ID, variant.Payload)
			return nil
		},
	}
}
