package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LavishGent/abcache/pkg/abcache"
)

func newScoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score <user-id> <experiment-or-group-id>",
		Short: "Print a user's bucketing score",
		Long: `Print the score in [0,100) a user receives for an experiment id or a
mee group id. No gateway is contacted.

Examples:
  abctl score user-42 7
  abctl score user-42 grp-shop`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f\n", abcache.Score(args[0], args[1]))
			return nil
		},
	}
}
