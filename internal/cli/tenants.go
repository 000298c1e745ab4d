package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTenantsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tenants",
		Short: "List tenants known to the gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			tenants, err := svc.Tenants(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range tenants {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
}
