package cli

import (
	"github.com/spf13/cobra"
)

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run prepare, train and promote in sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.provisionService().Provision(cmd.Context(), a.cfg.Data.Path); err != nil {
				return err
			}
			if err := a.train(cmd); err != nil {
				return err
			}
			return a.promote(cmd)
		},
	}
}
