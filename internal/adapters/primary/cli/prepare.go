package cli

import (
	"github.com/spf13/cobra"
)

func (a *app) prepareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prepare",
		Short: "Write the Iris dataset to the configured CSV path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.provisionService().Provision(cmd.Context(), a.cfg.Data.Path)
			return err
		},
	}
}
