package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "orderflow",
		Short:         "Order lifecycle and fulfillment ledger for construction material orders",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config file; environment variables take precedence")

	root.AddCommand(newServeCmd(&configPath), newMigrateCmd(&configPath))
	return root
}
