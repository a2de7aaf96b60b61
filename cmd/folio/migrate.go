package main

import (
	"fmt"

	"github.com/goliatone/go-folio/core"
	"github.com/spf13/cobra"
)

func newMigrateCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the configured driver",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := setup(ctx, flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if env.config.StoreMode() == core.StoreModeDegraded {
				return core.NewConfigurationError("folio: migrate requires strict mode", nil)
			}
			client, err := env.openStore(ctx, true)
			if err != nil {
				return err
			}
			defer client.Close()
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return err
		},
	}
}
