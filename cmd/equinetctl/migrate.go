package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cola500/equinet/internal/storage/pgbooking"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			// New applies the schema before returning.
			st, err := pgbooking.New(cfg.Database.ConnString())
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := st.Ping(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema: ok")
			return nil
		},
	}
}
