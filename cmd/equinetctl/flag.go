package main

import (
	"fmt"
	"strconv"

	"github.com/cola500/equinet/internal/features"
	"github.com/spf13/cobra"
)

func newFlagCmd(opts *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flag",
		Short: "Inspect and override runtime feature flags",
	}

	withFlags := func(run func(cmd *cobra.Command, f *features.Flags, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			rc := openRedis(cfg)
			defer func() { _ = rc.Close() }()
			return run(cmd, features.New(features.WithDefaults(cfg.Equinet.Features), rc), args)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <name>",
		Short: "Print the effective value of a flag",
		Args:  cobra.ExactArgs(1),
		RunE: withFlags(func(cmd *cobra.Command, f *features.Flags, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%s=%t\n", args[0], f.IsEnabled(cmd.Context(), args[0]))
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <name> <true|false>",
		Short: "Override a flag at runtime",
		Args:  cobra.ExactArgs(2),
		RunE: withFlags(func(cmd *cobra.Command, f *features.Flags, args []string) error {
			v, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("invalid flag value %q", args[1])
			}
			if err := f.Override(cmd.Context(), args[0], v); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s=%t\n", args[0], v)
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset <name>",
		Short: "Drop the runtime override and fall back to the configured default",
		Args:  cobra.ExactArgs(1),
		RunE: withFlags(func(cmd *cobra.Command, f *features.Flags, args []string) error {
			if err := f.Reset(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s reset\n", args[0])
			return nil
		}),
	})
	return cmd
}
