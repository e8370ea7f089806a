package main

import (
	"os"

	"github.com/cola500/equinet/config"
	"github.com/spf13/cobra"
)

type rootOpts struct {
	configPath string
}

func (o *rootOpts) load() (*config.Config, error) {
	return config.LoadConfig(o.configPath)
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{}
	cmd := &cobra.Command{
		Use:           "equinetctl",
		Short:         "Operational tooling for the equinet scheduling engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("configPath"), "path to the YAML config")

	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newSeedCmd(opts))
	cmd.AddCommand(newPlanRouteCmd())
	cmd.AddCommand(newFlagCmd(opts))
	cmd.AddCommand(newCacheCmd(opts))
	return cmd
}
