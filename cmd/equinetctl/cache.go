package main

import (
	"context"
	"fmt"

	"github.com/cola500/equinet/config"
	"github.com/cola500/equinet/internal/cache/rediscache"
	"github.com/cola500/equinet/internal/services/catalog"
	"github.com/spf13/cobra"
)

// catalogInvalidator drops cached provider and service rows after a write.
type catalogInvalidator interface {
	Invalidate(ctx context.Context, providerID uint64, serviceIDs ...uint64)
}

func openRedis(cfg *config.Config) *rediscache.RedisCache {
	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "equinet:"
	}
	return rediscache.New(cfg.Redis.Addr(), prefix)
}

// openCatalogCache returns a catalog that only invalidates; it never reads through.
func openCatalogCache(cfg *config.Config) (*catalog.Service, func()) {
	rc := openRedis(cfg)
	ttl := cfg.Equinet.CacheTTL()
	if ttl <= 0 {
		ttl = catalog.DefaultTTL
	}
	return catalog.New(nil, rc, ttl), func() { _ = rc.Close() }
}

func newCacheCmd(opts *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the provider and service cache",
	}

	var providerID uint64
	var serviceIDs []uint
	invalidate := &cobra.Command{
		Use:   "invalidate",
		Short: "Drop cached rows for a provider edited outside equinet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if providerID == 0 {
				return fmt.Errorf("--provider is required")
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			cat, closeFn := openCatalogCache(cfg)
			defer closeFn()
			ids := make([]uint64, 0, len(serviceIDs))
			for _, id := range serviceIDs {
				ids = append(ids, uint64(id))
			}
			cat.Invalidate(cmd.Context(), providerID, ids...)
			fmt.Fprintf(cmd.OutOrStdout(), "invalidated provider=%d services=%v\n", providerID, ids)
			return nil
		},
	}
	invalidate.Flags().Uint64Var(&providerID, "provider", 0, "provider id")
	invalidate.Flags().UintSliceVar(&serviceIDs, "service", nil, "service ids to drop as well")
	cmd.AddCommand(invalidate)
	return cmd
}
