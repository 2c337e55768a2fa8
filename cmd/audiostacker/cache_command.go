package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"audiostacker/internal/audible"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the result cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))

	return cacheCmd
}

func openCache(ctx *commandContext) (*audible.Cache, error) {
	cache, err := ctx.resultCache()
	if err != nil {
		return nil, err
	}
	if cache == nil {
		return nil, errors.New("result cache is disabled (cache.enabled = false)")
	}
	return cache, nil
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show result cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(ctx)
			if err != nil {
				return err
			}
			stats, err := cache.Stats()
			if err != nil {
				return err
			}
			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, stats)
			}
			columns := []column{{header: "metric"}, {header: "value"}}
			rows := [][]string{
				{"directory", stats.Dir},
				{"ttl", cache.TTL().String()},
				{"entries", strconv.Itoa(stats.Entries)},
				{"expired", strconv.Itoa(stats.Expired)},
				{"size", formatBytes(stats.Bytes)},
				{"oldest", formatTime(stats.Oldest)},
				{"newest", formatTime(stats.Newest)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(columns, rows))
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached result page",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(ctx)
			if err != nil {
				return err
			}
			removed, err := cache.Clear()
			if err != nil {
				return err
			}
			return reportRemoved(ctx, cmd, removed, "cached page(s) removed")
		},
	}
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove expired cached result pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(ctx)
			if err != nil {
				return err
			}
			removed, err := cache.Prune()
			if err != nil {
				return err
			}
			return reportRemoved(ctx, cmd, removed, "expired page(s) removed")
		},
	}
}

func reportRemoved(ctx *commandContext, cmd *cobra.Command, removed int, label string) error {
	if ctx.wantJSON(cmd) {
		return writeJSON(cmd, map[string]int{"removed": removed})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", removed, label)
	return nil
}
