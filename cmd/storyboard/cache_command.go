package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/cobra"

	"storyboard/internal/probecache"
)

var errProbeCacheDisabled = errors.New("probe cache is disabled (probe_cache.enabled = false)")

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the frame count cache",
	}
	cmd.AddCommand(newCacheStatsCommand(ctx))
	cmd.AddCommand(newCacheClearCommand(ctx))
	return cmd
}

func openProbeCache(ctx *commandContext) (*probecache.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := probecache.Open(cfg)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errProbeCacheDisabled
	}
	return store, nil
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache entries and thumbnail memory estimates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := openProbeCache(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			thumb := uint64(cfg.Storyboard.Width) * uint64(cfg.Storyboard.Height) * 4
			var total, free uint64
			if vm, err := mem.VirtualMemoryWithContext(cmd.Context()); err == nil {
				total = vm.Total
			}
			if usage, err := disk.UsageWithContext(cmd.Context(), cfg.Paths.CacheDir); err == nil {
				free = usage.Free
			}

			if asJSON {
				return writeJSON(cmd, map[string]any{
					"path":            stats.Path,
					"entries":         stats.Entries,
					"stale":           stats.Stale,
					"size_bytes":      stats.SizeBytes,
					"thumbnail_bytes": thumb,
					"memory_bytes":    total,
					"cache_disk_free": free,
				})
			}
			rows := [][]string{
				{"Database", stats.Path},
				{"Entries", strconv.Itoa(stats.Entries)},
				{"Stale", strconv.Itoa(stats.Stale)},
				{"Size", humanize.Bytes(uint64(stats.SizeBytes))},
				{"Thumbnail", fmt.Sprintf("%dx%d, %s", cfg.Storyboard.Width, cfg.Storyboard.Height, humanize.Bytes(thumb))},
			}
			if total > 0 && thumb > 0 {
				rows = append(rows, []string{"Thumbnails per 10% RAM", humanize.Comma(int64(total / 10 / thumb))})
			}
			if free > 0 {
				rows = append(rows, []string{"Cache disk free", humanize.Bytes(free)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable("Cache", []column{{header: "Field"}, {header: "Value"}}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var prune bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached frame counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openProbeCache(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			if prune {
				removed, err := store.Prune(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d stale entries\n", removed)
				return nil
			}
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "Only remove entries whose file changed or is gone")
	return cmd
}
