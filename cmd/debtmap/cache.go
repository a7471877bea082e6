package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/debtmap/internal/cache"
	"github.com/panbanda/debtmap/internal/output"
	"github.com/panbanda/debtmap/pkg/config"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Blame cache management",
		Subcommands: []*cli.Command{
			{
				Name:      "clear",
				Usage:     "Delete the on-disk blame cache of a workspace",
				ArgsUsage: "[path]",
				Action:    runCacheClear,
			},
			{
				Name:      "stats",
				Usage:     "Show the size of the on-disk blame cache of a workspace",
				ArgsUsage: "[path]",
				Action:    runCacheStats,
			},
		},
	}
}

func cacheDir(root string, cfg *config.Config) string {
	if filepath.IsAbs(cfg.Cache.Dir) {
		return cfg.Cache.Dir
	}
	return filepath.Join(root, cfg.Cache.Dir)
}

func runCacheClear(c *cli.Context) error {
	root, err := workspaceRoot(getPath(c))
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig(c, root)
	if err != nil {
		return err
	}
	eng := newEngine(c, newLogger(c, cfg))
	if err := eng.ClearWorkspaceCache(root, cfg); err != nil {
		return err
	}
	if !c.Bool("quiet") {
		messages(c).Success("Cleared blame cache for %s", root)
	}
	return nil
}

func runCacheStats(c *cli.Context) error {
	root, err := workspaceRoot(getPath(c))
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig(c, root)
	if err != nil {
		return err
	}
	if cfg.Cache.Dir == "" {
		return fmt.Errorf("no cache directory configured for %s", root)
	}
	store, err := cache.New(cacheDir(root, cfg), cfg.Cache.TTL, cfg.Cache.Enabled)
	if err != nil {
		return err
	}
	stats, err := store.GetStats()
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(output.NewTable("Blame Cache",
		[]string{"Directory", "Entries", "Size", "Oldest", "Newest"},
		[][]string{{
			store.Dir(),
			strconv.Itoa(stats.Entries),
			strconv.FormatInt(stats.TotalSize, 10),
			stats.OldestAge.Round(time.Second).String(),
			stats.NewestAge.Round(time.Second).String(),
		}},
		nil, stats))
}
