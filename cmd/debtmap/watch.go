package main

import (
	"context"
	"errors"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/debtmap/internal/output"
	"github.com/panbanda/debtmap/pkg/watch"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Re-scan whenever source files change",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "debounce",
				Value: watch.DefaultDebounce,
				Usage: "Quiet period before a burst of changes triggers a scan",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum items in text and markdown output (negative for all)",
			},
		},
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	root, err := workspaceRoot(getPath(c))
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig(c, root)
	if err != nil {
		return err
	}
	logger := newLogger(c, cfg)
	eng := newEngine(c, logger)
	msg := messages(c)

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	scan := func(ctx context.Context) {
		dm, err := eng.Scan(ctx, root, cfg, nil)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				msg.Error("scan failed: %v", err)
			}
			return
		}
		rep := output.NewDebtReport(dm)
		rep.Limit = c.Int("limit")
		if err := formatter.Output(rep); err != nil {
			msg.Error("render failed: %v", err)
		}
	}

	w, err := watch.NewWatcher(root, cfg, c.Duration("debounce"),
		watch.WithLogger(logger),
		watch.WithOutput(c.App.ErrWriter),
	)
	if err != nil {
		return err
	}
	defer w.Stop()

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	scan(ctx)
	logger.Debug("initial scan finished", "duration", time.Since(start))

	w.SetCallback(func(ctx context.Context, changed []string) {
		logger.Debug("re-scanning", "changed", changed)
		scan(ctx)
	})

	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
