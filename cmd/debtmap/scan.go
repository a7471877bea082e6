package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/debtmap/internal/output"
	"github.com/panbanda/debtmap/internal/progress"
	"github.com/panbanda/debtmap/internal/remote"
	"github.com/panbanda/debtmap/pkg/engine"
	"github.com/panbanda/debtmap/pkg/models"
)

func scanCmd() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Scan a workspace and print its debt map",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "max-files",
				Usage: "Maximum number of files to scan (default from config)",
			},
			&cli.BoolFlag{
				Name:  "record",
				Usage: "Store the result in the scan history database",
			},
			&cli.StringFlag{
				Name:  "fail-on",
				Usage: "Exit non-zero if any item has at least this severity: low, medium, high, critical",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum items in text and markdown output (negative for all)",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Do not show a progress bar",
			},
			&cli.BoolFlag{
				Name:  "no-audit",
				Usage: "Skip the dependency audit",
			},
			&cli.BoolFlag{
				Name:  "shallow",
				Usage: "Clone remote repositories with depth 1 (ages come from the tip commit)",
			},
		},
		Action: runScanCmd,
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// cloneRemote clones path when it names a remote repository and returns
// the clone directory. The returned source is nil for local paths.
func cloneRemote(ctx context.Context, c *cli.Context, path string) (*remote.Source, error) {
	src, err := remote.Parse(path)
	if err != nil || src == nil {
		return nil, err
	}
	var w io.Writer = io.Discard
	if !c.Bool("quiet") {
		messages(c).Info("Cloning %s", src.URL)
		w = c.App.ErrWriter
	}
	if err := src.Clone(ctx, w, c.Bool("shallow")); err != nil {
		return nil, err
	}
	return src, nil
}

func runScanCmd(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	path := getPath(c)
	src, err := cloneRemote(ctx, c, path)
	if err != nil {
		return err
	}
	if src != nil {
		defer src.Cleanup()
		if c.Bool("record") {
			return errors.New("--record needs a local workspace")
		}
		path = src.CloneDir
	}

	root, err := workspaceRoot(path)
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig(c, root)
	if err != nil {
		return err
	}
	if n := c.Int("max-files"); n > 0 {
		cfg.MaxFilesToScan = n
	}
	if c.Bool("no-audit") {
		cfg.Audit.Enabled = false
	}

	var failOn models.Severity
	if s := c.String("fail-on"); s != "" {
		sev, ok := models.ParseSeverity(s)
		if !ok {
			return fmt.Errorf("unknown severity %q for --fail-on", s)
		}
		failOn = sev
	}

	logger := newLogger(c, cfg)
	eng := newEngine(c, logger)

	var onProgress engine.ProgressFunc
	var tracker *progress.Tracker
	if !c.Bool("quiet") && !c.Bool("no-progress") {
		tracker = progress.NewTracker("Scanning", 0, progress.WithWriter(c.App.ErrWriter))
		onProgress = tracker.Update
	}

	dm, err := eng.Scan(ctx, root, cfg, onProgress)
	if tracker != nil {
		if err != nil {
			tracker.FinishError(err)
		} else {
			tracker.FinishSuccess()
		}
	}
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	report := output.NewDebtReport(dm)
	report.Limit = c.Int("limit")
	if err := formatter.Output(report); err != nil {
		return err
	}

	if c.Bool("record") {
		store, err := openHistory(root, cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		run, err := store.Record(ctx, root, dm)
		if err != nil {
			return err
		}
		if !c.Bool("quiet") {
			messages(c).Info("Recorded scan %s", run.ID)
		}
	}

	if failOn != "" {
		if n := dm.CountAtLeast(failOn); n > 0 {
			return fmt.Errorf("%d items at or above %s severity", n, failOn)
		}
	}
	return nil
}
