package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/debtmap/internal/report"
	"github.com/panbanda/debtmap/pkg/config"
	"github.com/panbanda/debtmap/pkg/models"
)

func diffCmd() *cli.Command {
	return &cli.Command{
		Name:      "diff",
		Usage:     "Compare two debt maps: added, resolved, changed and unchanged items",
		ArgsUsage: "<base.json> <head.json> | --history [path]",
		Description: `Compares two JSON reports written by "debtmap scan -f json -o file",
or two runs from the scan history.

Examples:
  debtmap diff before.json after.json
  debtmap diff --history                 # the two latest recorded scans
  debtmap diff --history --base 3f2a1c   # a recorded scan against the latest`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "history",
				Usage: "Compare runs from the scan history of the workspace",
			},
			&cli.StringFlag{
				Name:  "base",
				Usage: "History run id (or unique prefix) to compare from",
			},
			&cli.StringFlag{
				Name:  "head",
				Usage: "History run id (or unique prefix) to compare to",
			},
			&cli.BoolFlag{
				Name:  "fail-on-worse",
				Usage: "Exit non-zero when items were added or became more severe",
			},
		},
		Action: runDiffCmd,
	}
}

func runDiffCmd(c *cli.Context) error {
	var (
		base, head *models.DebtMap
		cfg        *config.Config
		err        error
	)

	if c.Bool("history") {
		base, head, cfg, err = historyPair(c)
	} else {
		if c.Args().Len() != 2 {
			return errors.New("diff needs two report files, or --history")
		}
		cfg, _, err = loadConfig(c, ".")
		if err != nil {
			return err
		}
		if base, err = report.Read(c.Args().Get(0)); err != nil {
			return err
		}
		head, err = report.Read(c.Args().Get(1))
	}
	if err != nil {
		return err
	}

	d := report.Compare(base, head)

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()
	if err := formatter.Output(d); err != nil {
		return err
	}

	if c.Bool("fail-on-worse") {
		if n := d.Worsened(); n > 0 {
			return fmt.Errorf("debt worsened: %d items added or more severe", n)
		}
	}
	return nil
}

// historyPair loads the base and head maps from the workspace history.
// Without ids, head is the latest run and base the one before it.
func historyPair(c *cli.Context) (base, head *models.DebtMap, cfg *config.Config, err error) {
	root, err := workspaceRoot(getPath(c))
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, _, err = loadConfig(c, root)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := openHistory(root, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	defer store.Close()

	ctx := context.Background()
	baseID, headID := c.String("base"), c.String("head")

	if headID == "" || baseID == "" {
		latest, err := store.Latest(ctx, root, 2)
		if err != nil {
			return nil, nil, nil, err
		}
		switch {
		case headID == "" && baseID == "" && len(latest) < 2:
			return nil, nil, nil, fmt.Errorf("need two recorded scans of %s, found %d (use scan --record)", root, len(latest))
		case len(latest) == 0:
			return nil, nil, nil, fmt.Errorf("no recorded scans of %s (use scan --record)", root)
		}
		if headID == "" {
			head = latest[0]
		}
		if baseID == "" {
			base = latest[1%len(latest)]
		}
	}
	if baseID != "" {
		if base, err = store.Get(ctx, baseID); err != nil {
			return nil, nil, nil, err
		}
	}
	if headID != "" {
		if head, err = store.Get(ctx, headID); err != nil {
			return nil, nil, nil, err
		}
	}
	return base, head, cfg, nil
}
