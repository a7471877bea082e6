package main

import (
	"context"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/debtmap/internal/history"
	"github.com/panbanda/debtmap/internal/output"
)

func historyCmd() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List recorded scans of a workspace",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Value: 20,
				Usage: "Maximum runs to list (0 for all)",
			},
		},
		Action: runHistoryCmd,
		Subcommands: []*cli.Command{
			{
				Name:      "prune",
				Usage:     "Delete all but the most recent runs",
				ArgsUsage: "[path]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "keep",
						Value: 10,
						Usage: "Number of runs to keep",
					},
				},
				Action: runHistoryPruneCmd,
			},
		},
	}
}

func runsTable(runs []history.Run) *output.Table {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		commit := r.CommitSHA
		if len(commit) > 12 {
			commit = commit[:12]
		}
		rows = append(rows, []string{
			r.ID[:8],
			r.ScannedAt.Local().Format("2006-01-02 15:04"),
			commit,
			strconv.Itoa(r.TotalDebt),
			strconv.Itoa(r.Critical),
			strconv.Itoa(r.High),
		})
	}
	return output.NewTable("Scan History",
		[]string{"Run", "Scanned", "Commit", "Items", "Critical", "High"},
		rows, nil, runs)
}

func runHistoryCmd(c *cli.Context) error {
	root, err := workspaceRoot(getPath(c))
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig(c, root)
	if err != nil {
		return err
	}
	store, err := openHistory(root, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(context.Background(), root, c.Int("limit"))
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []history.Run{}
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if len(runs) == 0 && formatter.Format() == output.FormatText {
		formatter.Info("No recorded scans of %s (use scan --record)", root)
		return nil
	}
	return formatter.Output(runsTable(runs))
}

func runHistoryPruneCmd(c *cli.Context) error {
	root, err := workspaceRoot(getPath(c))
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig(c, root)
	if err != nil {
		return err
	}
	store, err := openHistory(root, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Prune(context.Background(), root, c.Int("keep"))
	if err != nil {
		return err
	}
	if !c.Bool("quiet") {
		messages(c).Success("Removed %d runs", n)
	}
	return nil
}
