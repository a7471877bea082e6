package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "debtmap",
		Usage:     "Map technical debt in a workspace",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Description: `debtmap finds TODO-style markers, overly complex functions, vulnerable
npm dependencies and stale files that many other files still import.
Findings are enriched with git blame, so each one carries an author and an
age, and are ranked into the files where debt concentrates.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"DEBTMAP_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, markdown, json, toon, yaml (default from config)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Suppress logs and progress",
			},
			&cli.BoolFlag{
				Name:    "no-color",
				Usage:   "Disable colored output",
				EnvVars: []string{"NO_COLOR"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error, silent (default from config)",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("no-color") {
				color.NoColor = true
			}
			if f := c.String("format"); f != "" && !validFormat(f) {
				return fmt.Errorf("unknown format %q", f)
			}
			return nil
		},
		Commands: []*cli.Command{
			scanCmd(),
			diffCmd(),
			historyCmd(),
			watchCmd(),
			mcpCmd(),
			configCmd(),
			cacheCmd(),
		},
	}
}

func main() {
	app := newApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
