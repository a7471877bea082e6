package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/debtmap/internal/history"
	"github.com/panbanda/debtmap/internal/logging"
	"github.com/panbanda/debtmap/internal/output"
	"github.com/panbanda/debtmap/pkg/config"
	"github.com/panbanda/debtmap/pkg/engine"
)

func validFormat(s string) bool {
	return output.ValidFormat(s)
}

// getPath returns the first positional argument, defaulting to ".".
func getPath(c *cli.Context) string {
	if c.Args().Len() > 0 {
		return c.Args().First()
	}
	return "."
}

// workspaceRoot returns path as an absolute directory with symlinks resolved.
func workspaceRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid path %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return abs, nil
}

// loadConfig loads --config when given, otherwise the config found in root.
// The returned source is empty when only defaults applied.
func loadConfig(c *cli.Context, root string) (*config.Config, string, error) {
	if path := c.String("config"); path != "" {
		if err := config.LoadDotEnv(root); err != nil {
			return nil, "", err
		}
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	res, err := config.LoadOrDefault(root)
	if err != nil {
		return nil, "", err
	}
	return res.Config, res.Source, nil
}

func newLogger(c *cli.Context, cfg *config.Config) *slog.Logger {
	level := cfg.Log.Level
	if l := c.String("log-level"); l != "" {
		level = l
	}
	return logging.NewLogger(c.App.ErrWriter, logging.LevelFromFlags(level, c.Bool("verbose"), c.Bool("quiet")))
}

func outputFormat(c *cli.Context, cfg *config.Config) output.Format {
	if f := c.String("format"); f != "" {
		return output.ParseFormat(f)
	}
	return output.ParseFormat(cfg.Output.Format)
}

// newFormatter writes to --output when set, otherwise to the app writer.
// Files are never colored.
func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	format := outputFormat(c, cfg)
	if path := c.String("output"); path != "" {
		return output.NewFormatter(format, path, false)
	}
	colored := cfg.Output.Color && !c.Bool("no-color") && !color.NoColor
	return output.NewWriterFormatter(format, c.App.Writer, colored), nil
}

// messages prints status lines to stderr unless --quiet is set.
func messages(c *cli.Context) *output.Formatter {
	return output.NewWriterFormatter(output.FormatText, c.App.ErrWriter, !c.Bool("no-color") && !color.NoColor)
}

func newEngine(c *cli.Context, logger *slog.Logger) *engine.Engine {
	quiet := c.Bool("quiet")
	msg := messages(c)
	return engine.New(
		engine.WithLogger(logger),
		engine.WithNotifier(func(root string) {
			if !quiet {
				msg.Warning("%s is not a git repository; authors and ages are unavailable", root)
			}
		}),
	)
}

func historyPath(root string, cfg *config.Config) string {
	if filepath.IsAbs(cfg.History.Path) {
		return cfg.History.Path
	}
	return filepath.Join(root, cfg.History.Path)
}

func openHistory(root string, cfg *config.Config) (*history.Store, error) {
	return history.Open(historyPath(root, cfg))
}
