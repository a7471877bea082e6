package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/debtmap/pkg/config"
)

func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Subcommands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Show the effective configuration as TOML",
				ArgsUsage: "[path]",
				Action:    runConfigShow,
			},
			{
				Name:      "validate",
				Usage:     "Validate the configuration file",
				ArgsUsage: "[path]",
				Action:    runConfigValidate,
			},
			{
				Name:      "init",
				Usage:     "Write a debtmap.toml with the default settings",
				ArgsUsage: "[path]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing config file",
					},
				},
				Action: runConfigInit,
			},
		},
	}
}

func runConfigShow(c *cli.Context) error {
	root, err := workspaceRoot(getPath(c))
	if err != nil {
		return err
	}
	cfg, source, err := loadConfig(c, root)
	if err != nil {
		return err
	}

	if source != "" {
		fmt.Fprintf(c.App.Writer, "# Configuration from: %s\n\n", source)
	} else {
		fmt.Fprintln(c.App.Writer, "# Default configuration (no config file found)")
	}

	content, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = fmt.Fprint(c.App.Writer, string(content))
	return err
}

func runConfigValidate(c *cli.Context) error {
	root, err := workspaceRoot(getPath(c))
	if err != nil {
		return err
	}
	_, source, err := loadConfig(c, root)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	msg := messages(c)
	if source != "" {
		msg.Success("Configuration valid: %s", source)
	} else {
		msg.Warning("No config file found. Default configuration is valid.")
	}
	return nil
}

// defaultConfigTOML renders the defaults with a short header.
func defaultConfigTOML() (string, error) {
	content, err := toml.Marshal(config.DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("failed to marshal config to TOML: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("# debtmap configuration\n")
	buf.WriteString("# Every key can be overridden with DEBTMAP_<KEY>, nested keys joined by __.\n\n")
	buf.Write(content)
	return buf.String(), nil
}

func runConfigInit(c *cli.Context) error {
	root, err := workspaceRoot(getPath(c))
	if err != nil {
		return err
	}
	path := c.String("output")
	if path == "" {
		path = filepath.Join(root, "debtmap.toml")
	}

	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("config file %q already exists (use --force to overwrite)", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", dir, err)
		}
	}

	content, err := defaultConfigTOML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	messages(c).Success("Created %s", path)
	return nil
}
