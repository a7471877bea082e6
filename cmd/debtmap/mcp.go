package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/debtmap/internal/mcpserver"
	"github.com/panbanda/debtmap/pkg/config"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes debtmap scans
as tools that LLMs can invoke.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "debtmap": {
        "command": "debtmap",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - scan_debt           Debt map of a workspace, filterable by severity and kind
  - clear_blame_cache   Forget cached git blame results`,
		Action: runMCPCmd,
		Subcommands: []*cli.Command{
			{
				Name:  "manifest",
				Usage: "Print the server.json manifest for MCP registries",
				Action: func(c *cli.Context) error {
					data, err := mcpserver.GenerateManifest(version)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(c.App.Writer, string(data))
					return err
				},
			},
		},
	}
}

func runMCPCmd(c *cli.Context) error {
	// stdout carries the protocol, so logs go to stderr only.
	cfg := config.DefaultConfig()
	logger := newLogger(c, cfg)

	load := func(root string) (*config.Config, error) {
		if path := c.String("config"); path != "" {
			return config.Load(path)
		}
		res, err := config.LoadOrDefault(root)
		if err != nil {
			return nil, err
		}
		return res.Config, nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	server := mcpserver.NewServer(version,
		mcpserver.WithLogger(logger),
		mcpserver.WithConfigLoader(load),
	)
	return server.Run(ctx)
}
