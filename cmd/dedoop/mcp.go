package main

import (
	"fmt"

	"github.com/panbanda/dedoop/internal/mcpserver"
	"github.com/urfave/cli/v2"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes duplicate
detection as a tool that LLMs can invoke. The loaded configuration supplies
defaults for every call.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "dedoop": {
        "command": "dedoop",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - find_duplicates       Runs of lines shared by two or more files

Available prompts:
  - refactor_duplicates   Plan how to consolidate duplicated code`,
		Action: runMCPCmd,
		Subcommands: []*cli.Command{
			{
				Name:  "manifest",
				Usage: "Print the MCP registry manifest (server.json)",
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
	loaded, err := loadConfig(c)
	if err != nil {
		return err
	}
	server := mcpserver.NewServer(version, loaded.Config)
	return server.Run(contextOf(c))
}
