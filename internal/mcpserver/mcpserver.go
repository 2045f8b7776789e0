// Package mcpserver exposes duplicate detection over the Model Context
// Protocol.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/panbanda/dedoop/pkg/config"
)

// Server wraps the MCP server and registers the dedoop tools.
type Server struct {
	server *mcp.Server
	config *config.Config
}

// NewServer creates a new MCP server. cfg supplies defaults for every tool
// call; nil uses the built-in defaults.
func NewServer(version string, cfg *config.Config) *Server {
	if version == "" {
		version = "dev"
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "dedoop",
			Version: version,
		},
		nil,
	)

	s := &Server{server: server, config: cfg}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "find_duplicates",
		Description: describeFindDuplicates(),
	}, s.handleFindDuplicates)
}
