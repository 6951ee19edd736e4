// ABOUTME: MCP server exposing the catalog to AI agents
// ABOUTME: Read tools over feeds and items plus read/star status mutations

package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/harper/superflux/internal/catalog"
)

// Server wraps the MCP server with catalog access.
type Server struct {
	mcpServer *server.MCPServer
	catalog   *catalog.Store
}

// NewServer creates an MCP server over the catalog.
func NewServer(cat *catalog.Store) *Server {
	s := &Server{catalog: cat}
	s.mcpServer = server.NewMCPServer(
		"superflux",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

// ServeStdio starts the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
