// Package mcp exposes the daemon's window list over the Model Context
// Protocol.
package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/taskmaid/internal/bus"
	"github.com/1broseidon/taskmaid/internal/toplevel"
)

const (
	ServerName    = "taskmaid"
	ServerVersion = "0.1.0"
)

// Client is the daemon API the tools call. *bus.Client implements it.
type Client interface {
	List(ctx context.Context) ([]toplevel.WindowInfo, error)
	Active(ctx context.Context) (toplevel.ActiveInfo, error)
	CloseActive(ctx context.Context) error
}

var _ Client = (*bus.Client)(nil)

// Server is the MCP server for taskmaid.
type Server struct {
	mcpServer *mcpsdk.Server
	client    Client
	logger    *slog.Logger
}

// NewServer creates an MCP server that forwards to client.
func NewServer(client Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{client: client, logger: logger}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_windows",
		Description: "List every open toplevel window known to the taskmaid daemon with its id, title, app id, output name and state flags (maximized, minimized, active, fullscreen).",
	}, s.handleListWindows)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_active_window",
		Description: "Get the most recently active window. known is false when no window has been active since the daemon started. An empty title and app id means the output it was on has nothing focused.",
	}, s.handleGetActiveWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "close_active_window",
		Description: "Ask the compositor to close the most recently active window. The request is fire-and-forget; the window may ignore it.",
	}, s.handleCloseActiveWindow)
}
