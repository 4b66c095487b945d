package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/taskmaid/internal/bus"
	"github.com/1broseidon/taskmaid/internal/toplevel"
)

func (s *Server) handleListWindows(ctx context.Context, _ *mcpsdk.CallToolRequest, _ ListWindowsInput) (*mcpsdk.CallToolResult, ListWindowsOutput, error) {
	infos, err := s.client.List(ctx)
	if err != nil {
		return nil, ListWindowsOutput{}, fmt.Errorf("failed to list windows: %w", err)
	}

	windows := make([]Window, 0, len(infos))
	for _, info := range infos {
		windows = append(windows, windowFromInfo(info))
	}
	// The daemon's order is unspecified; sort for stable output.
	sort.Slice(windows, func(i, j int) bool {
		return windows[i].ID < windows[j].ID
	})
	s.logger.Debug("mcp list_windows", "count", len(windows))

	return nil, ListWindowsOutput{Windows: windows}, nil
}

func (s *Server) handleGetActiveWindow(ctx context.Context, _ *mcpsdk.CallToolRequest, _ GetActiveWindowInput) (*mcpsdk.CallToolResult, GetActiveWindowOutput, error) {
	info, err := s.client.Active(ctx)
	if errors.Is(err, bus.ErrNoActive) {
		return nil, GetActiveWindowOutput{Known: false}, nil
	}
	if err != nil {
		return nil, GetActiveWindowOutput{}, fmt.Errorf("failed to get active window: %w", err)
	}
	return nil, GetActiveWindowOutput{
		Known:  true,
		Title:  info.Title,
		AppID:  info.AppID,
		Output: info.OutputName,
	}, nil
}

func (s *Server) handleCloseActiveWindow(ctx context.Context, _ *mcpsdk.CallToolRequest, _ CloseActiveWindowInput) (*mcpsdk.CallToolResult, CloseActiveWindowOutput, error) {
	if err := s.client.CloseActive(ctx); err != nil {
		return nil, CloseActiveWindowOutput{}, fmt.Errorf("failed to close active window: %w", err)
	}
	s.logger.Debug("mcp close_active_window requested")
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: "Close requested for the last active window"},
		},
	}, CloseActiveWindowOutput{Requested: true}, nil
}

func windowFromInfo(info toplevel.WindowInfo) Window {
	states := make([]string, len(info.States))
	for i, st := range info.States {
		states[i] = st.String()
	}
	return Window{
		ID:     uint32(info.ID),
		Title:  info.Title,
		AppID:  info.AppID,
		Output: info.OutputName,
		States: states,
	}
}
