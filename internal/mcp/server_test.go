package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/1broseidon/taskmaid/internal/bus"
	"github.com/1broseidon/taskmaid/internal/toplevel"
)

type fakeClient struct {
	windows   []toplevel.WindowInfo
	active    toplevel.ActiveInfo
	err       error
	activeErr error
	closes    int
}

func (c *fakeClient) List(context.Context) ([]toplevel.WindowInfo, error) {
	return c.windows, c.err
}

func (c *fakeClient) Active(context.Context) (toplevel.ActiveInfo, error) {
	return c.active, c.activeErr
}

func (c *fakeClient) CloseActive(context.Context) error {
	if c.err != nil {
		return c.err
	}
	c.closes++
	return nil
}

func newTestServer(c *fakeClient) *Server {
	return NewServer(c, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleListWindows_SortsAndNamesStates(t *testing.T) {
	c := &fakeClient{windows: []toplevel.WindowInfo{
		{ID: 9, Title: "b", AppID: "foot", OutputName: "HDMI-1"},
		{ID: 3, Title: "a", AppID: "gvim", OutputName: "eDP-1", States: toplevel.States{toplevel.StateActive, toplevel.StateMaximized}},
	}}
	s := newTestServer(c)

	_, out, err := s.handleListWindows(context.Background(), nil, ListWindowsInput{})
	if err != nil {
		t.Fatalf("handleListWindows: %v", err)
	}
	if len(out.Windows) != 2 || out.Windows[0].ID != 3 || out.Windows[1].ID != 9 {
		t.Fatalf("windows = %+v", out.Windows)
	}
	if !slices.Equal(out.Windows[0].States, []string{"active", "maximized"}) {
		t.Fatalf("states = %v", out.Windows[0].States)
	}
	if out.Windows[1].States == nil {
		t.Fatal("empty state list should marshal as [] not null")
	}
}

func TestHandleListWindows_Error(t *testing.T) {
	s := newTestServer(&fakeClient{err: errors.New("daemon not running")})
	if _, _, err := s.handleListWindows(context.Background(), nil, ListWindowsInput{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestHandleGetActiveWindow(t *testing.T) {
	c := &fakeClient{active: toplevel.ActiveInfo{Title: "Editor", AppID: "gvim", OutputName: "eDP-1"}}
	s := newTestServer(c)

	_, out, err := s.handleGetActiveWindow(context.Background(), nil, GetActiveWindowInput{})
	if err != nil {
		t.Fatalf("handleGetActiveWindow: %v", err)
	}
	want := GetActiveWindowOutput{Known: true, Title: "Editor", AppID: "gvim", Output: "eDP-1"}
	if out != want {
		t.Fatalf("out = %+v, want %+v", out, want)
	}
}

func TestHandleGetActiveWindow_NoneYet(t *testing.T) {
	s := newTestServer(&fakeClient{activeErr: bus.ErrNoActive})

	_, out, err := s.handleGetActiveWindow(context.Background(), nil, GetActiveWindowInput{})
	if err != nil {
		t.Fatalf("handleGetActiveWindow: %v", err)
	}
	if out.Known {
		t.Fatalf("out = %+v, want unknown", out)
	}
}

func TestHandleCloseActiveWindow(t *testing.T) {
	c := &fakeClient{}
	s := newTestServer(c)

	res, out, err := s.handleCloseActiveWindow(context.Background(), nil, CloseActiveWindowInput{})
	if err != nil {
		t.Fatalf("handleCloseActiveWindow: %v", err)
	}
	if !out.Requested || c.closes != 1 {
		t.Fatalf("out = %+v, closes = %d", out, c.closes)
	}
	if res == nil || len(res.Content) != 1 {
		t.Fatalf("result = %+v", res)
	}

	c.err = errors.New("no reply")
	if _, _, err := s.handleCloseActiveWindow(context.Background(), nil, CloseActiveWindowInput{}); err == nil {
		t.Fatal("expected error")
	}
}
