// Package platform selects the protocol transport for the running session.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/1broseidon/taskmaid/internal/toplevel"
	"github.com/1broseidon/taskmaid/internal/wayland"
	"github.com/1broseidon/taskmaid/internal/x11"
)

// ErrNoDisplay is returned by auto-detection when neither a Wayland nor an
// X11 display is configured.
var ErrNoDisplay = errors.New("no WAYLAND_DISPLAY or DISPLAY set")

// Backend is a protocol transport. Run forwards toplevel events to sink and
// executes commands from actions until ctx is done or the connection fails.
// It never closes sink.
type Backend interface {
	Name() string
	Run(ctx context.Context, sink toplevel.Sink, actions <-chan toplevel.Command) error
}

var (
	_ Backend = (*wayland.Transport)(nil)
	_ Backend = (*x11.Transport)(nil)
)

// Options configures Open.
type Options struct {
	// Backend is auto, wayland or x11.
	Backend          string
	Display          string
	WaylandDisplay   string
	RestoreMinimized bool
	CloseHotkey      string
	OnCloseHotkey    func()
	Logger           *slog.Logger
}

// Open builds the configured backend, detecting it from the environment for
// "auto".
func Open(opts Options) (Backend, error) {
	name, err := Select(opts, os.Getenv)
	if err != nil {
		return nil, err
	}
	switch name {
	case "wayland":
		return wayland.New(wayland.Options{
			Display:          opts.WaylandDisplay,
			RestoreMinimized: opts.RestoreMinimized,
			Logger:           opts.Logger,
		}), nil
	default:
		return x11.New(x11.Options{
			Display:       opts.Display,
			CloseHotkey:   opts.CloseHotkey,
			OnCloseHotkey: opts.OnCloseHotkey,
			Logger:        opts.Logger,
		}), nil
	}
}

// Select resolves the backend name. A display named in opts counts the same
// as its environment variable.
func Select(opts Options, getenv func(string) string) (string, error) {
	switch opts.Backend {
	case "wayland", "x11":
		return opts.Backend, nil
	case "", "auto":
	default:
		return "", fmt.Errorf("unknown backend %q", opts.Backend)
	}
	if opts.WaylandDisplay != "" || getenv("WAYLAND_DISPLAY") != "" {
		return "wayland", nil
	}
	if opts.Display != "" || getenv("DISPLAY") != "" {
		return "x11", nil
	}
	return "", ErrNoDisplay
}
