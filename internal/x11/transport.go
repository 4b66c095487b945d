package x11

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"

	"github.com/1broseidon/taskmaid/internal/hotkeys"
	"github.com/1broseidon/taskmaid/internal/toplevel"
)

// Options configures a Transport.
type Options struct {
	// Display overrides $DISPLAY.
	Display string
	// CloseHotkey is an xgbutil key sequence such as "Mod4-Shift-q". Empty
	// disables it.
	CloseHotkey string
	// OnCloseHotkey runs on the event goroutine when CloseHotkey is pressed.
	OnCloseHotkey func()
	Logger        *slog.Logger
}

// Transport is the X11 protocol transport.
type Transport struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Transport that connects to the X server on Run.
func New(opts Options) *Transport {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{opts: opts, logger: logger.With("backend", "x11")}
}

func (t *Transport) Name() string { return "x11" }

// Run watches the client list until ctx is done. Commands arrive on actions.
func (t *Transport) Run(ctx context.Context, sink toplevel.Sink, actions <-chan toplevel.Command) error {
	conn, err := NewConnection(t.opts.Display)
	if err != nil {
		return err
	}
	defer conn.Close()
	xu := conn.XUtil

	w := newWatcher(liveSource{conn: conn}, sink, t.logger)

	// Callbacks run on the xevent goroutine while Run waits between pings,
	// so the watcher is never touched concurrently. The first error stops
	// the loop.
	var cbErr error
	guard := func(fn func() error) {
		if cbErr != nil {
			return
		}
		cbErr = fn()
	}

	w.listen = func(win xproto.Window) {
		if err := xwindow.New(xu, win).Listen(xproto.EventMaskPropertyChange, xproto.EventMaskStructureNotify); err != nil {
			t.logger.Debug("failed to listen on window", "window", win, "err", err)
			return
		}
		xevent.PropertyNotifyFun(func(_ *xgbutil.XUtil, ev xevent.PropertyNotifyEvent) {
			guard(func() error { return w.refreshWindow(ev.Window) })
		}).Connect(xu, win)
		xevent.ConfigureNotifyFun(func(_ *xgbutil.XUtil, ev xevent.ConfigureNotifyEvent) {
			guard(func() error { return w.refreshWindow(ev.Window) })
		}).Connect(xu, win)
	}
	w.forget = func(win xproto.Window) {
		xevent.Detach(xu, win)
	}

	if err := xwindow.New(xu, conn.Root).Listen(xproto.EventMaskPropertyChange, xproto.EventMaskStructureNotify); err != nil {
		return fmt.Errorf("failed to listen on root window: %w", err)
	}
	xevent.PropertyNotifyFun(func(_ *xgbutil.XUtil, ev xevent.PropertyNotifyEvent) {
		name, err := xprop.AtomName(xu, ev.Atom)
		if err != nil {
			return
		}
		switch name {
		case "_NET_CLIENT_LIST":
			guard(w.refreshClients)
		case "_NET_ACTIVE_WINDOW":
			guard(w.refreshActive)
		}
	}).Connect(xu, conn.Root)
	xevent.ConfigureNotifyFun(func(_ *xgbutil.XUtil, _ xevent.ConfigureNotifyEvent) {
		guard(func() error {
			if err := w.refreshMonitors(); err != nil {
				return err
			}
			return w.refreshAll()
		})
	}).Connect(xu, conn.Root)

	if t.opts.CloseHotkey != "" && t.opts.OnCloseHotkey != nil {
		h := hotkeys.NewHandler(xu, conn.Root)
		if err := h.RegisterFunc(t.opts.CloseHotkey, t.opts.OnCloseHotkey); err != nil {
			return fmt.Errorf("failed to register close hotkey %q: %w", t.opts.CloseHotkey, err)
		}
		t.logger.Info("close hotkey registered", "keys", t.opts.CloseHotkey)
	}

	if err := w.refreshMonitors(); err != nil {
		return err
	}
	if err := w.refreshClients(); err != nil {
		return err
	}
	t.logger.Debug("initial client list read", "windows", len(w.windows), "outputs", len(w.monitors))

	before, after, quit := xevent.MainPing(xu)
	defer xevent.Quit(xu)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-quit:
			return errors.New("X11 event loop stopped")
		case <-before:
			<-after
			if cbErr != nil {
				return cbErr
			}
		case cmd, ok := <-actions:
			if !ok {
				return errors.New("action channel closed")
			}
			if err := t.execute(conn, w, cmd); err != nil {
				return err
			}
		}
	}
}

func (t *Transport) execute(conn *Connection, w *watcher, cmd toplevel.Command) error {
	switch c := cmd.(type) {
	case toplevel.Close:
		win := xproto.Window(c.ID)
		if !w.tracked(win) {
			t.logger.Debug("ignoring close for unknown window", "id", c.ID)
			return nil
		}
		if err := conn.CloseWindow(win); err != nil {
			// The window may have vanished between the lookup and the request.
			t.logger.Warn("close request failed", "window", win, "err", err)
		}
		return nil
	default:
		panic(fmt.Sprintf("x11: unhandled command %T", cmd))
	}
}
