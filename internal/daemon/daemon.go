// Package daemon wires the protocol transport, the tracker and the D-Bus
// service together and supervises them.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sync/errgroup"

	"github.com/1broseidon/taskmaid/internal/bus"
	"github.com/1broseidon/taskmaid/internal/config"
	"github.com/1broseidon/taskmaid/internal/platform"
	"github.com/1broseidon/taskmaid/internal/tracker"
)

// Daemon owns the tracker for one daemon lifetime.
type Daemon struct {
	cfg     *config.Config
	tracker *tracker.Tracker
	logger  *slog.Logger
}

// New creates a Daemon with the channel sizes from cfg.
func New(cfg *config.Config, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	t := tracker.New(tracker.Options{
		EventBuffer:  cfg.EventBuffer,
		ActionBuffer: cfg.ActionBuffer,
		SignalBuffer: cfg.SignalBuffer,
		Logger:       logger,
	})
	return &Daemon{cfg: cfg, tracker: t, logger: logger}
}

// Tracker exposes the tracker for callers that add their own producers.
func (d *Daemon) Tracker() *tracker.Tracker {
	return d.tracker
}

// Run connects to the session bus and the display server and serves until
// ctx is cancelled. Any component stopping on its own is fatal.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	d := New(cfg, logger)

	backend, err := platform.Open(platform.Options{
		Backend:          cfg.Backend,
		Display:          cfg.Display,
		WaylandDisplay:   cfg.WaylandDisplay,
		RestoreMinimized: cfg.RestoreMinimized,
		CloseHotkey:      cfg.CloseHotkey,
		OnCloseHotkey:    d.closeActiveFromHotkey,
		Logger:           d.logger,
	})
	if err != nil {
		return err
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer conn.Close()

	return d.Serve(ctx, backend, conn)
}

// Serve runs the tracker, backend and bus service on an already open
// connection.
func (d *Daemon) Serve(ctx context.Context, backend platform.Backend, conn bus.Conn) error {
	svc := bus.NewService(conn, d.tracker, d.cfg.BusName, dbus.ObjectPath(d.cfg.ObjectPath), d.logger)
	if err := svc.Start(); err != nil {
		return err
	}

	d.logger.Info("taskmaid started", "backend", backend.Name(), "bus_name", d.cfg.BusName)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := d.tracker.Run(gctx); err != nil {
			return fmt.Errorf("tracker: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := backend.Run(gctx, d.tracker.Sink(), d.tracker.Actions())
		d.tracker.TransportStopped()
		if err == nil {
			err = errors.New("stopped")
		}
		return fmt.Errorf("%s backend: %w", backend.Name(), err)
	})
	g.Go(func() error {
		if err := svc.Run(gctx, d.tracker.Signals()); err != nil {
			return fmt.Errorf("dbus service: %w", err)
		}
		return nil
	})
	if d.cfg.OverloadReportInterval > 0 {
		reporter := NewOverloadReporter(OverloadReporterConfig{
			Interval: d.cfg.OverloadReportInterval,
			Logger:   d.logger,
		}, d.tracker.Dropped, d.tracker.DroppedActions)
		g.Go(func() error {
			reporter.Run(gctx)
			return nil
		})
	}

	err := g.Wait()
	if ctx.Err() != nil {
		d.logger.Info("taskmaid stopped")
		return nil
	}
	return err
}

func (d *Daemon) closeActiveFromHotkey() {
	if err := d.tracker.CloseActive(); err != nil {
		d.logger.Warn("close hotkey ignored", "err", err)
	}
}
