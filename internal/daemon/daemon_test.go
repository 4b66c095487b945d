package daemon

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/1broseidon/taskmaid/internal/config"
	"github.com/1broseidon/taskmaid/internal/toplevel"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeConn struct {
	ctx   context.Context
	reply dbus.RequestNameReply
	emits chan string
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		ctx:   context.Background(),
		reply: dbus.RequestNameReplyPrimaryOwner,
		emits: make(chan string, 8),
	}
}

func (c *fakeConn) Export(interface{}, dbus.ObjectPath, string) error { return nil }
func (c *fakeConn) Context() context.Context                          { return c.ctx }
func (c *fakeConn) RequestName(string, dbus.RequestNameFlags) (dbus.RequestNameReply, error) {
	return c.reply, nil
}
func (c *fakeConn) Emit(_ dbus.ObjectPath, name string, _ ...interface{}) error {
	c.emits <- name
	return nil
}

// scriptBackend sends its events, then records commands until ctx ends or
// fail is closed.
type scriptBackend struct {
	events  []toplevel.Event
	fail    chan struct{}
	mu      sync.Mutex
	actions []toplevel.Command
	got     chan struct{}
}

func newScriptBackend(events ...toplevel.Event) *scriptBackend {
	return &scriptBackend{events: events, fail: make(chan struct{}), got: make(chan struct{}, 8)}
}

func (b *scriptBackend) Name() string { return "script" }

func (b *scriptBackend) Run(ctx context.Context, sink toplevel.Sink, actions <-chan toplevel.Command) error {
	for _, ev := range b.events {
		if err := sink.Send(ev); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.fail:
			return errors.New("compositor closed the connection")
		case cmd := <-actions:
			b.mu.Lock()
			b.actions = append(b.actions, cmd)
			b.mu.Unlock()
			b.got <- struct{}{}
		}
	}
}

func activeWindow(id toplevel.ID) []toplevel.Event {
	return []toplevel.Event{
		toplevel.OutputNew{Output: 1, Name: "eDP-1"},
		toplevel.New{ID: id},
		toplevel.Title{ID: id, Title: "Editor"},
		toplevel.AppID{ID: id, AppID: "gvim"},
		toplevel.Output{ID: id, Output: 1, Valid: true},
		toplevel.StateChange{ID: id, States: toplevel.States{toplevel.StateActive}},
		toplevel.Done{ID: id},
	}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.OverloadReportInterval = 0
	return cfg
}

func TestServe_ForwardsActiveChangesAndCommands(t *testing.T) {
	d := New(testConfig(), quietLogger())
	conn := newFakeConn()
	backend := newScriptBackend(activeWindow(42)...)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- d.Serve(ctx, backend, conn) }()

	select {
	case name := <-conn.emits:
		if name != "org.freedesktop.DBus.Properties.PropertiesChanged" {
			t.Fatalf("emitted %q", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no PropertiesChanged emitted")
	}
	if info, ok := d.Tracker().Active(); !ok || info.Title != "Editor" || info.OutputName != "eDP-1" {
		t.Fatalf("Active() = %+v, %v", info, ok)
	}

	d.closeActiveFromHotkey()
	select {
	case <-backend.got:
	case <-time.After(2 * time.Second):
		t.Fatal("backend never received the close command")
	}
	backend.mu.Lock()
	if len(backend.actions) != 1 || backend.actions[0] != (toplevel.Close{ID: 42}) {
		t.Fatalf("actions = %v", backend.actions)
	}
	backend.mu.Unlock()

	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Serve() after cancel = %v, want nil", err)
	}
}

func TestServe_BackendFailureIsFatal(t *testing.T) {
	d := New(testConfig(), quietLogger())
	backend := newScriptBackend()
	close(backend.fail)

	err := d.Serve(context.Background(), backend, newFakeConn())
	if err == nil || !strings.Contains(err.Error(), "script backend: compositor closed the connection") {
		t.Fatalf("Serve() = %v", err)
	}
	if err := d.Tracker().CloseActive(); err == nil {
		t.Fatal("CloseActive succeeded after the backend stopped")
	}
}

func TestServe_NameTaken(t *testing.T) {
	d := New(testConfig(), quietLogger())
	conn := newFakeConn()
	conn.reply = dbus.RequestNameReplyExists

	err := d.Serve(context.Background(), newScriptBackend(), conn)
	if err == nil || !strings.Contains(err.Error(), "already taken") {
		t.Fatalf("Serve() = %v", err)
	}
}

func TestOverloadReporter_LogsDeltas(t *testing.T) {
	var events, actions uint64
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := NewOverloadReporter(OverloadReporterConfig{Interval: time.Second, Logger: logger},
		func() uint64 { return events },
		func() uint64 { return actions })

	if e, a := r.report(); e != 0 || a != 0 || buf.Len() != 0 {
		t.Fatalf("quiet report = %d, %d, log %q", e, a, buf.String())
	}

	events, actions = 5, 1
	if e, a := r.report(); e != 5 || a != 1 {
		t.Fatalf("report = %d, %d, want 5, 1", e, a)
	}
	if !strings.Contains(buf.String(), "dropped_events=5") {
		t.Fatalf("log = %q", buf.String())
	}

	events = 7
	if e, a := r.report(); e != 2 || a != 0 {
		t.Fatalf("report = %d, %d, want 2, 0", e, a)
	}
}

func TestOverloadReporter_DefaultInterval(t *testing.T) {
	r := NewOverloadReporter(OverloadReporterConfig{}, func() uint64 { return 0 }, func() uint64 { return 0 })
	if r.interval != time.Minute {
		t.Fatalf("interval = %v, want 1m", r.interval)
	}
}
