package tracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/1broseidon/taskmaid/internal/toplevel"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startTracker(t *testing.T, opts Options) (*Tracker, context.CancelFunc, <-chan error) {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	tr := New(opts)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- tr.Run(ctx) }()
	t.Cleanup(cancel)
	return tr, cancel, errc
}

func waitSignal(t *testing.T, tr *Tracker) toplevel.ActiveInfo {
	t.Helper()
	select {
	case info := <-tr.Signals():
		return info
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for active-window signal")
	}
	return toplevel.ActiveInfo{}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTracker_SignalsAndSnapshot(t *testing.T) {
	tr, _, _ := startTracker(t, Options{})
	sink := tr.Sink()

	for _, ev := range editorScenario() {
		if err := sink.Send(ev); err != nil {
			t.Fatalf("Send(%v) error: %v", ev, err)
		}
	}

	got := waitSignal(t, tr)
	want := toplevel.ActiveInfo{Title: "Editor", AppID: "editor", OutputName: "eDP-1"}
	if got != want {
		t.Fatalf("signal = %+v, want %+v", got, want)
	}

	active, ok := tr.Active()
	if !ok || active != want {
		t.Fatalf("Active() = %+v, %v; want %+v", active, ok, want)
	}
	list := tr.List()
	if len(list) != 1 || list[0].ID != 1 || list[0].OutputName != "eDP-1" {
		t.Fatalf("List() = %+v", list)
	}
}

func TestTracker_InitialSnapshotIsEmpty(t *testing.T) {
	tr := New(Options{Logger: quietLogger()})

	if list := tr.List(); list == nil || len(list) != 0 {
		t.Fatalf("List() = %#v, want empty non-nil slice", list)
	}
	if _, ok := tr.Active(); ok {
		t.Fatal("Active() reported a value before any event")
	}
}

func TestTracker_ClosedEventStreamIsFatal(t *testing.T) {
	tr, _, errc := startTracker(t, Options{})
	sink := tr.Sink()

	if err := sink.Send(toplevel.New{ID: 1}); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	sink.Close()
	sink.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrEventStreamClosed) {
			t.Fatalf("Run() = %v, want ErrEventStreamClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the stream closed")
	}

	// Buffered events are drained before the stream end is reported.
	if len(tr.List()) != 1 {
		t.Fatalf("List() = %+v, want the buffered window", tr.List())
	}
	if err := sink.Send(toplevel.New{ID: 2}); !errors.Is(err, ErrTrackerGone) {
		t.Fatalf("Send after stop = %v, want ErrTrackerGone", err)
	}
}

func TestSink_SendAfterCloseReportsGone(t *testing.T) {
	tr := New(Options{Logger: quietLogger()})
	sink := tr.Sink()
	sink.Close()

	// Run has not observed the close yet; Send must not touch the channel.
	if err := sink.Send(toplevel.New{ID: 1}); !errors.Is(err, ErrTrackerGone) {
		t.Fatalf("Send after Close = %v, want ErrTrackerGone", err)
	}
}

func TestTracker_CancelStopsRun(t *testing.T) {
	tr, cancel, errc := startTracker(t, Options{})
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if err := tr.Sink().Send(toplevel.New{ID: 1}); !errors.Is(err, ErrTrackerGone) {
		t.Fatalf("Send after stop = %v, want ErrTrackerGone", err)
	}
}

func TestSink_DropsWhenFull(t *testing.T) {
	// Not running: nothing drains the channel.
	tr := New(Options{EventBuffer: 2, Logger: quietLogger()})
	sink := tr.Sink()

	for i := 1; i <= 5; i++ {
		if err := sink.Send(toplevel.New{ID: toplevel.ID(i)}); err != nil {
			t.Fatalf("Send(%d) error: %v", i, err)
		}
	}
	if got := tr.Dropped(); got != 3 {
		t.Fatalf("Dropped() = %d, want 3", got)
	}

	// The oldest events survive in FIFO order.
	first := <-tr.events
	second := <-tr.events
	if first != (toplevel.New{ID: 1}) || second != (toplevel.New{ID: 2}) {
		t.Fatalf("buffered = %v, %v; want New(1), New(2)", first, second)
	}
}

func TestCloseActive_QueuesLastActive(t *testing.T) {
	tr, _, _ := startTracker(t, Options{})
	sink := tr.Sink()
	for _, ev := range editorScenario() {
		_ = sink.Send(ev)
	}
	waitSignal(t, tr)

	if err := tr.CloseActive(); err != nil {
		t.Fatalf("CloseActive() error: %v", err)
	}
	select {
	case cmd := <-tr.Actions():
		if cmd != (toplevel.Close{ID: 1}) {
			t.Fatalf("command = %v, want Close(1)", cmd)
		}
	case <-time.After(time.Second):
		t.Fatal("no command queued")
	}
}

func TestCloseActive_NothingActiveSendsZero(t *testing.T) {
	tr := New(Options{Logger: quietLogger()})

	if err := tr.CloseActive(); err != nil {
		t.Fatalf("CloseActive() error: %v", err)
	}
	if cmd := <-tr.Actions(); cmd != (toplevel.Close{ID: 0}) {
		t.Fatalf("command = %v, want Close(0)", cmd)
	}
}

func TestCloseActive_DropsWhenFull(t *testing.T) {
	tr := New(Options{ActionBuffer: 1, Logger: quietLogger()})

	for i := 0; i < 3; i++ {
		if err := tr.CloseActive(); err != nil {
			t.Fatalf("CloseActive() #%d error: %v", i, err)
		}
	}
	if got := tr.DroppedActions(); got != 2 {
		t.Fatalf("DroppedActions() = %d, want 2", got)
	}
}

func TestCloseActive_TransportGone(t *testing.T) {
	tr := New(Options{Logger: quietLogger()})
	tr.TransportStopped()
	tr.TransportStopped()

	if err := tr.CloseActive(); !errors.Is(err, ErrTransportGone) {
		t.Fatalf("CloseActive() = %v, want ErrTransportGone", err)
	}
}

func TestTracker_SnapshotNotSharedWithReaders(t *testing.T) {
	tr, _, _ := startTracker(t, Options{})
	sink := tr.Sink()
	for _, ev := range editorScenario() {
		_ = sink.Send(ev)
	}
	waitSignal(t, tr)

	before := tr.List()
	_ = sink.Send(toplevel.Title{ID: 1, Title: "changed"})
	waitFor(t, func() bool { return tr.List()[0].Title == "changed" })

	if before[0].Title != "Editor" {
		t.Fatalf("earlier snapshot mutated: %+v", before[0])
	}
}
