package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/1broseidon/taskmaid/internal/toplevel"
)

const (
	// DefaultEventBuffer absorbs the burst a compositor sends when it
	// enumerates every existing window at startup.
	DefaultEventBuffer  = 10240
	DefaultActionBuffer = 10
	DefaultSignalBuffer = 10
)

var (
	// ErrEventStreamClosed is returned by Run when the producer closed the
	// event channel without a shutdown request.
	ErrEventStreamClosed = errors.New("toplevel event stream closed unexpectedly")
	// ErrTrackerGone is returned to producers once the consumer has stopped.
	ErrTrackerGone = errors.New("toplevel tracker is not running")
	// ErrTransportGone is returned by CloseActive once the protocol
	// transport stopped reading commands.
	ErrTransportGone = errors.New("protocol transport is not running")
)

// Snapshot is an immutable copy of the aggregated state, published after
// every applied event.
type Snapshot struct {
	Windows    []toplevel.WindowInfo
	Active     toplevel.ActiveInfo
	HasActive  bool
	LastActive toplevel.ID
}

// Options configures a Tracker.
type Options struct {
	EventBuffer  int
	ActionBuffer int
	SignalBuffer int
	Logger       *slog.Logger
}

// Tracker runs the aggregator as an actor: a single goroutine consumes the
// event channel and is the only writer of state. Readers see the latest
// published Snapshot and never block the loop.
type Tracker struct {
	agg     *Aggregator
	events  chan toplevel.Event
	actions chan toplevel.Command
	signals chan toplevel.ActiveInfo
	logger  *slog.Logger

	snapshot atomic.Pointer[Snapshot]

	stopped       chan struct{}
	stopOnce      sync.Once
	transportDone chan struct{}
	transportOnce sync.Once

	dropped        atomic.Uint64
	droppedActions atomic.Uint64

	// streamMu guards sends against Sink.Close.
	streamMu     sync.RWMutex
	streamClosed bool
}

// New creates a Tracker. Zero option values fall back to the defaults.
func New(opts Options) *Tracker {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	if opts.ActionBuffer <= 0 {
		opts.ActionBuffer = DefaultActionBuffer
	}
	if opts.SignalBuffer <= 0 {
		opts.SignalBuffer = DefaultSignalBuffer
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	t := &Tracker{
		agg:           NewAggregator(),
		events:        make(chan toplevel.Event, opts.EventBuffer),
		actions:       make(chan toplevel.Command, opts.ActionBuffer),
		signals:       make(chan toplevel.ActiveInfo, opts.SignalBuffer),
		logger:        logger,
		stopped:       make(chan struct{}),
		transportDone: make(chan struct{}),
	}
	t.snapshot.Store(&Snapshot{Windows: []toplevel.WindowInfo{}})
	return t
}

// Run consumes events until ctx is cancelled or the event channel is closed.
// A closed channel yields ErrEventStreamClosed.
func (t *Tracker) Run(ctx context.Context) error {
	defer t.stopOnce.Do(func() { close(t.stopped) })

	t.logger.Debug("tracker started")
	for {
		select {
		case <-ctx.Done():
			t.logger.Debug("tracker stopped")
			return ctx.Err()
		case ev, ok := <-t.events:
			if !ok {
				return ErrEventStreamClosed
			}
			if err := t.handle(ctx, ev); err != nil {
				return err
			}
		}
	}
}

func (t *Tracker) handle(ctx context.Context, ev toplevel.Event) error {
	info, notify := t.agg.Apply(ev)
	t.publish()

	if !notify {
		return nil
	}
	t.logger.Debug("active toplevel changed",
		"title", info.Title,
		"app_id", info.AppID,
		"output", info.OutputName)

	select {
	case t.signals <- info:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) publish() {
	active, ok := t.agg.Active()
	t.snapshot.Store(&Snapshot{
		Windows:    t.agg.List(),
		Active:     active,
		HasActive:  ok,
		LastActive: t.agg.LastActive(),
	})
}

// List returns every tracked window as of the last applied event.
func (t *Tracker) List() []toplevel.WindowInfo {
	return t.snapshot.Load().Windows
}

// Active returns the active-window value, or false when nothing is known.
func (t *Tracker) Active() (toplevel.ActiveInfo, bool) {
	s := t.snapshot.Load()
	return s.Active, s.HasActive
}

// Signals delivers one value per settled change of the active window.
func (t *Tracker) Signals() <-chan toplevel.ActiveInfo {
	return t.signals
}

// Actions is the command channel read by the protocol transport.
func (t *Tracker) Actions() <-chan toplevel.Command {
	return t.actions
}

// Dropped returns the number of events discarded because the event channel
// was full.
func (t *Tracker) Dropped() uint64 {
	return t.dropped.Load()
}

// DroppedActions returns the number of commands discarded because the
// action channel was full.
func (t *Tracker) DroppedActions() uint64 {
	return t.droppedActions.Load()
}

// TransportStopped tells the tracker that nothing reads Actions any more.
func (t *Tracker) TransportStopped() {
	t.transportOnce.Do(func() { close(t.transportDone) })
}

// CloseActive asks the transport to close the last active window. A full
// command channel drops the request.
func (t *Tracker) CloseActive() error {
	id := t.snapshot.Load().LastActive

	select {
	case <-t.transportDone:
		return ErrTransportGone
	default:
	}

	cmd := toplevel.Close{ID: id}
	select {
	case t.actions <- cmd:
		t.logger.Debug("queued close request", "id", id)
		return nil
	default:
		n := t.droppedActions.Add(1)
		t.logger.Error("too many pending actions, command discarded", "command", cmd.String(), "dropped_total", n)
		return nil
	}
}

// Sink returns the producer side of the event channel.
func (t *Tracker) Sink() *Sink {
	return &Sink{t: t}
}

// Sink is handed to the protocol transport. It never blocks: when the event
// channel is full the newest event is dropped and counted.
type Sink struct {
	t *Tracker
}

var _ toplevel.Sink = (*Sink)(nil)

// Send enqueues ev. It returns ErrTrackerGone once the tracker stopped or
// the stream was closed.
func (s *Sink) Send(ev toplevel.Event) error {
	select {
	case <-s.t.stopped:
		return ErrTrackerGone
	default:
	}

	s.t.streamMu.RLock()
	defer s.t.streamMu.RUnlock()
	if s.t.streamClosed {
		return ErrTrackerGone
	}

	select {
	case s.t.events <- ev:
	default:
		n := s.t.dropped.Add(1)
		s.t.logger.Error("too many events to process, event discarded", "event", ev.String(), "dropped_total", n)
	}
	return nil
}

// Close ends the event stream. Run returns ErrEventStreamClosed once the
// buffered events are drained.
func (s *Sink) Close() {
	s.t.streamMu.Lock()
	defer s.t.streamMu.Unlock()
	if !s.t.streamClosed {
		s.t.streamClosed = true
		close(s.t.events)
	}
}
