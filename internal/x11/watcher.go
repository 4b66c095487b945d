package x11

import (
	"log/slog"
	"slices"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/taskmaid/internal/toplevel"
)

type windowSource interface {
	ClientList() ([]xproto.Window, error)
	ActiveWindow() xproto.Window
	Describe(win xproto.Window) (windowInfo, error)
	Monitors() ([]Monitor, error)
}

// sent is what was last forwarded for a window.
type sent struct {
	title     string
	appID     string
	states    toplevel.States
	output    toplevel.OutputID
	hasOutput bool
}

// watcher turns X property snapshots into toplevel events. X has no
// per-window change bursts, so every refresh that changed something is
// closed with Done.
type watcher struct {
	src    windowSource
	sink   toplevel.Sink
	logger *slog.Logger

	// listen and forget manage per-window event subscriptions.
	listen func(xproto.Window)
	forget func(xproto.Window)

	windows  map[xproto.Window]*sent
	ignored  map[xproto.Window]struct{}
	monitors []Monitor
	active   xproto.Window
}

func newWatcher(src windowSource, sink toplevel.Sink, logger *slog.Logger) *watcher {
	return &watcher{
		src:     src,
		sink:    sink,
		logger:  logger,
		listen:  func(xproto.Window) {},
		forget:  func(xproto.Window) {},
		windows: make(map[xproto.Window]*sent),
		ignored: make(map[xproto.Window]struct{}),
	}
}

// refreshMonitors announces added and removed RandR outputs and moves
// windows whose monitor changed.
func (w *watcher) refreshMonitors() error {
	monitors, err := w.src.Monitors()
	if err != nil {
		return err
	}

	old := make(map[uint32]Monitor, len(w.monitors))
	for _, m := range w.monitors {
		old[m.Output] = m
	}
	current := make(map[uint32]struct{}, len(monitors))
	for _, m := range monitors {
		current[m.Output] = struct{}{}
		if prev, ok := old[m.Output]; ok && prev.Name == m.Name {
			continue
		}
		if err := w.send(toplevel.OutputNew{Output: toplevel.OutputID(m.Output), Name: m.Name}); err != nil {
			return err
		}
	}
	for _, m := range w.monitors {
		if _, ok := current[m.Output]; ok {
			continue
		}
		if err := w.send(toplevel.OutputRemoved{Output: toplevel.OutputID(m.Output)}); err != nil {
			return err
		}
	}
	w.monitors = monitors
	return nil
}

// refreshClients diffs _NET_CLIENT_LIST against the tracked set.
func (w *watcher) refreshClients() error {
	clients, err := w.src.ClientList()
	if err != nil {
		return err
	}
	prev := w.active
	w.active = w.src.ActiveWindow()
	if prev != w.active {
		if err := w.refreshWindow(prev); err != nil {
			return err
		}
	}

	present := make(map[xproto.Window]struct{}, len(clients))
	for _, win := range clients {
		present[win] = struct{}{}
		if _, ok := w.windows[win]; ok {
			continue
		}
		if _, ok := w.ignored[win]; ok {
			continue
		}
		if err := w.add(win); err != nil {
			return err
		}
	}

	for win := range w.ignored {
		if _, ok := present[win]; !ok {
			delete(w.ignored, win)
		}
	}
	for win := range w.windows {
		if _, ok := present[win]; ok {
			continue
		}
		delete(w.windows, win)
		w.forget(win)
		if err := w.send(toplevel.Closed{ID: toplevel.ID(win)}); err != nil {
			return err
		}
	}
	if prev != w.active {
		// A window added above already carries its state; this covers
		// focus landing on one that was tracked before.
		return w.refreshWindow(w.active)
	}
	return nil
}

func (w *watcher) add(win xproto.Window) error {
	info, err := w.src.Describe(win)
	if err != nil {
		// Gone before it could be read; the next client list drops it.
		w.logger.Debug("skipping unreadable window", "window", win, "err", err)
		return nil
	}
	if !onTaskbar(info.Types, info.NetStates) {
		w.ignored[win] = struct{}{}
		return nil
	}

	w.windows[win] = &sent{}
	w.listen(win)
	if err := w.send(toplevel.New{ID: toplevel.ID(win)}); err != nil {
		return err
	}
	return w.apply(win, info, true)
}

// refreshActive re-reads focus and updates the windows that gained or lost it.
func (w *watcher) refreshActive() error {
	prev := w.active
	w.active = w.src.ActiveWindow()
	if prev == w.active {
		return nil
	}
	// Announce the loss first so a successor's Active is the last word.
	if err := w.refreshWindow(prev); err != nil {
		return err
	}
	return w.refreshWindow(w.active)
}

// refreshAll re-reads every tracked window.
func (w *watcher) refreshAll() error {
	if err := w.refreshActive(); err != nil {
		return err
	}
	for win := range w.windows {
		if err := w.refreshWindow(win); err != nil {
			return err
		}
	}
	return nil
}

// refreshWindow re-reads one window. Untracked windows are ignored.
func (w *watcher) refreshWindow(win xproto.Window) error {
	if _, ok := w.windows[win]; !ok {
		return nil
	}
	info, err := w.src.Describe(win)
	if err != nil {
		w.logger.Debug("skipping unreadable window", "window", win, "err", err)
		return nil
	}
	return w.apply(win, info, false)
}

// apply forwards what differs from the last values sent, then Done. A new
// window sends every attribute.
func (w *watcher) apply(win xproto.Window, info windowInfo, fresh bool) error {
	last := w.windows[win]
	id := toplevel.ID(win)
	var events []toplevel.Event

	if fresh || info.Title != last.title {
		last.title = info.Title
		events = append(events, toplevel.Title{ID: id, Title: info.Title})
	}
	if fresh || info.AppID != last.appID {
		last.appID = info.AppID
		events = append(events, toplevel.AppID{ID: id, AppID: info.AppID})
	}
	states := mapStates(info.NetStates, win == w.active)
	if fresh || !slices.Equal(states, last.states) {
		last.states = states
		events = append(events, toplevel.StateChange{ID: id, States: states})
	}

	var out toplevel.OutputID
	cx, cy := info.center()
	mon, hasOutput := monitorAt(w.monitors, cx, cy)
	if hasOutput {
		out = toplevel.OutputID(mon.Output)
	}
	if (fresh && hasOutput) || (!fresh && (hasOutput != last.hasOutput || out != last.output)) {
		last.output, last.hasOutput = out, hasOutput
		events = append(events, toplevel.Output{ID: id, Output: out, Valid: hasOutput})
	}

	if len(events) == 0 {
		return nil
	}
	events = append(events, toplevel.Done{ID: id})
	for _, ev := range events {
		if err := w.send(ev); err != nil {
			return err
		}
	}
	return nil
}

func (w *watcher) send(ev toplevel.Event) error {
	return w.sink.Send(ev)
}

// tracked reports whether win is a known toplevel.
func (w *watcher) tracked(win xproto.Window) bool {
	_, ok := w.windows[win]
	return ok
}
