package tracker

import (
	"fmt"

	"github.com/1broseidon/taskmaid/internal/toplevel"
)

// closure is the one-slot cache of the most recently closed window. It keeps
// the output of a window that just went away so a "nothing active" answer
// can still name the output.
//
// Every Closed of a known window overwrites it; a window becoming Active
// evicts it.
type closure struct {
	window toplevel.Window
	valid  bool
}

func (c *closure) store(w *toplevel.Window) {
	c.window = *w
	c.valid = true
}

func (c *closure) evict() {
	*c = closure{}
}

// Aggregator folds toplevel events into per-window records and decides when
// the active window changed. It is not safe for concurrent use; Tracker
// owns one and is its only writer.
type Aggregator struct {
	windows *toplevel.WindowStore
	outputs *toplevel.OutputRegistry

	lastActive    toplevel.ID
	noActive      bool
	activeChanged bool
	justClosed    closure
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		windows: toplevel.NewWindowStore(),
		outputs: toplevel.NewOutputRegistry(),
	}
}

// Apply applies one event. When the event settles a change of the active
// window it returns the value to announce and true.
func (a *Aggregator) Apply(ev toplevel.Event) (toplevel.ActiveInfo, bool) {
	switch e := ev.(type) {
	case toplevel.New:
		a.windows.Insert(e.ID)

	case toplevel.Title:
		a.updateAttr(e.ID, func(w *toplevel.Window) { w.Title = e.Title })

	case toplevel.AppID:
		a.updateAttr(e.ID, func(w *toplevel.Window) { w.AppID = e.AppID })

	case toplevel.Output:
		a.updateAttr(e.ID, func(w *toplevel.Window) {
			w.Output = e.Output
			w.HasOutput = e.Valid
		})

	case toplevel.StateChange:
		a.applyStates(e)

	case toplevel.OutputNew:
		a.outputs.Set(e.Output, e.Name)

	case toplevel.OutputRemoved:
		a.outputs.Remove(e.Output)

	case toplevel.Closed:
		return a.applyClosed(e.ID)

	case toplevel.Done:
		if e.ID != a.lastActive || !a.activeChanged {
			return toplevel.ActiveInfo{}, false
		}
		a.activeChanged = false
		return a.Active()

	default:
		panic(fmt.Sprintf("tracker: unhandled event %T", ev))
	}
	return toplevel.ActiveInfo{}, false
}

func (a *Aggregator) updateAttr(id toplevel.ID, fn func(*toplevel.Window)) {
	if !a.windows.Update(id, fn) {
		return
	}
	if id == a.lastActive {
		a.activeChanged = true
	}
}

func (a *Aggregator) applyStates(e toplevel.StateChange) {
	states := make(toplevel.States, len(e.States))
	copy(states, e.States)
	if !a.windows.Update(e.ID, func(w *toplevel.Window) { w.States = states }) {
		return
	}

	switch {
	case states.Has(toplevel.StateActive):
		a.lastActive = e.ID
		a.noActive = false
		a.activeChanged = true
		a.justClosed.evict()
	case e.ID == a.lastActive:
		a.noActive = true
		a.activeChanged = true
	}
}

func (a *Aggregator) applyClosed(id toplevel.ID) (toplevel.ActiveInfo, bool) {
	w, ok := a.windows.Remove(id)
	if !ok {
		return toplevel.ActiveInfo{}, false
	}
	a.justClosed.store(w)

	if id != a.lastActive {
		return toplevel.ActiveInfo{}, false
	}
	a.noActive = true
	a.activeChanged = false
	return toplevel.ActiveInfo{OutputName: a.outputs.OutputName(w)}, true
}

// Active computes the current active-window value. It reports false when no
// window has ever become active, or nothing is known about the last one.
func (a *Aggregator) Active() (toplevel.ActiveInfo, bool) {
	if a.lastActive == 0 {
		return toplevel.ActiveInfo{}, false
	}
	if w, ok := a.windows.Get(a.lastActive); ok {
		name := a.outputs.OutputName(w)
		if a.noActive {
			return toplevel.ActiveInfo{OutputName: name}, true
		}
		return toplevel.ActiveInfo{Title: w.Title, AppID: w.AppID, OutputName: name}, true
	}
	if a.justClosed.valid {
		return toplevel.ActiveInfo{OutputName: a.outputs.OutputName(&a.justClosed.window)}, true
	}
	return toplevel.ActiveInfo{}, false
}

// List returns every tracked window. Order is unspecified.
func (a *Aggregator) List() []toplevel.WindowInfo {
	out := make([]toplevel.WindowInfo, 0, a.windows.Len())
	a.windows.Each(func(w *toplevel.Window) {
		out = append(out, a.outputs.Info(w))
	})
	return out
}

// LastActive returns the most recent window observed to become active, or 0.
func (a *Aggregator) LastActive() toplevel.ID {
	return a.lastActive
}
