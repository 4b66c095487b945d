package toplevel

import "fmt"

// ID identifies a toplevel. It is assigned by the protocol layer and may be
// reused once the window is closed. Zero means "none".
type ID uint32

// OutputID identifies a physical output.
type OutputID uint32

// Event is one logical update delivered by a protocol transport. The set of
// implementations is closed; see the isEvent marker.
type Event interface {
	isEvent()
	fmt.Stringer
}

// New announces a window. All attributes start empty.
type New struct{ ID ID }

// Title carries a window's new title.
type Title struct {
	ID    ID
	Title string
}

// AppID carries a window's new application id.
type AppID struct {
	ID    ID
	AppID string
}

// StateChange replaces a window's state set.
type StateChange struct {
	ID     ID
	States States
}

// Output moves a window onto an output, or off every output when Valid is
// false.
type Output struct {
	ID     ID
	Output OutputID
	Valid  bool
}

// Closed removes a window.
type Closed struct{ ID ID }

// Done marks the end of a burst of attribute updates for one window.
type Done struct{ ID ID }

// OutputNew registers (or renames) an output.
type OutputNew struct {
	Output OutputID
	Name   string
}

// OutputRemoved forgets an output.
type OutputRemoved struct{ Output OutputID }

func (New) isEvent()           {}
func (Title) isEvent()         {}
func (AppID) isEvent()         {}
func (StateChange) isEvent()   {}
func (Output) isEvent()        {}
func (Closed) isEvent()        {}
func (Done) isEvent()          {}
func (OutputNew) isEvent()     {}
func (OutputRemoved) isEvent() {}

func (e New) String() string   { return fmt.Sprintf("New(%d)", e.ID) }
func (e Title) String() string { return fmt.Sprintf("Title(%d, %q)", e.ID, e.Title) }
func (e AppID) String() string { return fmt.Sprintf("AppID(%d, %q)", e.ID, e.AppID) }
func (e StateChange) String() string {
	return fmt.Sprintf("State(%d, %s)", e.ID, e.States)
}
func (e Output) String() string {
	if !e.Valid {
		return fmt.Sprintf("Output(%d, none)", e.ID)
	}
	return fmt.Sprintf("Output(%d, %d)", e.ID, e.Output)
}
func (e Closed) String() string    { return fmt.Sprintf("Closed(%d)", e.ID) }
func (e Done) String() string      { return fmt.Sprintf("Done(%d)", e.ID) }
func (e OutputNew) String() string { return fmt.Sprintf("OutputNew(%d, %q)", e.Output, e.Name) }
func (e OutputRemoved) String() string {
	return fmt.Sprintf("OutputRemoved(%d)", e.Output)
}

// Command is a request sent back to the protocol transport.
type Command interface {
	isCommand()
	fmt.Stringer
}

// Close asks the compositor to close a window. Transports ignore unknown ids.
type Close struct{ ID ID }

func (Close) isCommand()       {}
func (c Close) String() string { return fmt.Sprintf("Close(%d)", c.ID) }

// Sink accepts events from a protocol transport. Send returns an error only
// when the consumer is gone, which the transport must treat as fatal.
type Sink interface {
	Send(Event) error
}
