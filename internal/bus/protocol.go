package bus

import (
	"github.com/godbus/dbus/v5"

	"github.com/1broseidon/taskmaid/internal/toplevel"
)

const (
	DefaultName = "me.lilydjwg.taskmaid"
	DefaultPath = dbus.ObjectPath("/taskmaid")

	propertiesInterface = "org.freedesktop.DBus.Properties"
	propertiesChanged   = propertiesInterface + ".PropertiesChanged"

	// PropActive is the (sss) active-window property.
	PropActive = "active"
	// PropDroppedEvents counts events discarded under overload.
	PropDroppedEvents = "DroppedEvents"

	errNameFailed       = "org.freedesktop.DBus.Error.Failed"
	errNameUnknownIface = "org.freedesktop.DBus.Error.UnknownInterface"
	errNameUnknownProp  = "org.freedesktop.DBus.Error.UnknownProperty"
	errNameReadOnly     = "org.freedesktop.DBus.Error.PropertyReadOnly"

	noActiveMessage = "no toplevel active"
)

// Entry is one element of the List reply, marshalled as (usssau).
type Entry struct {
	ID     uint32
	Title  string
	AppID  string
	Output string
	States []uint32
}

// Active is the value of the active property, marshalled as (sss).
type Active struct {
	Title  string
	AppID  string
	Output string
}

func entryFromInfo(w toplevel.WindowInfo) Entry {
	return Entry{
		ID:     uint32(w.ID),
		Title:  w.Title,
		AppID:  w.AppID,
		Output: w.OutputName,
		States: w.States.Values(),
	}
}

func activeFromInfo(a toplevel.ActiveInfo) Active {
	return Active{Title: a.Title, AppID: a.AppID, Output: a.OutputName}
}

// Info converts the wire value back to the domain type.
func (a Active) Info() toplevel.ActiveInfo {
	return toplevel.ActiveInfo{Title: a.Title, AppID: a.AppID, OutputName: a.Output}
}

// Info converts the wire value back to the domain type. Unknown state
// values are kept as-is.
func (e Entry) Info() toplevel.WindowInfo {
	states := make(toplevel.States, len(e.States))
	for i, v := range e.States {
		states[i] = toplevel.State(v)
	}
	return toplevel.WindowInfo{
		ID:         toplevel.ID(e.ID),
		Title:      e.Title,
		AppID:      e.AppID,
		OutputName: e.Output,
		States:     states,
	}
}
