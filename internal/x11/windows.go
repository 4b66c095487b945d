package x11

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"

	"github.com/1broseidon/taskmaid/internal/toplevel"
)

// windowInfo is everything read from one client window.
type windowInfo struct {
	Title     string
	AppID     string
	Types     []string
	NetStates []string
	X, Y      int
	Width     int
	Height    int
}

func (w windowInfo) center() (int, int) {
	return w.X + w.Width/2, w.Y + w.Height/2
}

// onTaskbar reports whether a window belongs in a task list: a normal (or
// untyped) window that does not ask to be skipped.
func onTaskbar(types, netStates []string) bool {
	for _, s := range netStates {
		if s == "_NET_WM_STATE_SKIP_TASKBAR" {
			return false
		}
	}
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		switch t {
		case "_NET_WM_WINDOW_TYPE_NORMAL":
			return true
		case "_NET_WM_WINDOW_TYPE_DESKTOP",
			"_NET_WM_WINDOW_TYPE_DOCK",
			"_NET_WM_WINDOW_TYPE_SPLASH",
			"_NET_WM_WINDOW_TYPE_NOTIFICATION",
			"_NET_WM_WINDOW_TYPE_TOOLBAR",
			"_NET_WM_WINDOW_TYPE_MENU",
			"_NET_WM_WINDOW_TYPE_UTILITY":
			return false
		}
	}
	return true
}

// mapStates folds _NET_WM_STATE atoms and focus into toplevel states,
// ordered by their wire value.
func mapStates(netStates []string, active bool) toplevel.States {
	var maxH, maxV, hidden, fullscreen bool
	for _, s := range netStates {
		switch s {
		case "_NET_WM_STATE_MAXIMIZED_HORZ":
			maxH = true
		case "_NET_WM_STATE_MAXIMIZED_VERT":
			maxV = true
		case "_NET_WM_STATE_HIDDEN":
			hidden = true
		case "_NET_WM_STATE_FULLSCREEN":
			fullscreen = true
		}
	}

	states := toplevel.States{}
	if maxH && maxV {
		states = append(states, toplevel.StateMaximized)
	}
	if hidden {
		states = append(states, toplevel.StateMinimized)
	}
	if active {
		states = append(states, toplevel.StateActive)
	}
	if fullscreen {
		states = append(states, toplevel.StateFullscreen)
	}
	return states
}

// liveSource reads window data from the X server.
type liveSource struct {
	conn *Connection
}

func (s liveSource) ClientList() ([]xproto.Window, error) {
	clients, err := ewmh.ClientListGet(s.conn.XUtil)
	if err != nil {
		return nil, fmt.Errorf("failed to get client list: %w", err)
	}
	return clients, nil
}

// ActiveWindow returns 0 when nothing has focus or the property is unset.
func (s liveSource) ActiveWindow() xproto.Window {
	win, err := ewmh.ActiveWindowGet(s.conn.XUtil)
	if err != nil {
		return 0
	}
	return win
}

func (s liveSource) Monitors() ([]Monitor, error) {
	return s.conn.GetMonitors()
}

func (s liveSource) Describe(win xproto.Window) (windowInfo, error) {
	xu := s.conn.XUtil
	geom, err := xproto.GetGeometry(xu.Conn(), xproto.Drawable(win)).Reply()
	if err != nil {
		return windowInfo{}, fmt.Errorf("failed to get geometry of window %d: %w", win, err)
	}
	translate, err := xproto.TranslateCoordinates(xu.Conn(), win, s.conn.Root, 0, 0).Reply()
	if err != nil {
		return windowInfo{}, fmt.Errorf("failed to translate window %d: %w", win, err)
	}

	info := windowInfo{
		Title:  s.title(win),
		AppID:  s.appID(win),
		X:      int(translate.DstX),
		Y:      int(translate.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}
	// Missing properties read as empty lists.
	info.Types, _ = ewmh.WmWindowTypeGet(xu, win)
	info.NetStates, _ = ewmh.WmStateGet(xu, win)
	return info, nil
}

func (s liveSource) title(win xproto.Window) string {
	if title, err := ewmh.WmNameGet(s.conn.XUtil, win); err == nil {
		if title = strings.TrimSpace(title); title != "" {
			return title
		}
	}
	if title, err := icccm.WmNameGet(s.conn.XUtil, win); err == nil {
		return strings.TrimSpace(title)
	}
	return ""
}

func (s liveSource) appID(win xproto.Window) string {
	wmClass, err := icccm.WmClassGet(s.conn.XUtil, win)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(wmClass.Class)
}

// CloseWindow asks the window manager to close a window via
// _NET_CLOSE_WINDOW. The client message is built by hand because the
// xgbutil ewmh request helpers panic on this library version.
func (c *Connection) CloseWindow(win xproto.Window) error {
	atomReply, err := xproto.InternAtom(c.XUtil.Conn(), false,
		uint16(len("_NET_CLOSE_WINDOW")), "_NET_CLOSE_WINDOW").Reply()
	if err != nil {
		return fmt.Errorf("failed to intern _NET_CLOSE_WINDOW: %w", err)
	}

	const sourceIndication = 2 // pager/direct action
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   atomReply.Atom,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{uint32(xproto.TimeCurrentTime), sourceIndication, 0, 0, 0}),
	}

	return xproto.SendEventChecked(
		c.XUtil.Conn(),
		false,
		c.Root,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		string(ev.Bytes()),
	).Check()
}
