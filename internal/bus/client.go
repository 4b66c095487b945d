package bus

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/1broseidon/taskmaid/internal/toplevel"
)

// ErrNoActive is returned by Client.Active when the daemon reports that no
// toplevel has been active yet.
var ErrNoActive = errors.New(noActiveMessage)

// Client talks to a running daemon over the session bus.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
	name string
	path dbus.ObjectPath
}

// Dial connects to the session bus. Empty name and path select the
// defaults.
func Dial(name string, path dbus.ObjectPath) (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return NewClient(conn, name, path), nil
}

// NewClient wraps an existing connection.
func NewClient(conn *dbus.Conn, name string, path dbus.ObjectPath) *Client {
	if name == "" {
		name = DefaultName
	}
	if path == "" {
		path = DefaultPath
	}
	return &Client{conn: conn, obj: conn.Object(name, path), name: name, path: path}
}

// Close releases the bus connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// List returns every window the daemon tracks.
func (c *Client) List(ctx context.Context) ([]toplevel.WindowInfo, error) {
	var entries []Entry
	if err := c.obj.CallWithContext(ctx, c.name+".List", 0).Store(&entries); err != nil {
		return nil, fmt.Errorf("List failed: %w (is the daemon running?)", err)
	}
	out := make([]toplevel.WindowInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Info())
	}
	return out, nil
}

// Active reads the active property.
func (c *Client) Active(ctx context.Context) (toplevel.ActiveInfo, error) {
	var v dbus.Variant
	err := c.obj.CallWithContext(ctx, propertiesInterface+".Get", 0, c.name, PropActive).Store(&v)
	if err != nil {
		var dErr dbus.Error
		if errors.As(err, &dErr) && dErr.Name == errNameFailed {
			return toplevel.ActiveInfo{}, ErrNoActive
		}
		return toplevel.ActiveInfo{}, fmt.Errorf("reading %s failed: %w", PropActive, err)
	}
	a, err := decodeActive(v)
	if err != nil {
		return toplevel.ActiveInfo{}, err
	}
	return a.Info(), nil
}

// CloseActive asks the daemon to close the active window.
func (c *Client) CloseActive(ctx context.Context) error {
	if err := c.obj.CallWithContext(ctx, c.name+".CloseActive", 0).Err; err != nil {
		return fmt.Errorf("CloseActive failed: %w", err)
	}
	return nil
}

// Dropped reads the DroppedEvents counter.
func (c *Client) Dropped(ctx context.Context) (uint64, error) {
	var v dbus.Variant
	err := c.obj.CallWithContext(ctx, propertiesInterface+".Get", 0, c.name, PropDroppedEvents).Store(&v)
	if err != nil {
		return 0, fmt.Errorf("reading %s failed: %w", PropDroppedEvents, err)
	}
	n, ok := v.Value().(uint64)
	if !ok {
		return 0, fmt.Errorf("unexpected %s type %s", PropDroppedEvents, v.Signature())
	}
	return n, nil
}

// Watch calls fn for every active-window change until ctx is done.
func (c *Client) Watch(ctx context.Context, fn func(toplevel.ActiveInfo)) error {
	opts := []dbus.MatchOption{
		dbus.WithMatchObjectPath(c.path),
		dbus.WithMatchInterface(propertiesInterface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchSender(c.name),
	}
	if err := c.conn.AddMatchSignalContext(ctx, opts...); err != nil {
		return fmt.Errorf("failed to subscribe to PropertiesChanged: %w", err)
	}
	defer c.conn.RemoveMatchSignal(opts...)

	ch := make(chan *dbus.Signal, 16)
	c.conn.Signal(ch)
	defer c.conn.RemoveSignal(ch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-ch:
			if !ok {
				return ErrConnectionLost
			}
			info, ok, err := parsePropertiesChanged(c.name, sig)
			if err != nil {
				return err
			}
			if ok {
				fn(info)
			}
		}
	}
}

// parsePropertiesChanged extracts the active value from a
// PropertiesChanged signal for iface. It reports false for signals that do
// not carry it.
func parsePropertiesChanged(iface string, sig *dbus.Signal) (toplevel.ActiveInfo, bool, error) {
	if sig.Name != propertiesChanged || len(sig.Body) < 2 {
		return toplevel.ActiveInfo{}, false, nil
	}
	if name, _ := sig.Body[0].(string); name != iface {
		return toplevel.ActiveInfo{}, false, nil
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return toplevel.ActiveInfo{}, false, nil
	}
	v, ok := changed[PropActive]
	if !ok {
		return toplevel.ActiveInfo{}, false, nil
	}
	a, err := decodeActive(v)
	if err != nil {
		return toplevel.ActiveInfo{}, false, err
	}
	return a.Info(), true, nil
}

func decodeActive(v dbus.Variant) (Active, error) {
	var a Active
	if err := dbus.Store([]interface{}{v.Value()}, &a); err != nil {
		return Active{}, fmt.Errorf("unexpected %s value %s: %w", PropActive, v.Signature(), err)
	}
	return a, nil
}
