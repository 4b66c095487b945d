package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/1broseidon/taskmaid/internal/toplevel"
)

// ErrConnectionLost is returned by Service.Run when the bus connection
// goes away underneath it.
var ErrConnectionLost = errors.New("dbus connection lost")

// Source is the read side of the tracker plus its action sink.
type Source interface {
	List() []toplevel.WindowInfo
	Active() (toplevel.ActiveInfo, bool)
	CloseActive() error
	Dropped() uint64
}

// Conn is the subset of *dbus.Conn the service uses.
type Conn interface {
	Export(v interface{}, path dbus.ObjectPath, iface string) error
	RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error)
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
	Context() context.Context
}

// Service exports the tracker on the session bus.
type Service struct {
	conn   Conn
	src    Source
	name   string
	path   dbus.ObjectPath
	logger *slog.Logger
}

// NewService creates a Service. Empty name and path select the defaults.
func NewService(conn Conn, src Source, name string, path dbus.ObjectPath, logger *slog.Logger) *Service {
	if name == "" {
		name = DefaultName
	}
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{conn: conn, src: src, name: name, path: path, logger: logger}
}

// Start exports the objects and claims the bus name. Failing to become the
// primary owner is an error.
func (s *Service) Start() error {
	if err := s.conn.Export(&methods{svc: s}, s.path, s.name); err != nil {
		return fmt.Errorf("failed to export %s: %w", s.name, err)
	}
	if err := s.conn.Export(&properties{svc: s}, s.path, propertiesInterface); err != nil {
		return fmt.Errorf("failed to export properties: %w", err)
	}
	node := s.introspection()
	if err := s.conn.Export(introspect.NewIntrospectable(&node), s.path, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspection data: %w", err)
	}

	reply, err := s.conn.RequestName(s.name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name %s: %w", s.name, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s is already taken", s.name)
	}
	s.logger.Info("dbus service registered", "name", s.name, "path", string(s.path))
	return nil
}

// Run forwards active-window notifications as PropertiesChanged signals
// until ctx is done. A lost connection or a closed signal channel is an
// error.
func (s *Service) Run(ctx context.Context, signals <-chan toplevel.ActiveInfo) error {
	connDone := s.conn.Context().Done()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-connDone:
			return ErrConnectionLost
		case info, ok := <-signals:
			if !ok {
				return errors.New("active-window signal channel closed")
			}
			if err := s.emitActive(info); err != nil {
				return err
			}
		}
	}
}

func (s *Service) emitActive(info toplevel.ActiveInfo) error {
	changed := map[string]dbus.Variant{
		PropActive: dbus.MakeVariant(activeFromInfo(info)),
	}
	if err := s.conn.Emit(s.path, propertiesChanged, s.name, changed, []string{}); err != nil {
		return fmt.Errorf("failed to emit PropertiesChanged: %w", err)
	}
	s.logger.Debug("emitted active change", "title", info.Title, "app_id", info.AppID, "output", info.OutputName)
	return nil
}

func (s *Service) introspection() introspect.Node {
	ifc := introspect.Interface{
		Name: s.name,
		Methods: []introspect.Method{
			{Name: "List", Args: []introspect.Arg{{Name: "toplevels", Type: "a(usssau)", Direction: "out"}}},
			{Name: "CloseActive"},
		},
		Properties: []introspect.Property{
			{Name: PropActive, Type: "(sss)", Access: "read"},
			{Name: PropDroppedEvents, Type: "t", Access: "read", Annotations: []introspect.Annotation{
				{Name: "org.freedesktop.DBus.Property.EmitsChangedSignal", Value: "false"},
			}},
		},
	}
	return introspect.Node{
		Name: string(s.path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			propertiesIntrospection,
			ifc,
		},
	}
}

var propertiesIntrospection = introspect.Interface{
	Name: propertiesInterface,
	Methods: []introspect.Method{
		{Name: "Get", Args: []introspect.Arg{
			{Name: "interface", Type: "s", Direction: "in"},
			{Name: "property", Type: "s", Direction: "in"},
			{Name: "value", Type: "v", Direction: "out"},
		}},
		{Name: "GetAll", Args: []introspect.Arg{
			{Name: "interface", Type: "s", Direction: "in"},
			{Name: "props", Type: "a{sv}", Direction: "out"},
		}},
		{Name: "Set", Args: []introspect.Arg{
			{Name: "interface", Type: "s", Direction: "in"},
			{Name: "property", Type: "s", Direction: "in"},
			{Name: "value", Type: "v", Direction: "in"},
		}},
	},
	Signals: []introspect.Signal{
		{Name: "PropertiesChanged", Args: []introspect.Arg{
			{Name: "interface", Type: "s"},
			{Name: "changed_properties", Type: "a{sv}"},
			{Name: "invalidated_properties", Type: "as"},
		}},
	},
}

// methods is exported under the service interface. Only methods returning
// *dbus.Error are visible on the bus.
type methods struct {
	svc *Service
}

func (m *methods) List() ([]Entry, *dbus.Error) {
	windows := m.svc.src.List()
	out := make([]Entry, 0, len(windows))
	for _, w := range windows {
		out = append(out, entryFromInfo(w))
	}
	return out, nil
}

func (m *methods) CloseActive() *dbus.Error {
	if err := m.svc.src.CloseActive(); err != nil {
		m.svc.logger.Error("close request failed", "err", err)
		return dbus.MakeFailedError(err)
	}
	return nil
}

// properties implements org.freedesktop.DBus.Properties by hand so that
// reading active can fail when nothing was ever active.
type properties struct {
	svc *Service
}

func (p *properties) Get(iface, prop string) (dbus.Variant, *dbus.Error) {
	if iface != p.svc.name {
		return dbus.Variant{}, unknownInterface(iface)
	}
	switch prop {
	case PropActive:
		info, ok := p.svc.src.Active()
		if !ok {
			return dbus.Variant{}, dbus.NewError(errNameFailed, []interface{}{noActiveMessage})
		}
		return dbus.MakeVariant(activeFromInfo(info)), nil
	case PropDroppedEvents:
		return dbus.MakeVariant(p.svc.src.Dropped()), nil
	default:
		return dbus.Variant{}, dbus.NewError(errNameUnknownProp, []interface{}{"unknown property " + prop})
	}
}

func (p *properties) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != p.svc.name {
		return nil, unknownInterface(iface)
	}
	out := map[string]dbus.Variant{
		PropDroppedEvents: dbus.MakeVariant(p.svc.src.Dropped()),
	}
	if info, ok := p.svc.src.Active(); ok {
		out[PropActive] = dbus.MakeVariant(activeFromInfo(info))
	}
	return out, nil
}

func (p *properties) Set(iface, prop string, _ dbus.Variant) *dbus.Error {
	if iface != p.svc.name {
		return unknownInterface(iface)
	}
	switch prop {
	case PropActive, PropDroppedEvents:
		return dbus.NewError(errNameReadOnly, []interface{}{"property " + prop + " is read-only"})
	default:
		return dbus.NewError(errNameUnknownProp, []interface{}{"unknown property " + prop})
	}
}

func unknownInterface(iface string) *dbus.Error {
	return dbus.NewError(errNameUnknownIface, []interface{}{"unknown interface " + iface})
}
