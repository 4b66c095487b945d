// Package wayland tracks toplevels through the wlr foreign toplevel
// management protocol.
package wayland

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/1broseidon/taskmaid/internal/runtimepath"
	"github.com/1broseidon/taskmaid/internal/toplevel"
)

// ErrUnsupported is returned when the compositor does not advertise the
// foreign toplevel manager.
var ErrUnsupported = errors.New("compositor does not support " + ifaceManager)

// Options configures a Transport.
type Options struct {
	// Display overrides WAYLAND_DISPLAY.
	Display string
	// RestoreMinimized asks the compositor to unminimize every window that
	// reports the minimized state.
	RestoreMinimized bool
	Logger           *slog.Logger
}

// Transport is the Wayland protocol transport.
type Transport struct {
	opts   Options
	logger *slog.Logger
	dial   func(ctx context.Context) (io.ReadWriteCloser, error)
}

// New creates a Transport that connects to the compositor socket on Run.
func New(opts Options) *Transport {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	t := &Transport{opts: opts, logger: logger.With("backend", "wayland")}
	t.dial = t.dialSocket
	return t
}

func (t *Transport) Name() string { return "wayland" }

func (t *Transport) dialSocket(ctx context.Context) (io.ReadWriteCloser, error) {
	path, err := runtimepath.WaylandSocket(t.opts.Display)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to compositor at %s: %w", path, err)
	}
	return conn, nil
}

// Run connects, subscribes to toplevel updates and forwards them to sink
// until ctx is done or the connection fails. Commands arrive on actions.
func (t *Transport) Run(ctx context.Context, sink toplevel.Sink, actions <-chan toplevel.Command) error {
	conn, err := t.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	s := newSession(conn, sink, t.opts.RestoreMinimized, t.logger)
	if err := s.start(); err != nil {
		return err
	}

	msgs := make(chan message)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			m, err := readMessage(conn)
			if err != nil {
				readErr <- err
				return
			}
			select {
			case msgs <- m:
			case <-done:
				return
			}
		}
	}()

	// Commands wait until the initial roundtrip has bound the manager.
	var cmds <-chan toplevel.Command
	for {
		select {
		case <-ctx.Done():
			if s.managerID != 0 {
				_ = s.send(s.managerID, managerStop, nil)
			}
			return ctx.Err()
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return errors.New("compositor closed the connection")
			}
			return fmt.Errorf("failed to read from compositor: %w", err)
		case m := <-msgs:
			if err := s.dispatch(m); err != nil {
				return err
			}
			if cmds == nil && s.synced {
				cmds = actions
			}
		case cmd, ok := <-cmds:
			if !ok {
				return errors.New("action channel closed")
			}
			if err := s.execute(cmd); err != nil {
				return err
			}
		}
	}
}

type output struct {
	global  uint32
	version uint32
}

// session holds the object table of one connection. Only the Run loop
// touches it.
type session struct {
	w                io.Writer
	sink             toplevel.Sink
	restoreMinimized bool
	logger           *slog.Logger

	nextID     uint32
	registryID uint32
	syncID     uint32
	managerID  uint32
	synced     bool

	outputs       map[uint32]output // by object id
	outputGlobals map[uint32]uint32 // global name -> object id
	handles       map[uint32]struct{}
}

func newSession(w io.Writer, sink toplevel.Sink, restoreMinimized bool, logger *slog.Logger) *session {
	return &session{
		w:                w,
		sink:             sink,
		restoreMinimized: restoreMinimized,
		logger:           logger,
		nextID:           displayID + 1,
		outputs:          make(map[uint32]output),
		outputGlobals:    make(map[uint32]uint32),
		handles:          make(map[uint32]struct{}),
	}
}

func (s *session) newID() uint32 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *session) send(obj uint32, opcode uint16, fn func(*encoder)) error {
	if _, err := s.w.Write(encodeMessage(obj, opcode, fn)); err != nil {
		return fmt.Errorf("failed to write request to compositor: %w", err)
	}
	return nil
}

func (s *session) emit(ev toplevel.Event) error {
	if err := s.sink.Send(ev); err != nil {
		return fmt.Errorf("failed to forward %s: %w", ev, err)
	}
	return nil
}

// start requests the registry and a sync callback that marks the end of
// the initial global burst.
func (s *session) start() error {
	s.registryID = s.newID()
	if err := s.send(displayID, displayGetRegistry, func(e *encoder) { e.putUint32(s.registryID) }); err != nil {
		return err
	}
	s.syncID = s.newID()
	return s.send(displayID, displaySync, func(e *encoder) { e.putUint32(s.syncID) })
}

func (s *session) dispatch(m message) error {
	d := newDecoder(m.body)
	var err error
	switch {
	case m.sender == displayID:
		err = s.displayEvent(m.opcode, d)
	case m.sender == s.registryID:
		err = s.registryEvent(m.opcode, d)
	case m.sender == s.syncID && !s.synced:
		err = s.syncDone(m.opcode)
	case m.sender == s.managerID && s.managerID != 0:
		err = s.managerEvent(m.opcode, d)
	default:
		if _, ok := s.outputs[m.sender]; ok {
			err = s.outputEvent(m.sender, m.opcode, d)
		} else if _, ok := s.handles[m.sender]; ok {
			err = s.handleEvent(m.sender, m.opcode, d)
		} else {
			s.logger.Debug("event for unknown object", "object", m.sender, "opcode", m.opcode)
		}
	}
	if err != nil {
		return err
	}
	if d.err != nil {
		return fmt.Errorf("malformed event %d on object %d: %w", m.opcode, m.sender, d.err)
	}
	return nil
}

func (s *session) displayEvent(opcode uint16, d *decoder) error {
	switch opcode {
	case displayEventError:
		obj, code, msg := d.readUint32(), d.readUint32(), d.readString()
		return fmt.Errorf("compositor error on object %d (code %d): %s", obj, code, msg)
	case displayEventDeleteID:
		d.readUint32()
	}
	return nil
}

func (s *session) registryEvent(opcode uint16, d *decoder) error {
	switch opcode {
	case registryEventGlobal:
		name, iface, version := d.readUint32(), d.readString(), d.readUint32()
		if d.err != nil {
			return nil
		}
		switch iface {
		case ifaceOutput:
			return s.bindOutput(name, version)
		case ifaceManager:
			if s.managerID != 0 {
				return nil
			}
			s.managerID = s.newID()
			s.logger.Debug("binding toplevel manager", "version", min(version, managerVersion))
			return s.bind(name, iface, min(version, managerVersion), s.managerID)
		}

	case registryEventGlobalRemove:
		name := d.readUint32()
		id, ok := s.outputGlobals[name]
		if !ok {
			return nil
		}
		out := s.outputs[id]
		delete(s.outputGlobals, name)
		delete(s.outputs, id)
		if err := s.emit(toplevel.OutputRemoved{Output: toplevel.OutputID(id)}); err != nil {
			return err
		}
		if out.version >= outputReleaseSince {
			return s.send(id, outputRelease, nil)
		}
	}
	return nil
}

func (s *session) bind(name uint32, iface string, version, id uint32) error {
	return s.send(s.registryID, registryBind, func(e *encoder) {
		e.putUint32(name)
		e.putString(iface)
		e.putUint32(version)
		e.putUint32(id)
	})
}

func (s *session) bindOutput(name, version uint32) error {
	id := s.newID()
	v := min(version, outputVersion)
	s.outputs[id] = output{global: name, version: v}
	s.outputGlobals[name] = id
	if v < outputVersion {
		s.logger.Warn("wl_output too old to report its name", "version", v)
	}
	return s.bind(name, ifaceOutput, v, id)
}

func (s *session) syncDone(opcode uint16) error {
	if opcode != callbackEventDone {
		return nil
	}
	s.synced = true
	if s.managerID == 0 {
		return ErrUnsupported
	}
	s.logger.Debug("initial roundtrip complete", "outputs", len(s.outputs))
	return nil
}

func (s *session) outputEvent(id uint32, opcode uint16, d *decoder) error {
	if opcode != outputEventName {
		return nil
	}
	name := d.readString()
	if d.err != nil {
		return nil
	}
	return s.emit(toplevel.OutputNew{Output: toplevel.OutputID(id), Name: name})
}

func (s *session) managerEvent(opcode uint16, d *decoder) error {
	switch opcode {
	case managerEventToplevel:
		id := d.readUint32()
		if d.err != nil {
			return nil
		}
		s.handles[id] = struct{}{}
		return s.emit(toplevel.New{ID: toplevel.ID(id)})
	case managerEventFinished:
		return errors.New("compositor finished the toplevel manager")
	}
	return nil
}

func (s *session) handleEvent(id uint32, opcode uint16, d *decoder) error {
	tid := toplevel.ID(id)
	switch opcode {
	case handleEventTitle:
		title := d.readString()
		return s.emitIfValid(d, toplevel.Title{ID: tid, Title: title})

	case handleEventAppID:
		appID := d.readString()
		return s.emitIfValid(d, toplevel.AppID{ID: tid, AppID: appID})

	case handleEventOutputEnter:
		out := d.readUint32()
		return s.emitIfValid(d, toplevel.Output{ID: tid, Output: toplevel.OutputID(out), Valid: true})

	case handleEventOutputLeave:
		d.readUint32()
		return s.emitIfValid(d, toplevel.Output{ID: tid})

	case handleEventState:
		raw := d.readArray()
		if d.err != nil {
			return nil
		}
		states, err := toplevel.DecodeStates(raw)
		if err != nil {
			return fmt.Errorf("bad state for toplevel %d: %w", id, err)
		}
		if s.restoreMinimized && states.Has(toplevel.StateMinimized) {
			s.logger.Info("restoring minimized toplevel", "id", id)
			if err := s.send(id, handleUnsetMinimized, nil); err != nil {
				return err
			}
		}
		return s.emit(toplevel.StateChange{ID: tid, States: states})

	case handleEventDone:
		return s.emit(toplevel.Done{ID: tid})

	case handleEventClosed:
		delete(s.handles, id)
		if err := s.emit(toplevel.Closed{ID: tid}); err != nil {
			return err
		}
		return s.send(id, handleDestroy, nil)
	}
	return nil
}

func (s *session) emitIfValid(d *decoder, ev toplevel.Event) error {
	if d.err != nil {
		return nil
	}
	return s.emit(ev)
}

func (s *session) execute(cmd toplevel.Command) error {
	switch c := cmd.(type) {
	case toplevel.Close:
		if _, ok := s.handles[uint32(c.ID)]; !ok {
			s.logger.Debug("ignoring close for unknown toplevel", "id", c.ID)
			return nil
		}
		s.logger.Debug("closing toplevel", "id", c.ID)
		return s.send(uint32(c.ID), handleClose, nil)
	default:
		panic(fmt.Sprintf("wayland: unhandled command %T", cmd))
	}
}
