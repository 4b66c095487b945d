package toplevel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// State is a single window state flag as reported by the compositor.
type State uint32

const (
	StateMaximized  State = 0
	StateMinimized  State = 1
	StateActive     State = 2
	StateFullscreen State = 3
)

func (s State) String() string {
	switch s {
	case StateMaximized:
		return "maximized"
	case StateMinimized:
		return "minimized"
	case StateActive:
		return "active"
	case StateFullscreen:
		return "fullscreen"
	default:
		return fmt.Sprintf("state(%d)", uint32(s))
	}
}

// ParseState converts a wire value into a State.
func ParseState(v uint32) (State, error) {
	switch State(v) {
	case StateMaximized, StateMinimized, StateActive, StateFullscreen:
		return State(v), nil
	default:
		return 0, &UnknownStateError{Value: v}
	}
}

// States is the state set of a window in the order the compositor sent it.
type States []State

// Has reports whether s contains state.
func (s States) Has(state State) bool {
	for _, st := range s {
		if st == state {
			return true
		}
	}
	return false
}

// Values returns the wire encoding of each flag.
func (s States) Values() []uint32 {
	out := make([]uint32, len(s))
	for i, st := range s {
		out[i] = uint32(st)
	}
	return out
}

func (s States) String() string {
	parts := make([]string, len(s))
	for i, st := range s {
		parts[i] = st.String()
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// ErrTruncatedStates is returned when a state buffer is not a whole number
// of 32-bit flags.
var ErrTruncatedStates = errors.New("state buffer length is not a multiple of 4")

// UnknownStateError reports a flag value outside the known enumeration. It
// indicates a protocol version mismatch and is not recoverable.
type UnknownStateError struct {
	Value uint32
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("unknown toplevel state: %d", e.Value)
}

// DecodeStates decodes a native-endian array of 32-bit state flags.
func DecodeStates(buf []byte) (States, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("decode states (%d bytes): %w", len(buf), ErrTruncatedStates)
	}
	states := make(States, 0, len(buf)/4)
	for off := 0; off < len(buf); off += 4 {
		st, err := ParseState(binary.NativeEndian.Uint32(buf[off:]))
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, nil
}

// EncodeStates is the inverse of DecodeStates.
func EncodeStates(states States) []byte {
	buf := make([]byte, 4*len(states))
	for i, st := range states {
		binary.NativeEndian.PutUint32(buf[4*i:], uint32(st))
	}
	return buf
}
