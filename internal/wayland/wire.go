package wayland

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const headerSize = 8

var errShortMessage = errors.New("message body too short")

// message is one decoded wire message. For events sender is the object the
// event belongs to; for requests it is the target.
type message struct {
	sender uint32
	opcode uint16
	body   []byte
}

// readMessage reads one message: a 32-bit object id, then a 32-bit word
// holding the total size in the upper half and the opcode in the lower,
// both in host byte order.
func readMessage(r io.Reader) (message, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return message{}, err
	}
	sender := binary.NativeEndian.Uint32(hdr[0:4])
	word := binary.NativeEndian.Uint32(hdr[4:8])
	size := int(word >> 16)
	if size < headerSize || size%4 != 0 {
		return message{}, fmt.Errorf("invalid message size %d from object %d", size, sender)
	}

	body := make([]byte, size-headerSize)
	if _, err := io.ReadFull(r, body); err != nil {
		return message{}, fmt.Errorf("truncated message from object %d: %w", sender, err)
	}
	return message{sender: sender, opcode: uint16(word), body: body}, nil
}

type encoder struct {
	buf []byte
}

func (e *encoder) putUint32(v uint32) {
	e.buf = binary.NativeEndian.AppendUint32(e.buf, v)
}

// putString writes a length that counts the trailing NUL, the bytes, the
// NUL, and padding to 4 bytes.
func (e *encoder) putString(s string) {
	e.putUint32(uint32(len(s) + 1))
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
	e.pad()
}

func (e *encoder) putArray(b []byte) {
	e.putUint32(uint32(len(b)))
	e.buf = append(e.buf, b...)
	e.pad()
}

func (e *encoder) pad() {
	for len(e.buf)%4 != 0 {
		e.buf = append(e.buf, 0)
	}
}

// encodeMessage builds a complete message for obj. fn writes the arguments.
func encodeMessage(obj uint32, opcode uint16, fn func(*encoder)) []byte {
	e := &encoder{buf: make([]byte, headerSize, 64)}
	if fn != nil {
		fn(e)
	}
	binary.NativeEndian.PutUint32(e.buf[0:4], obj)
	binary.NativeEndian.PutUint32(e.buf[4:8], uint32(len(e.buf))<<16|uint32(opcode))
	return e.buf
}

// decoder reads arguments from a message body. The first failure sticks;
// callers check err once after reading every argument.
type decoder struct {
	buf []byte
	off int
	err error
}

func newDecoder(body []byte) *decoder {
	return &decoder{buf: body}
}

func (d *decoder) readUint32() uint32 {
	if d.err != nil {
		return 0
	}
	if d.off+4 > len(d.buf) {
		d.err = errShortMessage
		return 0
	}
	v := binary.NativeEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v
}

// readBytes reads a length-prefixed, padded run of bytes.
func (d *decoder) readBytes() []byte {
	n := int(d.readUint32())
	if d.err != nil {
		return nil
	}
	padded := (n + 3) &^ 3
	if n < 0 || d.off+padded > len(d.buf) {
		d.err = errShortMessage
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += padded
	return b
}

func (d *decoder) readString() string {
	b := d.readBytes()
	if len(b) == 0 {
		return ""
	}
	if b[len(b)-1] != 0 {
		d.err = errors.New("string argument is not NUL-terminated")
		return ""
	}
	return string(b[:len(b)-1])
}

func (d *decoder) readArray() []byte {
	b := d.readBytes()
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
