package message

import (
	"github.com/robert-malhotra/go-gtt23/internal/binary"
)

// Serializable is a message that can be written back into a header.
type Serializable interface {
	Message
	Serialize(w *binary.Writer) error
	SerializedSize(w *binary.Writer) int
}

// Serialize writes msg if it is Serializable and does nothing otherwise.
func Serialize(msg Message, w *binary.Writer) error {
	if s, ok := msg.(Serializable); ok {
		return s.Serialize(w)
	}
	return nil
}

// SerializedSize is the body size of msg, or 0 when it cannot be written.
func SerializedSize(msg Message, w *binary.Writer) int {
	if s, ok := msg.(Serializable); ok {
		return s.SerializedSize(w)
	}
	return 0
}

// encoder writes the fields of one message body in order. The first
// write error sticks.
type encoder struct {
	w   *binary.Writer
	err error
}

func (e *encoder) uint(v uint64, n int) {
	if e.err == nil {
		e.err = e.w.WriteUintN(v, n)
	}
}

func (e *encoder) u8(v uint8)   { e.uint(uint64(v), 1) }
func (e *encoder) u16(v uint16) { e.uint(uint64(v), 2) }
func (e *encoder) u32(v uint32) { e.uint(uint64(v), 4) }

func (e *encoder) offset(v uint64) { e.uint(v, e.w.OffsetSize()) }
func (e *encoder) length(v uint64) { e.uint(v, e.w.LengthSize()) }

func (e *encoder) bytes(b []byte) {
	if e.err == nil {
		e.err = e.w.WriteBytes(b)
	}
}

func (e *encoder) zeros(n int) {
	if e.err == nil && n > 0 {
		e.err = e.w.WriteZeros(n)
	}
}

// cstring writes s and its null terminator.
func (e *encoder) cstring(s string) {
	e.bytes(append([]byte(s), 0))
}

// measure runs m.Serialize against a sink that only records how far it
// wrote, using the field widths of w.
func measure(m Serializable, w *binary.Writer) int {
	var sink extent
	cfg := binary.Config{ByteOrder: w.ByteOrder(), OffsetSize: w.OffsetSize(), LengthSize: w.LengthSize()}
	_ = m.Serialize(binary.NewWriter(&sink, cfg))
	return int(sink)
}

// extent is an io.WriterAt that keeps nothing but the end of the
// furthest write.
type extent int64

func (e *extent) WriteAt(p []byte, off int64) (int, error) {
	*e = max(*e, extent(off+int64(len(p))))
	return len(p), nil
}
