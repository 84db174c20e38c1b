package binary

import (
	"encoding/binary"
	"io"
)

// Writer is the encoding counterpart of Reader.
type Writer struct {
	dst io.WriterAt
	cfg Config
	pos int64
}

// NewWriter returns a Writer at offset zero.
func NewWriter(dst io.WriterAt, cfg Config) *Writer {
	return &Writer{dst: dst, cfg: cfg}
}

// At returns a Writer over the same destination positioned at offset.
func (w *Writer) At(offset int64) *Writer {
	return &Writer{dst: w.dst, cfg: w.cfg, pos: offset}
}

func (w *Writer) Pos() int64 { return w.pos }

func (w *Writer) OffsetSize() int { return w.cfg.OffsetSize }

func (w *Writer) LengthSize() int { return w.cfg.LengthSize }

func (w *Writer) ByteOrder() binary.ByteOrder { return w.cfg.ByteOrder }

// WriteBytes writes data at the current position. The position advances by
// what was written, even on error.
func (w *Writer) WriteBytes(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n, err := w.dst.WriteAt(data, w.pos)
	w.pos += int64(n)
	return err
}

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int) error {
	if n <= 0 {
		return nil
	}
	return w.WriteBytes(make([]byte, n))
}

// WriteUintN writes v as an unsigned integer n bytes wide.
func (w *Writer) WriteUintN(v uint64, n int) error {
	buf := make([]byte, n)
	encodeUint(w.cfg.ByteOrder, buf, v)
	return w.WriteBytes(buf)
}

func (w *Writer) WriteUint8(v uint8) error { return w.WriteUintN(uint64(v), 1) }

func (w *Writer) WriteUint16(v uint16) error { return w.WriteUintN(uint64(v), 2) }

func (w *Writer) WriteUint32(v uint32) error { return w.WriteUintN(uint64(v), 4) }

// WriteOffset writes a file address.
func (w *Writer) WriteOffset(v uint64) error {
	return w.WriteUintN(v, w.cfg.OffsetSize)
}

// WriteLength writes an object size.
func (w *Writer) WriteLength(v uint64) error {
	return w.WriteUintN(v, w.cfg.LengthSize)
}

// UndefinedOffset is the "no address" value at the configured width.
func (w *Writer) UndefinedOffset() uint64 {
	return allOnes(w.cfg.OffsetSize)
}

func encodeUint(order binary.ByteOrder, buf []byte, v uint64) {
	switch len(buf) {
	case 1:
		buf[0] = byte(v)
	case 2:
		order.PutUint16(buf, uint16(v))
	case 4:
		order.PutUint32(buf, uint32(v))
	case 8:
		order.PutUint64(buf, v)
	default:
		for i := range buf {
			buf[i] = byte(v >> (8 * i))
		}
	}
}
