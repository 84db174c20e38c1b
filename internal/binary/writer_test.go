package binary

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// memWriterAt is an io.WriterAt that grows to fit.
type memWriterAt struct {
	buf []byte
}

func (m *memWriterAt) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	return copy(m.buf[off:], p), nil
}

func TestWriterIntegers(t *testing.T) {
	tests := []struct {
		name  string
		order binary.ByteOrder
		write func(w *Writer) error
		want  []byte
	}{
		{"u8", binary.LittleEndian, func(w *Writer) error { return w.WriteUint8(0xAB) }, []byte{0xAB}},
		{"u16 le", binary.LittleEndian, func(w *Writer) error { return w.WriteUint16(0x1234) }, []byte{0x34, 0x12}},
		{"u16 be", binary.BigEndian, func(w *Writer) error { return w.WriteUint16(0x1234) }, []byte{0x12, 0x34}},
		{"u32 le", binary.LittleEndian, func(w *Writer) error { return w.WriteUint32(0x12345678) }, []byte{0x78, 0x56, 0x34, 0x12}},
		{"u64 be", binary.BigEndian, func(w *Writer) error { return w.WriteUintN(0x0102030405060708, 8) }, []byte{1, 2, 3, 4, 5, 6, 7, 8}},
		{"3 bytes", binary.BigEndian, func(w *Writer) error { return w.WriteUintN(0x030201, 3) }, []byte{1, 2, 3}},
		{"offset", binary.LittleEndian, func(w *Writer) error { return w.WriteOffset(0x0102) }, []byte{0x02, 0x01, 0, 0}},
		{"length", binary.LittleEndian, func(w *Writer) error { return w.WriteLength(7) }, []byte{7, 0}},
		{"undefined offset", binary.LittleEndian, func(w *Writer) error { return w.WriteOffset(w.UndefinedOffset()) }, []byte{0xFF, 0xFF, 0xFF, 0xFF}},
		{"zeros", binary.LittleEndian, func(w *Writer) error { return w.WriteZeros(3) }, []byte{0, 0, 0}},
		{"nothing", binary.LittleEndian, func(w *Writer) error { return w.WriteZeros(0) }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := &memWriterAt{}
			w := NewWriter(mem, Config{ByteOrder: tt.order, OffsetSize: 4, LengthSize: 2})
			if err := tt.write(w); err != nil {
				t.Fatalf("write: %v", err)
			}
			if !bytes.Equal(mem.buf, tt.want) {
				t.Fatalf("wrote % x, want % x", mem.buf, tt.want)
			}
			if w.Pos() != int64(len(tt.want)) {
				t.Fatalf("Pos() = %d, want %d", w.Pos(), len(tt.want))
			}
		})
	}
}

func TestWriterAt(t *testing.T) {
	mem := &memWriterAt{}
	w := NewWriter(mem, DefaultConfig())
	if w.OffsetSize() != 8 || w.LengthSize() != 8 || w.ByteOrder() != binary.LittleEndian {
		t.Fatalf("DefaultConfig not kept")
	}

	if err := w.At(4).WriteBytes([]byte{9, 9}); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if w.Pos() != 0 {
		t.Fatalf("writing through At moved the parent to %d", w.Pos())
	}
	if err := w.WriteUint16(0x0201); err != nil {
		t.Fatalf("WriteUint16: %v", err)
	}
	if want := []byte{1, 2, 0, 0, 9, 9}; !bytes.Equal(mem.buf, want) {
		t.Fatalf("buffer = % x, want % x", mem.buf, want)
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	for _, cfg := range []Config{
		DefaultConfig(),
		{ByteOrder: binary.BigEndian, OffsetSize: 4, LengthSize: 2},
	} {
		mem := &memWriterAt{}
		w := NewWriter(mem, cfg)
		w.WriteOffset(0x1234)
		w.WriteLength(0x56)
		w.WriteUint32(0xCAFEBABE)
		w.WriteOffset(w.UndefinedOffset())

		r := NewReader(bytes.NewReader(mem.buf), cfg)
		off, _ := r.ReadOffset()
		length, _ := r.ReadLength()
		u32, _ := r.ReadUint32()
		undef, err := r.ReadOffset()
		if err != nil {
			t.Fatalf("%+v: %v", cfg, err)
		}
		if off != 0x1234 || length != 0x56 || u32 != 0xCAFEBABE || !r.IsUndefinedOffset(undef) {
			t.Fatalf("%+v: read back 0x%x 0x%x 0x%x 0x%x", cfg, off, length, u32, undef)
		}
	}
}
