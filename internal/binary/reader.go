// Package binary reads and writes the fixed-width integers, file offsets
// and lengths that make up HDF5 metadata, and computes its checksums.
package binary

import (
	"encoding/binary"
	"io"
)

// Config is the byte layout of a file's metadata, fixed by its superblock.
type Config struct {
	ByteOrder binary.ByteOrder

	// OffsetSize and LengthSize are the widths of file addresses and of
	// object sizes, each 2, 4 or 8 bytes.
	OffsetSize int
	LengthSize int
}

// DefaultConfig is used until the superblock has been read: little-endian
// with 8-byte offsets and lengths.
func DefaultConfig() Config {
	return Config{ByteOrder: binary.LittleEndian, OffsetSize: 8, LengthSize: 8}
}

// Reader decodes metadata from an io.ReaderAt. It keeps its own position,
// so readers derived with At never disturb each other.
type Reader struct {
	src io.ReaderAt
	cfg Config
	pos int64
}

// NewReader returns a Reader at offset zero.
func NewReader(src io.ReaderAt, cfg Config) *Reader {
	return &Reader{src: src, cfg: cfg}
}

// At returns a Reader over the same source positioned at offset.
func (r *Reader) At(offset int64) *Reader {
	return &Reader{src: r.src, cfg: r.cfg, pos: offset}
}

// WithConfig returns a Reader at the same position decoding with cfg.
func (r *Reader) WithConfig(cfg Config) *Reader {
	return &Reader{src: r.src, cfg: cfg, pos: r.pos}
}

func (r *Reader) Pos() int64 { return r.pos }

func (r *Reader) OffsetSize() int { return r.cfg.OffsetSize }

func (r *Reader) LengthSize() int { return r.cfg.LengthSize }

func (r *Reader) ByteOrder() binary.ByteOrder { return r.cfg.ByteOrder }

// Peek reads n bytes without moving the position.
func (r *Reader) Peek(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := r.src.ReadAt(buf, r.pos); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadBytes reads exactly n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	buf, err := r.Peek(n)
	if err != nil {
		return nil, err
	}
	r.pos += int64(len(buf))
	return buf, nil
}

// ReadUintN reads an unsigned integer n bytes wide in the file's byte order.
func (r *Reader) ReadUintN(n int) (uint64, error) {
	buf, err := r.ReadBytes(n)
	if err != nil {
		return 0, err
	}
	return decodeUint(r.cfg.ByteOrder, buf), nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	v, err := r.ReadUintN(1)
	return uint8(v), err
}

func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.ReadUintN(2)
	return uint16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.ReadUintN(4)
	return uint32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	return r.ReadUintN(8)
}

// ReadOffset reads a file address.
func (r *Reader) ReadOffset() (uint64, error) {
	return r.ReadUintN(r.cfg.OffsetSize)
}

// ReadLength reads an object size.
func (r *Reader) ReadLength() (uint64, error) {
	return r.ReadUintN(r.cfg.LengthSize)
}

// IsUndefinedOffset reports whether offset is the all-ones "no address"
// value at the configured width.
func (r *Reader) IsUndefinedOffset(offset uint64) bool {
	return offset == allOnes(r.cfg.OffsetSize)
}

// IsUndefinedLength is IsUndefinedOffset for lengths, the value an
// unlimited maximum dimension is stored as.
func (r *Reader) IsUndefinedLength(length uint64) bool {
	return length == allOnes(r.cfg.LengthSize)
}

// Skip moves the position n bytes forward.
func (r *Reader) Skip(n int64) {
	r.pos += n
}

// Align moves the position up to the next multiple of alignment.
func (r *Reader) Align(alignment int64) {
	if alignment > 1 {
		r.pos += (alignment - r.pos%alignment) % alignment
	}
}

// decodeUint decodes buf as one unsigned integer. Widths other than the
// power-of-two ones are little-endian, as HDF5 writes them.
func decodeUint(order binary.ByteOrder, buf []byte) uint64 {
	switch len(buf) {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(order.Uint16(buf))
	case 4:
		return uint64(order.Uint32(buf))
	case 8:
		return order.Uint64(buf)
	}
	var v uint64
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v
}

func allOnes(size int) uint64 {
	if size >= 8 {
		return ^uint64(0)
	}
	return 1<<(8*size) - 1
}
