package layout

import (
	encbin "encoding/binary"
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
)

// ChunkRecord locates one stored chunk. A zero Address marks a chunk that
// was never written.
type ChunkRecord struct {
	Address    uint64
	Size       uint64
	FilterMask uint32
}

func (r ChunkRecord) stored() bool {
	return r.Address != 0
}

// Array index client IDs.
const (
	clientChunks         = 0
	clientFilteredChunks = 1
)

// chunkSizeLen returns the width of the size field in filtered array
// index elements: one byte more than needed for the raw chunk size.
func chunkSizeLen(chunkBytes uint64) int {
	n := 1 + (bits.Len64(chunkBytes)-1+8)/8
	return min(n, 8)
}

// recordCodec describes array index elements.
type recordCodec struct {
	filtered bool
	sizeLen  int
	width    int // encoded element size
}

func newRecordCodec(client, width uint8, offsetSize int) (recordCodec, error) {
	switch client {
	case clientChunks:
		if int(width) != offsetSize {
			return recordCodec{}, fmt.Errorf("chunk index element of %d bytes, want %d", width, offsetSize)
		}
		return recordCodec{width: int(width)}, nil
	case clientFilteredChunks:
		sizeLen := int(width) - offsetSize - 4
		if sizeLen < 1 || sizeLen > 8 {
			return recordCodec{}, fmt.Errorf("filtered chunk index element of %d bytes", width)
		}
		return recordCodec{filtered: true, sizeLen: sizeLen, width: int(width)}, nil
	}
	return recordCodec{}, fmt.Errorf("unknown chunk index client %d", client)
}

// metaBlock is a signed, checksummed index structure held in memory. Index
// structures are always little-endian.
type metaBlock struct {
	buf    []byte
	pos    int
	reader *binary.Reader
}

// readMeta reads the n-byte block at addr, which ends with the lookup3
// checksum of everything before it and, when sig is not empty, starts
// with sig. The cursor is left after the signature.
func readMeta(r *binary.Reader, addr uint64, n int, sig string) (*metaBlock, error) {
	what := sig
	if what == "" {
		what = "page"
	}
	if r.IsUndefinedOffset(addr) || addr == 0 {
		return nil, fmt.Errorf("%s address is undefined", what)
	}
	buf, err := r.At(int64(addr)).ReadBytes(n)
	if err != nil {
		return nil, fmt.Errorf("reading %s at %#x: %w", what, addr, err)
	}
	if sig != "" && string(buf[:len(sig)]) != sig {
		return nil, fmt.Errorf("invalid signature at %#x: got %q, want %q", addr, buf[:len(sig)], sig)
	}
	body, sum := buf[:n-4], encbin.LittleEndian.Uint32(buf[n-4:])
	if !binary.VerifyLookup3(body, sum) {
		return nil, fmt.Errorf("%s at %#x: checksum mismatch", what, addr)
	}
	return &metaBlock{buf: body, pos: len(sig), reader: r}, nil
}

func (b *metaBlock) uint(n int) uint64 {
	if b.pos+n > len(b.buf) {
		b.pos = len(b.buf)
		return 0
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(b.buf[b.pos+i])
	}
	b.pos += n
	return v
}

func (b *metaBlock) u8() uint8 { return uint8(b.uint(1)) }

func (b *metaBlock) addr() uint64 { return b.uint(b.reader.OffsetSize()) }

func (b *metaBlock) length() uint64 { return b.uint(b.reader.LengthSize()) }

func (b *metaBlock) bytes(n int) []byte {
	end := min(b.pos+n, len(b.buf))
	out := b.buf[b.pos:end]
	b.pos = end
	return out
}

// prefix checks the version byte, client and header back-pointer that
// start every array index block.
func (b *metaBlock) prefix(client uint8, header uint64) error {
	if v := b.u8(); v != 0 {
		return fmt.Errorf("unsupported array index block version %d", v)
	}
	if c := b.u8(); c != client {
		return fmt.Errorf("array index block has client %d, header says %d", c, client)
	}
	if a := b.addr(); a != header {
		return fmt.Errorf("array index block points to header %#x, want %#x", a, header)
	}
	return nil
}

// record decodes one array element. Unfiltered chunks always occupy
// chunkBytes.
func (b *metaBlock) record(c recordCodec, chunkBytes uint64) ChunkRecord {
	rec := ChunkRecord{Address: b.addr(), Size: chunkBytes}
	if c.filtered {
		rec.Size = b.uint(c.sizeLen)
		rec.FilterMask = uint32(b.uint(4))
	}
	if b.reader.IsUndefinedOffset(rec.Address) {
		return ChunkRecord{}
	}
	return rec
}

// bitSet reports bit i of a page initialization bitmap, most significant
// bit first.
func bitSet(bitmap []byte, i uint64) bool {
	if i/8 >= uint64(len(bitmap)) {
		return false
	}
	return bitmap[i/8]&(0x80>>(i%8)) != 0
}

// metaWriter assembles an index block for writing.
type metaWriter struct {
	buf []byte
	w   *binary.Writer
}

func newMetaWriter(w *binary.Writer, sig string) *metaWriter {
	return &metaWriter{buf: []byte(sig), w: w}
}

func (m *metaWriter) uint(v uint64, n int) {
	for i := range n {
		m.buf = append(m.buf, byte(v>>(8*i)))
	}
}

func (m *metaWriter) u8(v uint8) { m.buf = append(m.buf, v) }

func (m *metaWriter) addr(v uint64) { m.uint(v, m.w.OffsetSize()) }

func (m *metaWriter) length(v uint64) { m.uint(v, m.w.LengthSize()) }

func (m *metaWriter) bytes(b []byte) { m.buf = append(m.buf, b...) }

func (m *metaWriter) prefix(client uint8, header uint64) {
	m.u8(0)
	m.u8(client)
	m.addr(header)
}

// record encodes one array element. A record that is not stored is
// written with the undefined address.
func (m *metaWriter) record(c recordCodec, rec ChunkRecord) {
	if !rec.stored() {
		m.addr(m.w.UndefinedOffset())
		if c.filtered {
			m.uint(0, c.sizeLen)
			m.uint(0, 4)
		}
		return
	}
	m.addr(rec.Address)
	if c.filtered {
		m.uint(rec.Size, c.sizeLen)
		m.uint(uint64(rec.FilterMask), 4)
	}
}

// finish appends the checksum and writes the block at addr.
func (m *metaWriter) finish(addr uint64) error {
	m.uint(uint64(binary.Lookup3Checksum(m.buf)), 4)
	return m.w.At(int64(addr)).WriteBytes(m.buf)
}
