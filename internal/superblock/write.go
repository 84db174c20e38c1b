package superblock

import (
	binpkg "github.com/robert-malhotra/go-gtt23/internal/binary"
)

// NewSuperblock returns the version 3 superblock of a new file with 8-byte
// offsets and lengths.
func NewSuperblock() *Superblock {
	return &Superblock{Version: 3, OffsetSize: 8, LengthSize: 8}
}

// Size is the encoded size of a version 2 or 3 superblock.
func (sb *Superblock) Size() int {
	offsetSize := int(sb.OffsetSize)
	if offsetSize == 0 {
		offsetSize = 8
	}
	return 12 + 4*offsetSize + 4
}

// Write encodes sb as a version 2 or 3 superblock at the position of w and
// returns the number of bytes written. Versions below 2 are written as 2,
// and a zero extension address as the undefined address.
func (sb *Superblock) Write(w *binpkg.Writer) (int64, error) {
	buf := &memWriterAt{}
	bw := binpkg.NewWriter(buf, binpkg.Config{
		ByteOrder:  w.ByteOrder(),
		OffsetSize: w.OffsetSize(),
		LengthSize: w.LengthSize(),
	})

	ext := sb.SuperblockExtensionAddress
	if ext == 0 {
		ext = bw.UndefinedOffset()
	}
	bw.WriteBytes(Signature)
	bw.WriteBytes([]byte{max(sb.Version, 2), sb.OffsetSize, sb.LengthSize, sb.FileConsistencyFlags})
	for _, addr := range []uint64{sb.BaseAddress, ext, sb.EOFAddress, sb.RootGroupAddress} {
		bw.WriteOffset(addr)
	}
	bw.WriteUint32(binpkg.Lookup3Checksum(buf.buf))

	if err := w.WriteBytes(buf.buf); err != nil {
		return 0, err
	}
	return int64(len(buf.buf)), nil
}

type memWriterAt struct {
	buf []byte
}

func (m *memWriterAt) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	return copy(m.buf[off:], p), nil
}
