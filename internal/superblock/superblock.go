package superblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/go-gtt23/internal/binary"
)

// Signature is the 8-byte format signature the superblock starts with.
var Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// searchOffsets are where the signature may appear. A file with a user
// block has its superblock at the first power of two past it.
var searchOffsets = []int64{0, 512, 1024, 2048}

var (
	ErrNotHDF5            = errors.New("not an HDF5 file: signature not found")
	ErrUnsupportedVersion = errors.New("unsupported superblock version")
	ErrInvalidSuperblock  = errors.New("invalid superblock structure")
)

// Superblock holds what the rest of the library needs from the superblock.
type Superblock struct {
	Version uint8

	// OffsetSize and LengthSize are the widths of addresses and sizes in
	// every other structure of the file.
	OffsetSize uint8
	LengthSize uint8

	FileConsistencyFlags uint8

	// BaseAddress is the absolute position all other addresses count from.
	BaseAddress uint64

	// SuperblockExtensionAddress is undefined when there is no extension.
	// Version 2 and 3 only.
	SuperblockExtensionAddress uint64

	EOFAddress       uint64
	RootGroupAddress uint64

	// Versions 0 and 1 only. The B-tree and heap addresses are the root
	// group's symbol table, cached in its symbol table entry.
	GroupLeafNodeK            uint16
	GroupInternalNodeK        uint16
	IndexedStorageK           uint16
	FreeSpaceManagerVersion   uint8
	RootGroupBTreeAddress     uint64
	RootGroupLocalHeapAddress uint64

	// ByteOrder is always little-endian.
	ByteOrder binary.ByteOrder

	// FileOffset is where the signature was found.
	FileOffset int64
}

// Read finds the signature and decodes the superblock that follows it.
func Read(r io.ReaderAt) (*Superblock, error) {
	head := make([]byte, len(Signature)+1)
	for _, offset := range searchOffsets {
		if n, err := r.ReadAt(head, offset); n < len(head) {
			if err == nil || errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if !bytes.Equal(head[:len(Signature)], Signature) {
			continue
		}

		var (
			sb  *Superblock
			err error
		)
		br := binpkg.NewReader(r, binpkg.DefaultConfig()).At(offset + int64(len(head)))
		switch version := head[len(Signature)]; version {
		case 0, 1:
			sb, err = readV0(br, version)
		case 2, 3:
			sb, err = readV2(br, offset, version)
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
		}
		if err != nil {
			return nil, err
		}
		sb.FileOffset = offset
		sb.ByteOrder = binary.LittleEndian
		return sb, nil
	}
	return nil, ErrNotHDF5
}

// ReaderConfig is the binary layout every decoder of this file shares.
func (sb *Superblock) ReaderConfig() binpkg.Config {
	return binpkg.Config{
		ByteOrder:  sb.ByteOrder,
		OffsetSize: int(sb.OffsetSize),
		LengthSize: int(sb.LengthSize),
	}
}

// sized returns a reader at the position of br that decodes addresses and
// lengths at the given widths, once those are known to be valid.
func sized(br *binpkg.Reader, offsetSize, lengthSize uint8) (*binpkg.Reader, error) {
	for _, size := range []uint8{offsetSize, lengthSize} {
		switch size {
		case 2, 4, 8:
		default:
			return nil, fmt.Errorf("%w: field size %d", ErrInvalidSuperblock, size)
		}
	}
	cfg := binpkg.Config{ByteOrder: binary.LittleEndian, OffsetSize: int(offsetSize), LengthSize: int(lengthSize)}
	return br.WithConfig(cfg), nil
}

// readOffsets reads consecutive addresses into dst.
func readOffsets(br *binpkg.Reader, dst ...*uint64) error {
	for _, p := range dst {
		v, err := br.ReadOffset()
		if err != nil {
			return fmt.Errorf("reading superblock: %w", err)
		}
		if p != nil {
			*p = v
		}
	}
	return nil
}
