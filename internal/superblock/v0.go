package superblock

import (
	"fmt"

	binpkg "github.com/robert-malhotra/go-gtt23/internal/binary"
)

// Versions 0 and 1, after the signature and version byte:
//
//	free-space version, root entry version, reserved, shared header version
//	offset size, length size, reserved
//	group leaf K (2), group internal K (2), consistency flags (4)
//	version 1 only: indexed storage K (2), reserved (2)
//	base, free-space info, EOF and driver info addresses
//	root group symbol table entry
//
// The symbol table entry is a name offset and the object header address,
// then a 4-byte cache type, 4 reserved bytes and a 16-byte scratch pad.
// Cache type 1 means the scratch pad holds the group's B-tree and local
// heap addresses.
const cacheSymbolTable = 1

func readV0(br *binpkg.Reader, version uint8) (*Superblock, error) {
	fixed, err := br.ReadBytes(7)
	if err != nil {
		return nil, fmt.Errorf("reading superblock: %w", err)
	}
	sb := &Superblock{
		Version:                 version,
		FreeSpaceManagerVersion: fixed[0],
		OffsetSize:              fixed[4],
		LengthSize:              fixed[5],
	}
	if br, err = sized(br, sb.OffsetSize, sb.LengthSize); err != nil {
		return nil, err
	}

	sb.GroupLeafNodeK, _ = br.ReadUint16()
	sb.GroupInternalNodeK, _ = br.ReadUint16()
	flags, err := br.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("reading superblock: %w", err)
	}
	sb.FileConsistencyFlags = uint8(flags)
	if version == 1 {
		sb.IndexedStorageK, _ = br.ReadUint16()
		br.Skip(2)
	}

	var nameOffset uint64
	if err := readOffsets(br, &sb.BaseAddress, nil, &sb.EOFAddress, nil, &nameOffset, &sb.RootGroupAddress); err != nil {
		return nil, err
	}

	cacheType, err := br.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("reading root group entry: %w", err)
	}
	if cacheType == cacheSymbolTable {
		br.Skip(4)
		if err := readOffsets(br, &sb.RootGroupBTreeAddress, &sb.RootGroupLocalHeapAddress); err != nil {
			return nil, err
		}
	}
	return sb, nil
}
