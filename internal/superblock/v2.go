package superblock

import (
	"fmt"

	binpkg "github.com/robert-malhotra/go-gtt23/internal/binary"
)

// Versions 2 and 3 share one layout after the signature and version byte:
// offset size, length size, consistency flags, then the base, superblock
// extension, EOF and root group object header addresses, and a lookup3
// checksum of everything before it.
func readV2(br *binpkg.Reader, offset int64, version uint8) (*Superblock, error) {
	fixed, err := br.ReadBytes(3)
	if err != nil {
		return nil, fmt.Errorf("reading superblock: %w", err)
	}
	sb := &Superblock{
		Version:              version,
		OffsetSize:           fixed[0],
		LengthSize:           fixed[1],
		FileConsistencyFlags: fixed[2],
	}
	if br, err = sized(br, sb.OffsetSize, sb.LengthSize); err != nil {
		return nil, err
	}
	if err := readOffsets(br, &sb.BaseAddress, &sb.SuperblockExtensionAddress, &sb.EOFAddress, &sb.RootGroupAddress); err != nil {
		return nil, err
	}

	stored, err := br.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("reading superblock checksum: %w", err)
	}
	covered, err := br.At(offset).ReadBytes(int(br.Pos() - 4 - offset))
	if err != nil {
		return nil, fmt.Errorf("reading superblock: %w", err)
	}
	if !binpkg.VerifyLookup3(covered, stored) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidSuperblock)
	}
	return sb, nil
}
