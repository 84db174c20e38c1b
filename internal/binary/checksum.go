package binary

import (
	"encoding/binary"
	"math/bits"
)

// Lookup3Checksum is Bob Jenkins' lookup3 hashlittle with an initial value
// of zero, the checksum on every version 2 metadata structure.
func Lookup3Checksum(data []byte) uint32 {
	a := 0xdeadbeef + uint32(len(data))
	b, c := a, a

	// The last block, even a full one, goes through the final mix.
	for ; len(data) > 12; data = data[12:] {
		a += binary.LittleEndian.Uint32(data)
		b += binary.LittleEndian.Uint32(data[4:])
		c += binary.LittleEndian.Uint32(data[8:])
		a, b, c = lookup3Mix(a, b, c)
	}
	if len(data) == 0 {
		return c
	}

	var tail [12]byte
	copy(tail[:], data)
	a += binary.LittleEndian.Uint32(tail[:])
	b += binary.LittleEndian.Uint32(tail[4:])
	c += binary.LittleEndian.Uint32(tail[8:])
	return lookup3Final(a, b, c)
}

// lookup3Mix is the reversible mix. Each round subtracts and xors the
// rotated third word into the first, then adds the second into the third,
// moving one place along (a, b, c) per round.
func lookup3Mix(a, b, c uint32) (uint32, uint32, uint32) {
	v := [3]uint32{a, b, c}
	for i, r := range [6]int{4, 6, 8, 16, 19, 4} {
		x, y, z := &v[i%3], &v[(i+1)%3], &v[(i+2)%3]
		*x -= *z
		*x ^= bits.RotateLeft32(*z, r)
		*z += *y
	}
	return v[0], v[1], v[2]
}

// lookup3Final is the final mix, starting with c ^= b and returning c.
func lookup3Final(a, b, c uint32) uint32 {
	v := [3]uint32{a, b, c}
	for i, r := range [7]int{14, 11, 25, 16, 4, 14, 24} {
		x, z := &v[(i+2)%3], &v[(i+1)%3]
		*x ^= *z
		*x -= bits.RotateLeft32(*z, r)
	}
	return v[2]
}

// VerifyLookup3 verifies data against an expected lookup3 checksum.
func VerifyLookup3(data []byte, expected uint32) bool {
	return Lookup3Checksum(data) == expected
}

// Fletcher32 is the checksum of the fletcher32 filter. Data is summed as
// big-endian 16-bit words, an odd last byte being the high half of a
// word, with both sums folded back to 16 bits by end-around carry.
func Fletcher32(data []byte) uint32 {
	var sum1, sum2 uint32
	fold := func() {
		sum1 = sum1&0xffff + sum1>>16
		sum2 = sum2&0xffff + sum2>>16
	}

	// 360 words keep both sums inside 32 bits between folds.
	for len(data) >= 2 {
		n := min(len(data)/2, 360)
		for i := range n {
			sum1 += uint32(binary.BigEndian.Uint16(data[2*i:]))
			sum2 += sum1
		}
		data = data[2*n:]
		fold()
	}
	if len(data) == 1 {
		sum1 += uint32(data[0]) << 8
		sum2 += sum1
		fold()
	}
	fold()
	return sum2<<16 | sum1
}

// swapFletcher32 is the value libraries before HDF5 1.6.3 stored on
// little-endian hosts: each 16-bit half byte-swapped.
func swapFletcher32(sum uint32) uint32 {
	return (sum&0x00ff00ff)<<8 | (sum&0xff00ff00)>>8
}

// VerifyFletcher32 reports whether expected is the Fletcher-32 of data,
// in either the current or the pre-1.6.3 byte order.
func VerifyFletcher32(data []byte, expected uint32) bool {
	sum := Fletcher32(data)
	return expected == sum || expected == swapFletcher32(sum)
}
