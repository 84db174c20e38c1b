package filter

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/go-gtt23/internal/binary"
	"github.com/robert-malhotra/go-gtt23/internal/message"
)

// Fletcher32Filter appends a checksum to each chunk and verifies it on
// read.
type Fletcher32Filter struct{}

func NewFletcher32([]uint32) *Fletcher32Filter { return &Fletcher32Filter{} }

func (f *Fletcher32Filter) ID() uint16 { return message.FilterFletcher32 }

// Decode checks the little-endian checksum in the last four bytes and
// strips it.
func (f *Fletcher32Filter) Decode(input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, fmt.Errorf("fletcher32: %d bytes cannot hold a checksum", len(input))
	}
	data := input[:len(input)-4]
	stored := binary.LittleEndian.Uint32(input[len(data):])
	if !binpkg.VerifyFletcher32(data, stored) {
		return nil, fmt.Errorf("fletcher32: stored checksum %#08x, computed %#08x", stored, binpkg.Fletcher32(data))
	}
	return data, nil
}

func (f *Fletcher32Filter) Encode(input []byte) ([]byte, error) {
	out := make([]byte, len(input), len(input)+4)
	copy(out, input)
	return binary.LittleEndian.AppendUint32(out, binpkg.Fletcher32(input)), nil
}
