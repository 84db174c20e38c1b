package filter

import (
	"github.com/robert-malhotra/go-gtt23/internal/message"
)

// Shuffle stores byte k of every element together, which helps a
// following compressor. Its client data is the element size.
type Shuffle struct {
	elemSize int
}

func NewShuffle(clientData []uint32) *Shuffle {
	size := 1
	if len(clientData) > 0 && clientData[0] > 0 {
		size = int(clientData[0])
	}
	return &Shuffle{elemSize: size}
}

func (f *Shuffle) ID() uint16 { return message.FilterShuffle }

// SetElementSize overrides the element size given at construction.
func (f *Shuffle) SetElementSize(size int) { f.elemSize = size }

func (f *Shuffle) Decode(input []byte) ([]byte, error) {
	return f.transpose(input, false), nil
}

func (f *Shuffle) Encode(input []byte) ([]byte, error) {
	return f.transpose(input, true), nil
}

// transpose moves between element order and byte-plane order. Bytes past
// the last whole element stay where they are.
func (f *Shuffle) transpose(input []byte, shuffle bool) []byte {
	n := len(input) / max(f.elemSize, 1)
	if f.elemSize <= 1 || n <= 1 {
		return input
	}
	out := make([]byte, len(input))
	for e := range n {
		for k := range f.elemSize {
			plane, elem := k*n+e, e*f.elemSize+k
			if shuffle {
				out[plane] = input[elem]
			} else {
				out[elem] = input[plane]
			}
		}
	}
	copy(out[n*f.elemSize:], input[n*f.elemSize:])
	return out
}
