package layout

import (
	"github.com/robert-malhotra/go-gtt23/internal/message"
)

// Compact reads data stored inside the object header.
type Compact struct {
	data []byte
	dims []uint64
	elem uint64
}

// NewCompact creates a compact layout reader.
func NewCompact(msg *message.DataLayout, dataspace *message.Dataspace, datatype *message.Datatype) *Compact {
	return &Compact{
		data: msg.CompactData,
		dims: shape(dataspace),
		elem: uint64(datatype.Size),
	}
}

func (c *Compact) Class() message.LayoutClass {
	return message.LayoutCompact
}

// Read returns a copy of the stored data.
func (c *Compact) Read() ([]byte, error) {
	return append([]byte(nil), c.data...), nil
}

// Size returns the number of bytes stored in the header.
func (c *Compact) Size() int {
	return len(c.data)
}

func (c *Compact) ReadSlice(start, count []uint64) ([]byte, error) {
	return slice(c.data, c.dims, start, count, c.elem)
}
