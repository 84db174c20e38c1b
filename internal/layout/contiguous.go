package layout

import (
	"fmt"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
	"github.com/robert-malhotra/go-gtt23/internal/message"
)

// Contiguous reads data stored as one block in the file. A block that was
// never allocated reads as zeros.
type Contiguous struct {
	address uint64
	size    uint64
	dims    []uint64
	elem    uint64
	reader  *binary.Reader
}

// NewContiguous creates a contiguous layout reader.
func NewContiguous(msg *message.DataLayout, dataspace *message.Dataspace, datatype *message.Datatype, reader *binary.Reader) *Contiguous {
	c := &Contiguous{
		address: msg.Address,
		dims:    shape(dataspace),
		elem:    uint64(datatype.Size),
		reader:  reader,
	}
	c.size = volume(c.dims) * c.elem
	if msg.Size != 0 && msg.Size < c.size {
		c.size = msg.Size
	}
	return c
}

func (c *Contiguous) Class() message.LayoutClass {
	return message.LayoutContiguous
}

func (c *Contiguous) allocated() bool {
	return !c.reader.IsUndefinedOffset(c.address)
}

// Read returns the whole block.
func (c *Contiguous) Read() ([]byte, error) {
	if !c.allocated() || c.size == 0 {
		return make([]byte, c.size), nil
	}
	data, err := c.reader.At(int64(c.address)).ReadBytes(int(c.size))
	if err != nil {
		return nil, fmt.Errorf("reading contiguous data at %#x: %w", c.address, err)
	}
	return data, nil
}

// ReadSlice reads only the selected bytes of a 1-D dataset. Higher ranks
// read the block and cut the selection out of it.
func (c *Contiguous) ReadSlice(start, count []uint64) ([]byte, error) {
	if err := checkSelection(c.dims, start, count); err != nil {
		return nil, err
	}
	if len(c.dims) != 1 {
		data, err := c.Read()
		if err != nil {
			return nil, err
		}
		return slice(data, c.dims, start, count, c.elem)
	}

	first, n := start[0]*c.elem, count[0]*c.elem
	if first+n > c.size {
		return nil, fmt.Errorf("slice ends at byte %d, block holds %d", first+n, c.size)
	}
	if !c.allocated() || n == 0 {
		return make([]byte, n), nil
	}
	data, err := c.reader.At(int64(c.address + first)).ReadBytes(int(n))
	if err != nil {
		return nil, fmt.Errorf("reading contiguous slice at %#x: %w", c.address+first, err)
	}
	return data, nil
}

// Address returns the file address of the block.
func (c *Contiguous) Address() uint64 {
	return c.address
}

// Size returns the block size in bytes.
func (c *Contiguous) Size() uint64 {
	return c.size
}
