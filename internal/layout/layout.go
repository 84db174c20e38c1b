package layout

import (
	"fmt"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
	"github.com/robert-malhotra/go-gtt23/internal/message"
)

// Layout reads the raw bytes of a dataset from its storage.
type Layout interface {
	// Read returns every element of the dataset in row-major order.
	Read() ([]byte, error)

	// ReadSlice returns the hyperslab of count elements per dimension
	// starting at start, packed in row-major order.
	ReadSlice(start, count []uint64) ([]byte, error)

	// Class returns the layout class.
	Class() message.LayoutClass
}

// New creates the Layout described by a data layout message.
func New(
	msg *message.DataLayout,
	dataspace *message.Dataspace,
	datatype *message.Datatype,
	pipeline *message.FilterPipeline,
	reader *binary.Reader,
) (Layout, error) {
	if msg == nil {
		return nil, fmt.Errorf("nil layout message")
	}
	if dataspace == nil || datatype == nil {
		return nil, fmt.Errorf("layout needs a dataspace and a datatype")
	}

	switch msg.Class {
	case message.LayoutCompact:
		return NewCompact(msg, dataspace, datatype), nil
	case message.LayoutContiguous:
		return NewContiguous(msg, dataspace, datatype, reader), nil
	case message.LayoutChunked:
		return NewChunked(msg, dataspace, datatype, pipeline, reader)
	default:
		return nil, fmt.Errorf("unsupported layout class: %s", msg.Class)
	}
}

// shape returns the extent of a dataspace. A scalar has the extent [1].
func shape(ds *message.Dataspace) []uint64 {
	if ds.IsScalar() || len(ds.Dimensions) == 0 {
		return []uint64{1}
	}
	return ds.Dimensions
}

// volume returns the number of elements in an extent.
func volume(dims []uint64) uint64 {
	n := uint64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}

// checkSelection verifies that start/count selects a box inside dims.
func checkSelection(dims, start, count []uint64) error {
	if len(start) != len(dims) || len(count) != len(dims) {
		return fmt.Errorf("selection has rank %d/%d, dataset has rank %d", len(start), len(count), len(dims))
	}
	for d := range dims {
		if start[d] > dims[d] || count[d] > dims[d]-start[d] {
			return fmt.Errorf("selection [%d, %d) exceeds dimension %d of size %d",
				start[d], start[d]+count[d], d, dims[d])
		}
	}
	return nil
}

// walk calls fn for every index inside the extent n, last dimension
// fastest. The idx slice is reused between calls.
func walk(n []uint64, fn func(idx []uint64) error) error {
	for _, v := range n {
		if v == 0 {
			return nil
		}
	}
	idx := make([]uint64, len(n))
	for {
		if err := fn(idx); err != nil {
			return err
		}
		d := len(n) - 1
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] < n[d] {
				break
			}
			idx[d] = 0
		}
		if d < 0 {
			return nil
		}
	}
}

// copyBox copies a box of extent box from src, an array of extent srcDims,
// at srcAt into dst, an array of extent dstDims, at dstAt. Runs along the
// last dimension are copied in one piece.
func copyBox(dst []byte, dstDims, dstAt []uint64, src []byte, srcDims, srcAt []uint64, box []uint64, elem uint64) {
	rank := len(box)
	if rank == 0 {
		copy(dst[:elem], src[:elem])
		return
	}
	if box[rank-1] == 0 {
		return
	}
	run := box[rank-1] * elem

	_ = walk(box[:rank-1], func(idx []uint64) error {
		var s, d uint64
		for i := 0; i < rank; i++ {
			var k uint64
			if i < rank-1 {
				k = idx[i]
			}
			s = s*srcDims[i] + srcAt[i] + k
			d = d*dstDims[i] + dstAt[i] + k
		}
		copy(dst[d*elem:d*elem+run], src[s*elem:s*elem+run])
		return nil
	})
}

// slice extracts start/count from data, an in-memory array of extent dims.
func slice(data []byte, dims, start, count []uint64, elem uint64) ([]byte, error) {
	if err := checkSelection(dims, start, count); err != nil {
		return nil, err
	}
	if need := volume(dims) * elem; uint64(len(data)) < need {
		return nil, fmt.Errorf("storage holds %d bytes, extent needs %d", len(data), need)
	}
	out := make([]byte, volume(count)*elem)
	copyBox(out, count, make([]uint64, len(count)), data, dims, start, count, elem)
	return out, nil
}
