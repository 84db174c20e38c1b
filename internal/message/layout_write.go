package message

import (
	"fmt"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
)

// Serialize writes the layout. Compact and contiguous layouts use
// version 3; chunked layouts use version 4 so that the chunk index type
// can be recorded.
func (m *DataLayout) Serialize(w *binary.Writer) error {
	version := uint8(3)
	if m.Class == LayoutChunked {
		version = 4
	}
	if err := w.WriteUint8(version); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(m.Class)); err != nil {
		return err
	}

	switch m.Class {
	case LayoutCompact:
		if len(m.CompactData) > 0xFFFF {
			return fmt.Errorf("compact data of %d bytes exceeds 65535", len(m.CompactData))
		}
		if err := w.WriteUint16(uint16(len(m.CompactData))); err != nil {
			return err
		}
		return w.WriteBytes(m.CompactData)

	case LayoutContiguous:
		if err := w.WriteOffset(m.Address); err != nil {
			return err
		}
		return w.WriteLength(m.Size)

	case LayoutChunked:
		return m.serializeChunked(w)
	}
	return fmt.Errorf("cannot serialize layout class %s", m.Class)
}

func (m *DataLayout) serializeChunked(w *binary.Writer) error {
	width := m.dimensionWidth()
	header := []uint8{m.ChunkFlags, uint8(len(m.ChunkDims) + 1), uint8(width)}
	if err := w.WriteBytes(header); err != nil {
		return err
	}
	for _, d := range m.ChunkDims {
		if err := w.WriteUintN(uint64(d), width); err != nil {
			return err
		}
	}
	if err := w.WriteUintN(uint64(m.ElementSize), width); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(m.ChunkIndexType)); err != nil {
		return err
	}

	var err error
	switch m.ChunkIndexType {
	case ChunkIndexSingle:
		if m.ChunkFlags&ChunkSingleIndexFilters != 0 {
			if err = w.WriteLength(m.FilteredChunkSize); err == nil {
				err = w.WriteUint32(m.FilterMask)
			}
		}
	case ChunkIndexImplicit:
	case ChunkIndexFixedArray:
		err = w.WriteUint8(m.PageBits)
	case ChunkIndexExtensibleArray:
		ea := m.ExtensibleArray
		err = w.WriteBytes([]uint8{ea.MaxBits, ea.IndexElements, ea.MinPointers, ea.MinElements, ea.PageBits})
	case ChunkIndexBTreeV2:
		if err = w.WriteUint32(m.NodeSize); err == nil {
			err = w.WriteBytes([]uint8{m.SplitPercent, m.MergePercent})
		}
	default:
		return fmt.Errorf("cannot serialize chunk index %s", m.ChunkIndexType)
	}
	if err != nil {
		return err
	}
	return w.WriteOffset(m.ChunkIndexAddr)
}

// dimensionWidth returns the fewest bytes that hold every chunk dimension.
func (m *DataLayout) dimensionWidth() int {
	largest := uint64(m.ElementSize)
	for _, d := range m.ChunkDims {
		largest = max(largest, uint64(d))
	}
	width := 1
	for width < 8 && largest>>(8*width) != 0 {
		width++
	}
	return width
}

// SerializedSize returns the size in bytes when serialized.
func (m *DataLayout) SerializedSize(w *binary.Writer) int {
	size := 2
	switch m.Class {
	case LayoutCompact:
		size += 2 + len(m.CompactData)
	case LayoutContiguous:
		size += w.OffsetSize() + w.LengthSize()
	case LayoutChunked:
		size += 3 + (len(m.ChunkDims)+1)*m.dimensionWidth() + 1
		switch m.ChunkIndexType {
		case ChunkIndexSingle:
			if m.ChunkFlags&ChunkSingleIndexFilters != 0 {
				size += w.LengthSize() + 4
			}
		case ChunkIndexFixedArray:
			size++
		case ChunkIndexExtensibleArray:
			size += 5
		case ChunkIndexBTreeV2:
			size += 6
		}
		size += w.OffsetSize()
	}
	return size
}

// NewCompactLayout creates a new compact layout message.
func NewCompactLayout(data []byte) *DataLayout {
	return &DataLayout{
		Version:     3,
		Class:       LayoutCompact,
		CompactData: data,
	}
}

// NewContiguousLayout creates a new contiguous layout message.
func NewContiguousLayout(address, size uint64) *DataLayout {
	return &DataLayout{
		Version: 3,
		Class:   LayoutContiguous,
		Address: address,
		Size:    size,
	}
}

// NewChunkedLayout creates a version 4 chunked layout message. chunkDims
// has the dataset's rank. The index address and any index parameters are
// filled in once the chunks and index have been written.
func NewChunkedLayout(chunkDims []uint32, elementSize uint32, indexType ChunkIndexType) *DataLayout {
	return &DataLayout{
		Version:        4,
		Class:          LayoutChunked,
		ChunkDims:      append([]uint32(nil), chunkDims...),
		ElementSize:    elementSize,
		ChunkIndexType: indexType,
	}
}
