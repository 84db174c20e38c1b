package message

import (
	"fmt"

	binpkg "github.com/robert-malhotra/go-gtt23/internal/binary"
)

// LayoutClass represents the storage layout class.
type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
	LayoutVirtual    LayoutClass = 3
)

func (c LayoutClass) String() string {
	switch c {
	case LayoutCompact:
		return "compact"
	case LayoutContiguous:
		return "contiguous"
	case LayoutChunked:
		return "chunked"
	case LayoutVirtual:
		return "virtual"
	}
	return fmt.Sprintf("layout(%d)", uint8(c))
}

// ChunkIndexType identifies the structure that maps chunk coordinates to
// file addresses. Layout messages before version 4 always use a version 1
// B-tree, which has no on-disk code and is represented here as zero.
type ChunkIndexType uint8

const (
	ChunkIndexBTreeV1         ChunkIndexType = 0
	ChunkIndexSingle          ChunkIndexType = 1
	ChunkIndexImplicit        ChunkIndexType = 2
	ChunkIndexFixedArray      ChunkIndexType = 3
	ChunkIndexExtensibleArray ChunkIndexType = 4
	ChunkIndexBTreeV2         ChunkIndexType = 5
)

func (t ChunkIndexType) String() string {
	switch t {
	case ChunkIndexBTreeV1:
		return "btree-v1"
	case ChunkIndexSingle:
		return "single"
	case ChunkIndexImplicit:
		return "implicit"
	case ChunkIndexFixedArray:
		return "fixed-array"
	case ChunkIndexExtensibleArray:
		return "extensible-array"
	case ChunkIndexBTreeV2:
		return "btree-v2"
	}
	return fmt.Sprintf("index(%d)", uint8(t))
}

// Chunked layout flags (version 4).
const (
	ChunkDontFilterPartial  uint8 = 0x01
	ChunkSingleIndexFilters uint8 = 0x02
)

// ExtensibleArrayParams are the creation parameters of an extensible
// array chunk index, as recorded in the layout message.
type ExtensibleArrayParams struct {
	MaxBits       uint8 // log2 of the maximum number of elements
	IndexElements uint8 // elements stored directly in the index block
	MinPointers   uint8 // data block pointers in the smallest super block
	MinElements   uint8 // elements in the smallest data block
	PageBits      uint8 // log2 of the elements in a data block page
}

// DataLayout represents a data layout message (type 0x0008).
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	// Compact
	CompactData []byte

	// Contiguous
	Address uint64
	Size    uint64

	// Chunked. ChunkDims has the dataset's rank; the trailing element size
	// dimension of the encoded form is held in ElementSize.
	ChunkDims      []uint32
	ElementSize    uint32
	ChunkIndexType ChunkIndexType
	ChunkIndexAddr uint64
	ChunkFlags     uint8

	// Single chunk index with filters
	FilteredChunkSize uint64
	FilterMask        uint32

	// Fixed array index
	PageBits uint8

	// Extensible array index
	ExtensibleArray ExtensibleArrayParams

	// Version 2 B-tree index
	NodeSize     uint32
	SplitPercent uint8
	MergePercent uint8
}

func (m *DataLayout) Type() Type { return TypeDataLayout }

// IsCompact returns true if data is stored in the object header.
func (m *DataLayout) IsCompact() bool {
	return m.Class == LayoutCompact
}

// IsContiguous returns true if data is stored contiguously.
func (m *DataLayout) IsContiguous() bool {
	return m.Class == LayoutContiguous
}

// IsChunked returns true if data is stored in chunks.
func (m *DataLayout) IsChunked() bool {
	return m.Class == LayoutChunked
}

// ChunkElements returns the number of elements in one full chunk.
func (m *DataLayout) ChunkElements() uint64 {
	n := uint64(1)
	for _, d := range m.ChunkDims {
		n *= uint64(d)
	}
	return n
}

func parseDataLayout(data []byte, r *binpkg.Reader) (*DataLayout, error) {
	c := newCursor("data layout", data, r)
	m := &DataLayout{Version: c.u8("version")}

	switch m.Version {
	case 1, 2:
		parseLayoutV1(c, m)
	case 3, 4:
		m.Class = LayoutClass(c.u8("class"))
		switch m.Class {
		case LayoutCompact:
			size := int(c.u16("compact size"))
			m.CompactData = c.bytes(size, "compact data")
		case LayoutContiguous:
			m.Address = c.offset("address")
			m.Size = c.length("size")
		case LayoutChunked:
			if m.Version == 3 {
				parseChunkedV3(c, m)
			} else {
				parseChunkedV4(c, m)
			}
		default:
			return nil, fmt.Errorf("unsupported layout class %s", m.Class)
		}
	default:
		return nil, fmt.Errorf("unsupported data layout version: %d", m.Version)
	}

	if c.err != nil {
		return nil, c.err
	}
	return m, nil
}

// parseLayoutV1 decodes versions 1 and 2, which carry the dimension list
// for every class.
func parseLayoutV1(c *cursor, m *DataLayout) {
	rank := int(c.u8("dimensionality"))
	m.Class = LayoutClass(c.u8("class"))
	c.skip(5, "reserved")

	if m.Class != LayoutCompact {
		m.Address = c.offset("address")
	}
	dims := make([]uint32, rank)
	for i := range dims {
		dims[i] = c.u32("dimension")
	}

	switch m.Class {
	case LayoutChunked:
		m.ChunkIndexAddr = m.Address
		m.Address = 0
		m.ElementSize = c.u32("element size")
		if rank > 0 {
			m.ChunkDims = dims[:rank-1]
		}
	case LayoutCompact:
		size := int(c.uint(4, "compact size"))
		m.CompactData = c.bytes(size, "compact data")
	case LayoutContiguous:
		m.Size = 1
		for _, d := range dims {
			m.Size *= uint64(d)
		}
	}
}

func parseChunkedV3(c *cursor, m *DataLayout) {
	rank := int(c.u8("dimensionality"))
	m.ChunkIndexAddr = c.offset("chunk index address")
	dims := make([]uint32, rank)
	for i := range dims {
		dims[i] = c.u32("chunk dimension")
	}
	if rank > 0 {
		m.ChunkDims = dims[:rank-1]
		m.ElementSize = dims[rank-1]
	}
}

func parseChunkedV4(c *cursor, m *DataLayout) {
	m.ChunkFlags = c.u8("flags")
	rank := int(c.u8("dimensionality"))
	width := int(c.u8("dimension size"))
	if width < 1 || width > 8 {
		c.fail("invalid chunk dimension size %d", width)
		return
	}
	dims := make([]uint32, rank)
	for i := range dims {
		dims[i] = uint32(c.uint(width, "chunk dimension"))
	}
	if rank > 0 {
		m.ChunkDims = dims[:rank-1]
		m.ElementSize = dims[rank-1]
	}

	m.ChunkIndexType = ChunkIndexType(c.u8("index type"))
	switch m.ChunkIndexType {
	case ChunkIndexSingle:
		if m.ChunkFlags&ChunkSingleIndexFilters != 0 {
			m.FilteredChunkSize = c.length("filtered chunk size")
			m.FilterMask = c.u32("filter mask")
		}
	case ChunkIndexImplicit:
	case ChunkIndexFixedArray:
		m.PageBits = c.u8("page bits")
	case ChunkIndexExtensibleArray:
		m.ExtensibleArray = ExtensibleArrayParams{
			MaxBits:       c.u8("max bits"),
			IndexElements: c.u8("index elements"),
			MinPointers:   c.u8("min pointers"),
			MinElements:   c.u8("min elements"),
			PageBits:      c.u8("page bits"),
		}
	case ChunkIndexBTreeV2:
		m.NodeSize = c.u32("node size")
		m.SplitPercent = c.u8("split percent")
		m.MergePercent = c.u8("merge percent")
	default:
		c.fail("unknown chunk index type %d", m.ChunkIndexType)
		return
	}
	m.ChunkIndexAddr = c.offset("chunk index address")
}
