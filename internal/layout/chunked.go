package layout

import (
	"fmt"
	"sync"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
	"github.com/robert-malhotra/go-gtt23/internal/btree"
	"github.com/robert-malhotra/go-gtt23/internal/filter"
	"github.com/robert-malhotra/go-gtt23/internal/message"
)

// Chunked reads data stored in chunks. The chunk index is read once, on
// first use, into a table with one record per chunk of the dataset's
// current extent. Chunks that were never written read as zeros.
type Chunked struct {
	msg        *message.DataLayout
	dims       []uint64
	chunkDims  []uint64
	grid       []uint64 // chunks per dimension
	elem       uint64
	chunkBytes uint64
	pipeline   *filter.Pipeline
	reader     *binary.Reader

	indexOnce sync.Once
	records   []ChunkRecord
	indexErr  error

	// The most recently decoded chunk. Batched reads walk a dataset in
	// order, so consecutive slices usually share a chunk.
	mu         sync.Mutex
	lastChunk  uint64
	lastData   []byte
	lastFilled bool
}

// NewChunked creates a chunked layout reader.
func NewChunked(
	msg *message.DataLayout,
	dataspace *message.Dataspace,
	datatype *message.Datatype,
	fp *message.FilterPipeline,
	reader *binary.Reader,
) (*Chunked, error) {
	dims := shape(dataspace)
	if len(msg.ChunkDims) != len(dims) {
		return nil, fmt.Errorf("chunks have rank %d, dataset has rank %d", len(msg.ChunkDims), len(dims))
	}

	pipeline, err := filter.NewPipeline(fp)
	if err != nil {
		return nil, fmt.Errorf("creating filter pipeline: %w", err)
	}

	c := &Chunked{
		msg:       msg,
		dims:      dims,
		chunkDims: make([]uint64, len(dims)),
		grid:      make([]uint64, len(dims)),
		elem:      uint64(datatype.Size),
		pipeline:  pipeline,
		reader:    reader,
	}
	for d, n := range msg.ChunkDims {
		if n == 0 {
			return nil, fmt.Errorf("chunk dimension %d is zero", d)
		}
		c.chunkDims[d] = uint64(n)
		c.grid[d] = (dims[d] + uint64(n) - 1) / uint64(n)
	}
	c.chunkBytes = volume(c.chunkDims) * c.elem
	return c, nil
}

func (c *Chunked) Class() message.LayoutClass {
	return message.LayoutChunked
}

// IndexType returns the kind of chunk index the dataset uses.
func (c *Chunked) IndexType() message.ChunkIndexType {
	return c.msg.ChunkIndexType
}

// Chunks returns the record of every chunk, indexed by the chunk's
// row-major position in the chunk grid.
func (c *Chunked) Chunks() ([]ChunkRecord, error) {
	records, err := c.index()
	if err != nil {
		return nil, err
	}
	return append([]ChunkRecord(nil), records...), nil
}

func (c *Chunked) Read() ([]byte, error) {
	return c.ReadSlice(make([]uint64, len(c.dims)), c.dims)
}

func (c *Chunked) ReadSlice(start, count []uint64) ([]byte, error) {
	if err := checkSelection(c.dims, start, count); err != nil {
		return nil, err
	}
	out := make([]byte, volume(count)*c.elem)
	if len(out) == 0 {
		return out, nil
	}
	records, err := c.index()
	if err != nil {
		return nil, err
	}

	rank := len(c.dims)
	first := make([]uint64, rank)
	span := make([]uint64, rank)
	for d := range rank {
		first[d] = start[d] / c.chunkDims[d]
		span[d] = (start[d]+count[d]-1)/c.chunkDims[d] - first[d] + 1
	}

	coord := make([]uint64, rank)
	from := make([]uint64, rank)
	box := make([]uint64, rank)
	inChunk := make([]uint64, rank)
	inOut := make([]uint64, rank)
	err = walk(span, func(idx []uint64) error {
		var linear uint64
		for d := range rank {
			coord[d] = first[d] + idx[d]
			linear = linear*c.grid[d] + coord[d]
		}
		rec := records[linear]
		if !rec.stored() {
			return nil
		}
		data, err := c.chunk(linear, rec, coord)
		if err != nil {
			return err
		}
		for d := range rank {
			origin := coord[d] * c.chunkDims[d]
			from[d] = max(origin, start[d])
			to := min(origin+c.chunkDims[d], start[d]+count[d])
			box[d] = to - from[d]
			inChunk[d] = from[d] - origin
			inOut[d] = from[d] - start[d]
		}
		copyBox(out, count, inOut, data, c.chunkDims, inChunk, box, c.elem)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// chunk returns the decoded bytes of one chunk.
func (c *Chunked) chunk(linear uint64, rec ChunkRecord, coord []uint64) ([]byte, error) {
	c.mu.Lock()
	if c.lastFilled && c.lastChunk == linear {
		data := c.lastData
		c.mu.Unlock()
		return data, nil
	}
	c.mu.Unlock()

	raw, err := c.reader.At(int64(rec.Address)).ReadBytes(int(rec.Size))
	if err != nil {
		return nil, fmt.Errorf("reading chunk %v at %#x: %w", coord, rec.Address, err)
	}
	data := raw
	if !c.pipeline.Empty() && !c.unfilteredEdge(coord) {
		data, err = c.pipeline.Decode(raw, rec.FilterMask)
		if err != nil {
			return nil, fmt.Errorf("decoding chunk %v: %w", coord, err)
		}
	}
	if uint64(len(data)) < c.chunkBytes {
		return nil, fmt.Errorf("chunk %v holds %d bytes, want %d", coord, len(data), c.chunkBytes)
	}

	c.mu.Lock()
	c.lastChunk, c.lastData, c.lastFilled = linear, data, true
	c.mu.Unlock()
	return data, nil
}

// unfilteredEdge reports whether the chunk at coord was stored without
// filters because it extends past the dataset's edge.
func (c *Chunked) unfilteredEdge(coord []uint64) bool {
	if c.msg.ChunkFlags&message.ChunkDontFilterPartial == 0 {
		return false
	}
	for d := range coord {
		if (coord[d]+1)*c.chunkDims[d] > c.dims[d] {
			return true
		}
	}
	return false
}

// index reads the chunk index into the record table.
func (c *Chunked) index() ([]ChunkRecord, error) {
	c.indexOnce.Do(func() {
		c.records = make([]ChunkRecord, volume(c.grid))
		if len(c.records) == 0 || c.reader.IsUndefinedOffset(c.msg.ChunkIndexAddr) {
			return
		}
		var err error
		switch c.msg.ChunkIndexType {
		case message.ChunkIndexBTreeV1:
			err = c.readBTree()
		case message.ChunkIndexSingle:
			err = c.readSingle()
		case message.ChunkIndexImplicit:
			err = c.readImplicit()
		case message.ChunkIndexFixedArray:
			err = c.readFixedArray()
		case message.ChunkIndexExtensibleArray:
			err = c.readExtensibleArray()
		case message.ChunkIndexBTreeV2:
			err = c.readBTree2()
		default:
			err = fmt.Errorf("unsupported chunk index %s", c.msg.ChunkIndexType)
		}
		if err != nil {
			c.indexErr = fmt.Errorf("reading %s chunk index: %w", c.msg.ChunkIndexType, err)
		}
	})
	return c.records, c.indexErr
}

// put stores the record of the chunk at linear, ignoring positions
// outside the current extent.
func (c *Chunked) put(linear uint64, rec ChunkRecord) {
	if linear < uint64(len(c.records)) && rec.stored() {
		c.records[linear] = rec
	}
}

func (c *Chunked) readBTree() error {
	idx, err := btree.ReadChunkIndex(c.reader, c.msg.ChunkIndexAddr, len(c.dims))
	if err != nil {
		return err
	}
	for _, e := range idx.Entries {
		var linear uint64
		inside := true
		for d, off := range e.Offset {
			k := off / c.chunkDims[d]
			if k >= c.grid[d] {
				inside = false
				break
			}
			linear = linear*c.grid[d] + k
		}
		if inside {
			c.put(linear, ChunkRecord{Address: e.Address, Size: uint64(e.Size), FilterMask: e.FilterMask})
		}
	}
	return nil
}

func (c *Chunked) readSingle() error {
	if len(c.records) != 1 {
		return fmt.Errorf("dataset spans %d chunks", len(c.records))
	}
	rec := ChunkRecord{Address: c.msg.ChunkIndexAddr, Size: c.chunkBytes}
	if c.msg.ChunkFlags&message.ChunkSingleIndexFilters != 0 {
		rec.Size = c.msg.FilteredChunkSize
		rec.FilterMask = c.msg.FilterMask
	}
	c.put(0, rec)
	return nil
}

func (c *Chunked) readImplicit() error {
	if !c.pipeline.Empty() {
		return fmt.Errorf("implicit index cannot hold filtered chunks")
	}
	for i := range c.records {
		c.put(uint64(i), ChunkRecord{Address: c.msg.ChunkIndexAddr + uint64(i)*c.chunkBytes, Size: c.chunkBytes})
	}
	return nil
}
