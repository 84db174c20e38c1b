package layout

import (
	"fmt"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
	"github.com/robert-malhotra/go-gtt23/internal/filter"
)

// ChunkWriter stores chunks and the index structures that locate them.
type ChunkWriter struct {
	w          *binary.Writer
	chunkDims  []uint64
	elem       uint64
	chunkBytes uint64
	alloc      func(size int64) uint64
}

// NewChunkWriter creates a chunk writer. alloc reserves size bytes of the
// file and returns their address.
func NewChunkWriter(w *binary.Writer, chunkDims []uint32, elementSize uint32, alloc func(size int64) uint64) *ChunkWriter {
	cw := &ChunkWriter{
		w:         w,
		chunkDims: make([]uint64, len(chunkDims)),
		elem:      uint64(elementSize),
		alloc:     alloc,
	}
	for i, d := range chunkDims {
		cw.chunkDims[i] = uint64(d)
	}
	cw.chunkBytes = volume(cw.chunkDims) * cw.elem
	return cw
}

// ChunkBytes returns the unfiltered size of one chunk.
func (cw *ChunkWriter) ChunkBytes() uint64 {
	return cw.chunkBytes
}

func (cw *ChunkWriter) codec(filtered bool) recordCodec {
	if !filtered {
		return recordCodec{width: cw.w.OffsetSize()}
	}
	n := chunkSizeLen(cw.chunkBytes)
	return recordCodec{filtered: true, sizeLen: n, width: cw.w.OffsetSize() + n + 4}
}

// WriteChunks stores each chunk, encoded through pipeline when it is not
// empty, and returns their records in the same order.
func (cw *ChunkWriter) WriteChunks(chunks [][]byte, pipeline *filter.Pipeline) ([]ChunkRecord, error) {
	filtered := pipeline != nil && !pipeline.Empty()
	limit := uint64(1) << (8 * min(chunkSizeLen(cw.chunkBytes), 7))

	records := make([]ChunkRecord, len(chunks))
	for i, data := range chunks {
		if uint64(len(data)) != cw.chunkBytes {
			return nil, fmt.Errorf("chunk %d has %d bytes, want %d", i, len(data), cw.chunkBytes)
		}
		var mask uint32
		if filtered {
			var err error
			data, mask, err = pipeline.Encode(data)
			if err != nil {
				return nil, fmt.Errorf("encoding chunk %d: %w", i, err)
			}
			if uint64(len(data)) >= limit {
				return nil, fmt.Errorf("chunk %d encodes to %d bytes", i, len(data))
			}
		}
		addr := cw.alloc(int64(len(data)))
		if err := cw.w.At(int64(addr)).WriteBytes(data); err != nil {
			return nil, fmt.Errorf("writing chunk %d: %w", i, err)
		}
		records[i] = ChunkRecord{Address: addr, Size: uint64(len(data)), FilterMask: mask}
	}
	return records, nil
}

// SplitIntoChunks cuts data, an array of extent dims, into chunks of
// extent chunkDims in chunk grid order. Chunks on the far edge are padded
// with zeros to full size.
func SplitIntoChunks(data []byte, dims []uint64, chunkDims []uint32, elementSize uint32) ([][]byte, error) {
	if len(dims) != len(chunkDims) {
		return nil, fmt.Errorf("chunks have rank %d, data has rank %d", len(chunkDims), len(dims))
	}
	elem := uint64(elementSize)
	if need := volume(dims) * elem; uint64(len(data)) != need {
		return nil, fmt.Errorf("data holds %d bytes, extent needs %d", len(data), need)
	}

	rank := len(dims)
	size := make([]uint64, rank)
	grid := make([]uint64, rank)
	for d := range rank {
		if chunkDims[d] == 0 {
			return nil, fmt.Errorf("chunk dimension %d is zero", d)
		}
		size[d] = uint64(chunkDims[d])
		grid[d] = (dims[d] + size[d] - 1) / size[d]
	}

	chunkBytes := volume(size) * elem
	var chunks [][]byte
	origin := make([]uint64, rank)
	box := make([]uint64, rank)
	err := walk(grid, func(idx []uint64) error {
		for d := range rank {
			origin[d] = idx[d] * size[d]
			box[d] = min(size[d], dims[d]-origin[d])
		}
		chunk := make([]byte, chunkBytes)
		copyBox(chunk, size, make([]uint64, rank), data, dims, origin, box, elem)
		chunks = append(chunks, chunk)
		return nil
	})
	return chunks, err
}
