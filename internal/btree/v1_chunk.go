package btree

import (
	"fmt"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
)

// ChunkEntry is a chunk located through a version 1 B-tree.
type ChunkEntry struct {
	// Offset holds the element coordinates of the chunk's first element.
	Offset []uint64

	// FilterMask has bit i set when filter i was skipped for this chunk.
	FilterMask uint32

	// Size is the stored size of the chunk, after filtering.
	Size uint32

	// Address is where the chunk's bytes start.
	Address uint64
}

// ChunkIndex holds the chunks of one dataset.
type ChunkIndex struct {
	// NDims is the dataset's rank. Keys on disk carry one more coordinate,
	// always zero, for the element bytes.
	NDims int

	Entries []ChunkEntry
}

// ReadChunkIndex reads the version 1 B-tree chunk index at btreeAddr of a
// dataset of rank ndims. Entries come back in key order.
func ReadChunkIndex(r *binary.Reader, btreeAddr uint64, ndims int) (*ChunkIndex, error) {
	idx := &ChunkIndex{NDims: ndims}
	if err := idx.readNode(r, btreeAddr, -1); err != nil {
		return nil, err
	}
	return idx, nil
}

// readNode appends the chunks below the node at addr. parentLevel is the
// level of the node that pointed here, or -1 for the root; levels must
// shrink on the way down.
func (idx *ChunkIndex) readNode(r *binary.Reader, addr uint64, parentLevel int) error {
	h, nr, err := readNodeHeader(r, addr, nodeTypeChunk, parentLevel)
	if err != nil {
		return err
	}
	level, used := h.level, h.used

	// Keys and children alternate, with one more key than children. A key
	// is the chunk's stored size, its filter mask and ndims+1 coordinates.
	for i := range used + 1 {
		size, err := nr.ReadUint32()
		if err != nil {
			return fmt.Errorf("reading key %d: %w", i, err)
		}
		mask, err := nr.ReadUint32()
		if err != nil {
			return fmt.Errorf("reading key %d: %w", i, err)
		}
		offset := make([]uint64, idx.NDims+1)
		for d := range offset {
			if offset[d], err = nr.ReadUint64(); err != nil {
				return fmt.Errorf("reading key %d: %w", i, err)
			}
		}
		if i == used {
			break
		}

		child, err := nr.ReadOffset()
		if err != nil {
			return fmt.Errorf("reading child %d: %w", i, err)
		}
		if level > 0 {
			if err := idx.readNode(r, child, level); err != nil {
				return err
			}
			continue
		}
		if !r.IsUndefinedOffset(child) && size > 0 {
			idx.Entries = append(idx.Entries, ChunkEntry{
				Offset:     offset[:idx.NDims],
				FilterMask: mask,
				Size:       size,
				Address:    child,
			})
		}
	}
	return nil
}
