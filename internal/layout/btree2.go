package layout

import (
	"fmt"
	"math/bits"
)

// Version 2 B-tree record types for chunk indexes.
const (
	bt2TypeChunks         = 10
	bt2TypeFilteredChunks = 11
)

// Default creation parameters of version 2 B-tree chunk indexes.
const (
	DefaultBTreeNodeSize     = 2048
	DefaultBTreeSplitPercent = 100
	DefaultBTreeMergePercent = 40
)

// bt2Level describes the nodes at one depth of a version 2 B-tree.
type bt2Level struct {
	maxRecords uint64 // records in a full node
	cumRecords uint64 // records in a full subtree rooted here
	cumWidth   int    // bytes of a subtree record count in parent pointers
}

// bt2Geometry holds the node capacities that the format derives from the
// node and record sizes.
type bt2Geometry struct {
	nodeSize   int
	recordSize int
	offsetSize int
	countWidth int // bytes of a child's record count in parent pointers
	levels     []bt2Level
}

// limitWidth is the number of bytes needed to encode values up to n.
func limitWidth(n uint64) int {
	if n == 0 {
		return 1
	}
	return (bits.Len64(n)-1)/8 + 1
}

func newBT2Geometry(nodeSize, recordSize, offsetSize, depth int) (*bt2Geometry, error) {
	const prefix = 10 // signature, version, type, checksum
	if recordSize == 0 || nodeSize <= prefix+recordSize {
		return nil, fmt.Errorf("B-tree node size %d cannot hold %d-byte records", nodeSize, recordSize)
	}
	g := &bt2Geometry{nodeSize: nodeSize, recordSize: recordSize, offsetSize: offsetSize}
	leaf := uint64(nodeSize-prefix) / uint64(recordSize)
	g.countWidth = limitWidth(leaf)
	g.levels = append(g.levels, bt2Level{maxRecords: leaf, cumRecords: leaf})
	for d := 1; d <= depth; d++ {
		ptr := g.pointerSize(d)
		if nodeSize <= prefix+ptr+recordSize {
			return nil, fmt.Errorf("B-tree node size %d too small for depth %d", nodeSize, depth)
		}
		n := uint64(nodeSize-prefix-ptr) / uint64(recordSize+ptr)
		cum := (n+1)*g.levels[d-1].cumRecords + n
		if cum < g.levels[d-1].cumRecords {
			return nil, fmt.Errorf("B-tree depth %d overflows", depth)
		}
		g.levels = append(g.levels, bt2Level{maxRecords: n, cumRecords: cum, cumWidth: limitWidth(cum)})
	}
	return g, nil
}

// pointerSize is the size of a child pointer in a node at depth d.
func (g *bt2Geometry) pointerSize(d int) int {
	n := g.offsetSize + g.countWidth
	if d > 1 {
		n += g.levels[d-1].cumWidth
	}
	return n
}

func bt2HeaderSize(offsetSize, lengthSize int) int {
	return 4 + 1 + 1 + 4 + 2 + 2 + 1 + 1 + offsetSize + 2 + lengthSize + 4
}

// bt2Codec encodes chunk records with their scaled chunk coordinates.
type bt2Codec struct {
	filtered bool
	sizeLen  int
	rank     int
	width    int
}

func (cw *ChunkWriter) bt2Codec(filtered bool) bt2Codec {
	c := bt2Codec{filtered: filtered, rank: len(cw.chunkDims), width: cw.w.OffsetSize() + 8*len(cw.chunkDims)}
	if filtered {
		c.sizeLen = chunkSizeLen(cw.chunkBytes)
		c.width += c.sizeLen + 4
	}
	return c
}

// bt2Reader walks a version 2 B-tree chunk index.
type bt2Reader struct {
	c     *Chunked
	codec bt2Codec
	geom  *bt2Geometry
	typ   uint8
}

func (c *Chunked) readBTree2() error {
	addr := c.msg.ChunkIndexAddr
	hdr, err := readMeta(c.reader, addr, bt2HeaderSize(c.reader.OffsetSize(), c.reader.LengthSize()), "BTHD")
	if err != nil {
		return err
	}
	if v := hdr.u8(); v != 0 {
		return fmt.Errorf("unsupported B-tree version %d", v)
	}
	typ := hdr.u8()
	nodeSize := int(hdr.uint(4))
	recordSize := int(hdr.uint(2))
	depth := int(hdr.uint(2))
	hdr.uint(2) // split and merge percents
	root := hdr.addr()
	rootRecords := hdr.uint(2)
	total := hdr.length()

	codec := bt2Codec{rank: len(c.dims), width: c.reader.OffsetSize() + 8*len(c.dims)}
	switch typ {
	case bt2TypeChunks:
	case bt2TypeFilteredChunks:
		codec.filtered = true
		codec.sizeLen = chunkSizeLen(c.chunkBytes)
		codec.width += codec.sizeLen + 4
	default:
		return fmt.Errorf("B-tree has record type %d, want a chunk index", typ)
	}
	if recordSize != codec.width {
		return fmt.Errorf("B-tree records of %d bytes, want %d", recordSize, codec.width)
	}
	geom, err := newBT2Geometry(nodeSize, recordSize, c.reader.OffsetSize(), depth)
	if err != nil {
		return err
	}
	if total == 0 || c.reader.IsUndefinedOffset(root) {
		return nil
	}

	br := &bt2Reader{c: c, codec: codec, geom: geom, typ: typ}
	n, err := br.node(root, depth, rootRecords)
	if err != nil {
		return err
	}
	if n != total {
		return fmt.Errorf("B-tree holds %d records, header says %d", n, total)
	}
	return nil
}

// node reads the node at addr holding nrec records and returns the number
// of records in its subtree.
func (br *bt2Reader) node(addr uint64, depth int, nrec uint64) (uint64, error) {
	g := br.geom
	if nrec > g.levels[depth].maxRecords {
		return 0, fmt.Errorf("B-tree node at %#x claims %d records", addr, nrec)
	}
	sig, size := "BTLF", 6+int(nrec)*g.recordSize+4
	if depth > 0 {
		sig = "BTIN"
		size += int(nrec+1) * g.pointerSize(depth)
	}
	blk, err := readMeta(br.c.reader, addr, size, sig)
	if err != nil {
		return 0, err
	}
	if v := blk.u8(); v != 0 {
		return 0, fmt.Errorf("unsupported B-tree node version %d", v)
	}
	if t := blk.u8(); t != br.typ {
		return 0, fmt.Errorf("B-tree node at %#x has type %d, header says %d", addr, t, br.typ)
	}
	for range nrec {
		br.record(blk)
	}
	if depth == 0 {
		return nrec, nil
	}

	type child struct {
		addr, nrec uint64
	}
	children := make([]child, nrec+1)
	for i := range children {
		children[i].addr = blk.addr()
		children[i].nrec = blk.uint(g.countWidth)
		if depth > 1 {
			blk.uint(g.levels[depth-1].cumWidth)
		}
	}
	total := nrec
	for _, ch := range children {
		n, err := br.node(ch.addr, depth-1, ch.nrec)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (br *bt2Reader) record(blk *metaBlock) {
	c := br.c
	rec := ChunkRecord{Address: blk.addr(), Size: c.chunkBytes}
	if br.codec.filtered {
		rec.Size = blk.uint(br.codec.sizeLen)
		rec.FilterMask = uint32(blk.uint(4))
	}
	var linear uint64
	inside := true
	for d := range br.codec.rank {
		k := blk.uint(8)
		if k >= c.grid[d] {
			inside = false
		}
		linear = linear*c.grid[d] + k
	}
	if inside && !c.reader.IsUndefinedOffset(rec.Address) {
		c.put(linear, rec)
	}
}

// bt2Entry is a stored chunk with its scaled coordinates.
type bt2Entry struct {
	rec    ChunkRecord
	scaled []uint64
}

// WriteBTree2 writes a version 2 B-tree index over records, in chunk grid
// order for a grid of the given extent, and returns the header address.
// Chunks that were not stored are left out of the tree. The tree uses
// DefaultBTreeNodeSize and the default split and merge percents.
func (cw *ChunkWriter) WriteBTree2(records []ChunkRecord, grid []uint64, filtered bool) (uint64, error) {
	if len(grid) != len(cw.chunkDims) {
		return 0, fmt.Errorf("grid has rank %d, chunks have rank %d", len(grid), len(cw.chunkDims))
	}
	if volume(grid) != uint64(len(records)) {
		return 0, fmt.Errorf("%d records for a grid of %d chunks", len(records), volume(grid))
	}
	codec := cw.bt2Codec(filtered)
	typ := uint8(bt2TypeChunks)
	if filtered {
		typ = bt2TypeFilteredChunks
	}
	const nodeSize = DefaultBTreeNodeSize

	var entries []bt2Entry
	i := 0
	err := walk(grid, func(idx []uint64) error {
		if rec := records[i]; rec.stored() {
			entries = append(entries, bt2Entry{rec: rec, scaled: append([]uint64(nil), idx...)})
		}
		i++
		return nil
	})
	if err != nil {
		return 0, err
	}

	depth := 0
	geom, err := newBT2Geometry(nodeSize, codec.width, cw.w.OffsetSize(), depth)
	if err != nil {
		return 0, err
	}
	for uint64(len(entries)) > geom.levels[depth].cumRecords {
		depth++
		if geom, err = newBT2Geometry(nodeSize, codec.width, cw.w.OffsetSize(), depth); err != nil {
			return 0, err
		}
	}

	hdrAddr := cw.alloc(int64(bt2HeaderSize(cw.w.OffsetSize(), cw.w.LengthSize())))
	bw := &bt2Writer{cw: cw, codec: codec, geom: geom, typ: typ}
	root, rootRecords := cw.w.UndefinedOffset(), uint64(0)
	if len(entries) > 0 {
		if root, rootRecords, err = bw.node(entries, depth); err != nil {
			return 0, err
		}
	}

	hdr := newMetaWriter(cw.w, "BTHD")
	hdr.u8(0)
	hdr.u8(typ)
	hdr.uint(uint64(nodeSize), 4)
	hdr.uint(uint64(codec.width), 2)
	hdr.uint(uint64(depth), 2)
	hdr.u8(DefaultBTreeSplitPercent)
	hdr.u8(DefaultBTreeMergePercent)
	hdr.addr(root)
	hdr.uint(rootRecords, 2)
	hdr.length(uint64(len(entries)))
	if err := hdr.finish(hdrAddr); err != nil {
		return 0, fmt.Errorf("writing B-tree header: %w", err)
	}
	return hdrAddr, nil
}

type bt2Writer struct {
	cw    *ChunkWriter
	codec bt2Codec
	geom  *bt2Geometry
	typ   uint8
}

// node writes a subtree of the given depth holding entries, which must fit,
// and returns its address and the number of records in its root. Each node
// takes as few children as can hold its entries, filled evenly.
func (bw *bt2Writer) node(entries []bt2Entry, depth int) (uint64, uint64, error) {
	g := bw.geom
	n := uint64(len(entries))
	var own []bt2Entry
	var parts [][]bt2Entry
	if depth == 0 {
		own = entries
	} else {
		below := g.levels[depth-1].cumRecords
		k := (n + 1 + below) / (below + 1) // children needed
		k = max(k, 1)
		rest := n - (k - 1)
		start := uint64(0)
		for j := range k {
			size := rest / k
			if j < rest%k {
				size++
			}
			parts = append(parts, entries[start:start+size])
			start += size
			if j < k-1 {
				own = append(own, entries[start])
				start++
			}
		}
	}
	if uint64(len(own)) > g.levels[depth].maxRecords {
		return 0, 0, fmt.Errorf("B-tree node overflow at depth %d", depth)
	}

	sig := "BTLF"
	if depth > 0 {
		sig = "BTIN"
	}
	blk := newMetaWriter(bw.cw.w, sig)
	blk.u8(0)
	blk.u8(bw.typ)
	for _, e := range own {
		blk.addr(e.rec.Address)
		if bw.codec.filtered {
			blk.uint(e.rec.Size, bw.codec.sizeLen)
			blk.uint(uint64(e.rec.FilterMask), 4)
		}
		for _, k := range e.scaled {
			blk.uint(k, 8)
		}
	}
	for _, part := range parts {
		addr, nrec, err := bw.node(part, depth-1)
		if err != nil {
			return 0, 0, err
		}
		blk.addr(addr)
		blk.uint(nrec, g.countWidth)
		if depth > 1 {
			blk.uint(uint64(len(part)), g.levels[depth-1].cumWidth)
		}
	}

	// Nodes occupy their full size on disk. The checksum follows the used part.
	addr := bw.cw.alloc(int64(max(g.nodeSize, len(blk.buf)+4)))
	if err := blk.finish(addr); err != nil {
		return 0, 0, fmt.Errorf("writing B-tree node: %w", err)
	}
	return addr, uint64(len(own)), nil
}
