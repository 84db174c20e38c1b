package layout

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/go-gtt23/internal/message"
)

// DefaultExtensibleArray holds the extensible array parameters HDF5 uses
// for chunk indexes of datasets with one unlimited dimension.
var DefaultExtensibleArray = message.ExtensibleArrayParams{
	MaxBits:       32,
	IndexElements: 4,
	MinPointers:   4,
	MinElements:   16,
	PageBits:      10,
}

// eaSuper describes the data blocks of one super block.
type eaSuper struct {
	ndblks    uint64 // data blocks
	dblkElems uint64 // elements per data block
	startIdx  uint64 // first element, counted after the index block's own
	startDblk uint64 // data blocks in all earlier super blocks
}

// eaGeometry is the block structure an extensible array's parameters
// imply. The first iblkSblks super blocks have no block of their own:
// their data block addresses sit in the index block.
type eaGeometry struct {
	message.ExtensibleArrayParams
	sblks         []eaSuper
	iblkSblks     int
	iblkDblks     int
	iblkSblkAddrs int
	blockOffSize  int
	pageElems     uint64
}

func newEAGeometry(p message.ExtensibleArrayParams) (*eaGeometry, error) {
	if p.MinElements == 0 || p.MinElements&(p.MinElements-1) != 0 {
		return nil, fmt.Errorf("data block minimum %d is not a power of two", p.MinElements)
	}
	if p.MinPointers == 0 || p.MinPointers&(p.MinPointers-1) != 0 {
		return nil, fmt.Errorf("super block minimum %d is not a power of two", p.MinPointers)
	}
	minBits := bits.Len8(p.MinElements) - 1
	if p.MaxBits == 0 || p.MaxBits > 64 || int(p.MaxBits) < minBits {
		return nil, fmt.Errorf("invalid maximum element bits %d", p.MaxBits)
	}
	if p.PageBits > 32 {
		return nil, fmt.Errorf("invalid page bits %d", p.PageBits)
	}

	g := &eaGeometry{
		ExtensibleArrayParams: p,
		iblkSblks:             2 * (bits.Len8(p.MinPointers) - 1),
		iblkDblks:             2 * (int(p.MinPointers) - 1),
		blockOffSize:          (int(p.MaxBits) + 7) / 8,
		pageElems:             uint64(1) << p.PageBits,
	}
	var idx, dblk uint64
	for u := range 1 + int(p.MaxBits) - minBits {
		s := eaSuper{
			ndblks:    uint64(1) << (u / 2),
			dblkElems: uint64(p.MinElements) << ((u + 1) / 2),
			startIdx:  idx,
			startDblk: dblk,
		}
		g.sblks = append(g.sblks, s)
		idx += s.ndblks * s.dblkElems
		dblk += s.ndblks
	}
	if g.iblkSblks > len(g.sblks) {
		return nil, fmt.Errorf("super block minimum %d too large for %d super blocks", p.MinPointers, len(g.sblks))
	}
	g.iblkSblkAddrs = len(g.sblks) - g.iblkSblks
	return g, nil
}

// paged reports whether the data blocks of s are split into pages.
func (g *eaGeometry) paged(s eaSuper) bool {
	return s.dblkElems > g.pageElems
}

func (g *eaGeometry) pageInitLen(s eaSuper) int {
	if !g.paged(s) {
		return 0
	}
	return int((s.dblkElems/g.pageElems + 7) / 8)
}

func eaHeaderSize(offsetSize, lengthSize int) int {
	return 4 + 8 + 6*lengthSize + offsetSize + 4
}

func (g *eaGeometry) indexBlockSize(offsetSize, width int) int {
	return 4 + 2 + offsetSize + int(g.IndexElements)*width + (g.iblkDblks+g.iblkSblkAddrs)*offsetSize + 4
}

func (g *eaGeometry) superBlockSize(s eaSuper, offsetSize int) int {
	return 4 + 2 + offsetSize + g.blockOffSize + int(s.ndblks)*(g.pageInitLen(s)+offsetSize) + 4
}

// dataBlockPrefix is the size of an EADB block without its elements,
// checksum included.
func (g *eaGeometry) dataBlockPrefix(offsetSize int) int {
	return 4 + 2 + offsetSize + g.blockOffSize + 4
}

func (c *Chunked) readExtensibleArray() error {
	addr := c.msg.ChunkIndexAddr
	osz := c.reader.OffsetSize()
	hdr, err := readMeta(c.reader, addr, eaHeaderSize(osz, c.reader.LengthSize()), "EAHD")
	if err != nil {
		return err
	}
	if v := hdr.u8(); v != 0 {
		return fmt.Errorf("unsupported extensible array version %d", v)
	}
	client, width := hdr.u8(), hdr.u8()
	var p message.ExtensibleArrayParams
	p.MaxBits = hdr.u8()
	p.IndexElements = hdr.u8()
	p.MinElements = hdr.u8()
	p.MinPointers = hdr.u8()
	p.PageBits = hdr.u8()
	for range 6 {
		hdr.length()
	}
	iblk := hdr.addr()

	codec, err := newRecordCodec(client, width, osz)
	if err != nil {
		return err
	}
	g, err := newEAGeometry(p)
	if err != nil {
		return err
	}
	if c.reader.IsUndefinedOffset(iblk) {
		return nil
	}

	ib, err := readMeta(c.reader, iblk, g.indexBlockSize(osz, codec.width), "EAIB")
	if err != nil {
		return err
	}
	if err := ib.prefix(client, addr); err != nil {
		return err
	}
	for i := range uint64(p.IndexElements) {
		c.put(i, ib.record(codec, c.chunkBytes))
	}
	dblks := make([]uint64, g.iblkDblks)
	for i := range dblks {
		dblks[i] = ib.addr()
	}
	sblks := make([]uint64, g.iblkSblkAddrs)
	for i := range sblks {
		sblks[i] = ib.addr()
	}

	n := uint64(len(c.records))
	base := uint64(p.IndexElements)
	for u, s := range g.sblks {
		if base+s.startIdx >= n {
			break
		}
		var addrs []uint64
		var pageInit [][]byte
		if u < g.iblkSblks {
			addrs = dblks[s.startDblk : s.startDblk+s.ndblks]
		} else {
			sa := sblks[u-g.iblkSblks]
			if c.reader.IsUndefinedOffset(sa) {
				continue
			}
			addrs, pageInit, err = c.readSuperBlock(g, s, sa, client, addr)
			if err != nil {
				return fmt.Errorf("super block %d: %w", u, err)
			}
		}
		for j, da := range addrs {
			first := base + s.startIdx + uint64(j)*s.dblkElems
			if first >= n {
				break
			}
			if c.reader.IsUndefinedOffset(da) {
				continue
			}
			var bitmap []byte
			if pageInit != nil {
				bitmap = pageInit[j]
			}
			if err := c.readDataBlock(g, s, da, first, codec, client, addr, bitmap); err != nil {
				return fmt.Errorf("super block %d data block %d: %w", u, j, err)
			}
		}
	}
	return nil
}

func (c *Chunked) readSuperBlock(g *eaGeometry, s eaSuper, sa uint64, client uint8, hdr uint64) ([]uint64, [][]byte, error) {
	blk, err := readMeta(c.reader, sa, g.superBlockSize(s, c.reader.OffsetSize()), "EASB")
	if err != nil {
		return nil, nil, err
	}
	if err := blk.prefix(client, hdr); err != nil {
		return nil, nil, err
	}
	blk.uint(g.blockOffSize)

	var pageInit [][]byte
	if g.paged(s) {
		pageInit = make([][]byte, s.ndblks)
		for j := range pageInit {
			pageInit[j] = blk.bytes(g.pageInitLen(s))
		}
	}
	addrs := make([]uint64, s.ndblks)
	for j := range addrs {
		addrs[j] = blk.addr()
	}
	return addrs, pageInit, nil
}

// readDataBlock loads the records of one data block starting at element
// first. For paged blocks, bitmap selects the pages that were written; a
// nil bitmap means every page was.
func (c *Chunked) readDataBlock(g *eaGeometry, s eaSuper, da, first uint64, codec recordCodec, client uint8, hdr uint64, bitmap []byte) error {
	osz := c.reader.OffsetSize()
	prefix := g.dataBlockPrefix(osz)
	if !g.paged(s) {
		blk, err := readMeta(c.reader, da, prefix+int(s.dblkElems)*codec.width, "EADB")
		if err != nil {
			return err
		}
		if err := blk.prefix(client, hdr); err != nil {
			return err
		}
		blk.uint(g.blockOffSize)
		for i := range s.dblkElems {
			c.put(first+i, blk.record(codec, c.chunkBytes))
		}
		return nil
	}

	blk, err := readMeta(c.reader, da, prefix, "EADB")
	if err != nil {
		return err
	}
	if err := blk.prefix(client, hdr); err != nil {
		return err
	}
	pageSize := g.pageElems*uint64(codec.width) + 4
	for p := range s.dblkElems / g.pageElems {
		if bitmap != nil && !bitSet(bitmap, p) {
			continue
		}
		start := first + p*g.pageElems
		if start >= uint64(len(c.records)) {
			break
		}
		pg, err := readMeta(c.reader, da+uint64(prefix)+p*pageSize, int(pageSize), "")
		if err != nil {
			return fmt.Errorf("page %d: %w", p, err)
		}
		for i := range g.pageElems {
			c.put(start+i, pg.record(codec, c.chunkBytes))
		}
	}
	return nil
}

// WriteExtensibleArray writes an extensible array index over records, in
// chunk grid order, and returns the header address.
func (cw *ChunkWriter) WriteExtensibleArray(records []ChunkRecord, filtered bool, p message.ExtensibleArrayParams) (uint64, error) {
	g, err := newEAGeometry(p)
	if err != nil {
		return 0, err
	}
	codec := cw.codec(filtered)
	client := uint8(clientChunks)
	if filtered {
		client = clientFilteredChunks
	}
	osz := cw.w.OffsetSize()
	undef := cw.w.UndefinedOffset()
	at := func(i uint64) ChunkRecord {
		if i < uint64(len(records)) {
			return records[i]
		}
		return ChunkRecord{}
	}

	hdrAddr := cw.alloc(int64(eaHeaderSize(osz, cw.w.LengthSize())))
	iblkAddr := cw.alloc(int64(g.indexBlockSize(osz, codec.width)))

	dblks := make([]uint64, g.iblkDblks)
	sblks := make([]uint64, g.iblkSblkAddrs)
	for i := range dblks {
		dblks[i] = undef
	}
	for i := range sblks {
		sblks[i] = undef
	}

	var nsblks, sblkBytes, ndblks, dblkBytes uint64
	realized := uint64(p.IndexElements)
	base := uint64(p.IndexElements)
	n := uint64(len(records))
	for u, s := range g.sblks {
		if base+s.startIdx >= n {
			break
		}
		addrs := make([]uint64, s.ndblks)
		for j := range addrs {
			first := base + s.startIdx + uint64(j)*s.dblkElems
			if first >= n {
				addrs[j] = undef
				continue
			}
			da, size, err := cw.writeDataBlock(g, s, s.startIdx+uint64(j)*s.dblkElems, codec, client, hdrAddr, func(i uint64) ChunkRecord {
				return at(first + i)
			})
			if err != nil {
				return 0, fmt.Errorf("writing data block: %w", err)
			}
			addrs[j] = da
			ndblks++
			dblkBytes += size
			realized += s.dblkElems
		}

		if u < g.iblkSblks {
			copy(dblks[s.startDblk:], addrs)
			continue
		}
		blk := newMetaWriter(cw.w, "EASB")
		blk.prefix(client, hdrAddr)
		blk.uint(s.startIdx, g.blockOffSize)
		if g.paged(s) {
			bitmap := make([]byte, g.pageInitLen(s))
			for pg := range s.dblkElems / g.pageElems {
				bitmap[pg/8] |= 0x80 >> (pg % 8)
			}
			for _, da := range addrs {
				if da == undef {
					blk.bytes(make([]byte, len(bitmap)))
				} else {
					blk.bytes(bitmap)
				}
			}
		}
		for _, da := range addrs {
			blk.addr(da)
		}
		size := g.superBlockSize(s, osz)
		sa := cw.alloc(int64(size))
		if err := blk.finish(sa); err != nil {
			return 0, fmt.Errorf("writing super block %d: %w", u, err)
		}
		sblks[u-g.iblkSblks] = sa
		nsblks++
		sblkBytes += uint64(size)
	}

	ib := newMetaWriter(cw.w, "EAIB")
	ib.prefix(client, hdrAddr)
	for i := range uint64(p.IndexElements) {
		ib.record(codec, at(i))
	}
	for _, a := range dblks {
		ib.addr(a)
	}
	for _, a := range sblks {
		ib.addr(a)
	}
	if err := ib.finish(iblkAddr); err != nil {
		return 0, fmt.Errorf("writing index block: %w", err)
	}

	hdr := newMetaWriter(cw.w, "EAHD")
	hdr.u8(0)
	hdr.u8(client)
	hdr.u8(uint8(codec.width))
	hdr.u8(p.MaxBits)
	hdr.u8(p.IndexElements)
	hdr.u8(p.MinElements)
	hdr.u8(p.MinPointers)
	hdr.u8(p.PageBits)
	for _, v := range []uint64{nsblks, sblkBytes, ndblks, dblkBytes, n, realized} {
		hdr.length(v)
	}
	hdr.addr(iblkAddr)
	if err := hdr.finish(hdrAddr); err != nil {
		return 0, fmt.Errorf("writing extensible array header: %w", err)
	}
	return hdrAddr, nil
}

// writeDataBlock writes one data block whose element i is rec(i) and
// returns its address and size.
func (cw *ChunkWriter) writeDataBlock(g *eaGeometry, s eaSuper, offset uint64, codec recordCodec, client uint8, hdr uint64, rec func(i uint64) ChunkRecord) (uint64, uint64, error) {
	blk := newMetaWriter(cw.w, "EADB")
	blk.prefix(client, hdr)
	blk.uint(offset, g.blockOffSize)

	if !g.paged(s) {
		for i := range s.dblkElems {
			blk.record(codec, rec(i))
		}
		size := uint64(len(blk.buf) + 4)
		addr := cw.alloc(int64(size))
		return addr, size, blk.finish(addr)
	}

	pages := s.dblkElems / g.pageElems
	pageSize := g.pageElems*uint64(codec.width) + 4
	size := uint64(len(blk.buf)+4) + pages*pageSize
	addr := cw.alloc(int64(size))
	if err := blk.finish(addr); err != nil {
		return 0, 0, err
	}
	pageAddr := addr + uint64(len(blk.buf))
	for pg := range pages {
		w := newMetaWriter(cw.w, "")
		for i := range g.pageElems {
			w.record(codec, rec(pg*g.pageElems+i))
		}
		if err := w.finish(pageAddr); err != nil {
			return 0, 0, fmt.Errorf("page %d: %w", pg, err)
		}
		pageAddr += pageSize
	}
	return addr, size, nil
}
