package layout

import (
	"fmt"
)

// DefaultPageBits is the page size, as a power of two, of fixed array
// data blocks. Larger arrays are split into pages.
const DefaultPageBits = 10

// fixedArrayHeaderSize is the encoded size of an FAHD block.
func fixedArrayHeaderSize(offsetSize, lengthSize int) int {
	return 4 + 4 + lengthSize + offsetSize + 4
}

// fixedArrayPrefixSize is the size of an FADB block before its elements,
// checksum included when the block is paged.
func fixedArrayPrefixSize(offsetSize int, bitmapLen int) int {
	return 4 + 2 + offsetSize + bitmapLen
}

func (c *Chunked) readFixedArray() error {
	addr := c.msg.ChunkIndexAddr
	hdr, err := readMeta(c.reader, addr, fixedArrayHeaderSize(c.reader.OffsetSize(), c.reader.LengthSize()), "FAHD")
	if err != nil {
		return err
	}
	if v := hdr.u8(); v != 0 {
		return fmt.Errorf("unsupported fixed array version %d", v)
	}
	client, width, pageBits := hdr.u8(), hdr.u8(), hdr.u8()
	n := hdr.length()
	dblk := hdr.addr()

	codec, err := newRecordCodec(client, width, c.reader.OffsetSize())
	if err != nil {
		return err
	}
	if n == 0 || c.reader.IsUndefinedOffset(dblk) {
		return nil
	}
	if pageBits > 32 {
		return fmt.Errorf("fixed array page bits %d out of range", pageBits)
	}

	pageElems := uint64(1) << pageBits
	if n <= pageElems {
		size := fixedArrayPrefixSize(c.reader.OffsetSize(), 0) + int(n)*codec.width + 4
		blk, err := readMeta(c.reader, dblk, size, "FADB")
		if err != nil {
			return err
		}
		if err := blk.prefix(client, addr); err != nil {
			return err
		}
		for i := range n {
			c.put(i, blk.record(codec, c.chunkBytes))
		}
		return nil
	}

	pages := (n + pageElems - 1) / pageElems
	bitmapLen := int((pages + 7) / 8)
	prefix := fixedArrayPrefixSize(c.reader.OffsetSize(), bitmapLen) + 4
	blk, err := readMeta(c.reader, dblk, prefix, "FADB")
	if err != nil {
		return err
	}
	if err := blk.prefix(client, addr); err != nil {
		return err
	}
	bitmap := blk.bytes(bitmapLen)

	pageAddr := dblk + uint64(prefix)
	for p := range pages {
		first := p * pageElems
		elems := min(pageElems, n-first)
		if bitSet(bitmap, p) {
			pg, err := readMeta(c.reader, pageAddr, int(elems)*codec.width+4, "")
			if err != nil {
				return fmt.Errorf("fixed array page %d: %w", p, err)
			}
			for i := range elems {
				c.put(first+i, pg.record(codec, c.chunkBytes))
			}
		}
		pageAddr += pageElems*uint64(codec.width) + 4
	}
	return nil
}

// WriteFixedArray writes a fixed array index over records, in chunk grid
// order, and returns the header address. Data blocks holding more than
// 2^pageBits records are paged.
func (cw *ChunkWriter) WriteFixedArray(records []ChunkRecord, filtered bool, pageBits uint8) (uint64, error) {
	codec := cw.codec(filtered)
	client := uint8(clientChunks)
	if filtered {
		client = clientFilteredChunks
	}
	n := uint64(len(records))
	pageElems := uint64(1) << pageBits
	hdrAddr := cw.alloc(int64(fixedArrayHeaderSize(cw.w.OffsetSize(), cw.w.LengthSize())))

	dblk := cw.w.UndefinedOffset()
	switch {
	case n == 0:
	case n <= pageElems:
		blk := newMetaWriter(cw.w, "FADB")
		blk.prefix(client, hdrAddr)
		for _, rec := range records {
			blk.record(codec, rec)
		}
		dblk = cw.alloc(int64(len(blk.buf) + 4))
		if err := blk.finish(dblk); err != nil {
			return 0, fmt.Errorf("writing fixed array data block: %w", err)
		}
	default:
		pages := (n + pageElems - 1) / pageElems
		blk := newMetaWriter(cw.w, "FADB")
		blk.prefix(client, hdrAddr)
		bitmap := make([]byte, (pages+7)/8)
		for p := range pages {
			bitmap[p/8] |= 0x80 >> (p % 8)
		}
		blk.bytes(bitmap)

		pageSize := pageElems*uint64(codec.width) + 4
		lastSize := (n-(pages-1)*pageElems)*uint64(codec.width) + 4
		dblk = cw.alloc(int64(uint64(len(blk.buf)+4) + (pages-1)*pageSize + lastSize))
		if err := blk.finish(dblk); err != nil {
			return 0, fmt.Errorf("writing fixed array data block: %w", err)
		}
		pageAddr := dblk + uint64(len(blk.buf))
		for p := range pages {
			pg := newMetaWriter(cw.w, "")
			for _, rec := range records[p*pageElems : min(n, (p+1)*pageElems)] {
				pg.record(codec, rec)
			}
			if err := pg.finish(pageAddr); err != nil {
				return 0, fmt.Errorf("writing fixed array page %d: %w", p, err)
			}
			pageAddr += pageSize
		}
	}

	hdr := newMetaWriter(cw.w, "FAHD")
	hdr.u8(0)
	hdr.u8(client)
	hdr.u8(uint8(codec.width))
	hdr.u8(pageBits)
	hdr.length(n)
	hdr.addr(dblk)
	if err := hdr.finish(hdrAddr); err != nil {
		return 0, fmt.Errorf("writing fixed array header: %w", err)
	}
	return hdrAddr, nil
}
