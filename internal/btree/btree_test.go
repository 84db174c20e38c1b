package btree

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	binpkg "github.com/robert-malhotra/go-gtt23/internal/binary"
	"github.com/robert-malhotra/go-gtt23/internal/heap"
)

// image builds a little-endian file image with 8-byte offsets and lengths.
type image struct {
	buf []byte
}

// at pads the image to addr. Structures are written in address order.
func (im *image) at(addr int) *image {
	if len(im.buf) > addr {
		panic("image: write before end of data")
	}
	im.buf = append(im.buf, make([]byte, addr-len(im.buf))...)
	return im
}

func (im *image) put(vals ...any) *image {
	for _, v := range vals {
		switch v := v.(type) {
		case string:
			im.buf = append(im.buf, v...)
		case uint8:
			im.buf = append(im.buf, v)
		case uint16:
			im.buf = binary.LittleEndian.AppendUint16(im.buf, v)
		case uint32:
			im.buf = binary.LittleEndian.AppendUint32(im.buf, v)
		case uint64:
			im.buf = binary.LittleEndian.AppendUint64(im.buf, v)
		}
	}
	return im
}

// node writes a version 1 B-tree node header.
func (im *image) node(addr int, typ, level uint8, used uint16) *image {
	return im.at(addr).put("TREE", typ, level, used, ^uint64(0), ^uint64(0))
}

// chunkKey writes the key of a chunk in a 1-D dataset.
func (im *image) chunkKey(size, mask uint32, offset uint64) *image {
	return im.put(size, mask, offset, uint64(0))
}

func (im *image) reader() *binpkg.Reader {
	return binpkg.NewReader(bytes.NewReader(im.buf), binpkg.DefaultConfig())
}

func TestReadChunkIndex(t *testing.T) {
	// A root at level 1 over two leaves holding chunks [0, 10) and [10, 30).
	im := &image{}
	im.node(0, nodeTypeChunk, 1, 2).
		chunkKey(40, 0, 0).put(uint64(200)).
		chunkKey(40, 0, 10).put(uint64(400)).
		chunkKey(0, 0, 30)
	im.node(200, nodeTypeChunk, 0, 1).
		chunkKey(40, 0, 0).put(uint64(0x1000)).
		chunkKey(0, 0, 10)
	im.node(400, nodeTypeChunk, 0, 2).
		chunkKey(33, 1, 10).put(uint64(0x2000)).
		chunkKey(40, 0, 20).put(^uint64(0)).
		chunkKey(0, 0, 30)

	idx, err := ReadChunkIndex(im.reader(), 0, 1)
	if err != nil {
		t.Fatalf("ReadChunkIndex failed: %v", err)
	}
	want := []ChunkEntry{
		{Offset: []uint64{0}, Size: 40, Address: 0x1000},
		{Offset: []uint64{10}, Size: 33, FilterMask: 1, Address: 0x2000},
	}
	if len(idx.Entries) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(idx.Entries), len(want), idx.Entries)
	}
	for i, w := range want {
		g := idx.Entries[i]
		if g.Offset[0] != w.Offset[0] || g.Size != w.Size || g.FilterMask != w.FilterMask || g.Address != w.Address {
			t.Errorf("entry %d = %+v, want %+v", i, g, w)
		}
	}
}

func TestReadChunkIndexErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(*image)
		want  string
	}{
		{"signature", func(im *image) { im.put("XXXX", uint32(0)) }, "invalid B-tree signature"},
		{"group node", func(im *image) { im.node(0, nodeTypeGroup, 0, 0) }, "unexpected B-tree node type"},
		{"level loop", func(im *image) {
			im.node(0, nodeTypeChunk, 1, 1).chunkKey(0, 0, 0).put(uint64(0)).chunkKey(0, 0, 8)
		}, "has level 1 under level 1"},
		{"truncated", func(im *image) { im.node(0, nodeTypeChunk, 0, 3).chunkKey(4, 0, 0) }, "reading"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			im := &image{}
			tt.build(im)
			_, err := ReadChunkIndex(im.reader(), 0, 1)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("got error %v, want %q", err, tt.want)
			}
		})
	}
}

func TestReadGroupEntries(t *testing.T) {
	// Heap names "traces", "latest" and "/traces" at offsets 8, 16 and 24.
	names := "\x00\x00\x00\x00\x00\x00\x00\x00traces\x00\x00latest\x00\x00/traces\x00"
	im := &image{}
	im.at(0).put("HEAP", uint8(0), uint8(0), uint16(0), uint64(len(names)), ^uint64(0), uint64(64))
	im.at(64).put(names)

	// Root at level 1 with one leaf holding one symbol table node.
	im.node(128, nodeTypeGroup, 1, 1).put(uint64(0), uint64(256), uint64(16))
	im.node(256, nodeTypeGroup, 0, 1).put(uint64(0), uint64(384), uint64(16))
	im.at(384).put("SNOD", uint8(1), uint8(0), uint16(3))
	im.put(uint64(8), uint64(0x800), uint32(1), uint32(0), strings.Repeat("\x00", 16))
	im.put(uint64(16), uint64(0), uint32(cacheTypeSoftLink), uint32(0), uint32(24), strings.Repeat("\x00", 12))
	im.put(uint64(0), uint64(0), uint32(0), uint32(0), strings.Repeat("\x00", 16))

	r := im.reader()
	lh, err := heap.ReadLocalHeap(r, 0)
	if err != nil {
		t.Fatalf("ReadLocalHeap failed: %v", err)
	}
	entries, err := ReadGroupEntries(r, 128, lh)
	if err != nil {
		t.Fatalf("ReadGroupEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}
	if e := entries[0]; e.Name != "traces" || e.LinkType != 0 || e.ObjectAddress != 0x800 {
		t.Errorf("hard link entry = %+v", e)
	}
	if e := entries[1]; e.Name != "latest" || e.LinkType != 1 || e.SoftLinkValue != "/traces" {
		t.Errorf("soft link entry = %+v", e)
	}
}

func TestReadGroupEntriesErrors(t *testing.T) {
	im := &image{}
	im.node(0, nodeTypeGroup, 0, 1).put(uint64(0), uint64(128), uint64(0))
	im.at(128).put("SNOD", uint8(2), uint8(0), uint16(0))

	if _, err := ReadGroupEntries(im.reader(), 0, &heap.LocalHeap{}); err == nil || !strings.Contains(err.Error(), "version: 2") {
		t.Errorf("got error %v, want unsupported version", err)
	}
	if _, err := ReadGroupEntries(im.reader(), 128, &heap.LocalHeap{}); err == nil || !strings.Contains(err.Error(), "signature") {
		t.Errorf("got error %v, want bad signature", err)
	}
}
