package btree

import (
	"fmt"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
	"github.com/robert-malhotra/go-gtt23/internal/heap"
)

// GroupEntry represents an entry in a v1 group B-tree.
type GroupEntry struct {
	Name          string
	ObjectAddress uint64
	LinkType      uint32 // 0=hard link, 1=soft link
	SoftLinkValue string // Target path for soft links
}

var (
	btreeSignature = []byte("TREE")
	snodSignature  = []byte("SNOD")
)

// Version 1 B-tree node types.
const (
	nodeTypeGroup = 0
	nodeTypeChunk = 1
)

// nodeHeader is the fixed part of a version 1 B-tree node.
type nodeHeader struct {
	level int
	used  int // children in the node
}

// readNodeHeader checks the node at addr and returns its header and a
// reader positioned at its first key.
func readNodeHeader(r *binary.Reader, addr uint64, nodeType uint8, parentLevel int) (nodeHeader, *binary.Reader, error) {
	nr := r.At(int64(addr))
	sig, err := nr.ReadBytes(4)
	if err != nil {
		return nodeHeader{}, nil, fmt.Errorf("reading btree signature: %w", err)
	}
	if string(sig) != string(btreeSignature) {
		return nodeHeader{}, nil, fmt.Errorf("invalid B-tree signature: got %q, expected \"TREE\"", string(sig))
	}
	head, err := nr.ReadBytes(4)
	if err != nil {
		return nodeHeader{}, nil, fmt.Errorf("reading btree node header: %w", err)
	}
	if head[0] != nodeType {
		return nodeHeader{}, nil, fmt.Errorf("unexpected B-tree node type: %d (expected %d)", head[0], nodeType)
	}
	h := nodeHeader{level: int(head[1]), used: int(head[2]) | int(head[3])<<8}
	if parentLevel >= 0 && h.level >= parentLevel {
		return nodeHeader{}, nil, fmt.Errorf("B-tree node at %#x has level %d under level %d", addr, h.level, parentLevel)
	}
	nr.Skip(int64(2 * r.OffsetSize())) // siblings
	return h, nr, nil
}

// ReadGroupEntries reads all entries from a v1 group B-tree.
func ReadGroupEntries(r *binary.Reader, btreeAddr uint64, localHeap *heap.LocalHeap) ([]GroupEntry, error) {
	var entries []GroupEntry
	if err := readGroupNode(r, btreeAddr, localHeap, -1, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func readGroupNode(r *binary.Reader, addr uint64, localHeap *heap.LocalHeap, parentLevel int, entries *[]GroupEntry) error {
	h, nr, err := readNodeHeader(r, addr, nodeTypeGroup, parentLevel)
	if err != nil {
		return err
	}
	// Keys are heap offsets of the largest name below each child. Only the
	// children matter here.
	for i := range h.used {
		nr.Skip(int64(r.LengthSize()))
		child, err := nr.ReadOffset()
		if err != nil {
			return fmt.Errorf("reading child %d: %w", i, err)
		}
		if h.level > 0 {
			err = readGroupNode(r, child, localHeap, h.level, entries)
		} else {
			err = readSymbolTableNode(r, child, localHeap, entries)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func readSymbolTableNode(r *binary.Reader, address uint64, localHeap *heap.LocalHeap, entries *[]GroupEntry) error {
	nr := r.At(int64(address))
	head, err := nr.ReadBytes(8)
	if err != nil {
		return fmt.Errorf("reading symbol table node: %w", err)
	}
	if string(head[:4]) != string(snodSignature) {
		return fmt.Errorf("invalid symbol table node signature: got %q, expected \"SNOD\"", string(head[:4]))
	}
	if head[4] != 1 {
		return fmt.Errorf("unsupported symbol table node version: %d", head[4])
	}
	n := int(head[6]) | int(head[7])<<8

	for i := range n {
		entry, err := readSymbolTableEntry(nr, localHeap)
		if err != nil {
			return fmt.Errorf("reading symbol table entry %d: %w", i, err)
		}
		if entry.Name != "" {
			*entries = append(*entries, entry)
		}
	}
	return nil
}

// cacheTypeSoftLink marks a symbol table entry whose scratch pad holds the
// heap offset of a soft link value.
const cacheTypeSoftLink uint32 = 2

func readSymbolTableEntry(r *binary.Reader, localHeap *heap.LocalHeap) (GroupEntry, error) {
	nameOffset, err := r.ReadOffset()
	if err != nil {
		return GroupEntry{}, err
	}
	objAddr, err := r.ReadOffset()
	if err != nil {
		return GroupEntry{}, err
	}
	cacheType, err := r.ReadUint32()
	if err != nil {
		return GroupEntry{}, err
	}
	r.Skip(4)
	scratch, err := r.ReadBytes(16)
	if err != nil {
		return GroupEntry{}, err
	}

	entry := GroupEntry{Name: localHeap.GetString(nameOffset), ObjectAddress: objAddr}
	if cacheType == cacheTypeSoftLink {
		linkOffset := uint64(scratch[0]) | uint64(scratch[1])<<8 | uint64(scratch[2])<<16 | uint64(scratch[3])<<24
		entry.LinkType = 1
		entry.SoftLinkValue = localHeap.GetString(linkOffset)
		entry.ObjectAddress = 0
	}
	return entry, nil
}
