package message

import (
	"github.com/robert-malhotra/go-gtt23/internal/binary"
)

// UndefinedAddress marks an address field that points nowhere.
const UndefinedAddress = ^uint64(0)

// SymbolTable locates the B-tree and local heap of an old-style group.
type SymbolTable struct {
	BTreeAddress     uint64
	LocalHeapAddress uint64
}

func (m *SymbolTable) Type() Type { return TypeSymbolTable }

func parseSymbolTable(data []byte, r *binary.Reader) (*SymbolTable, error) {
	c := newCursor("symbol table", data, r)
	m := &SymbolTable{
		BTreeAddress:     c.offset("B-tree address"),
		LocalHeapAddress: c.offset("local heap address"),
	}
	return m, c.err
}

const (
	linkInfoTracksOrder = 0x01
	linkInfoIndexOrder  = 0x02
)

// LinkInfo describes how a new-style group stores its links. Groups that
// keep their links in the header leave the heap and index addresses
// undefined.
type LinkInfo struct {
	Version                uint8
	Flags                  uint8
	MaxCreationIndex       uint64
	FractalHeapAddr        uint64
	NameIndexBTreeAddr     uint64
	CreationOrderBTreeAddr uint64
}

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

func (m *LinkInfo) Serialize(w *binary.Writer) error {
	e := &encoder{w: w}
	e.u8(m.Version)
	e.u8(m.Flags)
	if m.Flags&linkInfoTracksOrder != 0 {
		e.uint(m.MaxCreationIndex, 8)
	}
	e.offset(m.FractalHeapAddr)
	e.offset(m.NameIndexBTreeAddr)
	if m.Flags&linkInfoIndexOrder != 0 {
		e.offset(m.CreationOrderBTreeAddr)
	}
	return e.err
}

func (m *LinkInfo) SerializedSize(w *binary.Writer) int { return measure(m, w) }

// NewLinkInfo returns the link info of a group whose links all live in
// its header.
func NewLinkInfo() *LinkInfo {
	return NewLinkInfoWithHeap(UndefinedAddress, UndefinedAddress)
}

func NewLinkInfoWithHeap(heapAddr, nameIndexAddr uint64) *LinkInfo {
	return &LinkInfo{FractalHeapAddr: heapAddr, NameIndexBTreeAddr: nameIndexAddr}
}

const (
	groupInfoPhaseChange = 0x01
	groupInfoEstimates   = 0x02
)

// GroupInfo carries the storage hints of a new-style group.
type GroupInfo struct {
	Version         uint8
	Flags           uint8
	MaxCompactLinks uint16
	MinDenseLinks   uint16
	EstNumEntries   uint16
	EstLinkNameLen  uint16
}

func (m *GroupInfo) Type() Type { return TypeGroupInfo }

func (m *GroupInfo) Serialize(w *binary.Writer) error {
	e := &encoder{w: w}
	e.u8(m.Version)
	e.u8(m.Flags)
	if m.Flags&groupInfoPhaseChange != 0 {
		e.u16(m.MaxCompactLinks)
		e.u16(m.MinDenseLinks)
	}
	if m.Flags&groupInfoEstimates != 0 {
		e.u16(m.EstNumEntries)
		e.u16(m.EstLinkNameLen)
	}
	return e.err
}

func (m *GroupInfo) SerializedSize(w *binary.Writer) int { return measure(m, w) }

// NewGroupInfo returns a group info message with every hint left at the
// library default.
func NewGroupInfo() *GroupInfo { return &GroupInfo{} }
