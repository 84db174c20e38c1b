package hdf5

import (
	"fmt"
	"path"

	"github.com/robert-malhotra/go-gtt23/internal/btree"
	"github.com/robert-malhotra/go-gtt23/internal/heap"
	"github.com/robert-malhotra/go-gtt23/internal/message"
	"github.com/robert-malhotra/go-gtt23/internal/object"
)

// Group is an HDF5 group.
type Group struct {
	file   *File
	path   string
	header *object.Header
	addr   uint64

	// Write side: the links and attributes the next header rewrite emits.
	parent       *Group
	pendingLinks []*message.Link
	pendingAttrs []*message.Attribute
	loaded       bool
}

// member is one named entry of a group, taken from a link message of a
// new-style group or from the symbol table of an old-style one.
type member struct {
	name   string
	kind   message.LinkType
	addr   uint64 // hard links
	target string // soft link path or external file
}

// target is an object reached through a link.
type target struct {
	addr   uint64
	header *object.Header
}

func (t target) isDataset() bool {
	return t.header.GetMessage(message.TypeDataspace) != nil
}

// Path returns the absolute path the group was opened by.
func (g *Group) Path() string {
	return g.path
}

// OpenGroup opens a group by path relative to g.
func (g *Group) OpenGroup(p string) (*Group, error) {
	obj, err := g.open(p)
	if err != nil {
		return nil, err
	}
	group, ok := obj.(*Group)
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, ErrNotGroup)
	}
	return group, nil
}

// OpenDataset opens a dataset by path relative to g.
func (g *Group) OpenDataset(p string) (*Dataset, error) {
	obj, err := g.open(p)
	if err != nil {
		return nil, err
	}
	ds, ok := obj.(*Dataset)
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, ErrNotDataset)
	}
	return ds, nil
}

// Members returns the names of the group's entries in storage order.
func (g *Group) Members() ([]string, error) {
	members, err := g.members()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.name
	}
	return names, nil
}

// Attrs returns the group's attribute names in storage order.
func (g *Group) Attrs() []string {
	return attrNames(g.header)
}

// Attr returns the named attribute, or nil.
func (g *Group) Attr(name string) *Attribute {
	return findAttr(g.header, name, g.file.reader)
}

// open returns the *Group or *Dataset at p, relative to g.
func (g *Group) open(p string) (any, error) {
	parts := splitPath(p)
	if len(parts) == 0 {
		return g, nil
	}
	t, err := g.resolve(parts, make(map[string]bool))
	if err != nil {
		return nil, err
	}

	full := path.Join(append([]string{g.path}, parts...)...)
	if t.isDataset() {
		return newDataset(g.file, full, t.header)
	}
	return &Group{file: g.file, path: full, header: t.header, addr: t.addr}, nil
}

// resolve walks parts down from g. seen holds the soft link targets
// followed so far, shared across nested resolutions to catch cycles.
func (g *Group) resolve(parts []string, seen map[string]bool) (target, error) {
	cur := g
	for i, name := range parts {
		t, err := cur.child(name, seen)
		if err != nil {
			return target{}, err
		}
		if i == len(parts)-1 {
			return t, nil
		}
		if t.isDataset() {
			return target{}, fmt.Errorf("%q: %w", name, ErrNotGroup)
		}
		cur = &Group{file: g.file, path: path.Join(cur.path, name), header: t.header, addr: t.addr}
	}
	return target{addr: g.addr, header: g.header}, nil
}

// child resolves the entry called name.
func (g *Group) child(name string, seen map[string]bool) (target, error) {
	members, err := g.members()
	if err != nil {
		return target{}, err
	}
	for _, m := range members {
		if m.name != name {
			continue
		}
		switch m.kind {
		case message.LinkTypeHard:
			return g.file.target(m.addr)
		case message.LinkTypeSoft:
			return g.file.follow(m.target, seen)
		case message.LinkTypeExternal:
			return target{}, fmt.Errorf("external link %q to %s: %w", name, m.target, ErrUnsupported)
		default:
			return target{}, fmt.Errorf("link %q has unknown type %d", name, m.kind)
		}
	}
	return target{}, fmt.Errorf("%q: %w", name, ErrNotFound)
}

// members lists the group's entries. Link messages take precedence over a
// symbol table.
func (g *Group) members() ([]member, error) {
	var members []member
	for _, msg := range g.header.GetMessages(message.TypeLink) {
		l := msg.(*message.Link)
		m := member{name: l.Name, kind: l.LinkType, addr: l.ObjectAddress, target: l.SoftLinkValue}
		if l.IsExternal() {
			m.target = l.ExternalFile
		}
		members = append(members, m)
	}
	if len(members) > 0 {
		return members, nil
	}

	st := g.symbolTable()
	if st == nil {
		return nil, nil
	}
	names, err := heap.ReadLocalHeap(g.file.reader, st.LocalHeapAddress)
	if err != nil {
		return nil, fmt.Errorf("reading local heap: %w", err)
	}
	entries, err := btree.ReadGroupEntries(g.file.reader, st.BTreeAddress, names)
	if err != nil {
		return nil, fmt.Errorf("reading group B-tree: %w", err)
	}
	for _, e := range entries {
		m := member{name: e.Name, kind: message.LinkTypeHard, addr: e.ObjectAddress}
		if e.LinkType == 1 {
			m.kind, m.target = message.LinkTypeSoft, e.SoftLinkValue
		}
		members = append(members, m)
	}
	return members, nil
}

// symbolTable returns the old-style symbol table of the group. The root
// group of a version 0 or 1 file may only have it in the superblock's
// scratch pad.
func (g *Group) symbolTable() *message.SymbolTable {
	if msg := g.header.GetMessage(message.TypeSymbolTable); msg != nil {
		return msg.(*message.SymbolTable)
	}
	if g.path == "/" && g.file.superblock.RootGroupBTreeAddress != 0 {
		return &message.SymbolTable{
			BTreeAddress:     g.file.superblock.RootGroupBTreeAddress,
			LocalHeapAddress: g.file.superblock.RootGroupLocalHeapAddress,
		}
	}
	return nil
}

// target reads the object header at addr.
func (f *File) target(addr uint64) (target, error) {
	h, err := object.Read(f.reader, addr)
	if err != nil {
		return target{}, fmt.Errorf("reading object header at %#x: %w", addr, err)
	}
	return target{addr: addr, header: h}, nil
}

// follow resolves a soft link. Targets are absolute paths.
func (f *File) follow(p string, seen map[string]bool) (target, error) {
	if len(seen) >= MaxLinkDepth {
		return target{}, ErrLinkDepth
	}
	if seen[p] {
		return target{}, fmt.Errorf("soft link cycle through %s", p)
	}
	seen[p] = true

	parts := splitPath(p)
	if len(parts) == 0 {
		return target{addr: f.root.addr, header: f.root.header}, nil
	}
	t, err := f.root.resolve(parts, seen)
	if err != nil {
		return target{}, fmt.Errorf("soft link to %s: %w", p, err)
	}
	return t, nil
}
