package hdf5

import (
	"fmt"
	"path"

	"github.com/robert-malhotra/go-gtt23/internal/message"
	"github.com/robert-malhotra/go-gtt23/internal/object"
)

// CreateGroup creates a new subgroup with the given name.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if !g.file.writable {
		return nil, fmt.Errorf("file is not writable")
	}
	if name == "" {
		return nil, fmt.Errorf("group name cannot be empty")
	}

	messages := object.NewEmptyGroupHeader()
	headerSize := object.HeaderSizeWithMinChunk(g.file.writer, messages, object.MinGroupChunkSize)
	groupAddr := g.file.allocate(int64(headerSize))

	w := g.file.writer.At(int64(groupAddr))
	if _, err := object.WriteHeaderWithMinChunk(w, messages, object.MinGroupChunkSize); err != nil {
		return nil, fmt.Errorf("writing group header: %w", err)
	}

	if err := g.addLink(message.NewHardLink(name, groupAddr)); err != nil {
		return nil, fmt.Errorf("adding link to parent: %w", err)
	}

	return &Group{
		file:   g.file,
		path:   path.Join(g.path, name),
		addr:   groupAddr,
		parent: g,
		loaded: true,
	}, nil
}

// SetAttr attaches an attribute to the group, replacing any existing
// attribute of the same name. Supported values are those accepted by
// WithAttribute.
func (g *Group) SetAttr(name string, value interface{}) error {
	if !g.file.writable {
		return fmt.Errorf("file is not writable")
	}
	if name == "" {
		return fmt.Errorf("attribute name cannot be empty")
	}

	attr, err := createAttributeMessage(name, value)
	if err != nil {
		return fmt.Errorf("creating attribute %q: %w", name, err)
	}

	if err := g.loadPending(); err != nil {
		return err
	}

	replaced := false
	for i, existing := range g.pendingAttrs {
		if existing.Name == name {
			g.pendingAttrs[i] = attr
			replaced = true
			break
		}
	}
	if !replaced {
		g.pendingAttrs = append(g.pendingAttrs, attr)
	}

	return g.rewriteHeader()
}

// addLink adds a link message to this group and rewrites its header.
func (g *Group) addLink(link *message.Link) error {
	if !g.file.writable {
		return fmt.Errorf("file is not writable")
	}
	if err := g.loadPending(); err != nil {
		return err
	}

	for _, existing := range g.pendingLinks {
		if existing.Name == link.Name {
			return fmt.Errorf("link %q already exists in %s", link.Name, g.path)
		}
	}

	g.pendingLinks = append(g.pendingLinks, link)
	return g.rewriteHeader()
}

// loadPending seeds the pending link and attribute lists from the group's
// existing header, once.
func (g *Group) loadPending() error {
	if g.loaded {
		return nil
	}
	g.loaded = true

	if g.header == nil && g.file.reader != nil && g.addr != 0 {
		header, err := object.Read(g.file.reader, g.addr)
		if err != nil {
			return fmt.Errorf("loading group header: %w", err)
		}
		g.header = header
	}
	if g.header == nil {
		return nil
	}

	for _, msg := range g.header.GetMessages(message.TypeLink) {
		g.pendingLinks = append(g.pendingLinks, msg.(*message.Link))
	}
	for _, msg := range g.header.GetMessages(message.TypeAttribute) {
		g.pendingAttrs = append(g.pendingAttrs, msg.(*message.Attribute))
	}
	return nil
}

// rewriteHeader writes a fresh header holding all pending links and
// attributes, then repoints the parent (or the superblock for the root).
// Headers cannot grow in place, so the old header space is abandoned.
func (g *Group) rewriteHeader() error {
	messages := object.NewGroupHeader(g.pendingLinks)
	for _, attr := range g.pendingAttrs {
		messages = append(messages, attr)
	}

	headerSize := object.HeaderSizeWithMinChunk(g.file.writer, messages, object.MinGroupChunkSize)
	newAddr := g.file.allocate(int64(headerSize))

	w := g.file.writer.At(int64(newAddr))
	if _, err := object.WriteHeaderWithMinChunk(w, messages, object.MinGroupChunkSize); err != nil {
		return err
	}
	g.addr = newAddr

	if g.path == "/" {
		g.file.superblock.RootGroupAddress = newAddr
		return nil
	}
	return g.updateParentLink(newAddr)
}

func (g *Group) updateParentLink(newAddr uint64) error {
	parent := g.parent
	if parent == nil {
		if path.Dir(g.path) != "/" {
			return fmt.Errorf("parent of %s is not tracked: %w", g.path, ErrUnsupported)
		}
		parent = g.file.root
	}
	if err := parent.loadPending(); err != nil {
		return err
	}

	name := path.Base(g.path)
	for _, link := range parent.pendingLinks {
		if link.Name == name {
			link.ObjectAddress = newAddr
			return parent.rewriteHeader()
		}
	}
	return fmt.Errorf("link %q: %w", name, ErrNotFound)
}
