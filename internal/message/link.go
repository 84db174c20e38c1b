package message

import (
	"fmt"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
)

// LinkType is the kind of target a link names.
type LinkType uint8

const (
	LinkTypeHard     LinkType = 0
	LinkTypeSoft     LinkType = 1
	LinkTypeExternal LinkType = 64
)

// Link message flag bits. The low two bits give the width of the name
// length as a power of two.
const (
	linkNameWidthMask    = 0x03
	linkHasCreationOrder = 0x04
	linkHasType          = 0x08
	linkHasCharset       = 0x10
)

// Link is one entry of a new-style group.
type Link struct {
	Version       uint8
	LinkType      LinkType
	CreationOrder uint64
	Name          string
	Charset       uint8

	ObjectAddress uint64 // hard links
	SoftLinkValue string // soft links

	// External links name a path inside another file.
	ExternalFile string
	ExternalPath string
}

func (m *Link) Type() Type { return TypeLink }

func (m *Link) IsHard() bool     { return m.LinkType == LinkTypeHard }
func (m *Link) IsSoft() bool     { return m.LinkType == LinkTypeSoft }
func (m *Link) IsExternal() bool { return m.LinkType == LinkTypeExternal }

func parseLink(data []byte, r *binary.Reader) (*Link, error) {
	c := newCursor("link", data, r)
	m := &Link{Version: c.u8("version")}
	flags := c.u8("flags")
	if c.err == nil && m.Version != 1 {
		return nil, fmt.Errorf("unsupported link message version %d", m.Version)
	}

	if flags&linkHasType != 0 {
		m.LinkType = LinkType(c.u8("link type"))
	}
	if flags&linkHasCreationOrder != 0 {
		m.CreationOrder = c.uint(8, "creation order")
	}
	if flags&linkHasCharset != 0 {
		m.Charset = c.u8("charset")
	}
	nameLen := c.uint(1<<(flags&linkNameWidthMask), "name length")
	if nameLen > uint64(c.remaining()) {
		c.fail("name of %d bytes overruns the message", nameLen)
	}
	m.Name = string(c.bytes(int(nameLen), "name"))

	switch m.LinkType {
	case LinkTypeHard:
		m.ObjectAddress = c.offset("object address")
	case LinkTypeSoft:
		m.SoftLinkValue = string(c.bytes(int(c.u16("soft link length")), "soft link value"))
	case LinkTypeExternal:
		// A version and flags byte, then the file and the path, each
		// null-terminated.
		body := c.bytes(int(c.u16("external link length")), "external link value")
		if c.err == nil {
			ext := newCursor("external link", body, r)
			ext.skip(1, "flags")
			m.ExternalFile = ext.cstring("file name")
			m.ExternalPath = ext.cstring("object path")
			c.err = ext.err
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return m, nil
}

// nameWidth returns the flag bits and byte width for a name length.
func nameWidth(n int) (uint8, int) {
	switch {
	case n <= 0xFF:
		return 0, 1
	case n <= 0xFFFF:
		return 1, 2
	case uint64(n) <= 0xFFFFFFFF:
		return 2, 4
	}
	return 3, 8
}

// Serialize writes a version 1 link message. The type is stored only for
// links that are not hard links.
func (m *Link) Serialize(w *binary.Writer) error {
	e := &encoder{w: w}
	flags, width := nameWidth(len(m.Name))
	if m.LinkType != LinkTypeHard {
		flags |= linkHasType
	}
	e.u8(1)
	e.u8(flags)
	if m.LinkType != LinkTypeHard {
		e.u8(uint8(m.LinkType))
	}
	e.uint(uint64(len(m.Name)), width)
	e.bytes([]byte(m.Name))

	switch m.LinkType {
	case LinkTypeHard:
		e.offset(m.ObjectAddress)
	case LinkTypeSoft:
		e.u16(uint16(len(m.SoftLinkValue)))
		e.bytes([]byte(m.SoftLinkValue))
	case LinkTypeExternal:
		e.u16(uint16(len(m.ExternalFile) + len(m.ExternalPath) + 3))
		e.u8(0)
		e.cstring(m.ExternalFile)
		e.cstring(m.ExternalPath)
	default:
		return fmt.Errorf("cannot serialize link type %d", m.LinkType)
	}
	return e.err
}

func (m *Link) SerializedSize(w *binary.Writer) int { return measure(m, w) }

func NewHardLink(name string, objectAddress uint64) *Link {
	return &Link{Version: 1, LinkType: LinkTypeHard, Name: name, ObjectAddress: objectAddress}
}
