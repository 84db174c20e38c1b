package message

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
)

const (
	attributeSharedType  = 0x01
	attributeSharedSpace = 0x02
)

// Attribute is a small named value stored in an object header.
type Attribute struct {
	Version       uint8
	Name          string
	Charset       CharacterSet
	DatatypeSize  uint16
	DataspaceSize uint16
	Datatype      *Datatype
	Dataspace     *Dataspace
	Data          []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

// parseAttribute decodes versions 1 to 3. Version 1 pads the name, the
// datatype and the dataspace to eight bytes each; version 3 adds the
// name's character set.
func parseAttribute(data []byte, r *binary.Reader) (*Attribute, error) {
	c := newCursor("attribute", data, r)
	m := &Attribute{Version: c.u8("version")}
	flags := c.u8("flags")
	if c.err == nil && (m.Version < 1 || m.Version > 3) {
		return nil, fmt.Errorf("unsupported attribute version %d", m.Version)
	}
	if flags&(attributeSharedType|attributeSharedSpace) != 0 {
		return nil, fmt.Errorf("attribute with shared datatype or dataspace: flags %#x", flags)
	}
	nameSize := int(c.u16("name size"))
	m.DatatypeSize = c.u16("datatype size")
	m.DataspaceSize = c.u16("dataspace size")
	if m.Version == 3 {
		m.Charset = CharacterSet(c.u8("name charset"))
	}

	field := func(n int, what string) []byte {
		b := c.bytes(n, what)
		if m.Version == 1 {
			c.align(8)
		}
		return b
	}
	name := field(nameSize, "name")
	typ := field(int(m.DatatypeSize), "datatype")
	space := field(int(m.DataspaceSize), "dataspace")
	if c.err != nil {
		return nil, c.err
	}
	if n := bytes.IndexByte(name, 0); n >= 0 {
		name = name[:n]
	}
	m.Name = string(name)

	var err error
	if m.Datatype, err = parseDatatype(typ, r); err != nil {
		return nil, fmt.Errorf("attribute %q: %w", m.Name, err)
	}
	if m.Dataspace, err = parseDataspace(space, r); err != nil {
		return nil, fmt.Errorf("attribute %q: %w", m.Name, err)
	}
	if c.remaining() > 0 {
		m.Data = c.bytes(c.remaining(), "value")
	}
	return m, nil
}

// Serialize writes a version 3 attribute message.
func (m *Attribute) Serialize(w *binary.Writer) error {
	if m.Datatype == nil || m.Dataspace == nil {
		return fmt.Errorf("attribute %q needs a datatype and a dataspace", m.Name)
	}
	e := &encoder{w: w}
	e.u8(3)
	e.u8(0)
	e.u16(uint16(len(m.Name) + 1))
	e.u16(uint16(m.Datatype.SerializedSize(w)))
	e.u16(uint16(m.Dataspace.SerializedSize(w)))
	e.u8(uint8(m.Charset))
	e.cstring(m.Name)
	if e.err != nil {
		return e.err
	}
	if err := m.Datatype.Serialize(w); err != nil {
		return err
	}
	if err := m.Dataspace.Serialize(w); err != nil {
		return err
	}
	e.bytes(m.Data)
	return e.err
}

func (m *Attribute) SerializedSize(w *binary.Writer) int { return measure(m, w) }

func NewAttribute(name string, datatype *Datatype, dataspace *Dataspace, data []byte) *Attribute {
	return &Attribute{Version: 3, Name: name, Datatype: datatype, Dataspace: dataspace, Data: data}
}
