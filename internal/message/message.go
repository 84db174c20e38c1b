package message

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
)

// Type is a header message type code.
type Type uint16

const (
	TypeNIL                      Type = 0x0000
	TypeDataspace                Type = 0x0001
	TypeLinkInfo                 Type = 0x0002
	TypeDatatype                 Type = 0x0003
	TypeFillValueOld             Type = 0x0004
	TypeFillValue                Type = 0x0005
	TypeLink                     Type = 0x0006
	TypeExternalDataFiles        Type = 0x0007
	TypeDataLayout               Type = 0x0008
	TypeBogus                    Type = 0x0009
	TypeGroupInfo                Type = 0x000A
	TypeFilterPipeline           Type = 0x000B
	TypeAttribute                Type = 0x000C
	TypeObjectComment            Type = 0x000D
	TypeObjectModTime            Type = 0x000E
	TypeSharedMessageTable       Type = 0x000F
	TypeObjectHeaderContinuation Type = 0x0010
	TypeSymbolTable              Type = 0x0011
	TypeObjectModTimeOld         Type = 0x0012
	TypeBTreeKValues             Type = 0x0013
	TypeDriverInfo               Type = 0x0014
	TypeAttributeInfo            Type = 0x0015
	TypeObjectRefCount           Type = 0x0016
)

// Message is a decoded header message.
type Message interface {
	Type() Type
}

// Parse decodes the body of a message of type typ. r supplies the file's
// byte order and field widths. Types without a decoder come back as
// *Unknown.
func Parse(typ Type, data []byte, flags uint8, r *binary.Reader) (Message, error) {
	switch typ {
	case TypeDataspace:
		return parseDataspace(data, r)
	case TypeDatatype:
		return parseDatatype(data, r)
	case TypeDataLayout:
		return parseDataLayout(data, r)
	case TypeFilterPipeline:
		return parseFilterPipeline(data, r)
	case TypeFillValue:
		return parseFillValue(data, r)
	case TypeFillValueOld:
		return parseFillValueOld(data, r)
	case TypeAttribute:
		return parseAttribute(data, r)
	case TypeLink:
		return parseLink(data, r)
	case TypeSymbolTable:
		return parseSymbolTable(data, r)
	case TypeObjectHeaderContinuation:
		return ParseContinuation(data, r)
	}
	return &Unknown{typ: typ, data: data}, nil
}

// Unknown keeps the raw body of a message this package does not decode.
type Unknown struct {
	typ  Type
	data []byte
}

func (m *Unknown) Type() Type   { return m.typ }
func (m *Unknown) Data() []byte { return m.data }

// Continuation points at the next chunk of an object header.
type Continuation struct {
	Offset uint64
	Length uint64
}

func (m *Continuation) Type() Type { return TypeObjectHeaderContinuation }

// ParseContinuation decodes a continuation message: an address and a length.
func ParseContinuation(data []byte, r *binary.Reader) (*Continuation, error) {
	c := newCursor("continuation", data, r)
	m := &Continuation{Offset: c.offset("address"), Length: c.length("length")}
	return m, c.err
}

// cursor decodes the fields of one message body in order. The first
// error sticks and later reads return zero values.
type cursor struct {
	kind string
	data []byte
	pos  int
	r    *binary.Reader
	err  error
}

func newCursor(kind string, data []byte, r *binary.Reader) *cursor {
	return &cursor{kind: kind, data: data, r: r}
}

func (c *cursor) fail(format string, args ...any) {
	if c.err == nil {
		c.err = fmt.Errorf("%s message: %s", c.kind, fmt.Sprintf(format, args...))
	}
}

func (c *cursor) need(n int, what string) bool {
	if c.err != nil {
		return false
	}
	if n < 0 || c.pos+n > len(c.data) {
		c.fail("truncated reading %s", what)
		return false
	}
	return true
}

// uint decodes an n-byte unsigned integer in the file's byte order.
func (c *cursor) uint(n int, what string) uint64 {
	if !c.need(n, what) {
		return 0
	}
	order := c.r.ByteOrder()
	var v uint64
	switch n {
	case 1:
		v = uint64(c.data[c.pos])
	case 2:
		v = uint64(order.Uint16(c.data[c.pos:]))
	case 4:
		v = uint64(order.Uint32(c.data[c.pos:]))
	case 8:
		v = order.Uint64(c.data[c.pos:])
	default:
		for i := n - 1; i >= 0; i-- {
			v = v<<8 | uint64(c.data[c.pos+i])
		}
	}
	c.pos += n
	return v
}

func (c *cursor) u8(what string) uint8   { return uint8(c.uint(1, what)) }
func (c *cursor) u16(what string) uint16 { return uint16(c.uint(2, what)) }
func (c *cursor) u32(what string) uint32 { return uint32(c.uint(4, what)) }

func (c *cursor) offset(what string) uint64 { return c.uint(c.r.OffsetSize(), what) }
func (c *cursor) length(what string) uint64 { return c.uint(c.r.LengthSize(), what) }

// bytes returns a copy of the next n bytes.
func (c *cursor) bytes(n int, what string) []byte {
	if !c.need(n, what) {
		return nil
	}
	b := bytes.Clone(c.data[c.pos : c.pos+n])
	c.pos += n
	return b
}

func (c *cursor) skip(n int, what string) {
	if c.need(n, what) {
		c.pos += n
	}
}

// align skips to the next multiple of n from the start of the body.
func (c *cursor) align(n int) {
	if pad := (n - c.pos%n) % n; c.err == nil {
		c.pos = min(c.pos+pad, len(c.data))
	}
}

// cstring reads a null-terminated string and its terminator.
func (c *cursor) cstring(what string) string {
	if c.err != nil {
		return ""
	}
	end := bytes.IndexByte(c.data[c.pos:], 0)
	if end < 0 {
		c.fail("unterminated %s", what)
		return ""
	}
	s := string(c.data[c.pos : c.pos+end])
	c.pos += end + 1
	return s
}

func (c *cursor) remaining() int { return len(c.data) - c.pos }
