package message

import (
	"bytes"
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
)

// DatatypeClass is the class of a datatype.
type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = 0
	ClassFloatPoint DatatypeClass = 1
	ClassTime       DatatypeClass = 2
	ClassString     DatatypeClass = 3
	ClassBitfield   DatatypeClass = 4
	ClassOpaque     DatatypeClass = 5
	ClassCompound   DatatypeClass = 6
	ClassReference  DatatypeClass = 7
	ClassEnum       DatatypeClass = 8
	ClassVarLen     DatatypeClass = 9
	ClassArray      DatatypeClass = 10
)

// ByteOrder is the byte order of a numeric type.
type ByteOrder uint8

const (
	OrderLE   ByteOrder = 0
	OrderBE   ByteOrder = 1
	OrderVAX  ByteOrder = 2
	OrderNone ByteOrder = 3
)

// StringPadding is how a fixed-length string fills its slot.
type StringPadding uint8

const (
	PadNullTerm StringPadding = 0
	PadNullPad  StringPadding = 1
	PadSpacePad StringPadding = 2
)

// CharacterSet is the encoding of a string type.
type CharacterSet uint8

const (
	CharsetASCII CharacterSet = 0
	CharsetUTF8  CharacterSet = 1
)

// Datatype describes the layout of one element.
type Datatype struct {
	Version   uint8
	Class     DatatypeClass
	ClassBits uint32
	Size      uint32

	ByteOrder ByteOrder

	// Fixed-point, bitfield, float and time types.
	BitOffset    uint16
	BitPrecision uint16
	Signed       bool
	Float        FloatFormat

	StringPadding StringPadding
	CharSet       CharacterSet

	Members []CompoundMember

	// BaseType is the element of an array and the integer type of an enum.
	ArrayDims  []uint32
	BaseType   *Datatype
	EnumNames  []string
	EnumValues [][]byte

	VarLenType     *Datatype
	IsVarLenString bool

	// Tag names the contents of an opaque type.
	Tag string
}

// FloatFormat places the fields of a floating-point value within its
// bit precision.
type FloatFormat struct {
	SignLocation     uint8
	ExponentLocation uint8
	ExponentSize     uint8
	MantissaLocation uint8
	MantissaSize     uint8
	ExponentBias     uint32
}

// CompoundMember is one field of a compound type.
type CompoundMember struct {
	Name       string
	ByteOffset uint32
	Type       *Datatype
}

func (m *Datatype) Type() Type { return TypeDatatype }

// IsString reports whether m is a fixed or variable-length string.
func (m *Datatype) IsString() bool {
	return m.Class == ClassString || (m.Class == ClassVarLen && m.IsVarLenString)
}

// maxDatatypeDepth bounds nesting of compound, array, enum and
// variable-length types.
const maxDatatypeDepth = 32

func parseDatatype(data []byte, r *binary.Reader) (*Datatype, error) {
	c := newCursor("datatype", data, r)
	dt := decodeDatatype(c, 0)
	if c.err != nil {
		return nil, c.err
	}
	return dt, nil
}

// decodeDatatype reads one datatype, including any nested types, and
// leaves c just past it.
func decodeDatatype(c *cursor, depth int) *Datatype {
	if depth > maxDatatypeDepth {
		c.fail("types nested deeper than %d", maxDatatypeDepth)
		return nil
	}
	head := c.u8("class and version")
	dt := &Datatype{
		Version:   head >> 4,
		Class:     DatatypeClass(head & 0x0F),
		ClassBits: uint32(c.uint(3, "class bits")),
		Size:      c.u32("size"),
	}
	if c.err != nil {
		return nil
	}
	if dt.Version < 1 || dt.Version > 4 {
		c.fail("unsupported datatype version %d", dt.Version)
		return nil
	}

	switch dt.Class {
	case ClassFixedPoint, ClassBitfield:
		dt.ByteOrder = ByteOrder(dt.ClassBits & 0x01)
		dt.Signed = dt.Class == ClassFixedPoint && dt.ClassBits&0x08 != 0
		dt.BitOffset = c.u16("bit offset")
		dt.BitPrecision = c.u16("bit precision")

	case ClassFloatPoint:
		dt.ByteOrder = ByteOrder(dt.ClassBits & 0x01)
		if dt.ClassBits&0x40 != 0 {
			dt.ByteOrder = OrderVAX
		}
		dt.BitOffset = c.u16("bit offset")
		dt.BitPrecision = c.u16("bit precision")
		dt.Float = FloatFormat{
			SignLocation:     uint8(dt.ClassBits >> 8),
			ExponentLocation: c.u8("exponent location"),
			ExponentSize:     c.u8("exponent size"),
			MantissaLocation: c.u8("mantissa location"),
			MantissaSize:     c.u8("mantissa size"),
			ExponentBias:     c.u32("exponent bias"),
		}

	case ClassTime:
		dt.ByteOrder = ByteOrder(dt.ClassBits & 0x01)
		dt.BitPrecision = c.u16("bit precision")

	case ClassString:
		dt.StringPadding = StringPadding(dt.ClassBits & 0x0F)
		dt.CharSet = CharacterSet(dt.ClassBits >> 4 & 0x0F)

	case ClassOpaque:
		tag := c.bytes(int(dt.ClassBits&0xFF), "opaque tag")
		if n := bytes.IndexByte(tag, 0); n >= 0 {
			tag = tag[:n]
		}
		dt.Tag = string(tag)

	case ClassCompound:
		n := int(dt.ClassBits & 0xFFFF)
		dt.Members = make([]CompoundMember, 0, min(n, c.remaining()))
		for range n {
			if c.err != nil {
				return nil
			}
			dt.Members = append(dt.Members, decodeMember(c, dt, depth))
		}

	case ClassReference:

	case ClassEnum:
		dt.BaseType = decodeDatatype(c, depth+1)
		if c.err != nil {
			return nil
		}
		dt.ByteOrder = dt.BaseType.ByteOrder
		dt.Signed = dt.BaseType.Signed
		n := int(dt.ClassBits & 0xFFFF)
		dt.EnumNames = make([]string, 0, min(n, c.remaining()))
		for range n {
			start := c.pos
			dt.EnumNames = append(dt.EnumNames, c.cstring("enum name"))
			if dt.Version < 3 {
				c.skip(padTo8(c.pos-start), "enum name padding")
			}
		}
		for range n {
			dt.EnumValues = append(dt.EnumValues, c.bytes(int(dt.BaseType.Size), "enum value"))
		}

	case ClassVarLen:
		dt.IsVarLenString = dt.ClassBits&0x0F == 1
		dt.StringPadding = StringPadding(dt.ClassBits >> 4 & 0x0F)
		dt.CharSet = CharacterSet(dt.ClassBits >> 8 & 0x0F)
		dt.VarLenType = decodeDatatype(c, depth+1)

	case ClassArray:
		rank := int(c.u8("array rank"))
		if dt.Version < 2 {
			c.skip(3, "reserved")
		}
		dt.ArrayDims = make([]uint32, rank)
		for i := range dt.ArrayDims {
			dt.ArrayDims[i] = c.u32("array dimension")
		}
		if dt.Version < 2 {
			c.skip(4*rank, "permutation")
		}
		dt.BaseType = decodeDatatype(c, depth+1)

	default:
		c.fail("unknown datatype class %d", dt.Class)
	}
	if c.err != nil {
		return nil
	}
	return dt
}

// decodeMember reads one compound member. Versions 1 and 2 pad names
// to eight bytes; version 1 may give the member array dimensions of its
// own; version 3 sizes the offset by the compound's size.
func decodeMember(c *cursor, parent *Datatype, depth int) CompoundMember {
	start := c.pos
	m := CompoundMember{Name: c.cstring("member name")}
	if parent.Version >= 3 {
		m.ByteOffset = uint32(c.uint(memberOffsetWidth(parent.Size), "member offset"))
		m.Type = decodeDatatype(c, depth+1)
		return m
	}

	c.skip(padTo8(c.pos-start), "member name padding")
	m.ByteOffset = c.u32("member offset")
	if parent.Version == 1 {
		rank := int(c.u8("member rank"))
		c.skip(3+4+4, "reserved")
		var dims [4]uint32
		for i := range dims {
			dims[i] = c.u32("member dimension")
		}
		m.Type = decodeDatatype(c, depth+1)
		if rank > 0 && m.Type != nil {
			m.Type = NewArrayDatatype(dims[:min(rank, 4)], m.Type)
		}
		return m
	}
	m.Type = decodeDatatype(c, depth+1)
	return m
}

// memberOffsetWidth is the fewest bytes that hold any offset into a
// compound of the given size.
func memberOffsetWidth(size uint32) int {
	return (bits.Len32(size)-1)/8 + 1
}

func padTo8(n int) int { return (8 - n%8) % 8 }

// Serialize writes the datatype. Compound and enum types use version 3,
// which drops name padding; arrays use version 2 and everything else
// version 1.
func (m *Datatype) Serialize(w *binary.Writer) error {
	e := &encoder{w: w}
	if err := m.encode(e); err != nil {
		return err
	}
	return e.err
}

func (m *Datatype) encode(e *encoder) error {
	version, classBits := uint8(1), m.ClassBits
	switch m.Class {
	case ClassCompound:
		version, classBits = 3, classBits&^0xFFFF|uint32(len(m.Members))
	case ClassEnum:
		version, classBits = 3, classBits&^0xFFFF|uint32(len(m.EnumNames))
	case ClassArray:
		version = 2
	case ClassOpaque:
		n := len(m.Tag) + 1
		classBits = classBits&^0xFF | uint32(n+padTo8(n))
	}
	e.u8(version<<4 | uint8(m.Class))
	e.uint(uint64(classBits), 3)
	e.u32(m.Size)

	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		e.u16(m.BitOffset)
		e.u16(m.BitPrecision)

	case ClassFloatPoint:
		f, precision := m.Float, m.BitPrecision
		if f.ExponentSize == 0 {
			f, precision = ieeeFloat(m.Size), uint16(m.Size*8)
		}
		e.u16(m.BitOffset)
		e.u16(precision)
		e.bytes([]byte{f.ExponentLocation, f.ExponentSize, f.MantissaLocation, f.MantissaSize})
		e.u32(f.ExponentBias)

	case ClassTime:
		e.u16(m.BitPrecision)

	case ClassString, ClassReference:

	case ClassOpaque:
		n := len(m.Tag) + 1
		e.cstring(m.Tag)
		e.zeros(padTo8(n))

	case ClassCompound:
		for _, mem := range m.Members {
			if mem.Type == nil {
				return fmt.Errorf("compound member %q has no type", mem.Name)
			}
			e.cstring(mem.Name)
			e.uint(uint64(mem.ByteOffset), memberOffsetWidth(m.Size))
			if err := mem.Type.encode(e); err != nil {
				return err
			}
		}

	case ClassEnum:
		if m.BaseType == nil || len(m.EnumValues) != len(m.EnumNames) {
			return fmt.Errorf("enum needs a base type and one value per name")
		}
		if err := m.BaseType.encode(e); err != nil {
			return err
		}
		for _, name := range m.EnumNames {
			e.cstring(name)
		}
		for _, v := range m.EnumValues {
			e.bytes(v)
		}

	case ClassVarLen:
		if m.VarLenType == nil {
			return fmt.Errorf("variable-length type has no base type")
		}
		return m.VarLenType.encode(e)

	case ClassArray:
		if m.BaseType == nil {
			return fmt.Errorf("array type has no base type")
		}
		e.u8(uint8(len(m.ArrayDims)))
		for _, d := range m.ArrayDims {
			e.u32(d)
		}
		return m.BaseType.encode(e)

	default:
		return fmt.Errorf("cannot serialize datatype class %d", m.Class)
	}
	return nil
}

func (m *Datatype) SerializedSize(w *binary.Writer) int { return measure(m, w) }

// ieeeFloat is the IEEE 754 layout for a 4 or 8 byte float.
func ieeeFloat(size uint32) FloatFormat {
	switch size {
	case 4:
		return FloatFormat{SignLocation: 31, ExponentLocation: 23, ExponentSize: 8, MantissaSize: 23, ExponentBias: 127}
	case 8:
		return FloatFormat{SignLocation: 63, ExponentLocation: 52, ExponentSize: 11, MantissaSize: 52, ExponentBias: 1023}
	}
	return FloatFormat{}
}

func NewFixedPointDatatype(size uint32, signed bool, order ByteOrder) *Datatype {
	classBits := uint32(order)
	if signed {
		classBits |= 0x08
	}
	return &Datatype{
		Version:      1,
		Class:        ClassFixedPoint,
		ClassBits:    classBits,
		Size:         size,
		ByteOrder:    order,
		BitPrecision: uint16(size * 8),
		Signed:       signed,
	}
}

// NewFloatDatatype returns an IEEE 754 float of 4 or 8 bytes with an
// implied leading mantissa bit.
func NewFloatDatatype(size uint32, order ByteOrder) *Datatype {
	f := ieeeFloat(size)
	return &Datatype{
		Version:      1,
		Class:        ClassFloatPoint,
		ClassBits:    uint32(order) | 2<<4 | uint32(f.SignLocation)<<8,
		Size:         size,
		ByteOrder:    order,
		BitPrecision: uint16(size * 8),
		Float:        f,
	}
}

func NewStringDatatype(size uint32, padding StringPadding, charset CharacterSet) *Datatype {
	return &Datatype{
		Version:       1,
		Class:         ClassString,
		ClassBits:     uint32(padding) | uint32(charset)<<4,
		Size:          size,
		StringPadding: padding,
		CharSet:       charset,
	}
}

// NewVarLenStringDatatype returns a variable-length string. Elements are
// stored as a length and a global heap ID.
func NewVarLenStringDatatype(charset CharacterSet) *Datatype {
	return &Datatype{
		Version:        1,
		Class:          ClassVarLen,
		ClassBits:      1 | uint32(charset)<<8,
		Size:           16,
		CharSet:        charset,
		VarLenType:     NewStringDatatype(1, PadNullTerm, charset),
		IsVarLenString: true,
	}
}

// NewVarLenSequenceDatatype returns a variable-length sequence of base.
// Each element is a 4-byte length followed by a global heap ID.
func NewVarLenSequenceDatatype(base *Datatype, offsetSize int) *Datatype {
	return &Datatype{
		Version:    1,
		Class:      ClassVarLen,
		Size:       uint32(4 + offsetSize + 4),
		VarLenType: base,
	}
}

func NewArrayDatatype(dims []uint32, base *Datatype) *Datatype {
	n := uint32(1)
	for _, d := range dims {
		n *= d
	}
	return &Datatype{
		Version:   2,
		Class:     ClassArray,
		Size:      n * base.Size,
		ArrayDims: dims,
		BaseType:  base,
	}
}
