package message

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	binpkg "github.com/robert-malhotra/go-gtt23/internal/binary"
)

// memBuffer is a growable io.WriterAt.
type memBuffer struct {
	buf []byte
}

func (b *memBuffer) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(b.buf) {
		b.buf = append(b.buf, make([]byte, end-len(b.buf))...)
	}
	return copy(b.buf[off:], p), nil
}

func testReader(data []byte) *binpkg.Reader {
	return binpkg.NewReader(bytes.NewReader(data), binpkg.DefaultConfig())
}

func testWriter(buf *memBuffer) *binpkg.Writer {
	return binpkg.NewWriter(buf, binpkg.DefaultConfig())
}

// roundTrip serializes msg, checks the predicted size and parses it back.
func roundTrip(t *testing.T, msg Serializable) Message {
	t.Helper()
	var buf memBuffer
	w := testWriter(&buf)
	if err := msg.Serialize(w); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if got, want := int(w.Pos()), msg.SerializedSize(w); got != want {
		t.Fatalf("wrote %d bytes, SerializedSize says %d", got, want)
	}
	parsed, err := Parse(msg.Type(), buf.buf, 0, testReader(buf.buf))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Type() != msg.Type() {
		t.Fatalf("parsed type %d, want %d", parsed.Type(), msg.Type())
	}
	return parsed
}

func TestDataspaceRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		ds        *Dataspace
		elements  uint64
		resizable bool
	}{
		{"scalar", NewScalarDataspace(), 1, false},
		{"null", &Dataspace{Version: 2, SpaceType: DataspaceNull}, 0, false},
		{"1d", NewDataspace([]uint64{100}, nil), 100, false},
		{"2d", NewDataspace([]uint64{10, 20}, nil), 200, false},
		{"bounded", NewDataspace([]uint64{10}, []uint64{100}), 10, false},
		{"unlimited", NewDataspace([]uint64{7}, []uint64{Unlimited}), 7, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundTrip(t, tt.ds).(*Dataspace)
			if got.SpaceType != tt.ds.SpaceType || got.Rank != tt.ds.Rank {
				t.Fatalf("got type %d rank %d, want type %d rank %d",
					got.SpaceType, got.Rank, tt.ds.SpaceType, tt.ds.Rank)
			}
			if n := got.NumElements(); n != tt.elements {
				t.Errorf("NumElements() = %d, want %d", n, tt.elements)
			}
			if got.Resizable() != tt.resizable {
				t.Errorf("Resizable() = %v, want %v", got.Resizable(), tt.resizable)
			}
			for i, d := range tt.ds.MaxDims {
				if got.MaxDims[i] != d {
					t.Errorf("MaxDims[%d] = %d, want %d", i, got.MaxDims[i], d)
				}
			}
		})
	}
}

func TestDataspaceVersion1(t *testing.T) {
	// version 1 has four reserved bytes before the dimensions
	data := []byte{1, 2, 0, 0, 0, 0, 0, 0}
	data = binary.LittleEndian.AppendUint64(data, 3)
	data = binary.LittleEndian.AppendUint64(data, 4)
	msg, err := Parse(TypeDataspace, data, 0, testReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ds := msg.(*Dataspace)
	if ds.SpaceType != DataspaceSimple || ds.NumElements() != 12 {
		t.Fatalf("got type %d with %d elements, want simple with 12", ds.SpaceType, ds.NumElements())
	}

	if _, err := Parse(TypeDataspace, data[:12], 0, testReader(data)); err == nil {
		t.Fatal("expected error for truncated dimensions")
	}
}

func TestDatatypeRoundTrip(t *testing.T) {
	u32 := NewFixedPointDatatype(4, false, OrderLE)
	tests := []struct {
		name string
		dt   *Datatype
	}{
		{"int32", NewFixedPointDatatype(4, true, OrderLE)},
		{"uint64", NewFixedPointDatatype(8, false, OrderLE)},
		{"float32", NewFloatDatatype(4, OrderLE)},
		{"float64", NewFloatDatatype(8, OrderLE)},
		{"string", NewStringDatatype(16, PadNullTerm, CharsetUTF8)},
		{"array", NewArrayDatatype([]uint32{2, 3}, u32)},
		{"compound", compound(12,
			CompoundMember{Name: "id", ByteOffset: 0, Type: u32},
			CompoundMember{Name: "time", ByteOffset: 4, Type: NewFloatDatatype(8, OrderLE)},
		)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundTrip(t, tt.dt).(*Datatype)
			if got.Class != tt.dt.Class || got.Size != tt.dt.Size {
				t.Fatalf("got class %d size %d, want class %d size %d",
					got.Class, got.Size, tt.dt.Class, tt.dt.Size)
			}
			switch got.Class {
			case ClassFixedPoint:
				if got.Signed != tt.dt.Signed {
					t.Errorf("Signed = %v, want %v", got.Signed, tt.dt.Signed)
				}
			case ClassString:
				if got.StringPadding != PadNullTerm || got.CharSet != CharsetUTF8 {
					t.Errorf("got padding %d charset %d", got.StringPadding, got.CharSet)
				}
			case ClassArray:
				if len(got.ArrayDims) != 2 || got.ArrayDims[0] != 2 || got.ArrayDims[1] != 3 {
					t.Errorf("ArrayDims = %v, want [2 3]", got.ArrayDims)
				}
				if got.BaseType == nil || got.BaseType.Size != 4 {
					t.Errorf("BaseType = %+v, want 4-byte integer", got.BaseType)
				}
			case ClassCompound:
				if len(got.Members) != len(tt.dt.Members) {
					t.Fatalf("got %d members, want %d", len(got.Members), len(tt.dt.Members))
				}
				for i, m := range tt.dt.Members {
					g := got.Members[i]
					if g.Name != m.Name || g.ByteOffset != m.ByteOffset || g.Type.Class != m.Type.Class {
						t.Errorf("member %d = %s@%d, want %s@%d", i, g.Name, g.ByteOffset, m.Name, m.ByteOffset)
					}
				}
			}
		})
	}
}

func TestLinkRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		link *Link
	}{
		{"hard", NewHardLink("traces", 0x1234)},
		{"soft", &Link{Version: 1, LinkType: LinkTypeSoft, Name: "latest", SoftLinkValue: "/traces/circuits"}},
		{"external", &Link{Version: 1, LinkType: LinkTypeExternal, Name: "remote", ExternalFile: "other.h5", ExternalPath: "/traces"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundTrip(t, tt.link).(*Link)
			if got.Name != tt.link.Name || got.LinkType != tt.link.LinkType {
				t.Fatalf("got %s link %q, want %s link %q", linkKind(got), got.Name, linkKind(tt.link), tt.link.Name)
			}
			switch {
			case got.IsHard() && got.ObjectAddress != tt.link.ObjectAddress:
				t.Errorf("ObjectAddress = %#x, want %#x", got.ObjectAddress, tt.link.ObjectAddress)
			case got.IsSoft() && got.SoftLinkValue != tt.link.SoftLinkValue:
				t.Errorf("SoftLinkValue = %q, want %q", got.SoftLinkValue, tt.link.SoftLinkValue)
			case got.IsExternal() && (got.ExternalFile != tt.link.ExternalFile || got.ExternalPath != tt.link.ExternalPath):
				t.Errorf("external target = %s:%s", got.ExternalFile, got.ExternalPath)
			}
		})
	}
}

func linkKind(l *Link) string {
	switch {
	case l.IsHard():
		return "hard"
	case l.IsSoft():
		return "soft"
	case l.IsExternal():
		return "external"
	}
	return "unknown"
}

func TestFilterPipelineRoundTrip(t *testing.T) {
	fp := NewFilterPipeline(
		FilterInfo{ID: FilterShuffle, ClientData: []uint32{4}},
		FilterInfo{ID: FilterDeflate, ClientData: []uint32{6}},
		FilterInfo{ID: FilterFletcher32, Flags: 0x01},
	)
	got := roundTrip(t, fp).(*FilterPipeline)
	if len(got.Filters) != 3 {
		t.Fatalf("got %d filters, want 3", len(got.Filters))
	}
	for i, f := range fp.Filters {
		g := got.Filters[i]
		if g.ID != f.ID || len(g.ClientData) != len(f.ClientData) {
			t.Errorf("filter %d = %d%v, want %d%v", i, g.ID, g.ClientData, f.ID, f.ClientData)
		}
	}
	if !got.HasCompression() || got.HasFilter(FilterZstd) {
		t.Error("expected deflate compression and no zstd")
	}
	if !got.Filters[2].IsOptional() {
		t.Error("fletcher32 should be optional")
	}
}

func TestAttributeRoundTrip(t *testing.T) {
	data := binary.LittleEndian.AppendUint32(nil, 42)
	attr := NewAttribute("n_records", NewFixedPointDatatype(4, false, OrderLE), NewScalarDataspace(), data)
	got := roundTrip(t, attr).(*Attribute)
	if got.Name != "n_records" {
		t.Errorf("Name = %q", got.Name)
	}
	if got.Datatype == nil || got.Datatype.Size != 4 || got.Dataspace == nil || !got.Dataspace.IsScalar() {
		t.Fatalf("got datatype %+v dataspace %+v", got.Datatype, got.Dataspace)
	}
	if !bytes.Equal(got.Data, data) {
		t.Errorf("Data = %v, want %v", got.Data, data)
	}
}

func TestFillValue(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		defined bool
		value   []byte
		wantErr bool
	}{
		{"v2 undefined", []byte{2, 1, 0, 0}, false, nil, false},
		{"v2 defined", []byte{2, 1, 0, 1, 2, 0, 0, 0, 0xAB, 0xCD}, true, []byte{0xAB, 0xCD}, false},
		{"v3 default", []byte{3, 0x01}, true, nil, false},
		{"v3 undefined", []byte{3, 0x10}, false, nil, false},
		{"v3 value", []byte{3, 0x20, 1, 0, 0, 0, 7}, true, []byte{7}, false},
		{"v3 truncated", []byte{3, 0x20, 4, 0, 0, 0, 7}, false, nil, true},
		{"v1 undefined with size", []byte{1, 1, 0, 0, 1, 0, 0, 0, 5}, false, []byte{5}, false},
		{"bad version", []byte{9, 0}, false, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse(TypeFillValue, tt.data, 0, testReader(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			fv := msg.(*FillValue)
			if fv.IsDefined != tt.defined || !bytes.Equal(fv.Value, tt.value) {
				t.Errorf("got defined=%v value=%v, want defined=%v value=%v", fv.IsDefined, fv.Value, tt.defined, tt.value)
			}
		})
	}
}

func TestParseDispatch(t *testing.T) {
	addrs := binary.LittleEndian.AppendUint64(nil, 0x100)
	addrs = binary.LittleEndian.AppendUint64(addrs, 0x200)
	r := testReader(addrs)

	msg, err := Parse(TypeSymbolTable, addrs, 0, r)
	if err != nil {
		t.Fatalf("symbol table: %v", err)
	}
	if st := msg.(*SymbolTable); st.BTreeAddress != 0x100 || st.LocalHeapAddress != 0x200 {
		t.Errorf("symbol table = %+v", st)
	}

	msg, err = Parse(TypeObjectHeaderContinuation, addrs, 0, r)
	if err != nil {
		t.Fatalf("continuation: %v", err)
	}
	if c := msg.(*Continuation); c.Offset != 0x100 || c.Length != 0x200 {
		t.Errorf("continuation = %+v", c)
	}

	msg, err = Parse(TypeObjectModTime, []byte{1, 2, 3}, 0, r)
	if err != nil {
		t.Fatalf("unknown: %v", err)
	}
	u, ok := msg.(*Unknown)
	if !ok || u.Type() != TypeObjectModTime || !bytes.Equal(u.Data(), []byte{1, 2, 3}) {
		t.Errorf("got %#v, want Unknown wrapper", msg)
	}
}

func TestParseTruncated(t *testing.T) {
	tests := []struct {
		typ  Type
		data []byte
	}{
		{TypeDataspace, []byte{2, 1}},
		{TypeDatatype, []byte{0x10, 0, 0}},
		{TypeFilterPipeline, []byte{2}},
		{TypeLink, []byte{1}},
		{TypeSymbolTable, make([]byte, 8)},
		{TypeObjectHeaderContinuation, make([]byte, 15)},
		{TypeAttribute, []byte{3, 0, 0}},
		{TypeFillValueOld, []byte{4, 0, 0, 0, 1}},
	}
	for _, tt := range tests {
		_, err := Parse(tt.typ, tt.data, 0, testReader(tt.data))
		if err == nil || !strings.Contains(err.Error(), "truncated") {
			t.Errorf("type %#x: got error %v, want truncation", tt.typ, err)
		}
	}
}

func TestParseErrors(t *testing.T) {
	deep := NewFixedPointDatatype(1, false, OrderLE)
	for range maxDatatypeDepth + 2 {
		deep = NewVarLenSequenceDatatype(deep, 8)
	}
	tests := []struct {
		name string
		typ  Type
		data []byte
		want string
	}{
		{"dataspace version", TypeDataspace, []byte{3, 0, 0, 0}, "version"},
		{"datatype version", TypeDatatype, []byte{0x50, 0, 0, 0, 1, 0, 0, 0}, "version"},
		{"datatype class", TypeDatatype, []byte{0x1F, 0, 0, 0, 1, 0, 0, 0}, "class"},
		{"datatype nesting", TypeDatatype, encoded(t, deep), "nested"},
		{"filter version", TypeFilterPipeline, []byte{3, 0}, "version"},
		{"link version", TypeLink, []byte{2, 0, 0}, "version"},
		{"attribute version", TypeAttribute, []byte{4, 0, 0, 0, 0, 0, 0, 0}, "version"},
		{"attribute shared", TypeAttribute, []byte{3, attributeSharedType, 0, 0, 0, 0, 0, 0, 0}, "shared"},
		{"link name overrun", TypeLink, []byte{1, 0, 200, 'a'}, "overruns"},
		{"external unterminated", TypeLink, []byte{1, linkHasType, byte(LinkTypeExternal), 1, 'x', 3, 0, 0, 'f', 'g'}, "unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.typ, tt.data, 0, testReader(tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("got error %v, want one mentioning %q", err, tt.want)
			}
		})
	}
}

// encoded returns the serialized body of msg.
func encoded(t *testing.T, msg Serializable) []byte {
	t.Helper()
	var buf memBuffer
	if err := msg.Serialize(testWriter(&buf)); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	return buf.buf
}

func compound(size uint32, members ...CompoundMember) *Datatype {
	return &Datatype{Version: 3, Class: ClassCompound, ClassBits: uint32(len(members)), Size: size, Members: members}
}

func TestDatatypeNested(t *testing.T) {
	u8 := NewFixedPointDatatype(1, false, OrderLE)
	inner := compound(9,
		CompoundMember{Name: "flag", ByteOffset: 0, Type: u8},
		CompoundMember{Name: "when", ByteOffset: 1, Type: NewFloatDatatype(8, OrderBE)},
	)
	dir := &Datatype{
		Version: 3, Class: ClassEnum, ClassBits: 2, Size: 1, BaseType: u8,
		EnumNames: []string{"OUT", "IN"}, EnumValues: [][]byte{{0}, {1}},
	}
	outer := compound(300,
		CompoundMember{Name: "cell", ByteOffset: 0, Type: inner},
		CompoundMember{Name: "dir", ByteOffset: 9, Type: dir},
		CompoundMember{Name: "times", ByteOffset: 10, Type: NewArrayDatatype([]uint32{5}, NewFloatDatatype(4, OrderLE))},
		CompoundMember{Name: "label", ByteOffset: 30, Type: NewVarLenStringDatatype(CharsetUTF8)},
		CompoundMember{Name: "blob", ByteOffset: 46, Type: &Datatype{Class: ClassOpaque, Size: 254, Tag: "pcap"}},
	)

	got := roundTrip(t, outer).(*Datatype)
	if len(got.Members) != 5 {
		t.Fatalf("got %d members, want 5", len(got.Members))
	}
	cell := got.Members[0].Type
	if cell.Class != ClassCompound || len(cell.Members) != 2 || cell.Members[1].Type.ByteOrder != OrderBE {
		t.Errorf("nested compound = %+v", cell)
	}
	if f := cell.Members[1].Type.Float; f != ieeeFloat(8) {
		t.Errorf("float format = %+v, want %+v", f, ieeeFloat(8))
	}
	e := got.Members[1].Type
	if e.Class != ClassEnum || len(e.EnumNames) != 2 || e.EnumNames[1] != "IN" || !bytes.Equal(e.EnumValues[1], []byte{1}) {
		t.Errorf("enum = names %v values %v", e.EnumNames, e.EnumValues)
	}
	if m := got.Members[2]; m.ByteOffset != 10 || m.Type.Class != ClassArray || m.Type.Size != 20 {
		t.Errorf("array member = %+v", m)
	}
	if s := got.Members[3].Type; !s.IsString() || s.CharSet != CharsetUTF8 || s.VarLenType == nil {
		t.Errorf("var-length string = %+v", s)
	}
	if o := got.Members[4].Type; o.Class != ClassOpaque || o.Tag != "pcap" {
		t.Errorf("opaque = %+v", o)
	}
}

func TestDatatypeCompoundVersion1(t *testing.T) {
	u32 := encoded(t, NewFixedPointDatatype(4, false, OrderLE))
	member := func(name string, offset uint32, rank uint8, dim0 uint32) []byte {
		b := append([]byte(name), 0)
		b = append(b, make([]byte, padTo8(len(b)))...)
		b = binary.LittleEndian.AppendUint32(b, offset)
		b = append(b, rank, 0, 0, 0)
		b = append(b, make([]byte, 8)...)
		b = binary.LittleEndian.AppendUint32(b, dim0)
		b = append(b, make([]byte, 12)...)
		return append(b, u32...)
	}
	data := []byte{0x16, 2, 0, 0}
	data = binary.LittleEndian.AppendUint32(data, 12)
	data = append(data, member("id", 0, 0, 0)...)
	data = append(data, member("pair", 4, 1, 2)...)

	msg, err := Parse(TypeDatatype, data, 0, testReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	dt := msg.(*Datatype)
	if len(dt.Members) != 2 || dt.Members[0].Name != "id" || dt.Members[1].Name != "pair" {
		t.Fatalf("members = %+v", dt.Members)
	}
	if pair := dt.Members[1]; pair.ByteOffset != 4 || pair.Type.Class != ClassArray || pair.Type.Size != 8 {
		t.Errorf("pair = offset %d type %+v, want a 2-element array at 4", pair.ByteOffset, pair.Type)
	}
}

func TestMemberOffsetWidth(t *testing.T) {
	tests := []struct {
		size uint32
		want int
	}{
		{0, 1}, {1, 1}, {255, 1}, {256, 2}, {65535, 2}, {65536, 3}, {1 << 24, 4},
	}
	for _, tt := range tests {
		if got := memberOffsetWidth(tt.size); got != tt.want {
			t.Errorf("memberOffsetWidth(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestAttributeVersion1(t *testing.T) {
	dt := encoded(t, NewFixedPointDatatype(4, false, OrderLE))
	space := []byte{1, 0, 0, 0, 0, 0, 0, 0}
	data := []byte{1, 0}
	data = binary.LittleEndian.AppendUint16(data, 5)
	data = binary.LittleEndian.AppendUint16(data, uint16(len(dt)))
	data = binary.LittleEndian.AppendUint16(data, uint16(len(space)))
	data = append(data, "name\x00\x00\x00\x00"...)
	data = append(data, dt...)
	data = append(data, make([]byte, padTo8(len(dt)))...)
	data = append(data, space...)
	data = binary.LittleEndian.AppendUint32(data, 99)

	msg, err := Parse(TypeAttribute, data, 0, testReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	a := msg.(*Attribute)
	if a.Name != "name" || !a.Dataspace.IsScalar() || binary.LittleEndian.Uint32(a.Data) != 99 {
		t.Errorf("got %q scalar=%v data=%v", a.Name, a.Dataspace.IsScalar(), a.Data)
	}
}

func TestFilterPipelineVersion1(t *testing.T) {
	data := []byte{1, 1, 0, 0, 0, 0, 0, 0}
	data = binary.LittleEndian.AppendUint16(data, FilterDeflate)
	data = binary.LittleEndian.AppendUint16(data, 8)
	data = binary.LittleEndian.AppendUint16(data, 0)
	data = binary.LittleEndian.AppendUint16(data, 1)
	data = append(data, "deflate\x00"...)
	data = binary.LittleEndian.AppendUint32(data, 6)
	data = append(data, 0, 0, 0, 0)

	msg, err := Parse(TypeFilterPipeline, data, 0, testReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f := msg.(*FilterPipeline).Filters
	if len(f) != 1 || f[0].Name != "deflate" || len(f[0].ClientData) != 1 || f[0].ClientData[0] != 6 {
		t.Errorf("filters = %+v", f)
	}
}

func TestFilterPipelineCustomName(t *testing.T) {
	fp := NewFilterPipeline(FilterInfo{ID: FilterZstd, Name: "zstd", ClientData: []uint32{3}})
	got := roundTrip(t, fp).(*FilterPipeline)
	if f := got.Filters[0]; f.Name != "zstd" || f.ClientData[0] != 3 {
		t.Errorf("filter = %+v", f)
	}
}

func TestLinkOptionalFields(t *testing.T) {
	data := []byte{1, linkHasCreationOrder | linkHasCharset}
	data = binary.LittleEndian.AppendUint64(data, 5)
	data = append(data, byte(CharsetUTF8), 3, 'c', 'e', 'l')
	data = binary.LittleEndian.AppendUint64(data, 0x800)

	msg, err := Parse(TypeLink, data, 0, testReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	l := msg.(*Link)
	if l.CreationOrder != 5 || l.Charset != uint8(CharsetUTF8) || l.Name != "cel" || l.ObjectAddress != 0x800 {
		t.Errorf("link = %+v", l)
	}
}

func TestContinuationFieldWidths(t *testing.T) {
	cfg := binpkg.Config{ByteOrder: binary.LittleEndian, OffsetSize: 8, LengthSize: 4}
	data := binary.LittleEndian.AppendUint64(nil, 0x4000)
	data = binary.LittleEndian.AppendUint32(data, 0x90)
	c, err := ParseContinuation(data, binpkg.NewReader(bytes.NewReader(data), cfg))
	if err != nil {
		t.Fatalf("ParseContinuation: %v", err)
	}
	if c.Offset != 0x4000 || c.Length != 0x90 {
		t.Errorf("continuation = %+v", c)
	}
}

func TestGroupMessagesSize(t *testing.T) {
	w := testWriter(&memBuffer{})
	tests := []struct {
		msg  Serializable
		want int
	}{
		{NewLinkInfo(), 18},
		{&LinkInfo{Flags: linkInfoTracksOrder | linkInfoIndexOrder}, 34},
		{NewGroupInfo(), 2},
		{&GroupInfo{Flags: groupInfoPhaseChange | groupInfoEstimates}, 10},
	}
	for _, tt := range tests {
		if got := tt.msg.SerializedSize(w); got != tt.want {
			t.Errorf("%T: SerializedSize = %d, want %d", tt.msg, got, tt.want)
		}
		if got := len(encoded(t, tt.msg)); got != tt.want {
			t.Errorf("%T: wrote %d bytes, want %d", tt.msg, got, tt.want)
		}
	}
}
