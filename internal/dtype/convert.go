package dtype

import (
	"bytes"
	stdbinary "encoding/binary"
	"fmt"
	"math"
	"reflect"
	"unsafe"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
	"github.com/robert-malhotra/go-gtt23/internal/heap"
	"github.com/robert-malhotra/go-gtt23/internal/message"
)

// setFunc decodes the element in src into dst, which must be settable.
type setFunc func(src []byte, dst reflect.Value) error

var (
	anyType          = reflect.TypeOf((*interface{})(nil)).Elem()
	hostLittleEndian = stdbinary.NativeEndian.Uint16([]byte{1, 0}) == 1
)

// decoder builds setFuncs for one conversion. Variable-length elements
// are resolved through reader; collections are read once per decoder.
type decoder struct {
	reader *binary.Reader
	heaps  map[uint64]*heap.GlobalHeap
}

// Convert decodes numElements elements of type dt from data. dest is a
// pointer to a slice, which is replaced, or a pointer to a single value
// when numElements is 1.
func Convert(dt *message.Datatype, data []byte, numElements uint64, dest interface{}) error {
	return ConvertWithReader(dt, data, numElements, dest, nil)
}

// ConvertWithReader is Convert for datatypes that may hold variable-length
// strings or sequences, whose payloads reader fetches from the global heap.
func ConvertWithReader(dt *message.Datatype, data []byte, numElements uint64, dest interface{}, reader *binary.Reader) error {
	if dt == nil {
		return fmt.Errorf("nil datatype")
	}
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return fmt.Errorf("dest must be a non-nil pointer, got %T", dest)
	}
	out := dv.Elem()

	d := &decoder{reader: reader}
	stride := d.stride(dt)
	n := int(numElements)
	if need := n * stride; len(data) < need {
		return fmt.Errorf("not enough data: need %d bytes, have %d", need, len(data))
	}

	if out.Kind() == reflect.Slice && canDirectCopy(dt, out.Type().Elem()) {
		out.Set(directCopy(out.Type(), data, n, stride))
		return nil
	}

	set, err := d.setter(dt)
	if err != nil {
		return err
	}
	if out.Kind() != reflect.Slice {
		if n != 1 {
			return fmt.Errorf("cannot store %d elements in %s", n, out.Type())
		}
		return set(data[:stride], out)
	}
	s := reflect.MakeSlice(out.Type(), n, n)
	for i := range n {
		if err := set(data[i*stride:(i+1)*stride], s.Index(i)); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	out.Set(s)
	return nil
}

// stride is the number of bytes one element of dt occupies in a dataset.
func (d *decoder) stride(dt *message.Datatype) int {
	if dt.Class == message.ClassVarLen {
		return 4 + d.offsetSize() + 4
	}
	return int(dt.Size)
}

func (d *decoder) offsetSize() int {
	if d.reader == nil {
		return 8
	}
	return d.reader.OffsetSize()
}

func (d *decoder) setter(dt *message.Datatype) (setFunc, error) {
	switch dt.Class {
	case message.ClassFixedPoint, message.ClassEnum, message.ClassBitfield:
		return intSetter(dt)
	case message.ClassFloatPoint:
		return floatSetter(dt)
	case message.ClassString:
		return stringSetter(dt), nil
	case message.ClassVarLen:
		if dt.IsVarLenString {
			return d.varLenString, nil
		}
		if dt.VarLenType == nil {
			return nil, fmt.Errorf("variable-length sequence without base type")
		}
		return d.sequence(dt.VarLenType)
	case message.ClassCompound:
		return d.compound(dt)
	case message.ClassArray:
		return d.array(dt)
	case message.ClassOpaque:
		return setOpaque, nil
	}
	return nil, fmt.Errorf("unsupported datatype class for conversion: %d", dt.Class)
}

func intSetter(dt *message.Datatype) (setFunc, error) {
	size := int(dt.Size)
	if size != 1 && size != 2 && size != 4 && size != 8 {
		return nil, fmt.Errorf("unsupported integer size: %d", size)
	}
	natural, err := GoType(dt)
	if err != nil {
		return nil, err
	}
	order := ByteOrder(dt)
	signed := dt.Signed && dt.Class != message.ClassBitfield

	return func(src []byte, dst reflect.Value) error {
		var u uint64
		switch size {
		case 1:
			u = uint64(src[0])
		case 2:
			u = uint64(order.Uint16(src))
		case 4:
			u = uint64(order.Uint32(src))
		default:
			u = order.Uint64(src)
		}
		i := int64(u)
		if signed {
			shift := 64 - 8*size
			i = int64(u<<shift) >> shift
			u = uint64(i)
		}

		switch dst.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			dst.SetInt(i)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			dst.SetUint(u)
		case reflect.Float32, reflect.Float64:
			if signed {
				dst.SetFloat(float64(i))
			} else {
				dst.SetFloat(float64(u))
			}
		case reflect.Interface:
			if signed {
				dst.Set(reflect.ValueOf(i).Convert(natural))
			} else {
				dst.Set(reflect.ValueOf(u).Convert(natural))
			}
		default:
			return fmt.Errorf("cannot decode integer into %s", dst.Type())
		}
		return nil
	}, nil
}

func floatSetter(dt *message.Datatype) (setFunc, error) {
	size := int(dt.Size)
	if size != 4 && size != 8 {
		return nil, fmt.Errorf("unsupported float size: %d", size)
	}
	order := ByteOrder(dt)

	return func(src []byte, dst reflect.Value) error {
		var f float64
		if size == 4 {
			f = float64(math.Float32frombits(order.Uint32(src)))
		} else {
			f = math.Float64frombits(order.Uint64(src))
		}

		switch dst.Kind() {
		case reflect.Float32, reflect.Float64:
			dst.SetFloat(f)
		case reflect.Interface:
			if size == 4 {
				dst.Set(reflect.ValueOf(float32(f)))
			} else {
				dst.Set(reflect.ValueOf(f))
			}
		default:
			return fmt.Errorf("cannot decode float into %s", dst.Type())
		}
		return nil
	}, nil
}

func stringSetter(dt *message.Datatype) setFunc {
	spacePadded := dt.StringPadding == message.PadSpacePad
	return func(src []byte, dst reflect.Value) error {
		if end := bytes.IndexByte(src, 0); end >= 0 {
			src = src[:end]
		}
		if spacePadded {
			src = bytes.TrimRight(src, " ")
		}
		return setString(dst, string(src))
	}
}

func setString(dst reflect.Value, s string) error {
	switch dst.Kind() {
	case reflect.String:
		dst.SetString(s)
	case reflect.Interface:
		dst.Set(reflect.ValueOf(s))
	default:
		return fmt.Errorf("cannot decode string into %s", dst.Type())
	}
	return nil
}

// collection returns the global heap collection a variable-length
// reference points into, or nil for a null reference. ref starts with
// the 4-byte element count, which is returned too.
func (d *decoder) collection(ref []byte) (uint32, *heap.GlobalHeap, uint16, error) {
	count := stdbinary.LittleEndian.Uint32(ref)
	id, err := heap.ParseGlobalHeapID(ref[4:], d.offsetSize())
	if err != nil {
		return 0, nil, 0, err
	}
	if id.CollectionAddress == 0 {
		return 0, nil, 0, nil
	}
	if d.reader == nil {
		return 0, nil, 0, fmt.Errorf("variable-length data at 0x%x needs a file reader", id.CollectionAddress)
	}
	gh, ok := d.heaps[id.CollectionAddress]
	if !ok {
		if gh, err = heap.ReadGlobalHeap(d.reader, id.CollectionAddress); err != nil {
			return 0, nil, 0, fmt.Errorf("reading global heap at 0x%x: %w", id.CollectionAddress, err)
		}
		if d.heaps == nil {
			d.heaps = make(map[uint64]*heap.GlobalHeap)
		}
		d.heaps[id.CollectionAddress] = gh
	}
	return count, gh, uint16(id.ObjectIndex), nil
}

func (d *decoder) varLenString(src []byte, dst reflect.Value) error {
	_, gh, index, err := d.collection(src)
	if err != nil {
		return err
	}
	if gh == nil {
		return setString(dst, "")
	}
	s, err := gh.GetString(index)
	if err != nil {
		return err
	}
	return setString(dst, s)
}

// sequence decodes variable-length sequences of base into slices. A zero
// count or a null reference yields an empty, non-nil slice.
func (d *decoder) sequence(base *message.Datatype) (setFunc, error) {
	set, err := d.setter(base)
	if err != nil {
		return nil, err
	}
	stride := d.stride(base)

	return func(src []byte, dst reflect.Value) error {
		var typ reflect.Type
		switch dst.Kind() {
		case reflect.Slice:
			typ = dst.Type()
		case reflect.Interface:
			natural, err := GoType(base)
			if err != nil {
				return err
			}
			typ = reflect.SliceOf(natural)
		default:
			return fmt.Errorf("variable-length sequence requires a slice destination, got %s", dst.Type())
		}

		count, gh, index, err := d.collection(src)
		if err != nil {
			return err
		}
		if gh == nil || count == 0 {
			dst.Set(reflect.MakeSlice(typ, 0, 0))
			return nil
		}
		obj, err := gh.GetObject(index)
		if err != nil {
			return err
		}
		n := int(count)
		if need := n * stride; len(obj) < need {
			return fmt.Errorf("heap object has %d bytes, sequence needs %d", len(obj), need)
		}

		if canDirectCopy(base, typ.Elem()) {
			dst.Set(directCopy(typ, obj, n, stride))
			return nil
		}
		s := reflect.MakeSlice(typ, n, n)
		for j := range n {
			if err := set(obj[j*stride:(j+1)*stride], s.Index(j)); err != nil {
				return err
			}
		}
		dst.Set(s)
		return nil
	}, nil
}

// compound decodes into a struct, matching members to exported fields by
// name, or into a map[string]interface{} keyed by member name.
func (d *decoder) compound(dt *message.Datatype) (setFunc, error) {
	type member struct {
		name, field string
		off, size   int
		set         setFunc
	}
	members := make([]member, 0, len(dt.Members))
	for _, m := range dt.Members {
		if m.Type == nil {
			continue
		}
		set, err := d.setter(m.Type)
		if err != nil {
			return nil, fmt.Errorf("compound member %q: %w", m.Name, err)
		}
		off, size := int(m.ByteOffset), d.stride(m.Type)
		if off+size > int(dt.Size) {
			return nil, fmt.Errorf("compound member %q overruns the %d-byte element", m.Name, dt.Size)
		}
		members = append(members, member{m.Name, exportName(m.Name), off, size, set})
	}
	mapType := reflect.TypeOf(map[string]interface{}{})

	return func(src []byte, dst reflect.Value) error {
		switch {
		case dst.Kind() == reflect.Struct:
			for _, m := range members {
				f := dst.FieldByName(m.field)
				if !f.IsValid() || !f.CanSet() {
					continue
				}
				if err := m.set(src[m.off:m.off+m.size], f); err != nil {
					return fmt.Errorf("member %q: %w", m.name, err)
				}
			}
			return nil
		case dst.Kind() == reflect.Interface, dst.Type() == mapType:
			values := make(map[string]interface{}, len(members))
			for _, m := range members {
				v := reflect.New(anyType).Elem()
				if err := m.set(src[m.off:m.off+m.size], v); err != nil {
					return fmt.Errorf("member %q: %w", m.name, err)
				}
				values[m.name] = v.Interface()
			}
			dst.Set(reflect.ValueOf(values))
			return nil
		}
		return fmt.Errorf("cannot decode compound into %s", dst.Type())
	}, nil
}

// array decodes a fixed-size array element into a slice, a Go array of
// any nesting whose leaves hold every element, or a flat slice of the
// base type when dst is an interface.
func (d *decoder) array(dt *message.Datatype) (setFunc, error) {
	if dt.BaseType == nil || len(dt.ArrayDims) == 0 {
		return nil, fmt.Errorf("invalid array type: missing base type or dimensions")
	}
	set, err := d.setter(dt.BaseType)
	if err != nil {
		return nil, err
	}
	stride := d.stride(dt.BaseType)
	total := 1
	for _, n := range dt.ArrayDims {
		total *= int(n)
	}

	return func(src []byte, dst reflect.Value) error {
		if len(src) < total*stride {
			return fmt.Errorf("array element has %d bytes, want %d", len(src), total*stride)
		}
		var slots []reflect.Value
		switch dst.Kind() {
		case reflect.Slice, reflect.Interface:
			typ := dst.Type()
			if dst.Kind() == reflect.Interface {
				natural, err := GoType(dt.BaseType)
				if err != nil {
					return err
				}
				typ = reflect.SliceOf(natural)
			}
			s := reflect.MakeSlice(typ, total, total)
			for j := range total {
				slots = append(slots, s.Index(j))
			}
			dst.Set(s)
		case reflect.Array:
			slots = arrayLeaves(dst, nil)
		default:
			return fmt.Errorf("cannot decode array into %s", dst.Type())
		}
		if len(slots) != total {
			return fmt.Errorf("array of %d elements does not fit %s", total, dst.Type())
		}
		for j, slot := range slots {
			if err := set(src[j*stride:(j+1)*stride], slot); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func arrayLeaves(v reflect.Value, leaves []reflect.Value) []reflect.Value {
	if v.Kind() != reflect.Array {
		return append(leaves, v)
	}
	for i := range v.Len() {
		leaves = arrayLeaves(v.Index(i), leaves)
	}
	return leaves
}

func setOpaque(src []byte, dst reflect.Value) error {
	b := bytes.Clone(src)
	switch {
	case dst.Kind() == reflect.Slice && dst.Type().Elem().Kind() == reflect.Uint8:
		dst.SetBytes(b)
	case dst.Kind() == reflect.Interface:
		dst.Set(reflect.ValueOf(b))
	default:
		return fmt.Errorf("cannot decode opaque data into %s", dst.Type())
	}
	return nil
}

// canDirectCopy reports whether elements of dt are laid out exactly like
// elem in memory, so a slice can be filled with one copy.
func canDirectCopy(dt *message.Datatype, elem reflect.Type) bool {
	if !hostLittleEndian || dt.ByteOrder != message.OrderLE || uintptr(dt.Size) != elem.Size() {
		return false
	}
	switch dt.Class {
	case message.ClassFixedPoint:
		switch elem.Kind() {
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return dt.Signed
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return !dt.Signed
		}
	case message.ClassFloatPoint:
		return elem.Kind() == reflect.Float32 || elem.Kind() == reflect.Float64
	}
	return false
}

// directCopy returns a new slice of type typ holding n elements copied
// byte for byte from data.
func directCopy(typ reflect.Type, data []byte, n, stride int) reflect.Value {
	s := reflect.MakeSlice(typ, n, n)
	if n > 0 {
		copy(unsafe.Slice((*byte)(s.UnsafePointer()), n*stride), data)
	}
	return s
}
