package dtype

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/robert-malhotra/go-gtt23/internal/message"
)

// putFunc stores one Go value as an element of dst.
type putFunc func(dst []byte, v reflect.Value) error

// Encode converts Go values to raw HDF5 bytes. src is a scalar, or a slice
// or array of any depth; nested values are written in row-major order.
func Encode(dt *message.Datatype, src interface{}) ([]byte, error) {
	if dt == nil {
		return nil, fmt.Errorf("nil datatype")
	}
	put, err := encoderFor(dt)
	if err != nil {
		return nil, err
	}

	v := reflect.ValueOf(src)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	size := int(dt.Size)
	data := make([]byte, 0, countLeaves(v)*size)
	var walk func(v reflect.Value) error
	walk = func(v reflect.Value) error {
		if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
			for i := range v.Len() {
				if err := walk(v.Index(i)); err != nil {
					return err
				}
			}
			return nil
		}
		off := len(data)
		data = append(data, make([]byte, size)...)
		return put(data[off:], v)
	}
	if err := walk(v); err != nil {
		return nil, err
	}
	return data, nil
}

func countLeaves(v reflect.Value) int {
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return 1
	}
	n := 0
	for i := range v.Len() {
		n += countLeaves(v.Index(i))
	}
	return n
}

func encoderFor(dt *message.Datatype) (putFunc, error) {
	var order binary.ByteOrder = binary.LittleEndian
	if dt.ByteOrder == message.OrderBE {
		order = binary.BigEndian
	}

	switch dt.Class {
	case message.ClassFixedPoint:
		return func(dst []byte, v reflect.Value) error {
			var u uint64
			switch v.Kind() {
			case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
				u = uint64(v.Int())
			case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
				u = v.Uint()
			default:
				return fmt.Errorf("cannot encode %v as fixed-point", v.Kind())
			}
			putUint(dst, order, u)
			return nil
		}, nil

	case message.ClassFloatPoint:
		if dt.Size != 4 && dt.Size != 8 {
			return nil, fmt.Errorf("unsupported float size %d", dt.Size)
		}
		return func(dst []byte, v reflect.Value) error {
			if v.Kind() != reflect.Float32 && v.Kind() != reflect.Float64 {
				return fmt.Errorf("cannot encode %v as float", v.Kind())
			}
			if len(dst) == 4 {
				order.PutUint32(dst, math.Float32bits(float32(v.Float())))
			} else {
				order.PutUint64(dst, math.Float64bits(v.Float()))
			}
			return nil
		}, nil

	case message.ClassString:
		return func(dst []byte, v reflect.Value) error {
			if v.Kind() != reflect.String {
				return fmt.Errorf("cannot encode %v as string", v.Kind())
			}
			// Longer values are truncated. Null padding is already in place.
			n := copy(dst, v.String())
			if dt.StringPadding == message.PadSpacePad {
				for i := n; i < len(dst); i++ {
					dst[i] = ' '
				}
			}
			return nil
		}, nil
	}
	return nil, fmt.Errorf("unsupported datatype class for encoding: %d", dt.Class)
}

func putUint(dst []byte, order binary.ByteOrder, u uint64) {
	switch len(dst) {
	case 1:
		dst[0] = byte(u)
	case 2:
		order.PutUint16(dst, uint16(u))
	case 4:
		order.PutUint32(dst, uint32(u))
	default:
		order.PutUint64(dst[:8], u)
	}
}

// GoTypeToDatatype creates an HDF5 datatype from a Go type. Pointers and
// slice or array wrappers of any depth are unwrapped to the element type.
func GoTypeToDatatype(t reflect.Type) (*message.Datatype, error) {
	for t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return message.NewFixedPointDatatype(uint32(t.Size()), true, message.OrderLE), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		return message.NewFixedPointDatatype(uint32(t.Size()), false, message.OrderLE), nil
	case reflect.Float32, reflect.Float64:
		return message.NewFloatDatatype(uint32(t.Size()), message.OrderLE), nil
	case reflect.String:
		return message.NewVarLenStringDatatype(message.CharsetUTF8), nil
	default:
		return nil, fmt.Errorf("unsupported Go type: %v", t)
	}
}

// DataSize returns the total size in bytes needed to store n elements of the given datatype.
func DataSize(dt *message.Datatype, n uint64) uint64 {
	return uint64(dt.Size) * n
}
