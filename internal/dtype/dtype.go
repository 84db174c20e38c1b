package dtype

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"strings"

	"github.com/robert-malhotra/go-gtt23/internal/message"
)

var (
	signedTypes   = [9]reflect.Type{1: reflect.TypeOf(int8(0)), 2: reflect.TypeOf(int16(0)), 4: reflect.TypeOf(int32(0)), 8: reflect.TypeOf(int64(0))}
	unsignedTypes = [9]reflect.Type{1: reflect.TypeOf(uint8(0)), 2: reflect.TypeOf(uint16(0)), 4: reflect.TypeOf(uint32(0)), 8: reflect.TypeOf(uint64(0))}
)

// GoType returns the Go type an element of dt decodes to when the
// destination is an interface{}.
func GoType(dt *message.Datatype) (reflect.Type, error) {
	if dt == nil {
		return nil, fmt.Errorf("nil datatype")
	}

	switch dt.Class {
	case message.ClassFixedPoint, message.ClassEnum, message.ClassBitfield:
		types := &unsignedTypes
		if dt.Signed && dt.Class != message.ClassBitfield {
			types = &signedTypes
		}
		if dt.Size < uint32(len(types)) && types[dt.Size] != nil {
			return types[dt.Size], nil
		}
		return nil, fmt.Errorf("unsupported fixed-point size: %d", dt.Size)

	case message.ClassFloatPoint:
		switch dt.Size {
		case 4:
			return reflect.TypeOf(float32(0)), nil
		case 8:
			return reflect.TypeOf(float64(0)), nil
		}
		return nil, fmt.Errorf("unsupported float size: %d", dt.Size)

	case message.ClassString:
		return reflect.TypeOf(""), nil

	case message.ClassVarLen:
		if dt.IsVarLenString {
			return reflect.TypeOf(""), nil
		}
		if dt.VarLenType == nil {
			return nil, fmt.Errorf("variable-length sequence without base type")
		}
		elem, err := GoType(dt.VarLenType)
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elem), nil

	case message.ClassArray:
		if dt.BaseType == nil {
			return nil, fmt.Errorf("array type has no base type")
		}
		elem, err := GoType(dt.BaseType)
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elem), nil

	case message.ClassCompound:
		return reflect.TypeOf(map[string]interface{}{}), nil

	case message.ClassOpaque:
		return reflect.TypeOf([]byte(nil)), nil
	}
	return nil, fmt.Errorf("unsupported datatype class: %d", dt.Class)
}

// exportName is the struct field a compound member named name decodes
// into: the first letter upper-cased, anything outside [A-Za-z0-9_]
// replaced by an underscore.
func exportName(name string) string {
	if name == "" {
		return "Field"
	}
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
	return strings.ToUpper(mapped[:1]) + mapped[1:]
}

// ByteOrder returns the binary.ByteOrder for the datatype.
func ByteOrder(dt *message.Datatype) binary.ByteOrder {
	if dt.ByteOrder == message.OrderBE {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
