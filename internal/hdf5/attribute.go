package hdf5

import (
	"fmt"
	"reflect"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
	"github.com/robert-malhotra/go-gtt23/internal/dtype"
	"github.com/robert-malhotra/go-gtt23/internal/message"
	"github.com/robert-malhotra/go-gtt23/internal/object"
)

// Attribute represents an HDF5 attribute attached to a dataset or group.
type Attribute struct {
	msg    *message.Attribute
	reader *binary.Reader // For resolving global heap references
}

// attrNames lists the attribute messages of h in storage order.
func attrNames(h *object.Header) []string {
	var names []string
	for _, msg := range h.GetMessages(message.TypeAttribute) {
		names = append(names, msg.(*message.Attribute).Name)
	}
	return names
}

// findAttr returns the attribute called name among the messages of h, or nil.
func findAttr(h *object.Header, name string, r *binary.Reader) *Attribute {
	for _, msg := range h.GetMessages(message.TypeAttribute) {
		if a := msg.(*message.Attribute); a.Name == name {
			return &Attribute{msg: a, reader: r}
		}
	}
	return nil
}

// NumElements returns the total number of elements.
func (a *Attribute) NumElements() uint64 {
	if a.msg.Dataspace == nil {
		return 1
	}
	return a.msg.Dataspace.NumElements()
}

// IsScalar returns true if the attribute is a scalar value.
func (a *Attribute) IsScalar() bool {
	return a.msg.Dataspace == nil || a.msg.Dataspace.IsScalar()
}

// Datatype returns the attribute's datatype message.
func (a *Attribute) Datatype() *message.Datatype {
	return a.msg.Datatype
}

// Read decodes the attribute value into dest, a pointer to a slice or,
// for single-element attributes, to a value.
func (a *Attribute) Read(dest interface{}) error {
	if a.msg.Datatype == nil {
		return fmt.Errorf("attribute %s has no datatype", a.msg.Name)
	}
	if a.msg.Data == nil {
		return fmt.Errorf("attribute %s has no data", a.msg.Name)
	}
	return dtype.ConvertWithReader(a.msg.Datatype, a.msg.Data, a.NumElements(), dest, a.reader)
}

// ReadScalar decodes a single-element attribute as a T.
func ReadScalar[T any](a *Attribute) (T, error) {
	var v T
	if n := a.NumElements(); n != 1 {
		return v, fmt.Errorf("attribute %s has %d elements, want 1", a.msg.Name, n)
	}
	err := a.Read(&v)
	return v, err
}

// Value decodes the attribute without a destination type. Integers widen
// to int64 or uint64 and floats to float64; other classes decode to the
// type dtype.GoType names. Scalars come back as a single value, anything
// else as a slice.
func (a *Attribute) Value() (interface{}, error) {
	dt := a.msg.Datatype
	if dt == nil {
		return nil, fmt.Errorf("attribute %s has no datatype", a.msg.Name)
	}

	var dest reflect.Value
	switch {
	case dt.Class == message.ClassFixedPoint && dt.Signed, dt.Class == message.ClassEnum:
		dest = reflect.New(reflect.TypeOf([]int64(nil)))
	case dt.Class == message.ClassFixedPoint:
		dest = reflect.New(reflect.TypeOf([]uint64(nil)))
	case dt.Class == message.ClassFloatPoint:
		dest = reflect.New(reflect.TypeOf([]float64(nil)))
	case dt.IsString():
		dest = reflect.New(reflect.TypeOf([]string(nil)))
	default:
		dest = reflect.New(reflect.TypeOf([]interface{}(nil)))
	}
	if err := a.Read(dest.Interface()); err != nil {
		return nil, err
	}

	vals := dest.Elem()
	if a.IsScalar() && vals.Len() == 1 {
		return vals.Index(0).Interface(), nil
	}
	return vals.Interface(), nil
}
