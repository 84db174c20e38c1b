package container

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrFormat     = errors.New("not a valid container")
	ErrOutOfRange = errors.New("range out of bounds")
	ErrClosed     = errors.New("container is closed")
)

// Store is the read-only view of a container used by the decoding layer.
type Store interface {
	// Members lists the entries of a group in storage order.
	Members(group string) ([]string, error)

	// Describe returns the shape and element type of a dataset.
	Describe(path string) (Info, error)

	// Attribute reads a scalar attribute by "/object@name" path.
	Attribute(path string) (Attribute, error)

	// ReadArray reads the half-open range r over the first dimension of a
	// 1-D dataset into dest, a *[]T for scalar datasets or a *[][]T for
	// sequence datasets.
	ReadArray(path string, r Range, dest any) error

	Close() error
}

// Kind classifies element types.
type Kind uint8

const (
	KindOther Kind = iota
	KindInt
	KindUint
	KindFloat
	KindString
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	default:
		return "other"
	}
}

// ElementType describes one dataset element.
//
// Size is the width in bytes; it is zero for variable-length strings and
// sequences. Base is set only for sequences.
type ElementType struct {
	Kind Kind
	Size int
	Base *ElementType
}

// String formats the type as e.g. "uint32", "string[32]" or
// "sequence<float64>".
func (t ElementType) String() string {
	switch t.Kind {
	case KindInt, KindUint, KindFloat:
		return fmt.Sprintf("%s%d", t.Kind, t.Size*8)
	case KindString:
		if t.Size == 0 {
			return "string"
		}
		return fmt.Sprintf("string[%d]", t.Size)
	case KindSequence:
		if t.Base == nil {
			return "sequence"
		}
		return "sequence<" + t.Base.String() + ">"
	default:
		return t.Kind.String()
	}
}

// Info describes a dataset.
type Info struct {
	Path string
	Dims []uint64
	Type ElementType
}

// Len returns the extent of the first dimension, or 1 for scalars.
func (i Info) Len() uint64 {
	if len(i.Dims) == 0 {
		return 1
	}
	return i.Dims[0]
}

// Attribute is a scalar attribute value.
//
// Value holds an int64, uint64, float64 or string according to Type.Kind.
type Attribute struct {
	Path  string
	Type  ElementType
	Value any
}

// Int returns the value as int64, converting unsigned values that fit.
func (a Attribute) Int() (int64, bool) {
	switch v := a.Value.(type) {
	case int64:
		return v, true
	case uint64:
		if v > 1<<63-1 {
			return 0, false
		}
		return int64(v), true
	}
	return 0, false
}

// Text returns the value as a string.
func (a Attribute) Text() (string, bool) {
	s, ok := a.Value.(string)
	return s, ok
}

// Range is a half-open interval [Start, End) over a dataset's first dimension.
type Range struct {
	Start, End uint64
}

// Len returns the number of elements in the range.
func (r Range) Len() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// RangeError reports a read outside a dataset's extent.
type RangeError struct {
	Path   string
	Range  Range
	Extent uint64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: range %s outside extent %d", e.Path, e.Range, e.Extent)
}

// Is reports whether target is ErrOutOfRange.
func (e *RangeError) Is(target error) bool {
	return target == ErrOutOfRange
}
