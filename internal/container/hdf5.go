package container

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"

	"github.com/robert-malhotra/go-gtt23/internal/hdf5"
	"github.com/robert-malhotra/go-gtt23/internal/message"
)

// File is a Store backed by an HDF5 file.
type File struct {
	file     *hdf5.File
	datasets map[string]*hdf5.Dataset
}

var _ Store = (*File)(nil)

// Open opens the HDF5 file at path.
func Open(path string) (*File, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		var pathErr *fs.PathError
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("opening %s: %w: %w", path, ErrNotFound, err)
		case errors.As(err, &pathErr):
			return nil, fmt.Errorf("opening %s: %w", path, err)
		default:
			return nil, fmt.Errorf("opening %s: %w: %w", path, ErrFormat, err)
		}
	}
	return &File{
		file:     f,
		datasets: make(map[string]*hdf5.Dataset),
	}, nil
}

// Close closes the underlying file. It is safe to call more than once.
func (s *File) Close() error {
	s.datasets = nil
	return s.file.Close()
}

// Members lists the entries of the group at path.
func (s *File) Members(group string) ([]string, error) {
	g, err := s.file.OpenGroup(group)
	if err != nil {
		return nil, s.wrap("opening group", group, err)
	}
	names, err := g.Members()
	if err != nil {
		return nil, s.wrap("listing group", group, err)
	}
	return names, nil
}

// Describe returns the shape and element type of the dataset at path.
func (s *File) Describe(path string) (Info, error) {
	ds, err := s.dataset(path)
	if err != nil {
		return Info{}, err
	}
	dims := ds.Dims()
	return Info{
		Path: path,
		Dims: append([]uint64(nil), dims...),
		Type: elementType(ds.Datatype()),
	}, nil
}

// Attribute reads the scalar attribute at an "/object@name" path.
func (s *File) Attribute(path string) (Attribute, error) {
	attr, err := s.file.Attr(path)
	if err != nil {
		return Attribute{}, s.wrap("reading attribute", path, err)
	}
	if !attr.IsScalar() && attr.NumElements() != 1 {
		return Attribute{}, fmt.Errorf("attribute %s has %d elements, want 1", path, attr.NumElements())
	}

	typ := elementType(attr.Datatype())
	var value any
	switch typ.Kind {
	case KindInt:
		value, err = hdf5.ReadScalar[int64](attr)
	case KindUint:
		value, err = hdf5.ReadScalar[uint64](attr)
	case KindFloat:
		value, err = hdf5.ReadScalar[float64](attr)
	case KindString:
		value, err = hdf5.ReadScalar[string](attr)
	default:
		return Attribute{Path: path, Type: typ}, nil
	}
	if err != nil {
		return Attribute{}, fmt.Errorf("reading attribute %s: %w", path, err)
	}
	return Attribute{Path: path, Type: typ, Value: value}, nil
}

// ReadArray reads r from the 1-D dataset at path into dest.
func (s *File) ReadArray(path string, r Range, dest any) error {
	ds, err := s.dataset(path)
	if err != nil {
		return err
	}
	if ds.Rank() != 1 {
		return fmt.Errorf("%s: rank %d, want 1", path, ds.Rank())
	}
	if extent := ds.Dims()[0]; r.Start > r.End || r.End > extent {
		return &RangeError{Path: path, Range: r, Extent: extent}
	}

	if r.Len() == 0 {
		v := reflect.ValueOf(dest)
		if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Slice {
			return fmt.Errorf("%s: dest must be a pointer to a slice, got %T", path, dest)
		}
		v.Elem().Set(reflect.MakeSlice(v.Elem().Type(), 0, 0))
		return nil
	}

	if err := ds.ReadSlice(r.Start, r.Len(), dest); err != nil {
		return fmt.Errorf("reading %s%s: %w", path, r, err)
	}
	return nil
}

// dataset resolves and remembers the dataset header at path.
func (s *File) dataset(path string) (*hdf5.Dataset, error) {
	if s.datasets == nil {
		return nil, ErrClosed
	}
	if ds, ok := s.datasets[path]; ok {
		return ds, nil
	}
	ds, err := s.file.OpenDataset(path)
	if err != nil {
		return nil, s.wrap("opening dataset", path, err)
	}
	s.datasets[path] = ds
	return ds, nil
}

// wrap maps engine errors onto the package sentinels.
func (s *File) wrap(op, path string, err error) error {
	switch {
	case errors.Is(err, hdf5.ErrClosed):
		return fmt.Errorf("%s %s: %w", op, path, ErrClosed)
	case errors.Is(err, hdf5.ErrNotFound), errors.Is(err, hdf5.ErrNotGroup), errors.Is(err, hdf5.ErrNotDataset):
		return fmt.Errorf("%s %s: %w: %w", op, path, ErrNotFound, err)
	default:
		return fmt.Errorf("%s %s: %w", op, path, err)
	}
}

// elementType converts an HDF5 datatype message.
func elementType(dt *message.Datatype) ElementType {
	if dt == nil {
		return ElementType{}
	}
	switch dt.Class {
	case message.ClassFixedPoint:
		if dt.Signed {
			return ElementType{Kind: KindInt, Size: int(dt.Size)}
		}
		return ElementType{Kind: KindUint, Size: int(dt.Size)}
	case message.ClassFloatPoint:
		return ElementType{Kind: KindFloat, Size: int(dt.Size)}
	case message.ClassString:
		return ElementType{Kind: KindString, Size: int(dt.Size)}
	case message.ClassVarLen:
		if dt.IsVarLenString {
			return ElementType{Kind: KindString}
		}
		base := elementType(dt.VarLenType)
		return ElementType{Kind: KindSequence, Base: &base}
	default:
		return ElementType{Kind: KindOther, Size: int(dt.Size)}
	}
}
