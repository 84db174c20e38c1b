package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/go-gtt23/internal/dtype"
	"github.com/robert-malhotra/go-gtt23/internal/layout"
	"github.com/robert-malhotra/go-gtt23/internal/message"
	"github.com/robert-malhotra/go-gtt23/internal/object"
)

// Dataset is an HDF5 dataset. Datasets returned by the create methods
// carry no header and cannot be read.
type Dataset struct {
	file      *File
	path      string
	header    *object.Header
	dataspace *message.Dataspace
	datatype  *message.Datatype
	layout    layout.Layout

	// Set on the write side.
	dataAddr    uint64
	dataSize    uint64
	numElements uint64
}

func newDataset(f *File, path string, header *object.Header) (*Dataset, error) {
	ds := &Dataset{
		file:      f,
		path:      path,
		header:    header,
		dataspace: header.Dataspace(),
		datatype:  header.Datatype(),
	}
	lm := header.DataLayout()
	switch {
	case ds.dataspace == nil:
		return nil, fmt.Errorf("dataset %s has no dataspace message", path)
	case ds.datatype == nil:
		return nil, fmt.Errorf("dataset %s has no datatype message", path)
	case lm == nil:
		return nil, fmt.Errorf("dataset %s has no layout message", path)
	}

	var err error
	ds.layout, err = layout.New(lm, ds.dataspace, ds.datatype, header.FilterPipeline(), f.reader)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return ds, nil
}

// Path returns the absolute path the dataset was opened by.
func (d *Dataset) Path() string {
	return d.path
}

// Dims returns the extent of each dimension, or nil for a scalar.
func (d *Dataset) Dims() []uint64 {
	if d.dataspace.IsScalar() {
		return nil
	}
	return d.dataspace.Dimensions
}

// Rank returns the number of dimensions.
func (d *Dataset) Rank() int {
	return d.dataspace.Rank
}

// Datatype returns the element datatype.
func (d *Dataset) Datatype() *message.Datatype {
	return d.datatype
}

// Layout returns the storage layout message.
func (d *Dataset) Layout() *message.DataLayout {
	if d.header == nil {
		return nil
	}
	return d.header.DataLayout()
}

// Filters returns the chunk filters in pipeline order.
func (d *Dataset) Filters() []message.FilterInfo {
	if d.header == nil {
		return nil
	}
	if fp := d.header.FilterPipeline(); fp != nil {
		return fp.Filters
	}
	return nil
}

// Read decodes every element into dest, a pointer to a slice.
func (d *Dataset) Read(dest interface{}) error {
	if d.layout == nil {
		return fmt.Errorf("dataset %s is not open for reading", d.path)
	}
	raw, err := d.layout.Read()
	if err != nil {
		return fmt.Errorf("reading %s: %w", d.path, err)
	}
	return dtype.ConvertWithReader(d.datatype, raw, d.dataspace.NumElements(), dest, d.file.reader)
}

// ReadSlice reads count elements starting at start from a 1-D dataset into
// dest. Variable-length elements are resolved through the global heap, so
// dest may be a [][]T for sequence datasets.
func (d *Dataset) ReadSlice(start, count uint64, dest interface{}) error {
	if d.layout == nil {
		return fmt.Errorf("dataset %s is not open for reading", d.path)
	}
	if d.dataspace.Rank != 1 {
		return fmt.Errorf("ReadSlice requires a 1-D dataset, %s has rank %d", d.path, d.dataspace.Rank)
	}
	if n := d.dataspace.Dimensions[0]; start > n || count > n-start {
		return fmt.Errorf("slice [%d, %d) exceeds dimension %d of %s", start, start+count, n, d.path)
	}

	raw, err := d.layout.ReadSlice([]uint64{start}, []uint64{count})
	if err != nil {
		return fmt.Errorf("reading slice: %w", err)
	}
	return dtype.ConvertWithReader(d.datatype, raw, count, dest, d.file.reader)
}

// ReadAll reads every element of d as a flat slice of T.
func ReadAll[T any](d *Dataset) ([]T, error) {
	var result []T
	if err := d.Read(&result); err != nil {
		return nil, err
	}
	return result, nil
}

// Attrs returns the dataset's attribute names in storage order.
func (d *Dataset) Attrs() []string {
	return attrNames(d.header)
}

// Attr returns the named attribute, or nil.
func (d *Dataset) Attr(name string) *Attribute {
	return findAttr(d.header, name, d.file.reader)
}
