package hdf5

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
	"github.com/robert-malhotra/go-gtt23/internal/superblock"
)

// File is an HDF5 file opened for reading by Open or being written after
// Create. The two modes do not mix: a created file cannot be read back
// until it is closed and reopened.
type File struct {
	file       *os.File
	reader     *binary.Reader
	superblock *superblock.Superblock
	root       *Group
	closed     bool

	writable bool
	writer   *binary.Writer
	eof      uint64 // next free address
}

// Open opens an HDF5 file for reading.
//
// A missing file yields an error wrapping fs.ErrNotExist; a file without a
// valid superblock yields an error wrapping ErrNotHDF5.
func Open(path string) (*File, error) {
	osFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	sb, err := superblock.Read(osFile)
	if err != nil {
		osFile.Close()
		return nil, fmt.Errorf("reading superblock: %w", err)
	}

	// Addresses are relative to the superblock, which follows any user block.
	var src io.ReaderAt = osFile
	if sb.FileOffset > 0 {
		src = io.NewSectionReader(osFile, sb.FileOffset, math.MaxInt64-sb.FileOffset)
	}
	f := &File{
		file:       osFile,
		reader:     binary.NewReader(src, sb.ReaderConfig()),
		superblock: sb,
	}

	root, err := f.target(sb.RootGroupAddress)
	if err != nil {
		osFile.Close()
		return nil, fmt.Errorf("opening root group: %w", err)
	}
	f.root = &Group{file: f, path: "/", header: root.header, addr: root.addr}
	return f, nil
}

// Close closes the file, writing the final superblock first when the file
// was created. Closing twice is a no-op.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	if f.writable {
		if err := f.Flush(); err != nil {
			f.file.Close()
			return err
		}
	}
	return f.file.Close()
}

// Root returns the root group.
func (f *File) Root() *Group {
	return f.root
}

// Version returns the superblock version.
func (f *File) Version() int {
	return int(f.superblock.Version)
}

// OpenGroup opens the group at an absolute path.
func (f *File) OpenGroup(p string) (*Group, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenGroup(p)
}

// OpenDataset opens the dataset at an absolute path.
func (f *File) OpenDataset(p string) (*Dataset, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenDataset(p)
}

// Attr returns the attribute at an "/object@name" path, such as
// "/@schema" on the root group or "/traces/day@units" on a dataset.
func (f *File) Attr(p string) (*Attribute, error) {
	if f.closed {
		return nil, ErrClosed
	}
	objPath, name, err := splitAttrPath(p)
	if err != nil {
		return nil, err
	}

	obj, err := f.root.open(objPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", objPath, err)
	}
	var attr *Attribute
	switch o := obj.(type) {
	case *Group:
		attr = o.Attr(name)
	case *Dataset:
		attr = o.Attr(name)
	}
	if attr == nil {
		return nil, fmt.Errorf("attribute %s: %w", p, ErrNotFound)
	}
	return attr, nil
}
