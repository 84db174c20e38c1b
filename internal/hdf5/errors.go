// Package hdf5 reads and writes the subset of the HDF5 file format used by
// GTT23 containers.
package hdf5

import (
	"errors"

	"github.com/robert-malhotra/go-gtt23/internal/superblock"
)

// Common errors
var (
	ErrNotHDF5     = superblock.ErrNotHDF5
	ErrNotFound    = errors.New("object not found")
	ErrNotDataset  = errors.New("object is not a dataset")
	ErrNotGroup    = errors.New("object is not a group")
	ErrUnsupported = errors.New("unsupported feature")
	ErrInvalidPath = errors.New("invalid path")
	ErrClosed      = errors.New("file is closed")
	ErrLinkDepth   = errors.New("maximum link depth exceeded")
)

// MaxLinkDepth bounds the number of soft links followed while resolving
// a single path.
const MaxLinkDepth = 100
