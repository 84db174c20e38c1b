package message

import (
	"fmt"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
)

// DataspaceType is the kind of a dataspace.
type DataspaceType uint8

const (
	DataspaceScalar DataspaceType = 0
	DataspaceSimple DataspaceType = 1
	DataspaceNull   DataspaceType = 2
)

// Unlimited is the maximum size of a dimension that can grow without bound.
const Unlimited = ^uint64(0)

const dataspaceMaxDims = 0x01

// Dataspace is the shape of a dataset or attribute.
type Dataspace struct {
	Version    uint8
	Rank       int
	SpaceType  DataspaceType
	Dimensions []uint64

	// MaxDims is nil when the file records no maxima, meaning the
	// dimensions are fixed.
	MaxDims []uint64
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// Resizable reports whether any dimension is unlimited.
func (m *Dataspace) Resizable() bool {
	for _, d := range m.MaxDims {
		if d == Unlimited {
			return true
		}
	}
	return false
}

// NumElements is the number of elements the dataspace holds.
func (m *Dataspace) NumElements() uint64 {
	switch m.SpaceType {
	case DataspaceScalar:
		return 1
	case DataspaceSimple:
		if len(m.Dimensions) == 0 {
			return 0
		}
		n := uint64(1)
		for _, d := range m.Dimensions {
			n *= d
		}
		return n
	}
	return 0
}

func (m *Dataspace) IsScalar() bool { return m.SpaceType == DataspaceScalar }

func parseDataspace(data []byte, r *binary.Reader) (*Dataspace, error) {
	c := newCursor("dataspace", data, r)
	m := &Dataspace{Version: c.u8("version"), Rank: int(c.u8("rank"))}
	flags := c.u8("flags")

	switch m.Version {
	case 1:
		// Version 1 has no type field: a rank of zero is a scalar.
		c.skip(5, "reserved")
		m.SpaceType = DataspaceSimple
		if m.Rank == 0 {
			m.SpaceType = DataspaceScalar
		}
	case 2:
		m.SpaceType = DataspaceType(c.u8("type"))
	default:
		if c.err == nil {
			return nil, fmt.Errorf("unsupported dataspace version %d", m.Version)
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	if m.SpaceType != DataspaceSimple || m.Rank == 0 {
		return m, nil
	}

	m.Dimensions = make([]uint64, m.Rank)
	for i := range m.Dimensions {
		m.Dimensions[i] = c.length("dimension")
	}
	if flags&dataspaceMaxDims != 0 {
		m.MaxDims = make([]uint64, m.Rank)
		for i := range m.MaxDims {
			if d := c.length("maximum dimension"); r.IsUndefinedLength(d) {
				m.MaxDims[i] = Unlimited
			} else {
				m.MaxDims[i] = d
			}
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return m, nil
}

// Serialize writes a version 2 dataspace message. An Unlimited maximum
// is written as the undefined length.
func (m *Dataspace) Serialize(w *binary.Writer) error {
	e := &encoder{w: w}
	var flags uint8
	if len(m.MaxDims) > 0 {
		flags |= dataspaceMaxDims
	}
	e.u8(2)
	e.u8(uint8(m.Rank))
	e.u8(flags)
	e.u8(uint8(m.SpaceType))
	for _, d := range m.Dimensions {
		e.length(d)
	}
	for _, d := range m.MaxDims {
		e.length(d)
	}
	return e.err
}

func (m *Dataspace) SerializedSize(w *binary.Writer) int { return measure(m, w) }

// NewDataspace returns a simple dataspace. maxDims may be nil.
func NewDataspace(dims, maxDims []uint64) *Dataspace {
	return &Dataspace{
		Version:    2,
		Rank:       len(dims),
		SpaceType:  DataspaceSimple,
		Dimensions: dims,
		MaxDims:    maxDims,
	}
}

func NewScalarDataspace() *Dataspace {
	return &Dataspace{Version: 2, SpaceType: DataspaceScalar}
}
