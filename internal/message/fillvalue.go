package message

import (
	"fmt"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
)

// FillValueStatus says whether a fill value was set by the library or
// by the writer.
type FillValueStatus uint8

const (
	FillUndefined   FillValueStatus = 0
	FillDefault     FillValueStatus = 1
	FillUserDefined FillValueStatus = 2
)

const (
	fillAllocMask   = 0x03
	fillWriteShift  = 2
	fillUndefinedV3 = 0x10
	fillPresentV3   = 0x20
)

// FillValue is the value unwritten elements read as. Version 0 stands
// for the old message, which carries nothing but the value.
type FillValue struct {
	Version        uint8
	SpaceAllocTime uint8
	FillWriteTime  uint8
	IsDefined      bool
	Size           uint32
	Value          []byte
}

func (m *FillValue) Type() Type { return TypeFillValue }

func parseFillValue(data []byte, r *binary.Reader) (*FillValue, error) {
	c := newCursor("fill value", data, r)
	m := &FillValue{Version: c.u8("version")}
	present := false

	switch m.Version {
	case 1, 2:
		m.SpaceAllocTime = c.u8("allocation time")
		m.FillWriteTime = c.u8("write time")
		m.IsDefined = c.u8("defined") != 0
		// Version 1 always stores the size; version 2 only when defined.
		present = m.IsDefined || m.Version == 1 && c.remaining() >= 4
	case 3:
		flags := c.u8("flags")
		m.SpaceAllocTime = flags & fillAllocMask
		m.FillWriteTime = flags >> fillWriteShift & 0x03
		m.IsDefined = flags&fillUndefinedV3 == 0
		present = flags&fillPresentV3 != 0
	default:
		if c.err == nil {
			return nil, fmt.Errorf("unsupported fill value version %d", m.Version)
		}
	}
	if present {
		m.Size = c.u32("size")
		m.Value = c.bytes(int(m.Size), "value")
	}
	if c.err != nil {
		return nil, c.err
	}
	return m, nil
}

// parseFillValueOld decodes the old fill value message: a size and the
// value, which counts as defined only when non-empty.
func parseFillValueOld(data []byte, r *binary.Reader) (*FillValue, error) {
	c := newCursor("old fill value", data, r)
	m := &FillValue{Size: c.u32("size")}
	m.Value = c.bytes(int(m.Size), "value")
	if c.err != nil {
		return nil, c.err
	}
	m.IsDefined = m.Size > 0
	return m, nil
}
