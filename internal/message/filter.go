package message

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
)

// Filter IDs.
const (
	FilterDeflate     uint16 = 1
	FilterShuffle     uint16 = 2
	FilterFletcher32  uint16 = 3
	FilterSZIP        uint16 = 4
	FilterNBit        uint16 = 5
	FilterScaleOffset uint16 = 6

	// FilterZstd is the registered third-party ID for Zstandard.
	FilterZstd uint16 = 32015
)

// firstCustomFilter is the lowest ID outside the predefined range.
// Version 2 pipelines store names only from here up.
const firstCustomFilter = 256

// FilterInfo is one stage of a filter pipeline.
type FilterInfo struct {
	ID         uint16
	Flags      uint16
	Name       string
	ClientData []uint32
}

// IsOptional reports whether a chunk may skip the filter when it fails.
func (f *FilterInfo) IsOptional() bool { return f.Flags&0x01 != 0 }

// FilterPipeline lists the filters applied to every chunk, in write order.
type FilterPipeline struct {
	Version uint8
	Filters []FilterInfo
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

func (m *FilterPipeline) HasFilter(id uint16) bool {
	for _, f := range m.Filters {
		if f.ID == id {
			return true
		}
	}
	return false
}

// HasCompression reports whether any stage compresses.
func (m *FilterPipeline) HasCompression() bool {
	return m.HasFilter(FilterDeflate) || m.HasFilter(FilterSZIP) || m.HasFilter(FilterZstd)
}

// parseFilterPipeline decodes versions 1 and 2. Version 1 has six
// reserved bytes, a name length on every filter, names padded to eight
// bytes and client data padded to an even count.
func parseFilterPipeline(data []byte, r *binary.Reader) (*FilterPipeline, error) {
	c := newCursor("filter pipeline", data, r)
	m := &FilterPipeline{Version: c.u8("version")}
	n := int(c.u8("filter count"))
	switch m.Version {
	case 1:
		c.skip(6, "reserved")
	case 2:
	default:
		if c.err == nil {
			return nil, fmt.Errorf("unsupported filter pipeline version %d", m.Version)
		}
	}

	for i := 0; i < n && c.err == nil; i++ {
		f := FilterInfo{ID: c.u16("filter id")}
		var nameLen int
		if m.Version == 1 || f.ID >= firstCustomFilter {
			nameLen = int(c.u16("name length"))
		}
		f.Flags = c.u16("flags")
		values := int(c.u16("client data count"))
		if name := c.bytes(nameLen, "name"); len(name) > 0 {
			if end := bytes.IndexByte(name, 0); end >= 0 {
				name = name[:end]
			}
			f.Name = string(name)
		}
		if m.Version == 1 {
			c.skip(padTo8(nameLen), "name padding")
		}
		f.ClientData = make([]uint32, 0, min(values, c.remaining()/4))
		for range values {
			f.ClientData = append(f.ClientData, c.u32("client data"))
		}
		if m.Version == 1 && values%2 != 0 {
			c.skip(4, "client data padding")
		}
		if c.err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, c.err)
		}
		m.Filters = append(m.Filters, f)
	}
	if c.err != nil {
		return nil, c.err
	}
	return m, nil
}

// Serialize writes a version 2 pipeline.
func (m *FilterPipeline) Serialize(w *binary.Writer) error {
	e := &encoder{w: w}
	e.u8(2)
	e.u8(uint8(len(m.Filters)))
	for _, f := range m.Filters {
		named := f.ID >= firstCustomFilter && f.Name != ""
		e.u16(f.ID)
		if f.ID >= firstCustomFilter {
			if named {
				e.u16(uint16(len(f.Name) + 1))
			} else {
				e.u16(0)
			}
		}
		e.u16(f.Flags)
		e.u16(uint16(len(f.ClientData)))
		if named {
			e.cstring(f.Name)
		}
		for _, v := range f.ClientData {
			e.u32(v)
		}
	}
	return e.err
}

func (m *FilterPipeline) SerializedSize(w *binary.Writer) int { return measure(m, w) }

// NewFilterPipeline returns a pipeline applying filters in order on
// write and in reverse on read.
func NewFilterPipeline(filters ...FilterInfo) *FilterPipeline {
	return &FilterPipeline{Version: 2, Filters: filters}
}
