package filter

import (
	"fmt"

	"github.com/robert-malhotra/go-gtt23/internal/message"
)

// Filter is one stage of a chunk pipeline.
type Filter interface {
	ID() uint16

	// Decode undoes the filter on a stored chunk.
	Decode(input []byte) ([]byte, error)
}

// Encoder is a Filter that can also be applied when writing.
type Encoder interface {
	Filter
	Encode(input []byte) ([]byte, error)
}

// Registry builds the filters this package implements from their
// client data.
var Registry = map[uint16]func(clientData []uint32) Filter{
	message.FilterDeflate:    func(cd []uint32) Filter { return NewDeflate(cd) },
	message.FilterShuffle:    func(cd []uint32) Filter { return NewShuffle(cd) },
	message.FilterFletcher32: func(cd []uint32) Filter { return NewFletcher32(cd) },
	message.FilterZstd:       func(cd []uint32) Filter { return NewZstd(cd) },
}

var knownNames = map[uint16]string{
	message.FilterSZIP:        "szip",
	message.FilterNBit:        "n-bit",
	message.FilterScaleOffset: "scale-offset",
}

// New builds the filter info describes. An optional filter this package
// lacks yields a nil Filter and no error.
func New(info message.FilterInfo) (Filter, error) {
	if build, ok := Registry[info.ID]; ok {
		return build(info.ClientData), nil
	}
	if info.IsOptional() {
		return nil, nil
	}
	name := knownNames[info.ID]
	if name == "" {
		name = info.Name
	}
	if name != "" {
		return nil, fmt.Errorf("filter %d (%s) is not supported", info.ID, name)
	}
	return nil, fmt.Errorf("filter %d is not supported", info.ID)
}

// Pipeline applies the filters of one dataset. Slot i matches bit i of
// a chunk's filter mask; a nil slot is an optional filter this package
// cannot run.
type Pipeline struct {
	slots []Filter
}

// NewPipeline builds the pipeline fp describes. A nil fp gives an empty
// pipeline.
func NewPipeline(fp *message.FilterPipeline) (*Pipeline, error) {
	p := &Pipeline{}
	if fp == nil {
		return p, nil
	}
	for _, info := range fp.Filters {
		f, err := New(info)
		if err != nil {
			return nil, err
		}
		p.slots = append(p.slots, f)
	}
	return p, nil
}

// Decode undoes the pipeline on a stored chunk, last filter first,
// skipping every filter whose bit is set in mask.
func (p *Pipeline) Decode(input []byte, mask uint32) ([]byte, error) {
	data := input
	for i := len(p.slots) - 1; i >= 0; i-- {
		if i < 32 && mask&(1<<i) != 0 {
			continue
		}
		f := p.slots[i]
		if f == nil {
			return nil, fmt.Errorf("chunk was written through optional filter %d, which is not available", i)
		}
		var err error
		if data, err = f.Decode(data); err != nil {
			return nil, fmt.Errorf("filter %d: %w", f.ID(), err)
		}
	}
	return data, nil
}

// Encode runs the pipeline in order and returns the stored chunk and its
// filter mask. Optional filters that are missing are skipped and marked
// in the mask.
func (p *Pipeline) Encode(input []byte) ([]byte, uint32, error) {
	data, mask := input, uint32(0)
	for i, f := range p.slots {
		if f == nil {
			mask |= 1 << i
			continue
		}
		enc, ok := f.(Encoder)
		if !ok {
			return nil, 0, fmt.Errorf("filter %d cannot encode", f.ID())
		}
		var err error
		if data, err = enc.Encode(data); err != nil {
			return nil, 0, fmt.Errorf("filter %d: %w", f.ID(), err)
		}
	}
	return data, mask, nil
}

func (p *Pipeline) Empty() bool { return len(p.slots) == 0 }

func (p *Pipeline) Len() int { return len(p.slots) }
