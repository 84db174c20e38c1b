package heap

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
)

var localHeapSignature = []byte("HEAP")

// LocalHeap is the name heap of a version 1 group.
type LocalHeap struct {
	DataSize    uint64
	FreeOffset  uint64
	DataAddress uint64
	data        []byte
}

// ReadLocalHeap reads the heap header at address and its data segment.
func ReadLocalHeap(r *binary.Reader, address uint64) (*LocalHeap, error) {
	hr := r.At(int64(address))
	header, err := hr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("reading local heap signature: %w", err)
	}
	if !bytes.Equal(header[:4], localHeapSignature) {
		return nil, fmt.Errorf("invalid local heap signature: %q", header[:4])
	}
	if header[4] != 0 {
		return nil, fmt.Errorf("unsupported local heap version: %d", header[4])
	}

	lh := &LocalHeap{}
	for _, field := range []*uint64{&lh.DataSize, &lh.FreeOffset} {
		if *field, err = hr.ReadLength(); err != nil {
			return nil, fmt.Errorf("reading local heap header: %w", err)
		}
	}
	if lh.DataAddress, err = hr.ReadOffset(); err != nil {
		return nil, fmt.Errorf("reading local heap header: %w", err)
	}

	if lh.data, err = r.At(int64(lh.DataAddress)).ReadBytes(int(lh.DataSize)); err != nil {
		return nil, fmt.Errorf("reading local heap data: %w", err)
	}
	return lh, nil
}

// GetString returns the null-terminated string at offset, or "" when
// offset is outside the data segment.
func (h *LocalHeap) GetString(offset uint64) string {
	if offset >= uint64(len(h.data)) {
		return ""
	}
	s := h.data[offset:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}
