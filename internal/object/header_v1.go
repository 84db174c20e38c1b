package object

import (
	"fmt"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
	"github.com/robert-malhotra/go-gtt23/internal/message"
)

// A version 1 header is 16 bytes: version, reserved, message count (2),
// reference count (4), size of the first chunk (4) and padding to 8.
// Each message has an 8-byte header of type (2), size (2), flags (1) and
// 3 reserved bytes, and its data is padded to a multiple of 8.
// Continuation blocks hold bare messages.
func openV1(r *binary.Reader, address uint64) (*decoder, chunk, error) {
	prefix, err := r.At(int64(address)).ReadBytes(16)
	if err != nil {
		return nil, chunk{}, fmt.Errorf("reading object header: %w", err)
	}
	if prefix[0] != 1 {
		return nil, chunk{}, fmt.Errorf("%w: expected version 1, got %d", ErrUnsupportedVersion, prefix[0])
	}

	order := r.ByteOrder()
	hdr := &Header{
		Version:  1,
		Address:  address,
		RefCount: order.Uint32(prefix[4:]),
		Messages: make([]message.Message, 0, order.Uint16(prefix[2:])),
	}
	start := int64(address) + 16
	first := chunk{start: start, end: start + int64(order.Uint32(prefix[8:]))}

	d := &decoder{
		r:          r,
		hdr:        hdr,
		minMessage: 8,
		next:       nextV1,
		open: func(cont *message.Continuation) (chunk, error) {
			return chunk{start: int64(cont.Offset), end: int64(cont.Offset + cont.Length)}, nil
		},
	}
	return d, first, nil
}

func nextV1(cr *binary.Reader) (message.Type, uint8, []byte, error) {
	head, err := cr.ReadBytes(8)
	if err != nil {
		return 0, 0, nil, err
	}
	order := cr.ByteOrder()
	size := int(order.Uint16(head[2:]))
	data, err := cr.ReadBytes(size)
	if err != nil {
		return 0, 0, nil, err
	}
	cr.Skip(int64((8 - size%8) % 8))
	return message.Type(order.Uint16(head)), head[4], data, nil
}
