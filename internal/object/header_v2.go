package object

import (
	"fmt"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
	"github.com/robert-malhotra/go-gtt23/internal/message"
)

// Version 2 header flags.
const (
	flagSizeMask      = 0x03 // width of the chunk 0 size field is 1<<(flags&3)
	flagCreationOrder = 0x04 // messages carry a 2-byte creation order
	flagPhaseChange   = 0x10 // attribute storage thresholds follow the flags
	flagTimes         = 0x20 // four timestamps follow the flags
)

// A version 2 header is "OHDR", the version, the flags, the optional
// fields the flags announce and the size of chunk 0. The chunk's messages
// follow, then a lookup3 checksum of everything from the signature on.
// Each message has a header of type (1), size (2), flags (1) and the
// optional creation order. Continuation blocks are "OCHK", messages and a
// checksum of the block.
func openV2(r *binary.Reader, address uint64) (*decoder, chunk, error) {
	hr := r.At(int64(address) + 4)
	version, err := hr.ReadUint8()
	if err != nil {
		return nil, chunk{}, fmt.Errorf("reading object header: %w", err)
	}
	if version != 2 {
		return nil, chunk{}, fmt.Errorf("%w: expected version 2, got %d", ErrUnsupportedVersion, version)
	}
	flags, err := hr.ReadUint8()
	if err != nil {
		return nil, chunk{}, fmt.Errorf("reading object header: %w", err)
	}

	hdr := &Header{Version: 2, Address: address, Flags: flags}
	if flags&flagTimes != 0 {
		for _, t := range []*uint32{&hdr.AccessTime, &hdr.ModTime, &hdr.ChangeTime, &hdr.BirthTime} {
			*t, _ = hr.ReadUint32()
		}
	}
	if flags&flagPhaseChange != 0 {
		hr.Skip(4)
	}
	size, err := hr.ReadUintN(1 << (flags & flagSizeMask))
	if err != nil {
		return nil, chunk{}, fmt.Errorf("reading object header: %w", err)
	}

	first := chunk{start: hr.Pos(), end: hr.Pos() + int64(size)}
	if err := verifyChunk(r, int64(address), first.end); err != nil {
		return nil, chunk{}, err
	}

	msgHeader := int64(4)
	if flags&flagCreationOrder != 0 {
		msgHeader += 2
	}
	d := &decoder{
		r:          r,
		hdr:        hdr,
		minMessage: msgHeader,
		next: func(cr *binary.Reader) (message.Type, uint8, []byte, error) {
			head, err := cr.ReadBytes(int(msgHeader))
			if err != nil {
				return 0, 0, nil, err
			}
			data, err := cr.ReadBytes(int(cr.ByteOrder().Uint16(head[1:])))
			return message.Type(head[0]), head[3], data, err
		},
		open: func(cont *message.Continuation) (chunk, error) {
			start, end := int64(cont.Offset), int64(cont.Offset+cont.Length)-4
			sig, err := r.At(start).ReadBytes(4)
			if err != nil {
				return chunk{}, fmt.Errorf("reading continuation block: %w", err)
			}
			if string(sig) != string(continuationSignature) {
				return chunk{}, fmt.Errorf("%w: continuation block signature %q", ErrInvalidHeader, sig)
			}
			if err := verifyChunk(r, start, end); err != nil {
				return chunk{}, err
			}
			return chunk{start: start + 4, end: end}, nil
		},
	}
	return d, first, nil
}

// verifyChunk checks the lookup3 checksum stored at end against the bytes
// from start to end.
func verifyChunk(r *binary.Reader, start, end int64) error {
	if end < start {
		return fmt.Errorf("%w: chunk at 0x%x ends before it starts", ErrInvalidHeader, start)
	}
	cr := r.At(start)
	covered, err := cr.ReadBytes(int(end - start))
	if err != nil {
		return fmt.Errorf("reading header chunk: %w", err)
	}
	stored, err := cr.ReadUint32()
	if err != nil {
		return fmt.Errorf("reading header checksum: %w", err)
	}
	if !binary.VerifyLookup3(covered, stored) {
		return fmt.Errorf("%w at 0x%x", ErrChecksumMismatch, start)
	}
	return nil
}
