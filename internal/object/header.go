package object

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
	"github.com/robert-malhotra/go-gtt23/internal/message"
)

// SignatureV2 starts a version 2 object header. Its continuation blocks
// start with "OCHK".
var (
	SignatureV2           = []byte("OHDR")
	continuationSignature = []byte("OCHK")
)

var (
	ErrInvalidHeader      = errors.New("invalid object header")
	ErrUnsupportedVersion = errors.New("unsupported object header version")
	ErrChecksumMismatch   = errors.New("object header checksum mismatch")
)

// Header is a decoded object header.
type Header struct {
	Version uint8
	Address uint64

	// Flags is the version 2 flags byte.
	Flags uint8

	// RefCount is only stored by version 1 headers.
	RefCount uint32

	// Messages holds every message of every chunk, chunk by chunk. NIL and
	// continuation messages are not included.
	Messages []message.Message

	// Skipped holds the errors of messages that could not be decoded and
	// were left out of Messages.
	Skipped []error

	// Version 2 timestamps, present when flag bit 5 is set.
	AccessTime uint32
	ModTime    uint32
	ChangeTime uint32
	BirthTime  uint32
}

// GetMessage returns the first message of type typ, or nil.
func (h *Header) GetMessage(typ message.Type) message.Message {
	for _, msg := range h.Messages {
		if msg.Type() == typ {
			return msg
		}
	}
	return nil
}

// GetMessages returns every message of type typ in order.
func (h *Header) GetMessages(typ message.Type) []message.Message {
	var result []message.Message
	for _, msg := range h.Messages {
		if msg.Type() == typ {
			result = append(result, msg)
		}
	}
	return result
}

func first[T message.Message](h *Header, typ message.Type) T {
	msg, _ := h.GetMessage(typ).(T)
	return msg
}

func (h *Header) Dataspace() *message.Dataspace {
	return first[*message.Dataspace](h, message.TypeDataspace)
}

func (h *Header) Datatype() *message.Datatype {
	return first[*message.Datatype](h, message.TypeDatatype)
}

func (h *Header) DataLayout() *message.DataLayout {
	return first[*message.DataLayout](h, message.TypeDataLayout)
}

func (h *Header) FilterPipeline() *message.FilterPipeline {
	return first[*message.FilterPipeline](h, message.TypeFilterPipeline)
}

// Read decodes the object header at address, following its continuation
// blocks.
func Read(r *binary.Reader, address uint64) (*Header, error) {
	peek, err := r.At(int64(address)).Peek(4)
	if err != nil {
		return nil, fmt.Errorf("reading object header: %w", err)
	}

	var d *decoder
	var first chunk
	switch {
	case bytes.Equal(peek, SignatureV2):
		d, first, err = openV2(r, address)
	case peek[0] == 1:
		d, first, err = openV1(r, address)
	default:
		return nil, fmt.Errorf("%w: unknown format at address %d", ErrInvalidHeader, address)
	}
	if err != nil {
		return nil, err
	}
	if err := d.run(first); err != nil {
		return nil, err
	}
	return d.hdr, nil
}

// chunk is a run of messages in [start, end).
type chunk struct {
	start, end int64
}

// decoder walks the chunks of one header. The version specific parts are
// how a message header is read and how a continuation block is opened.
type decoder struct {
	r   *binary.Reader
	hdr *Header

	// minMessage is the size of a message header. Less room than that at
	// the end of a chunk is a gap.
	minMessage int64

	next func(cr *binary.Reader) (typ message.Type, flags uint8, data []byte, err error)
	open func(cont *message.Continuation) (chunk, error)
}

func (d *decoder) run(first chunk) error {
	queue := []chunk{first}
	seen := make(map[int64]bool)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if seen[c.start] {
			return fmt.Errorf("%w: continuation loop at 0x%x", ErrInvalidHeader, c.start)
		}
		seen[c.start] = true

		cr := d.r.At(c.start)
		for cr.Pos()+d.minMessage <= c.end {
			at := cr.Pos()
			typ, flags, data, err := d.next(cr)
			if err != nil {
				return fmt.Errorf("reading message at 0x%x: %w", at, err)
			}
			if cr.Pos() > c.end {
				return fmt.Errorf("%w: message at 0x%x overruns its chunk", ErrInvalidHeader, at)
			}

			switch typ {
			case message.TypeNIL:
				continue
			case message.TypeObjectHeaderContinuation:
				cont, err := message.ParseContinuation(data, d.r)
				if err != nil {
					return err
				}
				next, err := d.open(cont)
				if err != nil {
					return err
				}
				queue = append(queue, next)
				continue
			}

			msg, err := message.Parse(typ, data, flags, d.r)
			if err != nil {
				d.hdr.Skipped = append(d.hdr.Skipped, fmt.Errorf("message type %d at 0x%x: %w", typ, at, err))
				continue
			}
			d.hdr.Messages = append(d.hdr.Messages, msg)
		}
	}
	return nil
}
