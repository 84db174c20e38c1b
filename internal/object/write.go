package object

import (
	"fmt"
	"math"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
	"github.com/robert-malhotra/go-gtt23/internal/message"
)

// MinGroupChunkSize is the chunk 0 size h5py gives group headers, which
// leaves room for links to be added in place.
const MinGroupChunkSize = 120

// nilHeaderSize is the header of the NIL message that fills unused space.
const nilHeaderSize = 4

// layoutV2 is the shape of a version 2 header holding a set of messages.
type layoutV2 struct {
	messages  int // message headers and data
	chunk     int // chunk 0 size, messages plus padding
	sizeField int // width of the chunk 0 size field
}

func planV2(w *binary.Writer, messages []message.Message, minChunkSize int) (layoutV2, error) {
	var l layoutV2
	for _, msg := range messages {
		s, ok := msg.(message.Serializable)
		if !ok {
			continue
		}
		size := s.SerializedSize(w)
		if size > math.MaxUint16 {
			return l, fmt.Errorf("%v message of %d bytes does not fit an object header", msg.Type(), size)
		}
		l.messages += nilHeaderSize + size
	}

	l.chunk = max(l.messages, minChunkSize)
	// Padding too small for a NIL message header is widened to one.
	if pad := l.chunk - l.messages; pad > 0 && pad < nilHeaderSize {
		l.chunk = l.messages + nilHeaderSize
	}
	switch {
	case l.chunk <= math.MaxUint8:
		l.sizeField = 1
	case l.chunk <= math.MaxUint16:
		l.sizeField = 2
	default:
		l.sizeField = 4
	}
	return l, nil
}

// total is the header's size on disk: signature, version, flags, size
// field, chunk 0 and checksum.
func (l layoutV2) total() int {
	return 4 + 1 + 1 + l.sizeField + l.chunk + 4
}

// WriteHeader writes messages as a version 2 object header at the
// position of w and returns the bytes written. Messages that cannot be
// serialized are left out.
func WriteHeader(w *binary.Writer, messages []message.Message) (int64, error) {
	return WriteHeaderWithMinChunk(w, messages, 0)
}

// WriteHeaderWithMinChunk is WriteHeader with chunk 0 padded to at least
// minChunkSize bytes.
func WriteHeaderWithMinChunk(w *binary.Writer, messages []message.Message, minChunkSize int) (int64, error) {
	l, err := planV2(w, messages, minChunkSize)
	if err != nil {
		return 0, err
	}

	buf := &memWriterAt{buf: make([]byte, 0, l.total())}
	bw := binary.NewWriter(buf, binary.Config{
		ByteOrder:  w.ByteOrder(),
		OffsetSize: w.OffsetSize(),
		LengthSize: w.LengthSize(),
	})

	// Flags only carry the width of the size field.
	bw.WriteBytes(SignatureV2)
	bw.WriteBytes([]byte{2, byte(l.sizeField >> 1)})
	bw.WriteUintN(uint64(l.chunk), l.sizeField)

	for _, msg := range messages {
		s, ok := msg.(message.Serializable)
		if !ok {
			continue
		}
		bw.WriteUint8(uint8(msg.Type()))
		bw.WriteUint16(uint16(s.SerializedSize(bw)))
		bw.WriteUint8(0)
		if err := s.Serialize(bw); err != nil {
			return 0, fmt.Errorf("writing %v message: %w", msg.Type(), err)
		}
	}
	// A NIL message holds at most 64 KiB, so large padding takes several.
	for pad := l.chunk - l.messages; pad > 0; {
		n := min(pad, nilHeaderSize+math.MaxUint16)
		if rest := pad - n; rest > 0 && rest < nilHeaderSize {
			n -= nilHeaderSize
		}
		bw.WriteUint8(uint8(message.TypeNIL))
		bw.WriteUint16(uint16(n - nilHeaderSize))
		bw.WriteZeros(n - 3)
		pad -= n
	}
	bw.WriteUint32(binary.Lookup3Checksum(buf.buf))

	if len(buf.buf) != l.total() {
		return 0, fmt.Errorf("object header is %d bytes, planned %d", len(buf.buf), l.total())
	}
	if err := w.WriteBytes(buf.buf); err != nil {
		return 0, err
	}
	return int64(len(buf.buf)), nil
}

// HeaderSize is the size WriteHeader would write.
func HeaderSize(w *binary.Writer, messages []message.Message) int {
	return HeaderSizeWithMinChunk(w, messages, 0)
}

// HeaderSizeWithMinChunk is the size WriteHeaderWithMinChunk would write.
// Messages too large for a header are not counted.
func HeaderSizeWithMinChunk(w *binary.Writer, messages []message.Message, minChunkSize int) int {
	l, _ := planV2(w, messages, minChunkSize)
	return l.total()
}

// NewEmptyGroupHeader returns the messages of a group with no links. The
// link info and group info messages mark it as a new-style group.
func NewEmptyGroupHeader() []message.Message {
	return NewGroupHeader(nil)
}

// NewGroupHeader returns the messages of a group holding links.
func NewGroupHeader(links []*message.Link) []message.Message {
	messages := make([]message.Message, 0, len(links)+2)
	messages = append(messages, message.NewLinkInfo(), message.NewGroupInfo())
	for _, link := range links {
		messages = append(messages, link)
	}
	return messages
}

// NewDatasetHeader returns the messages that define a dataset.
func NewDatasetHeader(dataspace *message.Dataspace, datatype *message.Datatype, layout *message.DataLayout) []message.Message {
	return []message.Message{dataspace, datatype, layout}
}

type memWriterAt struct {
	buf []byte
}

func (m *memWriterAt) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	return copy(m.buf[off:], p), nil
}
