package heap

import (
	"github.com/robert-malhotra/go-gtt23/internal/binary"
)

// GlobalHeapWriter collects objects and writes them as one collection.
type GlobalHeapWriter struct {
	w        *binary.Writer
	allocate func(size int64) uint64
	objects  [][]byte
}

// NewGlobalHeapWriter returns a writer that places its collection at the
// address allocate returns.
func NewGlobalHeapWriter(w *binary.Writer, allocate func(size int64) uint64) *GlobalHeapWriter {
	return &GlobalHeapWriter{w: w, allocate: allocate}
}

// AddObject queues data and returns the index it will have. Indexes start
// at 1.
func (ghw *GlobalHeapWriter) AddObject(data []byte) uint16 {
	ghw.objects = append(ghw.objects, data)
	return uint16(len(ghw.objects))
}

// AddString queues s with a null terminator.
func (ghw *GlobalHeapWriter) AddString(s string) uint16 {
	return ghw.AddObject(append([]byte(s), 0))
}

// Write writes the collection and returns its address and the ID of every
// object by index. Nothing is written when no object was added.
//
// The collection is padded to at least 4096 bytes, and any space after the
// last object is described by a free-space object with index 0.
func (ghw *GlobalHeapWriter) Write() (uint64, map[uint16]GlobalHeapID, error) {
	if len(ghw.objects) == 0 {
		return 0, nil, nil
	}

	// The collection header and each object header are both 8 bytes and
	// a length.
	objHeader := uint64(8 + ghw.w.LengthSize())
	used := objHeader
	for _, obj := range ghw.objects {
		n := uint64(len(obj))
		used += objHeader + n + pad8(n)
	}
	// Room for the free-space object header is always kept, and sizes stay
	// multiples of 8.
	size := max(used+objHeader, minCollectionSize)
	size += pad8(size)

	addr := ghw.allocate(int64(size))
	buf := &memWriterAt{buf: make([]byte, 0, size)}
	w := binary.NewWriter(buf, binary.Config{
		ByteOrder:  ghw.w.ByteOrder(),
		OffsetSize: ghw.w.OffsetSize(),
		LengthSize: ghw.w.LengthSize(),
	})

	w.WriteBytes(globalHeapSignature)
	w.WriteUint8(1)
	w.WriteZeros(3)
	w.WriteLength(size)

	ids := make(map[uint16]GlobalHeapID, len(ghw.objects))
	for i, obj := range ghw.objects {
		index := uint16(i + 1)
		w.WriteUint16(index)
		w.WriteUint16(1) // reference count
		w.WriteZeros(4)
		w.WriteLength(uint64(len(obj)))
		w.WriteBytes(obj)
		w.WriteZeros(int(pad8(uint64(len(obj)))))
		ids[index] = GlobalHeapID{CollectionAddress: addr, ObjectIndex: uint32(index)}
	}

	// The free-space object's length covers its own header.
	free := size - uint64(w.Pos())
	w.WriteUint16(0)
	w.WriteZeros(6)
	w.WriteLength(free)
	w.WriteZeros(int(size) - int(w.Pos()))

	if err := ghw.w.At(int64(addr)).WriteBytes(buf.buf); err != nil {
		return 0, nil, err
	}
	return addr, ids, nil
}

// WriteGlobalHeapID writes id as a collection address and a 4-byte index.
func WriteGlobalHeapID(w *binary.Writer, id GlobalHeapID) error {
	if err := w.WriteOffset(id.CollectionAddress); err != nil {
		return err
	}
	return w.WriteUint32(id.ObjectIndex)
}

// memWriterAt grows to hold whatever is written.
type memWriterAt struct {
	buf []byte
}

func (m *memWriterAt) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	return copy(m.buf[off:], p), nil
}
