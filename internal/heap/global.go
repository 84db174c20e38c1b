package heap

import (
	"bytes"
	stdbinary "encoding/binary"
	"fmt"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
)

var globalHeapSignature = []byte("GCOL")

// minCollectionSize is the smallest collection the HDF5 library creates.
const minCollectionSize = 4096

// GlobalHeap is one global heap collection, read whole.
type GlobalHeap struct {
	// CollectionSize is the size of the collection on disk, header included.
	CollectionSize uint64

	objects map[uint16][]byte
}

// GlobalHeapID names an object in a global heap: the address of its
// collection and its index there. It is what variable-length data stores.
type GlobalHeapID struct {
	CollectionAddress uint64
	ObjectIndex       uint32
}

// ReadGlobalHeap reads the collection at address with a single read and
// splits it into objects. Index 0 is the free space and ends the object list.
func ReadGlobalHeap(r *binary.Reader, address uint64) (*GlobalHeap, error) {
	if address == 0 || r.IsUndefinedOffset(address) {
		return nil, fmt.Errorf("invalid global heap address 0x%x", address)
	}
	lengthSize := r.LengthSize()
	headerSize := 8 + lengthSize

	hr := r.At(int64(address))
	header, err := hr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("reading global heap header: %w", err)
	}
	if !bytes.Equal(header[:4], globalHeapSignature) {
		return nil, fmt.Errorf("invalid global heap signature: %q", header[:4])
	}
	if header[4] != 1 {
		return nil, fmt.Errorf("unsupported global heap version: %d", header[4])
	}
	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}
	if size < uint64(headerSize) {
		return nil, fmt.Errorf("global heap collection size %d is smaller than its header", size)
	}
	body, err := hr.ReadBytes(int(size) - headerSize)
	if err != nil {
		return nil, fmt.Errorf("reading global heap collection of %d bytes: %w", size, err)
	}

	gh := &GlobalHeap{CollectionSize: size, objects: make(map[uint16][]byte)}
	br := binary.NewReader(bytes.NewReader(body), binary.Config{
		ByteOrder:  r.ByteOrder(),
		OffsetSize: r.OffsetSize(),
		LengthSize: lengthSize,
	})
	// Each object is an index, a reference count, 4 reserved bytes and
	// its length, then its data padded to a multiple of 8.
	objHeader := int64(8 + lengthSize)
	for br.Pos()+objHeader <= int64(len(body)) {
		index, _ := br.ReadUint16()
		if index == 0 {
			break
		}
		br.Skip(6)
		n, _ := br.ReadLength()
		if n > uint64(int64(len(body))-br.Pos()) {
			return nil, fmt.Errorf("global heap object %d overruns its collection", index)
		}
		gh.objects[index], _ = br.ReadBytes(int(n))
		br.Skip(int64(pad8(n)))
	}
	return gh, nil
}

func pad8(n uint64) uint64 {
	return (8 - n%8) % 8
}

// GetObject returns a copy of object index.
func (h *GlobalHeap) GetObject(index uint16) ([]byte, error) {
	if h == nil {
		return nil, fmt.Errorf("nil global heap")
	}
	data, ok := h.objects[index]
	if !ok {
		return nil, fmt.Errorf("object index %d not found in global heap", index)
	}
	return bytes.Clone(data), nil
}

// GetString returns object index up to its first null byte.
func (h *GlobalHeap) GetString(index uint16) (string, error) {
	data, err := h.GetObject(index)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data), nil
}

// NumObjects is the number of objects in the collection.
func (h *GlobalHeap) NumObjects() int {
	return len(h.objects)
}

// ParseGlobalHeapID decodes an ID stored as a little-endian address of
// offsetSize bytes followed by a 4-byte object index.
func ParseGlobalHeapID(data []byte, offsetSize int) (GlobalHeapID, error) {
	switch offsetSize {
	case 2, 4, 8:
	default:
		return GlobalHeapID{}, fmt.Errorf("unsupported offset size: %d", offsetSize)
	}
	if len(data) < GlobalHeapIDSize(offsetSize) {
		return GlobalHeapID{}, fmt.Errorf("global heap ID too short: need %d bytes, have %d", GlobalHeapIDSize(offsetSize), len(data))
	}
	r := binary.NewReader(bytes.NewReader(data), binary.Config{
		ByteOrder:  stdbinary.LittleEndian,
		OffsetSize: offsetSize,
		LengthSize: offsetSize,
	})
	addr, _ := r.ReadOffset()
	index, _ := r.ReadUint32()
	return GlobalHeapID{CollectionAddress: addr, ObjectIndex: index}, nil
}

// GlobalHeapIDSize is the encoded size of a GlobalHeapID.
func GlobalHeapIDSize(offsetSize int) int {
	return offsetSize + 4
}
