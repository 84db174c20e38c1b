package dtype

import (
	"bytes"
	stdbinary "encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
	"github.com/robert-malhotra/go-gtt23/internal/heap"
	"github.com/robert-malhotra/go-gtt23/internal/message"
)

type memFile struct {
	buf []byte
}

func (m *memFile) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.buf) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[off:], p)
	return len(p), nil
}

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// seqFixture writes one global heap holding the given float64 sequences and
// returns the encoded references plus a reader over the heap.
func seqFixture(t *testing.T, seqs [][]float64) ([]byte, *binary.Reader) {
	t.Helper()

	cfg := binary.Config{ByteOrder: stdbinary.LittleEndian, OffsetSize: 8, LengthSize: 8}
	file := &memFile{}
	w := binary.NewWriter(file, cfg)

	next := uint64(64)
	ghw := heap.NewGlobalHeapWriter(w, func(size int64) uint64 {
		addr := next
		next += uint64(size)
		return addr
	})

	indexes := make([]uint16, len(seqs))
	for i, s := range seqs {
		if len(s) == 0 {
			continue
		}
		obj := make([]byte, 8*len(s))
		for j, v := range s {
			stdbinary.LittleEndian.PutUint64(obj[8*j:], math.Float64bits(v))
		}
		indexes[i] = ghw.AddObject(obj)
	}
	_, ids, err := ghw.Write()
	if err != nil {
		t.Fatalf("writing heap: %v", err)
	}

	refs := &memFile{}
	rw := binary.NewWriter(refs, cfg)
	for i, s := range seqs {
		if err := rw.WriteUint32(uint32(len(s))); err != nil {
			t.Fatal(err)
		}
		if err := heap.WriteGlobalHeapID(rw, ids[indexes[i]]); err != nil {
			t.Fatal(err)
		}
	}

	return refs.buf, binary.NewReader(bytes.NewReader(file.buf), cfg)
}

func TestConvertVarLenSequence(t *testing.T) {
	seqs := [][]float64{
		{0, 0.25, 1.5},
		{},
		{42},
	}
	data, reader := seqFixture(t, seqs)

	dt := message.NewVarLenSequenceDatatype(message.NewFloatDatatype(8, message.OrderLE), 8)

	var got [][]float64
	if err := ConvertWithReader(dt, data, uint64(len(seqs)), &got, reader); err != nil {
		t.Fatalf("ConvertWithReader: %v", err)
	}
	if len(got) != len(seqs) {
		t.Fatalf("got %d sequences, want %d", len(got), len(seqs))
	}
	for i := range seqs {
		if got[i] == nil {
			t.Errorf("sequence %d is nil, want empty slice", i)
		}
		if len(got[i]) != len(seqs[i]) {
			t.Fatalf("sequence %d has %d elements, want %d", i, len(got[i]), len(seqs[i]))
		}
		for j := range seqs[i] {
			if got[i][j] != seqs[i][j] {
				t.Errorf("got[%d][%d] = %v, want %v", i, j, got[i][j], seqs[i][j])
			}
		}
	}
}

func TestConvertVarLenSequenceWidens(t *testing.T) {
	data, reader := seqFixture(t, [][]float64{{1, 2}})
	dt := message.NewVarLenSequenceDatatype(message.NewFloatDatatype(8, message.OrderLE), 8)

	// float64 elements into a non-matching float32 destination take the slow path.
	var got [][]float32
	if err := ConvertWithReader(dt, data, 1, &got, reader); err != nil {
		t.Fatalf("ConvertWithReader: %v", err)
	}
	if len(got) != 1 || len(got[0]) != 2 || got[0][1] != 2 {
		t.Errorf("got %v, want [[1 2]]", got)
	}
}

func TestConvertVarLenSequenceErrors(t *testing.T) {
	data, reader := seqFixture(t, [][]float64{{1}})
	dt := message.NewVarLenSequenceDatatype(message.NewFloatDatatype(8, message.OrderLE), 8)

	var flat []float64
	if err := ConvertWithReader(dt, data, 1, &flat, reader); err == nil {
		t.Error("expected error for flat destination")
	}

	var nested [][]float64
	if err := Convert(dt, data, 1, &nested); err == nil {
		t.Error("expected error without reader")
	}

	if err := ConvertWithReader(dt, data[:4], 1, &nested, reader); err == nil {
		t.Error("expected error for truncated reference")
	}

	// Claim more elements than the heap object holds.
	bad := append([]byte(nil), data...)
	bad[0] = 9
	if err := ConvertWithReader(dt, bad, 1, &nested, reader); err == nil {
		t.Error("expected error for short heap object")
	}
}
