package filter

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/klauspost/compress/zlib"

	binpkg "github.com/robert-malhotra/go-gtt23/internal/binary"
	"github.com/robert-malhotra/go-gtt23/internal/message"
)

func TestFilterRoundTrip(t *testing.T) {
	sizes := make([]byte, 8*300)
	for i := range sizes {
		sizes[i] = byte(i / 8)
	}
	tests := []struct {
		name   string
		f      Encoder
		id     uint16
		input  []byte
		shrink bool
	}{
		{"deflate", NewDeflate([]uint32{9}), message.FilterDeflate, bytes.Repeat([]byte("cells "), 200), true},
		{"deflate default", NewDeflate(nil), message.FilterDeflate, sizes, true},
		{"deflate empty", NewDeflate(nil), message.FilterDeflate, nil, false},
		{"zstd", NewZstd(nil), message.FilterZstd, bytes.Repeat([]byte{1, 2, 3, 4}, 1000), true},
		{"zstd level 19", NewZstd([]uint32{19}), message.FilterZstd, bytes.Repeat([]byte("trace"), 500), true},
		{"shuffle", NewShuffle([]uint32{8}), message.FilterShuffle, sizes, false},
		{"shuffle tail", NewShuffle([]uint32{4}), message.FilterShuffle, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, false},
		{"fletcher32", NewFletcher32(nil), message.FilterFletcher32, []byte("timestamps and sizes"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.f.ID() != tt.id {
				t.Fatalf("ID() = %d, want %d", tt.f.ID(), tt.id)
			}
			stored, err := tt.f.Encode(tt.input)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if tt.shrink && len(stored) >= len(tt.input) {
				t.Errorf("encoded %d bytes to %d", len(tt.input), len(stored))
			}
			got, err := tt.f.Decode(stored)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !bytes.Equal(got, tt.input) {
				t.Fatalf("round trip gave %d bytes, want %d", len(got), len(tt.input))
			}
		})
	}
}

func TestDeflateReadsZlib(t *testing.T) {
	want := []byte("Hello, World! This is test data for compression testing.")
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(want)
	w.Close()

	f := NewDeflate(nil)
	// Twice, so the second read goes through a pooled reader.
	for range 2 {
		got, err := f.Decode(buf.Bytes())
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestShuffleLayout(t *testing.T) {
	elements := []byte{
		0x01, 0x02, 0x03, 0x04,
		0x11, 0x12, 0x13, 0x14,
		0x21, 0x22, 0x23, 0x24,
		0xAA, 0xBB,
	}
	planes := []byte{
		0x01, 0x11, 0x21,
		0x02, 0x12, 0x22,
		0x03, 0x13, 0x23,
		0x04, 0x14, 0x24,
		0xAA, 0xBB,
	}
	f := NewShuffle([]uint32{4})
	got, _ := f.Encode(elements)
	if !bytes.Equal(got, planes) {
		t.Errorf("Encode = % x, want % x", got, planes)
	}
	got, _ = f.Decode(planes)
	if !bytes.Equal(got, elements) {
		t.Errorf("Decode = % x, want % x", got, elements)
	}

	one := []byte{1, 2, 3, 4, 5}
	if got, _ := NewShuffle([]uint32{1}).Decode(one); !bytes.Equal(got, one) {
		t.Errorf("1-byte elements changed: %v", got)
	}
}

func TestDecodeErrors(t *testing.T) {
	data := []byte("test data for checksum")
	bad := binary.LittleEndian.AppendUint32(bytes.Clone(data), 0xEFBEADDE)
	short := binary.BigEndian.AppendUint16(bytes.Clone(data), 0)
	sum := binpkg.Fletcher32(data)
	// Libraries before 1.6.3 stored each half byte-swapped.
	legacy := binary.LittleEndian.AppendUint32(bytes.Clone(data), (sum&0x00ff00ff)<<8|(sum&0xff00ff00)>>8)

	tests := []struct {
		name    string
		f       Filter
		input   []byte
		wantErr string
	}{
		{"fletcher32 mismatch", NewFletcher32(nil), bad, "checksum"},
		{"fletcher32 short", NewFletcher32(nil), []byte{1, 2}, "cannot hold"},
		{"fletcher32 legacy order", NewFletcher32(nil), legacy, ""},
		{"fletcher32 half a sum", NewFletcher32(nil), short, "checksum"},
		{"deflate garbage", NewDeflate(nil), []byte("not zlib"), "deflate"},
		{"zstd garbage", NewZstd(nil), []byte("definitely not a zstd frame"), "zstd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.f.Decode(tt.input)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Decode: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("got error %v, want one mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		info    message.FilterInfo
		wantNil bool
		wantErr string
	}{
		{"szip required", message.FilterInfo{ID: message.FilterSZIP}, false, "szip"},
		{"named custom", message.FilterInfo{ID: 32008, Name: "bitshuffle"}, false, "bitshuffle"},
		{"unknown required", message.FilterInfo{ID: 40000}, false, "40000"},
		{"unknown optional", message.FilterInfo{ID: 40000, Flags: 1}, true, ""},
		{"zstd", message.FilterInfo{ID: message.FilterZstd}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.info)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("got error %v, want one mentioning %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if (f == nil) != tt.wantNil {
				t.Errorf("New() = %v, wantNil %v", f, tt.wantNil)
			}
		})
	}
}

func TestPipeline(t *testing.T) {
	fp := message.NewFilterPipeline(
		message.FilterInfo{ID: message.FilterShuffle, ClientData: []uint32{8}},
		message.FilterInfo{ID: message.FilterZstd, Name: "zstd", ClientData: []uint32{3}},
		message.FilterInfo{ID: message.FilterFletcher32},
	)
	p, err := NewPipeline(fp)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if p.Empty() || p.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", p.Len())
	}

	original := make([]byte, 8*256)
	for i := range original {
		original[i] = byte(i / 8)
	}
	stored, mask, err := p.Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if mask != 0 {
		t.Errorf("mask = %#x, want 0", mask)
	}
	got, err := p.Decode(stored, mask)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Error("pipeline round trip mismatch")
	}

	// With the checksum masked out, the stored bytes carry none.
	stored, _ = NewFletcher32(nil).Encode(original)
	if _, err := p.Decode(stored, 0x3); err != nil {
		t.Errorf("decode with shuffle and zstd skipped: %v", err)
	}
}

func TestPipelineOptionalSlot(t *testing.T) {
	// The missing optional filter keeps its slot, so mask bit 1 still
	// names fletcher32.
	fp := message.NewFilterPipeline(
		message.FilterInfo{ID: 40000, Flags: 1},
		message.FilterInfo{ID: message.FilterFletcher32},
	)
	p, err := NewPipeline(fp)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}

	data := []byte("circuit 7")
	stored, mask, err := p.Encode(data)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if mask != 0x1 || len(stored) != len(data)+4 {
		t.Fatalf("Encode gave mask %#x and %d bytes", mask, len(stored))
	}
	got, err := p.Decode(stored, mask)
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("Decode = %q, %v", got, err)
	}
	if got, err := p.Decode(data, 0x3); err != nil || !bytes.Equal(got, data) {
		t.Errorf("fully masked Decode = %q, %v", got, err)
	}
	if _, err := p.Decode(stored, 0); err == nil || !strings.Contains(err.Error(), "not available") {
		t.Errorf("expected missing optional filter error, got %v", err)
	}
}

func TestPipelineEmpty(t *testing.T) {
	p, err := NewPipeline(nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if !p.Empty() {
		t.Fatal("expected empty pipeline")
	}
	data := []byte("unchanged")
	if got, err := p.Decode(data, 0); err != nil || !bytes.Equal(got, data) {
		t.Errorf("Decode = %q, %v", got, err)
	}
	if _, err := NewPipeline(message.NewFilterPipeline(message.FilterInfo{ID: message.FilterNBit})); err == nil {
		t.Error("expected error for required n-bit filter")
	}
}
