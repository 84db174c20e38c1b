package filter

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/robert-malhotra/go-gtt23/internal/message"
)

// Zstd is registered filter 32015. Its optional client data is the
// compression level.
type Zstd struct {
	level zstd.EncoderLevel

	once sync.Once
	enc  *zstd.Encoder
	err  error
}

func NewZstd(clientData []uint32) *Zstd {
	level := zstd.SpeedDefault
	if len(clientData) > 0 && clientData[0] > 0 {
		level = zstd.EncoderLevelFromZstd(int(clientData[0]))
	}
	return &Zstd{level: level}
}

func (f *Zstd) ID() uint16 { return message.FilterZstd }

// zstdDecoder serves every Zstd filter; DecodeAll is safe for concurrent
// use.
var zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
})

func (f *Zstd) Decode(input []byte) ([]byte, error) {
	dec, err := zstdDecoder()
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	out, err := dec.DecodeAll(input, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	return out, nil
}

// Encode writes input as a single frame.
func (f *Zstd) Encode(input []byte) ([]byte, error) {
	f.once.Do(func() {
		f.enc, f.err = zstd.NewWriter(nil, zstd.WithEncoderLevel(f.level))
	})
	if f.err != nil {
		return nil, fmt.Errorf("zstd: %w", f.err)
	}
	return f.enc.EncodeAll(input, make([]byte, 0, len(input)/2)), nil
}
