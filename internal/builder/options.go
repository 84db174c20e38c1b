package builder

import (
	"fmt"
	"strings"

	"github.com/robert-malhotra/go-gtt23/internal/hdf5"
)

// Codec selects the compression of written columns.
type Codec string

const (
	CodecNone    Codec = "none"
	CodecDeflate Codec = "deflate"
	CodecZstd    Codec = "zstd"
)

// DefaultChunk is the number of records per chunk of compressed columns.
const DefaultChunk = 4096

// ParseCodec parses a codec name. The empty string means CodecNone.
func ParseCodec(s string) (Codec, error) {
	switch c := Codec(strings.ToLower(s)); c {
	case "", CodecNone:
		return CodecNone, nil
	case CodecDeflate, CodecZstd:
		return c, nil
	default:
		return "", fmt.Errorf("unknown codec %q (want none, deflate or zstd)", s)
	}
}

// Option configures Write.
type Option func(*options)

type options struct {
	codec Codec
	level int
	chunk uint64
}

func defaultOptions() *options {
	return &options{codec: CodecNone, chunk: DefaultChunk}
}

// WithCompression compresses every column with codec. A level of zero
// selects the codec default.
func WithCompression(codec Codec, level int) Option {
	return func(o *options) {
		o.codec = codec
		o.level = level
	}
}

// WithChunk sets the number of records per chunk of compressed columns.
func WithChunk(n uint64) Option {
	return func(o *options) {
		if n > 0 {
			o.chunk = n
		}
	}
}

// datasetOptions translates the options into dataset creation options.
func (o *options) datasetOptions() []hdf5.DatasetOption {
	switch o.codec {
	case CodecDeflate:
		level := o.level
		if level == 0 {
			level = 6
		}
		return []hdf5.DatasetOption{hdf5.WithChunks(o.chunk), hdf5.WithShuffle(), hdf5.WithCompression(level)}
	case CodecZstd:
		level := o.level
		if level == 0 {
			level = 3
		}
		return []hdf5.DatasetOption{hdf5.WithChunks(o.chunk), hdf5.WithShuffle(), hdf5.WithZstd(level)}
	default:
		return nil
	}
}
