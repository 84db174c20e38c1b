package filter

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"

	"github.com/robert-malhotra/go-gtt23/internal/message"
)

// Deflate is the zlib filter. Its client data is the compression level.
type Deflate struct {
	level int
}

func NewDeflate(clientData []uint32) *Deflate {
	level := zlib.DefaultCompression
	if len(clientData) > 0 {
		level = int(clientData[0])
	}
	return &Deflate{level: level}
}

func (f *Deflate) ID() uint16 { return message.FilterDeflate }

// zlibReaders keeps inflaters for reuse; chunk reads are frequent and
// each fresh reader allocates its window.
var zlibReaders sync.Pool

func (f *Deflate) Decode(input []byte) ([]byte, error) {
	src := bytes.NewReader(input)
	var (
		r   io.ReadCloser
		err error
	)
	if pooled, ok := zlibReaders.Get().(io.ReadCloser); ok {
		r = pooled
		err = r.(zlib.Resetter).Reset(src, nil)
	} else {
		r, err = zlib.NewReader(src)
	}
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	defer zlibReaders.Put(r)

	var out bytes.Buffer
	out.Grow(4 * len(input))
	if _, err := io.Copy(&out, r); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	return out.Bytes(), nil
}

func (f *Deflate) Encode(input []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, f.level)
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if _, err := w.Write(input); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	return buf.Bytes(), nil
}
