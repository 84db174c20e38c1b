package hdf5

import "github.com/robert-malhotra/go-gtt23/internal/message"

// FileOption configures file creation options.
type FileOption func(*fileOptions)

type fileOptions struct {
	offsetSize int
	lengthSize int
}

func defaultFileOptions() *fileOptions {
	return &fileOptions{
		offsetSize: 8,
		lengthSize: 8,
	}
}

// WithOffsetSize sets the size in bytes for file offsets (2, 4, or 8).
func WithOffsetSize(size int) FileOption {
	return func(o *fileOptions) {
		if size == 2 || size == 4 || size == 8 {
			o.offsetSize = size
		}
	}
}

// WithLengthSize sets the size in bytes for lengths (2, 4, or 8).
func WithLengthSize(size int) FileOption {
	return func(o *fileOptions) {
		if size == 2 || size == 4 || size == 8 {
			o.lengthSize = size
		}
	}
}

// DatasetOption configures dataset creation options.
type DatasetOption func(*datasetOptions)

// attrDef holds an attribute definition for creation.
type attrDef struct {
	name  string
	value interface{}
}

type datasetOptions struct {
	chunks         []uint64
	maxDims        []uint64
	compressionLvl int
	zstdLvl        int
	shuffle        bool
	fletcher32     bool
	stringWidth    int
	attributes     []attrDef
}

// DefaultChunkElements is the chunk length used for filtered 1-D datasets
// created without WithChunks.
const DefaultChunkElements = 4096

func applyDatasetOptions(opts []DatasetOption) *datasetOptions {
	o := &datasetOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// pipeline builds the filter pipeline message for the selected filters, in
// the order shuffle, compression, checksum. It returns nil when no filter
// is selected.
func (o *datasetOptions) pipeline(elemSize uint32) *message.FilterPipeline {
	var filters []message.FilterInfo
	if o.shuffle {
		filters = append(filters, message.FilterInfo{ID: message.FilterShuffle, ClientData: []uint32{elemSize}})
	}
	switch {
	case o.zstdLvl > 0:
		filters = append(filters, message.FilterInfo{ID: message.FilterZstd, Name: "zstd", ClientData: []uint32{uint32(o.zstdLvl)}})
	case o.compressionLvl > 0:
		filters = append(filters, message.FilterInfo{ID: message.FilterDeflate, ClientData: []uint32{uint32(o.compressionLvl)}})
	}
	if o.fletcher32 {
		filters = append(filters, message.FilterInfo{ID: message.FilterFletcher32})
	}
	if len(filters) == 0 {
		return nil
	}
	return message.NewFilterPipeline(filters...)
}

// WithChunks sets the chunk dimensions for a chunked dataset.
func WithChunks(dims ...uint64) DatasetOption {
	return func(o *datasetOptions) {
		o.chunks = dims
	}
}

// WithMaxDims sets the maximum dimensions for a resizable dataset.
// Use 0 for unlimited dimension. Resizable datasets are chunked, with
// their chunks indexed by an extensible array.
func WithMaxDims(dims ...uint64) DatasetOption {
	return func(o *datasetOptions) {
		o.maxDims = make([]uint64, len(dims))
		for i, d := range dims {
			if d == 0 {
				d = message.Unlimited
			}
			o.maxDims[i] = d
		}
	}
}

func (o *datasetOptions) resizable() bool {
	for _, d := range o.maxDims {
		if d == message.Unlimited {
			return true
		}
	}
	return false
}

// WithCompression enables deflate compression at the given level (1-9, 0 = none).
func WithCompression(level int) DatasetOption {
	return func(o *datasetOptions) {
		if level >= 0 && level <= 9 {
			o.compressionLvl = level
		}
	}
}

// WithZstd enables Zstandard compression (filter 32015) at the given level
// (1-22, 0 = none). It takes precedence over WithCompression.
func WithZstd(level int) DatasetOption {
	return func(o *datasetOptions) {
		if level >= 0 && level <= 22 {
			o.zstdLvl = level
		}
	}
}

// WithShuffle enables the shuffle filter (improves compression).
func WithShuffle() DatasetOption {
	return func(o *datasetOptions) {
		o.shuffle = true
	}
}

// WithFletcher32 enables Fletcher32 checksum validation.
func WithFletcher32() DatasetOption {
	return func(o *datasetOptions) {
		o.fletcher32 = true
	}
}

// WithStringWidth fixes the element width of CreateStringDataset instead of
// deriving it from the longest value.
func WithStringWidth(n int) DatasetOption {
	return func(o *datasetOptions) {
		o.stringWidth = n
	}
}

// WithAttribute adds an attribute to the dataset.
// The value can be a scalar or slice of: int, int8-64, uint, uint8-64, float32, float64, string.
// Multiple WithAttribute options can be used to add multiple attributes.
func WithAttribute(name string, value interface{}) DatasetOption {
	return func(o *datasetOptions) {
		o.attributes = append(o.attributes, attrDef{name: name, value: value})
	}
}
