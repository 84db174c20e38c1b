package hdf5

import (
	"fmt"
	"path"
	"reflect"

	"github.com/robert-malhotra/go-gtt23/internal/dtype"
	"github.com/robert-malhotra/go-gtt23/internal/filter"
	"github.com/robert-malhotra/go-gtt23/internal/heap"
	"github.com/robert-malhotra/go-gtt23/internal/layout"
	"github.com/robert-malhotra/go-gtt23/internal/message"
	"github.com/robert-malhotra/go-gtt23/internal/object"
)

// Limits for one global heap collection written by CreateVarLenDataset.
const (
	maxHeapObjects   = 0xFFFF
	maxHeapCollBytes = 1 << 20
)

// CreateDataset creates a new dataset with the given name, dimensions, and data type.
// The datatype is inferred from the provided Go type.
func (g *Group) CreateDataset(name string, data interface{}, opts ...DatasetOption) (*Dataset, error) {
	if err := g.checkCreate(name); err != nil {
		return nil, err
	}
	options := applyDatasetOptions(opts)

	dataVal := reflect.ValueOf(data)
	if dataVal.Kind() == reflect.Ptr {
		dataVal = dataVal.Elem()
	}

	dims, elemType, err := inferDimensionsAndType(dataVal)
	if err != nil {
		return nil, fmt.Errorf("inferring dimensions: %w", err)
	}

	datatype, err := dtype.GoTypeToDatatype(elemType)
	if err != nil {
		return nil, fmt.Errorf("creating datatype: %w", err)
	}

	rawData, err := dtype.Encode(datatype, data)
	if err != nil {
		return nil, fmt.Errorf("encoding data: %w", err)
	}

	return g.writeDataset(name, dims, datatype, rawData, options)
}

// CreateStringDataset creates a 1-D dataset of null-padded fixed-length
// strings. The element width is the longest value, at least one byte,
// unless WithStringWidth sets it.
func (g *Group) CreateStringDataset(name string, values []string, opts ...DatasetOption) (*Dataset, error) {
	if err := g.checkCreate(name); err != nil {
		return nil, err
	}
	options := applyDatasetOptions(opts)

	width := max(options.stringWidth, 1)
	for i, v := range values {
		if options.stringWidth > 0 && len(v) > options.stringWidth {
			return nil, fmt.Errorf("string %d is %d bytes, wider than %d", i, len(v), options.stringWidth)
		}
		width = max(width, len(v))
	}

	datatype := message.NewStringDatatype(uint32(width), message.PadNullPad, message.CharsetASCII)
	rawData := make([]byte, len(values)*width)
	for i, v := range values {
		copy(rawData[i*width:], v)
	}

	return g.writeDataset(name, []uint64{uint64(len(values))}, datatype, rawData, options)
}

// CreateVarLenDataset creates a 1-D dataset of variable-length sequences.
// data must be a slice of slices of a numeric type, e.g. [][]float64.
// Sequence payloads are packed into global heap collections; empty sequences
// are stored as a zero length with a null heap reference.
func (g *Group) CreateVarLenDataset(name string, data interface{}, opts ...DatasetOption) (*Dataset, error) {
	if err := g.checkCreate(name); err != nil {
		return nil, err
	}
	options := applyDatasetOptions(opts)

	val := reflect.ValueOf(data)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Slice || val.Type().Elem().Kind() != reflect.Slice {
		return nil, fmt.Errorf("variable-length data must be a slice of slices, got %s", val.Type())
	}

	base, err := dtype.GoTypeToDatatype(val.Type().Elem().Elem())
	if err != nil {
		return nil, fmt.Errorf("creating base datatype: %w", err)
	}

	offsetSize := g.file.writer.OffsetSize()
	refSize := 4 + heap.GlobalHeapIDSize(offsetSize)
	n := val.Len()
	refs := make([]byte, n*refSize)

	var (
		ghw      *heap.GlobalHeapWriter
		pending  []int // sequence index of each object in ghw
		collSize int
	)
	flush := func() error {
		if ghw == nil {
			return nil
		}
		_, ids, err := ghw.Write()
		if err != nil {
			return fmt.Errorf("writing global heap: %w", err)
		}
		for j, i := range pending {
			id := ids[uint16(j+1)]
			ref := refs[i*refSize+4:]
			putUint(ref, id.CollectionAddress, offsetSize)
			putUint(ref[offsetSize:], uint64(id.ObjectIndex), 4)
		}
		ghw, pending, collSize = nil, nil, 0
		return nil
	}

	for i := 0; i < n; i++ {
		seq := val.Index(i)
		putUint(refs[i*refSize:], uint64(seq.Len()), 4)
		if seq.Len() == 0 {
			continue
		}

		payload, err := dtype.Encode(base, seq.Interface())
		if err != nil {
			return nil, fmt.Errorf("encoding sequence %d: %w", i, err)
		}

		if ghw != nil && (len(pending) == maxHeapObjects || collSize+len(payload) > maxHeapCollBytes) {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		if ghw == nil {
			ghw = heap.NewGlobalHeapWriter(g.file.writer, g.file.allocate)
		}
		ghw.AddObject(payload)
		pending = append(pending, i)
		collSize += len(payload)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	datatype := message.NewVarLenSequenceDatatype(base, offsetSize)
	return g.writeDataset(name, []uint64{uint64(n)}, datatype, refs, options)
}

// CreateDatasetWithType creates a new contiguous dataset with explicit
// dimensions and datatype. Its data is supplied later through Write.
func (g *Group) CreateDatasetWithType(name string, dims []uint64, dt *message.Datatype, opts ...DatasetOption) (*Dataset, error) {
	if err := g.checkCreate(name); err != nil {
		return nil, err
	}
	options := applyDatasetOptions(opts)

	dataspace := message.NewDataspace(dims, options.maxDims)
	numElements := dataspace.NumElements()
	dataSize := dtype.DataSize(dt, numElements)
	dataAddr := g.file.allocate(int64(dataSize))

	ds, err := g.linkDataset(name, dataspace, dt, message.NewContiguousLayout(dataAddr, dataSize), nil, options)
	if err != nil {
		return nil, err
	}
	ds.dataAddr = dataAddr
	ds.dataSize = dataSize
	ds.numElements = numElements
	return ds, nil
}

// Write writes data to a dataset that was created with CreateDatasetWithType.
func (ds *Dataset) Write(data interface{}) error {
	if !ds.file.writable {
		return fmt.Errorf("file is not writable")
	}
	if ds.dataAddr == 0 {
		return fmt.Errorf("dataset was not created for writing")
	}

	rawData, err := dtype.Encode(ds.datatype, data)
	if err != nil {
		return fmt.Errorf("encoding data: %w", err)
	}
	if uint64(len(rawData)) != ds.dataSize {
		return fmt.Errorf("data size mismatch: expected %d, got %d", ds.dataSize, len(rawData))
	}

	if err := ds.file.writer.At(int64(ds.dataAddr)).WriteBytes(rawData); err != nil {
		return fmt.Errorf("writing data: %w", err)
	}
	return nil
}

func (g *Group) checkCreate(name string) error {
	if !g.file.writable {
		return fmt.Errorf("file is not writable")
	}
	if name == "" {
		return fmt.Errorf("dataset name cannot be empty")
	}
	return nil
}

// writeDataset stores rawData with the layout the options ask for and links
// the resulting dataset into g.
func (g *Group) writeDataset(name string, dims []uint64, datatype *message.Datatype, rawData []byte, options *datasetOptions) (*Dataset, error) {
	dataspace := message.NewDataspace(dims, options.maxDims)
	numElements := dataspace.NumElements()

	pipelineMsg := options.pipeline(datatype.Size)
	chunks := options.chunks
	resizable := options.resizable()
	switch {
	case resizable && len(dims) > 0:
		if chunks == nil {
			// Rows of the first dimension, whole along the others.
			chunks = make([]uint64, len(dims))
			chunks[0] = DefaultChunkElements
			for i := 1; i < len(dims); i++ {
				chunks[i] = max(1, dims[i])
			}
		}
	case numElements == 0:
		// Nothing to chunk or compress.
		chunks, pipelineMsg = nil, nil
	case pipelineMsg != nil && chunks == nil:
		if len(dims) != 1 {
			return nil, fmt.Errorf("filters on a %d-D dataset require explicit chunks", len(dims))
		}
		chunks = []uint64{min(dims[0], DefaultChunkElements)}
	case chunks != nil && len(chunks) == len(dims):
		// Fixed-size datasets cannot have chunks larger than their extent.
		clamped := make([]uint64, len(chunks))
		for i, c := range chunks {
			clamped[i] = max(1, min(c, dims[i]))
		}
		chunks = clamped
	}

	var dataLayout *message.DataLayout
	switch {
	case chunks == nil:
		dataAddr := g.file.allocate(int64(len(rawData)))
		if err := g.file.writer.At(int64(dataAddr)).WriteBytes(rawData); err != nil {
			return nil, fmt.Errorf("writing data: %w", err)
		}
		dataLayout = message.NewContiguousLayout(dataAddr, uint64(len(rawData)))

	default:
		var err error
		dataLayout, err = g.writeChunked(dims, chunks, datatype, rawData, pipelineMsg, resizable)
		if err != nil {
			return nil, err
		}
	}

	return g.linkDataset(name, dataspace, datatype, dataLayout, pipelineMsg, options)
}

// writeChunked stores rawData in chunks and indexes them the way HDF5
// does: a single chunk needs no index structure, fixed-size datasets use a
// fixed array and resizable ones an extensible array.
func (g *Group) writeChunked(dims, chunks []uint64, datatype *message.Datatype, rawData []byte, pipelineMsg *message.FilterPipeline, resizable bool) (*message.DataLayout, error) {
	if len(chunks) != len(dims) {
		return nil, fmt.Errorf("chunk rank %d does not match dataset rank %d", len(chunks), len(dims))
	}
	chunkDims := make([]uint32, len(chunks))
	for i, c := range chunks {
		if c == 0 || c > 0xFFFFFFFF {
			return nil, fmt.Errorf("chunk dimension %d is %d", i, c)
		}
		chunkDims[i] = uint32(c)
	}
	parts, err := layout.SplitIntoChunks(rawData, dims, chunkDims, datatype.Size)
	if err != nil {
		return nil, err
	}
	var pipeline *filter.Pipeline
	if pipelineMsg != nil {
		if pipeline, err = filter.NewPipeline(pipelineMsg); err != nil {
			return nil, fmt.Errorf("creating filter pipeline: %w", err)
		}
	}
	filtered := pipeline != nil && !pipeline.Empty()

	cw := layout.NewChunkWriter(g.file.writer, chunkDims, datatype.Size, g.file.allocate)
	records, err := cw.WriteChunks(parts, pipeline)
	if err != nil {
		return nil, fmt.Errorf("writing chunks: %w", err)
	}

	var dataLayout *message.DataLayout
	switch {
	case resizable && len(dims) > 1:
		dataLayout = message.NewChunkedLayout(chunkDims, datatype.Size, message.ChunkIndexBTreeV2)
		dataLayout.NodeSize = layout.DefaultBTreeNodeSize
		dataLayout.SplitPercent = layout.DefaultBTreeSplitPercent
		dataLayout.MergePercent = layout.DefaultBTreeMergePercent
		grid := make([]uint64, len(dims))
		for d := range dims {
			grid[d] = (dims[d] + chunks[d] - 1) / chunks[d]
		}
		dataLayout.ChunkIndexAddr, err = cw.WriteBTree2(records, grid, filtered)
	case resizable && len(dims) > 0:
		dataLayout = message.NewChunkedLayout(chunkDims, datatype.Size, message.ChunkIndexExtensibleArray)
		dataLayout.ExtensibleArray = layout.DefaultExtensibleArray
		dataLayout.ChunkIndexAddr, err = cw.WriteExtensibleArray(records, filtered, layout.DefaultExtensibleArray)
	case len(records) == 1:
		dataLayout = message.NewChunkedLayout(chunkDims, datatype.Size, message.ChunkIndexSingle)
		dataLayout.ChunkIndexAddr = records[0].Address
		if filtered {
			dataLayout.ChunkFlags |= message.ChunkSingleIndexFilters
			dataLayout.FilteredChunkSize = records[0].Size
			dataLayout.FilterMask = records[0].FilterMask
		}
	default:
		dataLayout = message.NewChunkedLayout(chunkDims, datatype.Size, message.ChunkIndexFixedArray)
		dataLayout.PageBits = layout.DefaultPageBits
		dataLayout.ChunkIndexAddr, err = cw.WriteFixedArray(records, filtered, layout.DefaultPageBits)
	}
	if err != nil {
		return nil, fmt.Errorf("writing chunk index: %w", err)
	}
	return dataLayout, nil
}

// linkDataset writes the dataset object header and links it into g.
func (g *Group) linkDataset(name string, dataspace *message.Dataspace, datatype *message.Datatype, dataLayout *message.DataLayout, pipelineMsg *message.FilterPipeline, options *datasetOptions) (*Dataset, error) {
	messages := object.NewDatasetHeader(dataspace, datatype, dataLayout)
	if pipelineMsg != nil {
		messages = append(messages, pipelineMsg)
	}
	for _, attr := range options.attributes {
		attrMsg, err := createAttributeMessage(attr.name, attr.value)
		if err != nil {
			return nil, fmt.Errorf("creating attribute %q: %w", attr.name, err)
		}
		messages = append(messages, attrMsg)
	}

	headerSize := object.HeaderSize(g.file.writer, messages)
	datasetAddr := g.file.allocate(int64(headerSize))
	if _, err := object.WriteHeader(g.file.writer.At(int64(datasetAddr)), messages); err != nil {
		return nil, fmt.Errorf("writing dataset header: %w", err)
	}

	if err := g.addLink(message.NewHardLink(name, datasetAddr)); err != nil {
		return nil, fmt.Errorf("adding link to parent: %w", err)
	}

	return &Dataset{
		file:      g.file,
		path:      path.Join(g.path, name),
		dataspace: dataspace,
		datatype:  datatype,
	}, nil
}

func putUint(b []byte, v uint64, size int) {
	for i := 0; i < size; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// inferDimensionsAndType infers the dimensions and element type from a Go value.
func inferDimensionsAndType(val reflect.Value) ([]uint64, reflect.Type, error) {
	var dims []uint64
	current := val

	for {
		switch current.Kind() {
		case reflect.Slice, reflect.Array:
			dims = append(dims, uint64(current.Len()))
			if current.Len() == 0 {
				return dims, current.Type().Elem(), nil
			}
			current = current.Index(0)
		case reflect.Invalid:
			return nil, nil, fmt.Errorf("invalid value")
		default:
			if len(dims) == 0 {
				dims = []uint64{1}
			}
			return dims, current.Type(), nil
		}
	}
}

// createAttributeMessage creates an attribute message from a name and value.
func createAttributeMessage(name string, value interface{}) (*message.Attribute, error) {
	val := reflect.ValueOf(value)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() == reflect.String {
		return createStringAttribute(name, val.String()), nil
	}
	if val.Kind() == reflect.Slice && val.Type().Elem().Kind() == reflect.String {
		return createStringArrayAttribute(name, val)
	}

	var (
		dataspace *message.Dataspace
		elemType  reflect.Type
	)
	switch val.Kind() {
	case reflect.Slice, reflect.Array:
		dataspace = message.NewDataspace([]uint64{uint64(val.Len())}, nil)
		elemType = val.Type().Elem()
	default:
		dataspace = message.NewScalarDataspace()
		elemType = val.Type()
	}

	datatype, err := dtype.GoTypeToDatatype(elemType)
	if err != nil {
		return nil, fmt.Errorf("unsupported attribute type %v: %w", elemType, err)
	}

	data, err := dtype.Encode(datatype, value)
	if err != nil {
		return nil, fmt.Errorf("encoding attribute value: %w", err)
	}

	return message.NewAttribute(name, datatype, dataspace, data), nil
}

// createStringAttribute creates a scalar null-terminated string attribute.
func createStringAttribute(name string, s string) *message.Attribute {
	strLen := len(s) + 1
	datatype := message.NewStringDatatype(uint32(strLen), message.PadNullTerm, message.CharsetASCII)

	data := make([]byte, strLen)
	copy(data, s)

	return message.NewAttribute(name, datatype, message.NewScalarDataspace(), data)
}

// createStringArrayAttribute creates a 1-D attribute of null-terminated strings.
func createStringArrayAttribute(name string, val reflect.Value) (*message.Attribute, error) {
	n := val.Len()
	if n == 0 {
		return nil, fmt.Errorf("empty string array not supported")
	}

	maxLen := 0
	for i := 0; i < n; i++ {
		maxLen = max(maxLen, len(val.Index(i).String()))
	}
	strLen := maxLen + 1

	datatype := message.NewStringDatatype(uint32(strLen), message.PadNullTerm, message.CharsetASCII)
	dataspace := message.NewDataspace([]uint64{uint64(n)}, nil)

	data := make([]byte, n*strLen)
	for i := 0; i < n; i++ {
		copy(data[i*strLen:], val.Index(i).String())
	}

	return message.NewAttribute(name, datatype, dataspace, data), nil
}
