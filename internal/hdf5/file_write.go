package hdf5

import (
	stdbinary "encoding/binary"
	"fmt"
	"os"

	"github.com/robert-malhotra/go-gtt23/internal/binary"
	"github.com/robert-malhotra/go-gtt23/internal/object"
	"github.com/robert-malhotra/go-gtt23/internal/superblock"
)

// Create creates a new HDF5 file at the given path, truncating any existing
// file. The file uses a v2 superblock and v2 object headers. Objects are
// appended as they are created; Close writes the final superblock.
func Create(path string, opts ...FileOption) (*File, error) {
	options := defaultFileOptions()
	for _, opt := range opts {
		opt(options)
	}

	osFile, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	fail := func(err error) (*File, error) {
		osFile.Close()
		os.Remove(path)
		return nil, err
	}

	writer := binary.NewWriter(osFile, binary.Config{
		ByteOrder:  stdbinary.LittleEndian,
		OffsetSize: options.offsetSize,
		LengthSize: options.lengthSize,
	})

	sb := superblock.NewSuperblock()
	sb.OffsetSize = uint8(options.offsetSize)
	sb.LengthSize = uint8(options.lengthSize)

	// The root group header directly follows the superblock.
	rootAddr := uint64(sb.Size())
	rootMessages := object.NewEmptyGroupHeader()
	headerSize := object.HeaderSizeWithMinChunk(writer, rootMessages, object.MinGroupChunkSize)
	sb.RootGroupAddress = rootAddr
	sb.EOFAddress = rootAddr + uint64(headerSize)

	if _, err := sb.Write(writer); err != nil {
		return fail(fmt.Errorf("writing superblock: %w", err))
	}
	if _, err := object.WriteHeaderWithMinChunk(writer.At(int64(rootAddr)), rootMessages, object.MinGroupChunkSize); err != nil {
		return fail(fmt.Errorf("writing root group: %w", err))
	}

	f := &File{
		file:       osFile,
		superblock: sb,
		writable:   true,
		writer:     writer,
		eof:        sb.EOFAddress,
	}
	f.root = &Group{
		file:   f,
		path:   "/",
		addr:   rootAddr,
		loaded: true,
	}

	return f, nil
}

// Flush rewrites the superblock with the current end-of-file address and
// syncs the file to disk.
func (f *File) Flush() error {
	if !f.writable {
		return nil
	}

	f.superblock.EOFAddress = f.eof
	if _, err := f.superblock.Write(f.writer.At(0)); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}
	return f.file.Sync()
}

// allocate reserves size bytes at the end of the file and returns their
// address. Space is never reused.
func (f *File) allocate(size int64) uint64 {
	addr := f.eof
	f.eof += uint64(size)
	return addr
}
