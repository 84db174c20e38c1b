// Package layout reads and writes the raw storage of HDF5 datasets.
//
// A dataset's data layout message selects one of three storage classes:
//
//   - [Compact]: the bytes live inside the object header.
//   - [Contiguous]: the bytes form one block in the file.
//   - [Chunked]: the dataset is cut into equal chunks, each stored (and
//     optionally filtered) on its own and located through a chunk index.
//
// [Chunked] understands every chunk index HDF5 defines: the version 1
// B-tree of older files, and the single chunk, implicit, fixed array,
// extensible array and version 2 B-tree indexes of version 4 layouts.
// The index is read once into a table with one [ChunkRecord] per chunk of
// the current extent. Reads then touch only the chunks a selection
// overlaps.
//
// [ChunkWriter] produces the same structures: it stores chunks through a
// filter pipeline and writes a fixed array, extensible array or version 2
// B-tree index over them.
package layout
