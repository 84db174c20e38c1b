// Package filter runs the per-chunk filter pipeline of chunked datasets.
//
// Reading undoes the filters last to first; writing applies them in
// order. Bit i of a chunk's filter mask marks filter i as skipped for
// that chunk. Deflate, shuffle, Fletcher-32 and Zstandard (ID 32015) are
// implemented, the compressors by github.com/klauspost/compress. Any
// other required filter makes the dataset unreadable; an optional one is
// tolerated as long as no chunk actually went through it.
package filter
