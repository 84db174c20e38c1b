// Package superblock locates and decodes the HDF5 superblock.
//
// [Read] looks for the format signature at offsets 0, 512, 1024 and 2048
// and decodes versions 0 through 3. Every other address in the file counts
// from where the signature was found. For versions 0 and 1 the root group's
// cached B-tree and local heap addresses are picked up as well.
// [Superblock.ReaderConfig] turns the field widths into the configuration
// every other decoder shares.
//
// [Superblock.Write] emits version 2 or 3; [NewSuperblock] starts at 3.
package superblock
