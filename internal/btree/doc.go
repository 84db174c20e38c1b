// Package btree reads version 1 B-trees, the "TREE" nodes that index
// group members and chunked storage in files written with the original
// object header format.
//
// Group B-trees lead to symbol table nodes ("SNOD") whose entries name
// their objects through a [heap.LocalHeap]; [ReadGroupEntries] collects
// them as [GroupEntry] values. Chunk B-trees are keyed by chunk
// coordinates; [ReadChunkIndex] collects them as [ChunkEntry] values.
//
// The version 2 B-trees of newer chunked layouts are read by the layout
// package together with the other version 4 chunk indexes.
package btree
