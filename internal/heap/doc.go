// Package heap reads and writes the two HDF5 heaps.
//
// A [LocalHeap] ("HEAP") belongs to one version 1 group and holds the
// null-terminated member names its symbol table nodes point into.
//
// A [GlobalHeap] ("GCOL") is a collection of numbered objects shared by the
// whole file. Variable-length strings and sequences store a [GlobalHeapID]
// in the dataset, naming the collection and the object index:
//
//	id, err := heap.ParseGlobalHeapID(raw, offsetSize)
//	coll, err := heap.ReadGlobalHeap(reader, id.CollectionAddress)
//	payload, err := coll.GetObject(uint16(id.ObjectIndex))
//
// [GlobalHeapWriter] builds one collection and returns the IDs it assigned.
package heap
