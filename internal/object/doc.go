// Package object reads and writes HDF5 object headers.
//
// [Read] accepts both header formats: version 1, used alongside version 0
// and 1 superblocks, and the checksummed version 2 ("OHDR"). Continuation
// blocks are followed chunk by chunk, so [Header.Messages] holds every
// message of the object. A message that fails to decode is recorded in
// [Header.Skipped] instead of failing the whole header.
//
// The typed accessors return nil when their message is absent, and
// [Header.GetMessages] lists all messages of one type, which is how
// attributes are found.
//
// [WriteHeader] emits a version 2 header.
package object
