// Package container is the narrow access layer between GTT23 datasets and
// the HDF5 engine.
//
// A [Store] exposes exactly the operations the decoding layer needs: group
// enumeration, shape and type description, attribute reads and partial
// reads over the first dimension of a dataset. Element types are reported
// as engine-independent [ElementType] values so callers never depend on
// HDF5 datatype messages.
//
// # Paths
//
// Objects are addressed by absolute slash-separated paths ("/traces/id").
// Attributes use the "@" form understood by the engine ("/@record_count",
// "/cells/time@units").
//
// # Errors
//
// Every failure wraps one of the package sentinels so callers can branch
// with [errors.Is]:
//
//   - [ErrNotFound]: the file, object or attribute does not exist
//   - [ErrFormat]: the file is not a readable HDF5 container
//   - [ErrOutOfRange]: a [Range] outside the dataset extent (see [RangeError])
//   - [ErrClosed]: the store was closed
//
// No data is cached. Dataset headers are resolved once per path, every
// [Store.ReadArray] reads through to the file.
package container
