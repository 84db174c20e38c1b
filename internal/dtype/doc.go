// Package dtype maps HDF5 datatypes onto Go types and moves element bytes
// between the two.
//
// [GoType] picks the Go type for a datatype: sized integers and floats for
// the numeric classes, string for fixed and variable-length strings, a
// struct with exported field names for compounds, and slices for arrays
// and sequences.
//
// [Convert] decodes raw element bytes into a pointer to a slice. Variable-
// length data lives in global heap collections, so it needs
// [ConvertWithReader]:
//
//	var names []string
//	err := dtype.ConvertWithReader(dt, raw, n, &names, reader)
//
// In the other direction [GoTypeToDatatype] derives a datatype from a Go
// element type and [Encode] flattens a value of any nesting depth into
// row-major element bytes.
package dtype
