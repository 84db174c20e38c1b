// Package message decodes and encodes the messages held in HDF5 object
// headers.
//
// [Parse] dispatches on the message type. Callers type-assert the result
// to a concrete type such as [*Dataspace], [*Datatype] or [*DataLayout].
// Types without a decoder come back as [*Unknown], so a header can
// always be walked.
//
//	msg, err := message.Parse(typ, body, flags, reader)
//
// [DataLayout] covers every storage class and chunk index a library may
// write. Locating chunks through those indexes is the job of package
// layout.
//
// Messages the writer emits implement [Serializable]. Their
// SerializedSize comes from a dry run of Serialize.
package message
