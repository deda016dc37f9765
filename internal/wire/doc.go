// Package wire implements AccessManager's binary event-stream format
// (spec.md §6): a length-prefixed frame per event. internal/temporal/pgdriver
// stores this exact frame as the row's frame column, and decodes it back
// on every read, rather than layering a second ad hoc serialization on top.
//
// Frame layout (all integers big-endian):
//
//	uint32  frame length (bytes following this field)
//	byte    kind discriminator (see kindByte/byteKind)
//	[16]byte event_id (UUID bytes)
//	byte    action (0=Add, 1=Remove)
//	int64   occurred_at, 100ns ticks since the Unix epoch
//	int32   hash_code
//	int64   sequence
//	...     kind-specific fields, each a uint16-length-prefixed UTF-8 string
//
// This package deliberately builds the codec on stdlib encoding/binary
// rather than a pack library: none of the retrieved examples' wire
// formats (JSON-RPC, gob, protobuf) apply custom bit-level framing of
// this shape, and encoding/binary is what the corpus itself reaches for
// when a format needs exact control over field width (see
// DESIGN.md).
package wire
