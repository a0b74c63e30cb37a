// Package protocol implements the wire format shared by the HTTP and
// WebSocket transports of the wirecall client.
//
// Every message is a Frame: one JSON control segment plus up to 255 binary
// data segments. Segment boundaries are always explicit; nothing is inferred
// from content.
//
// # Varints
//
// Lengths are encoded as 1, 3, 5 or 9 bytes:
//
//	0..252         one byte holding the value
//	253..65535     0xFD + big-endian uint16
//	..2^32-1       0xFE + big-endian uint32
//	larger         0xFF + big-endian uint64
//
// The first byte alone determines the encoded length, so a reader never
// backtracks.
//
// # Layouts
//
//   - Counted (client to server): u8 count, varint control_len,
//     varint seg_len[i], control, seg[i].
//   - Streamed (server to client): varint control_len, control, then
//     {varint seg_len, seg} pairs until the buffer ends.
//
// # WebSocket Messages
//
// Requests are prefixed by a big-endian uint32 correlation id. Inbound
// messages start with a discriminator byte: 0x00 for a response (followed by
// the correlation id) and 0x01 for an event (followed by a short ASCII
// resource tag).
//
// # Safety
//
// Decoders check every declared length against the remaining bytes and the
// configured Limits before slicing. Malformed input yields a *MalformedError,
// never a panic. Decoded segments alias the input buffer.
package protocol
