// Package tensor implements the binary tensor format carried in frame data
// segments.
//
// Wire format:
//
//	[dtype: u8][ndim: u8][dim: varint]*ndim[elements]
//
// Fixed-width dtypes (ten numeric widths and bool) pack their elements as
// little-endian values. String, Binary, Image, Audio and Video write a
// varint total payload length followed by {varint len, bytes} per element;
// media elements start with a 3-byte ASCII format tag.
//
// Decoding is split in two steps. FromBytes validates structure only and
// returns an Owned buffer. Views (View, Owned.Bools, Owned.Elements, ...)
// then project the elements, aliasing the buffer when it is aligned and the
// host is little-endian, and copying otherwise.
//
//	o, err := tensor.FromBytes(resp.Segments[0])
//	if err != nil {
//	    return err
//	}
//	values, err := tensor.View[float32](o)
package tensor
