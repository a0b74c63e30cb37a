package protocol

import "encoding/binary"

// Varint markers. Values below MarkerUint16 are encoded as a single byte.
const (
	MarkerUint16 = 253 // followed by a big-endian uint16
	MarkerUint32 = 254 // followed by a big-endian uint32
	MarkerUint64 = 255 // followed by a big-endian uint64
)

// MaxVarintLen is the maximum number of bytes a varint can occupy.
const MaxVarintLen = 9

// VarintLen returns the number of bytes needed to encode v.
// The result is always 1, 3, 5 or 9.
func VarintLen(v uint64) int {
	switch {
	case v < MarkerUint16:
		return 1
	case v <= 0xFFFF:
		return 3
	case v <= 0xFFFFFFFF:
		return 5
	default:
		return 9
	}
}

// VarintLenFromMarker returns the total encoded length declared by the
// first byte of a varint.
func VarintLenFromMarker(b byte) int {
	switch b {
	case MarkerUint16:
		return 3
	case MarkerUint32:
		return 5
	case MarkerUint64:
		return 9
	default:
		return 1
	}
}

// PutVarint encodes v into buf and returns the number of bytes written.
// buf must have at least VarintLen(v) bytes available.
func PutVarint(buf []byte, v uint64) int {
	switch n := VarintLen(v); n {
	case 1:
		buf[0] = byte(v)
		return 1
	case 3:
		buf[0] = MarkerUint16
		binary.BigEndian.PutUint16(buf[1:3], uint16(v))
		return 3
	case 5:
		buf[0] = MarkerUint32
		binary.BigEndian.PutUint32(buf[1:5], uint32(v))
		return 5
	default:
		buf[0] = MarkerUint64
		binary.BigEndian.PutUint64(buf[1:9], v)
		return 9
	}
}

// AppendVarint appends the encoding of v to dst.
func AppendVarint(dst []byte, v uint64) []byte {
	var tmp [MaxVarintLen]byte
	n := PutVarint(tmp[:], v)
	return append(dst, tmp[:n]...)
}

// ReadVarint decodes a varint from the start of buf.
// Returns the value and the number of bytes consumed. If buf holds fewer
// bytes than the marker declares, ErrUnexpectedEndOfBytes is returned.
func ReadVarint(buf []byte) (uint64, int, error) {
	if len(buf) == 0 {
		return 0, 0, ErrUnexpectedEndOfBytes
	}
	n := VarintLenFromMarker(buf[0])
	if len(buf) < n {
		return 0, 0, ErrUnexpectedEndOfBytes
	}
	switch n {
	case 1:
		return uint64(buf[0]), 1, nil
	case 3:
		return uint64(binary.BigEndian.Uint16(buf[1:3])), 3, nil
	case 5:
		return uint64(binary.BigEndian.Uint32(buf[1:5])), 5, nil
	default:
		return binary.BigEndian.Uint64(buf[1:9]), 9, nil
	}
}
