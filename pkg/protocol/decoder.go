package protocol

import "encoding/binary"

// Decoder is a binary decoder that reads from a byte buffer.
// Every read checks its bound before slicing; returned slices alias the
// decoder's buffer.
type Decoder struct {
	buf    []byte
	pos    int
	limits Limits
}

// NewDecoder creates a new decoder from the given byte slice.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf, limits: DefaultLimits()}
}

// NewDecoderWithLimits creates a decoder that enforces the given limits.
func NewDecoderWithLimits(buf []byte, limits Limits) *Decoder {
	return &Decoder{buf: buf, limits: limits}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// EOF returns true if all bytes have been read.
func (d *Decoder) EOF() bool {
	return d.pos >= len(d.buf)
}

// Position returns the current read position.
func (d *Decoder) Position() int {
	return d.pos
}

// Rest returns the unread bytes without advancing.
func (d *Decoder) Rest() []byte {
	return d.buf[d.pos:]
}

// Skip advances the position by n bytes.
func (d *Decoder) Skip(n int) error {
	if n < 0 || n > d.Remaining() {
		return ErrUnexpectedEndOfBytes
	}
	d.pos += n
	return nil
}

// ReadByte reads a single byte.
func (d *Decoder) ReadByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, ErrUnexpectedEndOfBytes
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

// ReadBytes reads exactly n bytes and returns them.
// The returned slice references the decoder's buffer; do not modify.
func (d *Decoder) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > d.Remaining() {
		return nil, ErrUnexpectedEndOfBytes
	}
	b := d.buf[d.pos : d.pos+n : d.pos+n]
	d.pos += n
	return b, nil
}

// ReadVarint reads a length varint.
func (d *Decoder) ReadVarint() (uint64, error) {
	v, n, err := ReadVarint(d.buf[d.pos:])
	if err != nil {
		return 0, err
	}
	d.pos += n
	return v, nil
}

// ReadLen reads a varint length and validates it against the decoder
// limits. It does not check the length against the remaining bytes, since
// counted frames declare all lengths before any payload.
func (d *Decoder) ReadLen() (int, error) {
	v, err := d.ReadVarint()
	if err != nil {
		return 0, err
	}
	if v > d.limits.maxSegment() {
		return 0, ErrAllocationTooLarge
	}
	return int(v), nil
}

// ReadLenBytes reads length-prefixed bytes.
// The returned slice references the decoder's buffer; do not modify.
func (d *Decoder) ReadLenBytes() ([]byte, error) {
	n, err := d.ReadLen()
	if err != nil {
		return nil, err
	}
	return d.ReadBytes(n)
}

// ReadUint32 reads a uint32 in big-endian byte order.
func (d *Decoder) ReadUint32() (uint32, error) {
	if d.Remaining() < 4 {
		return 0, ErrUnexpectedEndOfBytes
	}
	v := binary.BigEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}
