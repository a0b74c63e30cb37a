package protocol

// Encoder appends wire values to a growing buffer. Writes cannot fail;
// length checks happen before encoding starts.
type Encoder struct {
	buf []byte
}

// NewEncoder creates an encoder whose buffer has room for sizeHint bytes.
// Frame encoders pass the exact encoded length so the message is built
// with a single allocation.
func NewEncoder(sizeHint int) *Encoder {
	return &Encoder{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the encoded message. It aliases the encoder's buffer.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Grow reserves room for n more bytes.
func (e *Encoder) Grow(n int) {
	if cap(e.buf)-len(e.buf) < n {
		grown := make([]byte, len(e.buf), len(e.buf)+n)
		copy(grown, e.buf)
		e.buf = grown
	}
}

// WriteByte appends one byte: a segment count, a message kind or a tag
// length.
func (e *Encoder) WriteByte(b byte) {
	e.buf = append(e.buf, b)
}

// WriteBytes appends a segment or tag body without a length prefix.
func (e *Encoder) WriteBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

// WriteVarint appends a length varint (1, 3, 5 or 9 bytes).
func (e *Encoder) WriteVarint(v uint64) {
	e.buf = AppendVarint(e.buf, v)
}

// WriteLenBytes appends a varint length followed by b, the streamed
// segment form.
func (e *Encoder) WriteLenBytes(b []byte) {
	e.WriteVarint(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

// WriteUint32 appends a big-endian correlation id.
func (e *Encoder) WriteUint32(v uint32) {
	e.buf = append(e.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
