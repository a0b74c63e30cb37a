package protocol

// Frame is the envelope shared by both transports: one JSON control
// segment followed by an ordered sequence of binary data segments.
//
// Counted layout (HTTP request body, WebSocket request after the id):
//
//	┌───────┬─────────────┬──────────────┬─────┬─────────┬────────┬─────┐
//	│ count │ control_len │ seg_len[0]   │ ... │ control │ seg[0] │ ... │
//	│ (u8)  │ (varint)    │ (varint)     │     │         │        │     │
//	└───────┴─────────────┴──────────────┴─────┴─────────┴────────┴─────┘
//
// Streamed layout (HTTP response body, WebSocket inbound after the header):
//
//	┌─────────────┬─────────┬────────────┬────────┬─────┐
//	│ control_len │ control │ seg_len[0] │ seg[0] │ ... │
//	│ (varint)    │         │ (varint)   │        │     │
//	└─────────────┴─────────┴────────────┴────────┴─────┘
//
// In the streamed layout the segment count is implicit: segments are read
// until the buffer is exhausted.
type Frame struct {
	Control  []byte
	Segments [][]byte
}

// NewFrame creates a frame from a control payload and data segments.
func NewFrame(control []byte, segments ...[]byte) *Frame {
	return &Frame{Control: control, Segments: segments}
}

// EncodedLen returns the size of the counted encoding of f.
func (f *Frame) EncodedLen() int {
	n := 1 + VarintLen(uint64(len(f.Control))) + len(f.Control)
	for _, s := range f.Segments {
		n += VarintLen(uint64(len(s))) + len(s)
	}
	return n
}

// Encode encodes the frame in the counted layout.
func (f *Frame) Encode() ([]byte, error) {
	e := NewEncoder(f.EncodedLen())
	if err := f.EncodeTo(e); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// EncodeTo encodes the frame in the counted layout using the provided encoder.
func (f *Frame) EncodeTo(e *Encoder) error {
	if len(f.Segments) > MaxSegments {
		return ErrTooManySegments
	}
	e.Grow(f.EncodedLen())
	e.WriteByte(byte(len(f.Segments)))
	e.WriteVarint(uint64(len(f.Control)))
	for _, s := range f.Segments {
		e.WriteVarint(uint64(len(s)))
	}
	e.WriteBytes(f.Control)
	for _, s := range f.Segments {
		e.WriteBytes(s)
	}
	return nil
}

// EncodeStreamedTo encodes the frame in the streamed layout.
func (f *Frame) EncodeStreamedTo(e *Encoder) error {
	if len(f.Segments) > MaxSegments {
		return ErrTooManySegments
	}
	e.Grow(f.EncodedLen())
	e.WriteLenBytes(f.Control)
	for _, s := range f.Segments {
		e.WriteLenBytes(s)
	}
	return nil
}

// EncodeFrame encodes control and segments in the counted layout.
// This is the HTTP request body.
func EncodeFrame(control []byte, segments [][]byte) ([]byte, error) {
	return NewFrame(control, segments...).Encode()
}

// EncodeStreamedFrame encodes control and segments in the streamed layout.
// This is the HTTP response body.
func EncodeStreamedFrame(control []byte, segments [][]byte) ([]byte, error) {
	f := NewFrame(control, segments...)
	e := NewEncoder(f.EncodedLen())
	if err := f.EncodeStreamedTo(e); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// DecodeFrame decodes a counted frame that spans all of data.
// Control and segments alias data.
func DecodeFrame(data []byte) (*Frame, error) {
	d := NewDecoder(data)
	f, err := DecodeFrameFrom(d)
	if err != nil {
		return nil, err
	}
	if !d.EOF() {
		return nil, malformed("frame", d, ErrTrailingBytes)
	}
	return f, nil
}

// DecodeFrameFrom decodes a counted frame from a decoder.
// All declared lengths are read first and their sum is checked against the
// remaining bytes before any payload is sliced.
func DecodeFrameFrom(d *Decoder) (*Frame, error) {
	count, err := d.ReadByte()
	if err != nil {
		return nil, malformed("frame", d, err)
	}

	lens := make([]int, int(count)+1)
	total := uint64(0)
	for i := range lens {
		n, err := d.ReadLen()
		if err != nil {
			return nil, malformed("frame", d, err)
		}
		lens[i] = n
		total += uint64(n)
	}
	if total > uint64(d.Remaining()) {
		return nil, malformed("frame", d, ErrUnexpectedEndOfBytes)
	}

	f := &Frame{}
	if f.Control, err = d.ReadBytes(lens[0]); err != nil {
		return nil, malformed("frame", d, err)
	}
	if count > 0 {
		f.Segments = make([][]byte, count)
	}
	for i := range f.Segments {
		if f.Segments[i], err = d.ReadBytes(lens[i+1]); err != nil {
			return nil, malformed("frame", d, err)
		}
	}
	return f, nil
}

// DecodeStreamedFrame decodes a streamed frame that spans all of data.
// This is the HTTP response body. Control and segments alias data.
func DecodeStreamedFrame(data []byte) (*Frame, error) {
	return DecodeStreamedFrameFrom(NewDecoder(data))
}

// DecodeStreamedFrameFrom decodes a streamed frame, consuming the rest of
// the decoder's buffer.
func DecodeStreamedFrameFrom(d *Decoder) (*Frame, error) {
	control, err := d.ReadLenBytes()
	if err != nil {
		return nil, malformed("frame", d, err)
	}

	f := &Frame{Control: control}
	for !d.EOF() {
		if len(f.Segments) == MaxSegments {
			return nil, malformed("frame", d, ErrTooManySegments)
		}
		seg, err := d.ReadLenBytes()
		if err != nil {
			return nil, malformed("frame", d, err)
		}
		f.Segments = append(f.Segments, seg)
	}
	return f, nil
}

// Clone returns a deep copy of the frame that does not alias the buffer
// it was decoded from.
func (f *Frame) Clone() *Frame {
	c := &Frame{Control: append([]byte(nil), f.Control...)}
	if f.Segments != nil {
		c.Segments = make([][]byte, len(f.Segments))
		for i, s := range f.Segments {
			c.Segments[i] = append([]byte(nil), s...)
		}
	}
	return c
}
