package protocol

// MessageKind is the discriminator of a server-to-client WebSocket message.
type MessageKind uint8

const (
	KindResponse MessageKind = 0x00 // Reply to a correlated request
	KindEvent    MessageKind = 0x01 // Server-pushed event
)

// String returns the string representation of the message kind.
func (k MessageKind) String() string {
	switch k {
	case KindResponse:
		return "Response"
	case KindEvent:
		return "Event"
	default:
		return "Unknown"
	}
}

// RequestMessage is a client-to-server WebSocket message.
//
// Wire format:
//
//	┌──────────────────────┬───────────────────────┐
//	│ Correlation ID       │ Frame                 │
//	│ (4 bytes, big-endian)│ (counted layout)      │
//	└──────────────────────┴───────────────────────┘
type RequestMessage struct {
	ID    uint32
	Frame *Frame
}

// InboundMessage is a server-to-client WebSocket message.
//
// Wire format:
//
//	response: [Kind: 0x00][ID: u32 big-endian][Frame: streamed layout]
//	event:    [Kind: 0x01][TagLen: u8][Tag: ASCII][Frame: streamed layout]
type InboundMessage struct {
	Kind MessageKind

	// ID is the correlation id of a response.
	ID uint32

	// Tag is the resource name of an event.
	Tag string

	Frame *Frame
}

// EncodeRequestMessage encodes a WebSocket request.
func EncodeRequestMessage(id uint32, control []byte, segments [][]byte) ([]byte, error) {
	f := NewFrame(control, segments...)
	e := NewEncoder(4 + f.EncodedLen())
	e.WriteUint32(id)
	if err := f.EncodeTo(e); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// DecodeRequestMessage decodes a WebSocket request.
func DecodeRequestMessage(data []byte) (*RequestMessage, error) {
	d := NewDecoder(data)
	id, err := d.ReadUint32()
	if err != nil {
		return nil, malformed("request", d, err)
	}
	f, err := DecodeFrameFrom(d)
	if err != nil {
		return nil, err
	}
	if !d.EOF() {
		return nil, malformed("request", d, ErrTrailingBytes)
	}
	return &RequestMessage{ID: id, Frame: f}, nil
}

// EncodeResponseMessage encodes a WebSocket response carrying f.
func EncodeResponseMessage(id uint32, f *Frame) ([]byte, error) {
	e := NewEncoder(5 + f.EncodedLen())
	e.WriteByte(byte(KindResponse))
	e.WriteUint32(id)
	if err := f.EncodeStreamedTo(e); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// EncodeEventMessage encodes a WebSocket event for the resource tag.
func EncodeEventMessage(tag string, f *Frame) ([]byte, error) {
	if err := validateTag(tag); err != nil {
		return nil, err
	}
	e := NewEncoder(2 + len(tag) + f.EncodedLen())
	e.WriteByte(byte(KindEvent))
	e.WriteByte(byte(len(tag)))
	e.WriteBytes([]byte(tag))
	if err := f.EncodeStreamedTo(e); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// DecodeInboundMessage decodes a server-to-client WebSocket message.
func DecodeInboundMessage(data []byte) (*InboundMessage, error) {
	return DecodeInboundMessageWithLimits(data, DefaultLimits())
}

// DecodeInboundMessageWithLimits decodes a server-to-client WebSocket
// message, enforcing the given limits.
func DecodeInboundMessageWithLimits(data []byte, limits Limits) (*InboundMessage, error) {
	d := NewDecoderWithLimits(data, limits)
	kind, err := d.ReadByte()
	if err != nil {
		return nil, malformed("message", d, err)
	}

	msg := &InboundMessage{Kind: MessageKind(kind)}
	switch msg.Kind {
	case KindResponse:
		if msg.ID, err = d.ReadUint32(); err != nil {
			return nil, malformed("response", d, err)
		}

	case KindEvent:
		n, err := d.ReadByte()
		if err != nil {
			return nil, malformed("event", d, err)
		}
		tag, err := d.ReadBytes(int(n))
		if err != nil {
			return nil, malformed("event", d, err)
		}
		if !isASCII(tag) {
			return nil, malformed("event", d, ErrInvalidTag)
		}
		msg.Tag = string(tag)

	default:
		return nil, malformed("message", d, ErrUnknownMessageKind)
	}

	if msg.Frame, err = DecodeStreamedFrameFrom(d); err != nil {
		return nil, err
	}
	return msg, nil
}

func validateTag(tag string) error {
	if len(tag) > MaxTagLen || !isASCII([]byte(tag)) {
		return ErrInvalidTag
	}
	return nil
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
