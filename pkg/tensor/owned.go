package tensor

import (
	"math/bits"
	"unicode/utf8"

	"github.com/vango-dev/wirecall/pkg/protocol"
)

// Owned is a structurally validated, unparsed tensor buffer.
//
// FromBytes checks every length, the UTF-8 of String elements, boolean
// bytes and media format tags, but materializes nothing. Views decode the
// elements on demand.
type Owned struct {
	buf   []byte
	dtype DType
	shape []uint64
	numel uint64

	// data is the element region: packed values for fixed dtypes, the
	// {varint len, bytes} sequence for variable dtypes.
	data    []byte
	dataOff int
}

// FromBytes validates b as a serialized tensor. The returned Owned aliases
// b; the caller must not modify b while the Owned or its views are in use.
func FromBytes(b []byte) (*Owned, error) {
	d := protocol.NewDecoder(b)

	tag, err := d.ReadByte()
	if err != nil {
		return nil, malformed(d.Position(), err)
	}
	dtype := DType(tag)
	if !dtype.Valid() {
		return nil, malformed(0, ErrUnknownType)
	}

	ndim, err := d.ReadByte()
	if err != nil {
		return nil, malformed(d.Position(), err)
	}
	shape := make([]uint64, ndim)
	for i := range shape {
		if shape[i], err = d.ReadVarint(); err != nil {
			return nil, malformed(d.Position(), err)
		}
	}
	numel, err := NumElements(shape)
	if err != nil {
		return nil, malformed(d.Position(), err)
	}

	o := &Owned{buf: b, dtype: dtype, shape: shape, numel: numel}

	if size := dtype.ElemSize(); size > 0 {
		hi, want := bits.Mul64(numel, uint64(size))
		if hi != 0 {
			return nil, malformed(d.Position(), ErrSizeOverflow)
		}
		if want > uint64(d.Remaining()) {
			return nil, malformed(d.Position(), protocol.ErrUnexpectedEndOfBytes)
		}
		if want < uint64(d.Remaining()) {
			return nil, malformed(d.Position()+int(want), protocol.ErrTrailingBytes)
		}
		o.dataOff = d.Position()
		o.data = d.Rest()
		if dtype == Bool {
			for i, c := range o.data {
				if c > 1 {
					return nil, malformed(o.dataOff+i, ErrInvalidBool)
				}
			}
		}
		return o, nil
	}

	total, err := d.ReadVarint()
	if err != nil {
		return nil, malformed(d.Position(), err)
	}
	if total > uint64(d.Remaining()) {
		return nil, malformed(d.Position(), protocol.ErrUnexpectedEndOfBytes)
	}
	if total < uint64(d.Remaining()) {
		return nil, malformed(d.Position()+int(total), protocol.ErrTrailingBytes)
	}
	// Every element needs at least its one-byte length prefix.
	if numel > total {
		return nil, malformed(d.Position(), protocol.ErrUnexpectedEndOfBytes)
	}

	o.dataOff = d.Position()
	o.data = d.Rest()
	if err := o.validateElements(); err != nil {
		return nil, err
	}
	return o, nil
}

// validateElements walks the variable-length element region.
func (o *Owned) validateElements() error {
	d := protocol.NewDecoder(o.data)
	for i := uint64(0); i < o.numel; i++ {
		n, err := d.ReadVarint()
		if err != nil {
			return malformed(o.dataOff+d.Position(), err)
		}
		if n > uint64(d.Remaining()) {
			return malformed(o.dataOff+d.Position(), protocol.ErrUnexpectedEndOfBytes)
		}
		start := d.Position()
		elem, _ := d.ReadBytes(int(n))
		switch {
		case o.dtype == String && !utf8.Valid(elem):
			return malformed(o.dataOff+start, protocol.ErrInvalidUTF8)
		case o.dtype.Media():
			if _, err := parseMedia(elem); err != nil {
				return malformed(o.dataOff+start, err)
			}
		}
	}
	if !d.EOF() {
		return malformed(o.dataOff+d.Position(), protocol.ErrTrailingBytes)
	}
	return nil
}

// DType returns the element type.
func (o *Owned) DType() DType {
	return o.dtype
}

// Shape returns a copy of the dimension sizes.
func (o *Owned) Shape() []uint64 {
	return append([]uint64(nil), o.shape...)
}

// Len returns the number of elements.
func (o *Owned) Len() int {
	return int(o.numel)
}

// Bytes returns the whole serialized tensor.
func (o *Owned) Bytes() []byte {
	return o.buf
}

// String returns a short description such as "f32[2,3]".
func (o *Owned) String() string {
	return describe(o.dtype, o.shape)
}
