package tensor

import (
	"encoding/binary"
	"math"

	"github.com/vango-dev/wirecall/pkg/protocol"
)

// MarshalBinary serializes the tensor:
//
//	[dtype: u8][ndim: u8][dim: varint]*ndim[elements]
//
// Fixed-width elements are packed little-endian. Variable-length elements
// are written as varint(total payload length) followed by
// {varint(len), bytes} per element.
func (t *Tensor) MarshalBinary() ([]byte, error) {
	return t.AppendBinary(nil)
}

// AppendBinary appends the serialized tensor to dst.
func (t *Tensor) AppendBinary(dst []byte) ([]byte, error) {
	if !t.dtype.Valid() {
		return nil, ErrUnknownType
	}
	if len(t.shape) > MaxDims {
		return nil, ErrTooManyDims
	}

	dst = append(dst, byte(t.dtype), byte(len(t.shape)))
	for _, d := range t.shape {
		dst = protocol.AppendVarint(dst, d)
	}

	if size := t.dtype.ElemSize(); size > 0 {
		return appendFixed(dst, t.values), nil
	}

	elems, err := t.rawElements()
	if err != nil {
		return nil, err
	}
	total := uint64(0)
	for _, e := range elems {
		total += uint64(protocol.VarintLen(uint64(len(e))) + len(e))
	}
	dst = protocol.AppendVarint(dst, total)
	for _, e := range elems {
		dst = protocol.AppendVarint(dst, uint64(len(e)))
		dst = append(dst, e...)
	}
	return dst, nil
}

// rawElements returns the wire bytes of each variable-length element.
func (t *Tensor) rawElements() ([][]byte, error) {
	switch v := t.values.(type) {
	case []string:
		out := make([][]byte, len(v))
		for i, s := range v {
			out[i] = []byte(s)
		}
		return out, nil
	case [][]byte:
		return v, nil
	case []Media:
		out := make([][]byte, len(v))
		for i, m := range v {
			if err := m.Validate(); err != nil {
				return nil, err
			}
			e := make([]byte, 0, m.encodedLen())
			e = append(e, m.Format...)
			out[i] = append(e, m.Data...)
		}
		return out, nil
	default:
		return nil, ErrTypeMismatch
	}
}

func appendFixed(dst []byte, values any) []byte {
	switch v := values.(type) {
	case []float32:
		for _, x := range v {
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(x))
		}
	case []float64:
		for _, x := range v {
			dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(x))
		}
	case []int8:
		for _, x := range v {
			dst = append(dst, byte(x))
		}
	case []int16:
		for _, x := range v {
			dst = binary.LittleEndian.AppendUint16(dst, uint16(x))
		}
	case []int32:
		for _, x := range v {
			dst = binary.LittleEndian.AppendUint32(dst, uint32(x))
		}
	case []int64:
		for _, x := range v {
			dst = binary.LittleEndian.AppendUint64(dst, uint64(x))
		}
	case []uint8:
		dst = append(dst, v...)
	case []uint16:
		for _, x := range v {
			dst = binary.LittleEndian.AppendUint16(dst, x)
		}
	case []uint32:
		for _, x := range v {
			dst = binary.LittleEndian.AppendUint32(dst, x)
		}
	case []uint64:
		for _, x := range v {
			dst = binary.LittleEndian.AppendUint64(dst, x)
		}
	case []bool:
		for _, x := range v {
			if x {
				dst = append(dst, 1)
			} else {
				dst = append(dst, 0)
			}
		}
	}
	return dst
}
