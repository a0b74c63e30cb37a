package tensor

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/vango-dev/wirecall/pkg/protocol"
)

// hostLittleEndian is true when the native byte order matches the wire.
var hostLittleEndian = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

// canAlias reports whether data can be reinterpreted in place as a slice of
// elements with the given alignment.
func canAlias(data []byte, align uintptr) bool {
	if !hostLittleEndian {
		return false
	}
	if len(data) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(data)))%align == 0
}

// ZeroCopy reports whether numeric views of o alias its buffer instead of
// copying it.
func (o *Owned) ZeroCopy() bool {
	switch size := o.dtype.ElemSize(); {
	case size == 0:
		return false
	case o.dtype == Bool:
		return true
	default:
		return canAlias(o.data, uintptr(size))
	}
}

// View returns the elements of a numeric tensor as []T. When the element
// region is aligned for T and the host is little-endian the result aliases
// the buffer; otherwise it is a decoded copy.
func View[T Numeric](o *Owned) ([]T, error) {
	if o.dtype != dtypeOf[T]() {
		return nil, ErrTypeMismatch
	}
	n := int(o.numel)
	if n == 0 {
		return []T{}, nil
	}
	var zero T
	if canAlias(o.data, unsafe.Alignof(zero)) {
		return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(o.data))), n), nil
	}
	out := make([]T, n)
	decodeLittleEndian(out, o.data)
	return out, nil
}

func decodeLittleEndian[T Numeric](dst []T, src []byte) {
	le := binary.LittleEndian
	switch d := any(dst).(type) {
	case []float32:
		for i := range d {
			d[i] = math.Float32frombits(le.Uint32(src[i*4:]))
		}
	case []float64:
		for i := range d {
			d[i] = math.Float64frombits(le.Uint64(src[i*8:]))
		}
	case []int8:
		for i := range d {
			d[i] = int8(src[i])
		}
	case []int16:
		for i := range d {
			d[i] = int16(le.Uint16(src[i*2:]))
		}
	case []int32:
		for i := range d {
			d[i] = int32(le.Uint32(src[i*4:]))
		}
	case []int64:
		for i := range d {
			d[i] = int64(le.Uint64(src[i*8:]))
		}
	case []uint8:
		copy(d, src)
	case []uint16:
		for i := range d {
			d[i] = le.Uint16(src[i*2:])
		}
	case []uint32:
		for i := range d {
			d[i] = le.Uint32(src[i*4:])
		}
	case []uint64:
		for i := range d {
			d[i] = le.Uint64(src[i*8:])
		}
	}
}

// Bools returns the elements of a Bool tensor. FromBytes guarantees every
// byte is 0 or 1, so the result always aliases the buffer.
func (o *Owned) Bools() ([]bool, error) {
	if o.dtype != Bool {
		return nil, ErrTypeMismatch
	}
	if o.numel == 0 {
		return []bool{}, nil
	}
	return unsafe.Slice((*bool)(unsafe.Pointer(unsafe.SliceData(o.data))), int(o.numel)), nil
}

// Elements returns the raw bytes of each element of a String, Binary or
// media tensor. The slices alias the buffer.
func (o *Owned) Elements() ([][]byte, error) {
	if o.dtype.Fixed() {
		return nil, ErrTypeMismatch
	}
	out := make([][]byte, 0, o.numel)
	d := protocol.NewDecoder(o.data)
	for i := uint64(0); i < o.numel; i++ {
		// Lengths were validated by FromBytes.
		n, err := d.ReadVarint()
		if err != nil {
			return nil, malformed(o.dataOff+d.Position(), err)
		}
		elem, err := d.ReadBytes(int(n))
		if err != nil {
			return nil, malformed(o.dataOff+d.Position(), err)
		}
		out = append(out, elem)
	}
	return out, nil
}

// Strings returns the elements of a String tensor. Unlike the other
// views, each string is copied out of the buffer.
func (o *Owned) Strings() ([]string, error) {
	if o.dtype != String {
		return nil, ErrTypeMismatch
	}
	elems, err := o.Elements()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = string(e)
	}
	return out, nil
}

// Media returns the elements of an Image, Audio or Video tensor. Payloads
// alias the buffer.
func (o *Owned) Media() ([]Media, error) {
	if !o.dtype.Media() {
		return nil, ErrTypeMismatch
	}
	elems, err := o.Elements()
	if err != nil {
		return nil, err
	}
	out := make([]Media, len(elems))
	for i, e := range elems {
		if out[i], err = parseMedia(e); err != nil {
			return nil, malformed(o.dataOff, err)
		}
	}
	return out, nil
}

// Tensor materializes o. Element slices may alias the buffer, as with the
// individual views.
func (o *Owned) Tensor() (*Tensor, error) {
	var (
		values any
		err    error
	)
	switch o.dtype {
	case Float32:
		values, err = View[float32](o)
	case Float64:
		values, err = View[float64](o)
	case Int8:
		values, err = View[int8](o)
	case Int16:
		values, err = View[int16](o)
	case Int32:
		values, err = View[int32](o)
	case Int64:
		values, err = View[int64](o)
	case Uint8:
		values, err = View[uint8](o)
	case Uint16:
		values, err = View[uint16](o)
	case Uint32:
		values, err = View[uint32](o)
	case Uint64:
		values, err = View[uint64](o)
	case Bool:
		values, err = o.Bools()
	case String:
		values, err = o.Strings()
	case Binary:
		values, err = o.Elements()
	default:
		values, err = o.Media()
	}
	if err != nil {
		return nil, err
	}
	return &Tensor{dtype: o.dtype, shape: o.Shape(), values: values}, nil
}

// Decode validates and materializes a serialized tensor.
func Decode(b []byte) (*Tensor, error) {
	o, err := FromBytes(b)
	if err != nil {
		return nil, err
	}
	return o.Tensor()
}
