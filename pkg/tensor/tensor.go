package tensor

import (
	"bytes"
	"fmt"
	"math/bits"
	"strings"
	"unicode/utf8"

	"github.com/vango-dev/wirecall/pkg/protocol"
)

// MaxDims is the maximum number of dimensions of a tensor.
const MaxDims = 255

// Numeric is the set of Go element types backing the fixed-width numeric
// dtypes.
type Numeric interface {
	float32 | float64 | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64
}

// Tensor is a materialized N-dimensional array.
//
// The element slice type depends on the dtype: []T for numeric dtypes,
// []string for String, [][]byte for Binary, []bool for Bool and []Media for
// Image, Audio and Video.
type Tensor struct {
	dtype  DType
	shape  []uint64
	values any
}

// NewNumeric creates a numeric tensor. The dtype is derived from T.
func NewNumeric[T Numeric](shape []uint64, values []T) (*Tensor, error) {
	return newTensor(dtypeOf[T](), shape, values, len(values))
}

// NewStrings creates a String tensor. Every element must be valid UTF-8.
func NewStrings(shape []uint64, values []string) (*Tensor, error) {
	for _, s := range values {
		if !utf8.ValidString(s) {
			return nil, protocol.ErrInvalidUTF8
		}
	}
	return newTensor(String, shape, values, len(values))
}

// NewBinary creates a Binary tensor.
func NewBinary(shape []uint64, values [][]byte) (*Tensor, error) {
	return newTensor(Binary, shape, values, len(values))
}

// NewBools creates a Bool tensor.
func NewBools(shape []uint64, values []bool) (*Tensor, error) {
	return newTensor(Bool, shape, values, len(values))
}

// NewMedia creates an Image, Audio or Video tensor.
func NewMedia(dtype DType, shape []uint64, values []Media) (*Tensor, error) {
	if !dtype.Media() {
		return nil, fmt.Errorf("%w: %s is not a media dtype", ErrTypeMismatch, dtype)
	}
	for _, m := range values {
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}
	return newTensor(dtype, shape, values, len(values))
}

// Zeros creates a tensor of the given dtype and shape filled with zero
// values. Media elements get the "bin" format tag and an empty payload.
func Zeros(dtype DType, shape []uint64) (*Tensor, error) {
	n, err := NumElements(shape)
	if err != nil {
		return nil, err
	}
	if n > uint64(int(^uint(0)>>1)) {
		return nil, ErrSizeOverflow
	}
	count := int(n)
	var values any
	switch dtype {
	case Float32:
		values = make([]float32, count)
	case Float64:
		values = make([]float64, count)
	case Int8:
		values = make([]int8, count)
	case Int16:
		values = make([]int16, count)
	case Int32:
		values = make([]int32, count)
	case Int64:
		values = make([]int64, count)
	case Uint8:
		values = make([]uint8, count)
	case Uint16:
		values = make([]uint16, count)
	case Uint32:
		values = make([]uint32, count)
	case Uint64:
		values = make([]uint64, count)
	case String:
		values = make([]string, count)
	case Binary:
		bs := make([][]byte, count)
		for i := range bs {
			bs[i] = []byte{}
		}
		values = bs
	case Bool:
		values = make([]bool, count)
	case Image, Audio, Video:
		ms := make([]Media, count)
		for i := range ms {
			ms[i] = Media{Format: "bin", Data: []byte{}}
		}
		values = ms
	default:
		return nil, ErrUnknownType
	}
	return newTensor(dtype, shape, values, count)
}

func newTensor(dtype DType, shape []uint64, values any, count int) (*Tensor, error) {
	if len(shape) > MaxDims {
		return nil, ErrTooManyDims
	}
	n, err := NumElements(shape)
	if err != nil {
		return nil, err
	}
	if n != uint64(count) {
		return nil, fmt.Errorf("%w: shape %v holds %d elements, got %d", ErrShapeMismatch, shape, n, count)
	}
	return &Tensor{
		dtype:  dtype,
		shape:  append([]uint64(nil), shape...),
		values: values,
	}, nil
}

// NumElements returns the product of the dimensions of shape.
// The product of an empty shape (a scalar) is 1.
func NumElements(shape []uint64) (uint64, error) {
	n := uint64(1)
	for _, d := range shape {
		hi, lo := bits.Mul64(n, d)
		if hi != 0 {
			return 0, ErrSizeOverflow
		}
		n = lo
	}
	return n, nil
}

// DType returns the element type.
func (t *Tensor) DType() DType {
	return t.dtype
}

// Shape returns a copy of the dimension sizes.
func (t *Tensor) Shape() []uint64 {
	return append([]uint64(nil), t.shape...)
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	n, _ := NumElements(t.shape)
	return int(n)
}

// Values returns the element slice. See Tensor for the concrete types.
func (t *Tensor) Values() any {
	return t.values
}

// Strings returns the elements of a String tensor.
func (t *Tensor) Strings() ([]string, bool) {
	v, ok := t.values.([]string)
	return v, ok
}

// Binaries returns the elements of a Binary tensor.
func (t *Tensor) Binaries() ([][]byte, bool) {
	v, ok := t.values.([][]byte)
	return v, ok
}

// Bools returns the elements of a Bool tensor.
func (t *Tensor) Bools() ([]bool, bool) {
	v, ok := t.values.([]bool)
	return v, ok
}

// Media returns the elements of an Image, Audio or Video tensor.
func (t *Tensor) Media() ([]Media, bool) {
	v, ok := t.values.([]Media)
	return v, ok
}

// Values returns the elements of a numeric tensor as []T.
func Values[T Numeric](t *Tensor) ([]T, bool) {
	v, ok := t.values.([]T)
	return v, ok
}

// Equal reports whether t and u have the same dtype, shape and elements.
// Floating point elements are compared bit for bit.
func (t *Tensor) Equal(u *Tensor) bool {
	if t == nil || u == nil {
		return t == u
	}
	a, err := t.MarshalBinary()
	if err != nil {
		return false
	}
	b, err := u.MarshalBinary()
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// String returns a short description such as "f32[2,3]".
func (t *Tensor) String() string {
	return describe(t.dtype, t.shape)
}

func describe(dtype DType, shape []uint64) string {
	var b strings.Builder
	b.WriteString(dtype.String())
	b.WriteByte('[')
	for i, d := range shape {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", d)
	}
	b.WriteByte(']')
	return b.String()
}

func dtypeOf[T Numeric]() DType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	default:
		return Uint64
	}
}
