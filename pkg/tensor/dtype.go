package tensor

import "fmt"

// DType is the element type tag of a tensor.
type DType uint8

const (
	Float32 DType = 1
	Float64 DType = 2
	Int8    DType = 3
	Int16   DType = 4
	Int32   DType = 5
	Int64   DType = 6
	Uint8   DType = 7
	Uint16  DType = 8
	Uint32  DType = 9
	Uint64  DType = 10
	String  DType = 11
	Binary  DType = 12
	Bool    DType = 13
	Image   DType = 14
	Audio   DType = 15
	Video   DType = 16
)

// DTypes lists every valid dtype in tag order.
var DTypes = []DType{
	Float32, Float64, Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64,
	String, Binary, Bool, Image, Audio, Video,
}

// String returns the string representation of the dtype.
func (t DType) String() string {
	switch t {
	case Float32:
		return "f32"
	case Float64:
		return "f64"
	case Int8:
		return "i8"
	case Int16:
		return "i16"
	case Int32:
		return "i32"
	case Int64:
		return "i64"
	case Uint8:
		return "u8"
	case Uint16:
		return "u16"
	case Uint32:
		return "u32"
	case Uint64:
		return "u64"
	case String:
		return "string"
	case Binary:
		return "binary"
	case Bool:
		return "bool"
	case Image:
		return "image"
	case Audio:
		return "audio"
	case Video:
		return "video"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(t))
	}
}

// ParseDType returns the dtype with the given name (as returned by String).
func ParseDType(name string) (DType, error) {
	for _, t := range DTypes {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// Valid reports whether t is one of the 16 defined dtypes.
func (t DType) Valid() bool {
	return t >= Float32 && t <= Video
}

// Fixed reports whether elements of t have a fixed width on the wire.
func (t DType) Fixed() bool {
	return t.ElemSize() > 0
}

// Media reports whether t is an image, audio or video dtype.
func (t DType) Media() bool {
	return t == Image || t == Audio || t == Video
}

// ElemSize returns the wire width of one element in bytes, or 0 for
// variable-length dtypes.
func (t DType) ElemSize() int {
	switch t {
	case Int8, Uint8, Bool:
		return 1
	case Int16, Uint16:
		return 2
	case Float32, Int32, Uint32:
		return 4
	case Float64, Int64, Uint64:
		return 8
	default:
		return 0
	}
}
