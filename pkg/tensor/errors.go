package tensor

import (
	"errors"

	"github.com/vango-dev/wirecall/pkg/protocol"
)

// Tensor errors. Decoding failures are reported as *protocol.MalformedError
// wrapping one of these (or a protocol sentinel).
var (
	ErrUnknownType   = errors.New("tensor: unknown dtype")
	ErrShapeMismatch = errors.New("tensor: element count does not match shape")
	ErrTooManyDims   = errors.New("tensor: too many dimensions")
	ErrInvalidBool   = errors.New("tensor: invalid boolean value")
	ErrInvalidMedia  = errors.New("tensor: invalid media element")
	ErrTypeMismatch  = errors.New("tensor: dtype mismatch")
	ErrSizeOverflow  = errors.New("tensor: size overflows")
)

func malformed(offset int, err error) error {
	return &protocol.MalformedError{What: "tensor", Offset: offset, Err: err}
}
