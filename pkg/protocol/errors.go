package protocol

import (
	"errors"
	"fmt"
)

// Decoding errors. Decode functions wrap these in a *MalformedError.
var (
	ErrUnexpectedEndOfBytes = errors.New("protocol: unexpected end of bytes")
	ErrAllocationTooLarge   = errors.New("protocol: declared length exceeds limit")
	ErrTooManySegments      = errors.New("protocol: too many segments")
	ErrUnknownMessageKind   = errors.New("protocol: unknown message kind")
	ErrInvalidTag           = errors.New("protocol: invalid resource tag")
	ErrInvalidUTF8          = errors.New("protocol: invalid UTF-8")
	ErrTrailingBytes        = errors.New("protocol: trailing bytes after message")
)

// MalformedError reports a message whose declared structure does not match
// the bytes that carry it.
type MalformedError struct {
	// What names the structure being decoded (e.g. "frame", "event").
	What string

	// Offset is the byte offset at which decoding failed.
	Offset int

	// Err is the underlying cause, usually one of the package sentinels.
	Err error
}

// Error implements the error interface.
func (e *MalformedError) Error() string {
	return fmt.Sprintf("protocol: malformed %s at offset %d: %v", e.What, e.Offset, e.Err)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *MalformedError) Unwrap() error {
	return e.Err
}

// IsMalformed reports whether err is, or wraps, a *MalformedError.
func IsMalformed(err error) bool {
	var me *MalformedError
	return errors.As(err, &me)
}

func malformed(what string, d *Decoder, err error) error {
	if err == nil {
		return nil
	}
	var me *MalformedError
	if errors.As(err, &me) {
		return err
	}
	offset := 0
	if d != nil {
		offset = d.Position()
	}
	return &MalformedError{What: what, Offset: offset, Err: err}
}
