package conn

import (
	"errors"
	"fmt"
)

// ErrClosed is returned for calls made on, or still outstanding when
// closing, a connection that has been closed.
var ErrClosed = errors.New("conn: connection closed")

// TransportError wraps a failure of the underlying transport.
type TransportError struct {
	// Op is "dial", "read" or "write".
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("conn: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// closedError returns the error handed to calls made after close.
func closedError(cause error) error {
	if cause == nil || errors.Is(cause, ErrClosed) {
		return ErrClosed
	}
	return fmt.Errorf("%w: %w", ErrClosed, cause)
}
