package errors

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/vango-dev/wirecall/pkg/client"
	"github.com/vango-dev/wirecall/pkg/conn"
	"github.com/vango-dev/wirecall/pkg/protocol"
	"github.com/vango-dev/wirecall/pkg/tensor"
)

// Classify maps an error returned by the client packages to a coded
// Error. Errors that are already coded are returned unchanged. Anything
// else becomes an uncoded CLI error.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var coded *Error
	if stderrors.As(err, &coded) {
		return coded
	}

	var (
		te     *conn.TransportError
		status *client.HTTPStatusError
		appErr *client.ApplicationError
		decErr *client.DecodeError
	)
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return New("E104").Wrap(err)
	case stderrors.As(err, &te):
		switch te.Op {
		case "dial":
			return New("E101").Wrap(err)
		case "write":
			return New("E103").Wrap(err)
		default:
			return New("E102").Wrap(err)
		}
	case stderrors.Is(err, conn.ErrClosed), stderrors.Is(err, client.ErrClientClosed):
		return New("E120").Wrap(err)
	case stderrors.As(err, &status):
		if status.StatusCode == http.StatusUnauthorized || status.StatusCode == http.StatusForbidden {
			return New("E111").Wrap(err)
		}
		return New("E110").Wrap(err)
	case stderrors.As(err, &appErr):
		e := New("E301").Wrap(err)
		if appErr.Kind != "" {
			e.Message += " (" + appErr.Kind + ")"
		}
		return e
	case stderrors.As(err, &decErr):
		return New("E202").Wrap(err)
	case stderrors.Is(err, protocol.ErrTooManySegments):
		return New("E203").Wrap(err)
	case isTensorError(err):
		return New("E210").Wrap(err)
	case protocol.IsMalformed(err):
		return New("E201").Wrap(err)
	case stderrors.Is(err, client.ErrNoTransport), stderrors.Is(err, client.ErrNoEndpoint):
		return New("E404").Wrap(err)
	}
	return &Error{Category: CategoryCLI, Message: err.Error()}
}

func isTensorError(err error) bool {
	var me *protocol.MalformedError
	if stderrors.As(err, &me) && me.What == "tensor" {
		return true
	}
	for _, target := range []error{
		tensor.ErrUnknownType,
		tensor.ErrShapeMismatch,
		tensor.ErrTooManyDims,
		tensor.ErrInvalidBool,
		tensor.ErrInvalidMedia,
		tensor.ErrTypeMismatch,
		tensor.ErrSizeOverflow,
	} {
		if stderrors.Is(err, target) {
			return true
		}
	}
	return false
}
