package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotSent is returned by Response.Decode for a call that was not
	// sent.
	ErrNotSent = errors.New("client: call was not sent")

	// ErrUntaggedResult means the control segment is neither {"Ok": ...}
	// nor {"Error": ...}.
	ErrUntaggedResult = errors.New("client: result is not tagged Ok or Error")
)

// Delivery reports whether a call reached the server.
type Delivery uint8

const (
	// Sent means the call was sent and the response holds its result.
	Sent Delivery = iota

	// NotSent means ModeWSIfAvailable found no open connection.
	NotSent
)

// String returns the delivery name.
func (d Delivery) String() string {
	switch d {
	case Sent:
		return "sent"
	case NotSent:
		return "not_sent"
	default:
		return fmt.Sprintf("Delivery(%d)", d)
	}
}

// Response is the result of a call.
type Response struct {
	Delivery Delivery

	// Control is the JSON control segment.
	Control []byte

	// Segments are the binary data segments.
	Segments [][]byte

	// Transport is the label of the mode the call was made with.
	Transport string

	// Generation is the WebSocket connection the call was answered on.
	Generation uint64

	// RequestID is the X-Request-Id of an HTTP call.
	RequestID string
}

// Sent reports whether the call reached the server.
func (r *Response) Sent() bool {
	return r.Delivery == Sent
}

// Decode unmarshals a tagged result. {"Ok": value} decodes value into v
// (v may be nil to discard it). {"Error": e} returns an *ApplicationError.
// Anything else returns a *DecodeError.
func (r *Response) Decode(v any) error {
	if r.Delivery == NotSent {
		return ErrNotSent
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(r.Control, &tagged); err != nil {
		return &DecodeError{Control: r.Control, Err: err}
	}
	if len(tagged) != 1 {
		return &DecodeError{Control: r.Control, Err: ErrUntaggedResult}
	}

	if ok, found := tagged["Ok"]; found {
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(ok, v); err != nil {
			return &DecodeError{Control: r.Control, Err: err}
		}
		return nil
	}
	if e, found := tagged["Error"]; found {
		return newApplicationError(e)
	}
	return &DecodeError{Control: r.Control, Err: ErrUntaggedResult}
}

// ApplicationError is an error reported by the remote method itself.
type ApplicationError struct {
	// Raw is the JSON value of the Error variant.
	Raw json.RawMessage

	// Kind is the error variant name, when the server provides one.
	Kind string

	Message string
}

// Error implements the error interface.
func (e *ApplicationError) Error() string {
	switch {
	case e.Kind != "" && e.Message != "":
		return fmt.Sprintf("application error: %s: %s", e.Kind, e.Message)
	case e.Kind != "":
		return "application error: " + e.Kind
	case e.Message != "":
		return "application error: " + e.Message
	default:
		return "application error: " + string(e.Raw)
	}
}

// newApplicationError reads the common shapes of an Error variant:
//
//	"message"
//	{"kind": "NotFound", "message": "..."}
//	{"NotFound": "..."}
func newApplicationError(raw json.RawMessage) *ApplicationError {
	e := &ApplicationError{Raw: raw}

	var msg string
	if json.Unmarshal(raw, &msg) == nil {
		e.Message = msg
		return e
	}

	var fields struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &fields) == nil && (fields.Kind != "" || fields.Message != "") {
		e.Kind, e.Message = fields.Kind, fields.Message
		return e
	}

	var variant map[string]json.RawMessage
	if json.Unmarshal(raw, &variant) == nil && len(variant) == 1 {
		for kind, inner := range variant {
			e.Kind = kind
			if json.Unmarshal(inner, &msg) == nil {
				e.Message = msg
			}
		}
	}
	return e
}

// DecodeError means a control segment could not be decoded.
type DecodeError struct {
	Control []byte
	Err     error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return "client: decode result: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// HTTPStatusError is returned for a non-2xx HTTP response.
type HTTPStatusError struct {
	StatusCode int
	Status     string

	// Body is the start of the response body.
	Body string

	RequestID string
}

// Error implements the error interface.
func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return "client: http status " + e.Status
	}
	return fmt.Sprintf("client: http status %s: %s", e.Status, e.Body)
}
