package rpctest

import (
	"encoding/json"

	"github.com/vango-dev/wirecall/pkg/protocol"
)

// OK returns a frame whose control is {"Ok": v}.
func OK(v any, segments ...[]byte) (*protocol.Frame, error) {
	data, err := marshalControl(v)
	if err != nil {
		return nil, err
	}
	control, err := json.Marshal(map[string]json.RawMessage{"Ok": data})
	if err != nil {
		return nil, err
	}
	return protocol.NewFrame(control, segments...), nil
}

// Fail returns a frame whose control is an application error:
// {"Error": {"kind": kind, "message": message}}.
func Fail(kind, message string) (*protocol.Frame, error) {
	control, err := json.Marshal(map[string]any{
		"Error": map[string]string{"kind": kind, "message": message},
	})
	if err != nil {
		return nil, err
	}
	return protocol.NewFrame(control), nil
}

// Echo answers every call with its own params and segments.
func Echo(req *Request) (*protocol.Frame, error) {
	return OK(req.Params, req.Segments...)
}

func marshalControl(v any) ([]byte, error) {
	switch v := v.(type) {
	case json.RawMessage:
		if len(v) == 0 {
			return []byte("null"), nil
		}
		return v, nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}
