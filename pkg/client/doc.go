// Package client is the entry point for calling remote methods.
//
// Every remote method is reached through one contract:
//
//	resp, err := c.Call(ctx, client.Request{
//		Resource: "model",
//		Method:   "get",
//		Params:   map[string]string{"id": "m1"},
//		Mode:     client.ModeWS,
//	})
//	if err != nil {
//		return err // transport, framing or HTTP status failure
//	}
//	var model Model
//	if err := resp.Decode(&model); err != nil {
//		return err // *ApplicationError from the server, or *DecodeError
//	}
//
// ModeHTTP sends one POST per call. ModeWS multiplexes calls over a shared
// WebSocket that is opened on demand and closed when it has nothing left
// to do. ModeWSIfAvailable only uses an already open connection and is
// meant for calls that are pointless without one, such as sending input
// to a subscribed terminal.
//
// Server-pushed events are delivered to listeners registered with
// Client.OnEvent.
package client
