// Package rpctest provides an in-process fake of the remote platform for
// tests and local experiments. It speaks both wire formats: framed HTTP
// POST calls and the multiplexed WebSocket with correlated responses and
// pushed events.
//
//	srv := rpctest.NewServer()
//	srv.Handle("fs", "read", func(req *rpctest.Request) (*protocol.Frame, error) {
//		return rpctest.OK(map[string]int{"size": 3}, []byte("abc"))
//	})
//	ts := httptest.NewServer(srv)
//	defer ts.Close()
package rpctest
