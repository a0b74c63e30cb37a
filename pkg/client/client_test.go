package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vango-dev/wirecall/pkg/conn"
	"github.com/vango-dev/wirecall/pkg/events"
	"github.com/vango-dev/wirecall/pkg/protocol"
	"github.com/vango-dev/wirecall/pkg/rpctest"
)

const testToken = "s3cret"

type fixture struct {
	srv    *rpctest.Server
	ts     *httptest.Server
	client *Client
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	srv := rpctest.NewServer(rpctest.WithToken(testToken))
	srv.Handle("echo", "echo", rpctest.Echo)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	base := []Option{
		WithHTTPBase(ts.URL),
		WithWebSocketURL("ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"),
		WithToken(testToken),
		WithHeader("X-Workspace", "w1"),
	}
	c, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return &fixture{srv: srv, ts: ts, client: c}
}

func callCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewRequiresEndpoint(t *testing.T) {
	if _, err := New(); !errors.Is(err, ErrNoEndpoint) {
		t.Errorf("New() error = %v, want ErrNoEndpoint", err)
	}
	if _, err := New(WithHTTPBase("ftp://x")); err == nil {
		t.Error("New() with ftp base should fail")
	}
	if _, err := New(WithWebSocketURL("http://x/ws")); err == nil {
		t.Error("New() with http websocket url should fail")
	}
}

func TestHTTPCall(t *testing.T) {
	f := newFixture(t)

	resp, err := f.client.Call(callCtx(t), Request{
		Resource: "echo",
		Method:   "echo",
		Params:   map[string]int{"n": 7},
		Segments: [][]byte{[]byte("payload")},
		Mode:     ModeHTTP,
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !resp.Sent() || resp.Transport != "http" {
		t.Errorf("resp = %+v", resp)
	}

	var got struct{ N int }
	if err := resp.Decode(&got); err != nil || got.N != 7 {
		t.Errorf("Decode() = %+v, %v", got, err)
	}
	if len(resp.Segments) != 1 || string(resp.Segments[0]) != "payload" {
		t.Errorf("Segments = %q", resp.Segments)
	}

	reqs := f.srv.Requests()
	if len(reqs) != 1 {
		t.Fatalf("server saw %d requests, want 1", len(reqs))
	}
	h := reqs[0].Header
	if h.Get("Authorization") != "Bearer "+testToken || h.Get("X-Workspace") != "w1" {
		t.Errorf("headers = %v", h)
	}
	if _, err := uuid.Parse(h.Get("X-Request-Id")); err != nil || h.Get("X-Request-Id") != resp.RequestID {
		t.Errorf("X-Request-Id = %q, RequestID = %q", h.Get("X-Request-Id"), resp.RequestID)
	}
	if f.client.Generation() != 0 {
		t.Error("HTTP call opened a WebSocket connection")
	}
}

func TestHTTPStatusError(t *testing.T) {
	f := newFixture(t)

	_, err := f.client.Call(callCtx(t), Request{Resource: "nope", Method: "missing", Mode: ModeHTTP})
	var se *HTTPStatusError
	if !errors.As(err, &se) {
		t.Fatalf("Call() error = %v, want *HTTPStatusError", err)
	}
	if se.StatusCode != http.StatusNotFound || !strings.Contains(se.Body, "nope.missing") {
		t.Errorf("HTTPStatusError = %+v", se)
	}
}

func TestHTTPMalformedResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0x05, '{', '}'})
	}))
	defer ts.Close()

	c, err := New(WithHTTPBase(ts.URL))
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Call(callCtx(t), Request{Resource: "a", Method: "b", Mode: ModeHTTP})
	if !protocol.IsMalformed(err) {
		t.Errorf("Call() error = %v, want malformed message error", err)
	}
}

func TestWebSocketCall(t *testing.T) {
	f := newFixture(t)

	resp, err := f.client.Call(callCtx(t), Request{
		Resource: "echo",
		Method:   "echo",
		Params:   []byte(`{"hello":"world"}`),
		Segments: [][]byte{{1, 2, 3}},
		Mode:     ModeWS,
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if resp.Generation != 1 || resp.Transport != "ws" {
		t.Errorf("resp = %+v, want generation 1 over ws", resp)
	}
	if string(resp.Control) != `{"Ok":{"hello":"world"}}` {
		t.Errorf("Control = %s", resp.Control)
	}
	if len(resp.Segments) != 1 || string(resp.Segments[0]) != "\x01\x02\x03" {
		t.Errorf("Segments = %v", resp.Segments)
	}

	sessions := f.srv.Requests()
	if len(sessions) != 1 || sessions[0].Transport != rpctest.TransportWS {
		t.Fatalf("server requests = %+v", sessions)
	}
	if got := sessions[0].Header.Get("Authorization"); got != "Bearer "+testToken {
		t.Errorf("upgrade Authorization = %q", got)
	}
}

func TestConnectionTeardownAndNewGeneration(t *testing.T) {
	f := newFixture(t)
	ctx := callCtx(t)

	first, err := f.client.Call(ctx, Request{Resource: "echo", Method: "echo", Mode: ModeWS})
	if err != nil {
		t.Fatalf("first Call() error = %v", err)
	}

	// The connection has no pending calls and no subscriptions left.
	eventually(t, "idle connection to close", func() bool {
		return f.client.Generation() == 0 && len(f.srv.Sessions()) == 0
	})

	second, err := f.client.Call(ctx, Request{Resource: "echo", Method: "echo", Mode: ModeWS})
	if err != nil {
		t.Fatalf("second Call() error = %v", err)
	}
	if second.Generation <= first.Generation {
		t.Errorf("generation %d after teardown, want > %d", second.Generation, first.Generation)
	}
	if got := f.srv.TotalConnections(); got != 2 {
		t.Errorf("TotalConnections() = %d, want 2", got)
	}
}

func TestWSIfAvailable(t *testing.T) {
	f := newFixture(t)
	f.srv.Handle("terminal", "open", func(req *rpctest.Request) (*protocol.Frame, error) {
		return rpctest.OK(map[string]any{"session": "t1", "subscribe": []string{"terminal:t1"}})
	})
	f.srv.Handle("terminal", "close", func(req *rpctest.Request) (*protocol.Frame, error) {
		return rpctest.OK(map[string]any{"unsubscribe": "terminal:t1"})
	})
	ctx := callCtx(t)

	resp, err := f.client.Call(ctx, Request{Resource: "terminal", Method: "input", Mode: ModeWSIfAvailable})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if resp.Delivery != NotSent {
		t.Fatalf("Delivery = %v, want not_sent", resp.Delivery)
	}
	if err := resp.Decode(nil); !errors.Is(err, ErrNotSent) {
		t.Errorf("Decode() error = %v, want ErrNotSent", err)
	}
	if len(f.srv.Requests()) != 0 || f.srv.TotalConnections() != 0 {
		t.Fatal("not-sent call reached the server")
	}

	if _, err := f.client.Call(ctx, Request{Resource: "terminal", Method: "open", Mode: ModeWS}); err != nil {
		t.Fatalf("open error = %v", err)
	}
	if subs := f.client.Subscriptions(); len(subs) != 1 || subs[0] != "terminal:t1" {
		t.Fatalf("Subscriptions() = %v", subs)
	}

	f.srv.Handle("terminal", "input", rpctest.Echo)
	resp, err = f.client.Call(ctx, Request{Resource: "terminal", Method: "input", Params: map[string]string{"data": "ls\n"}, Mode: ModeWSIfAvailable})
	if err != nil || resp.Delivery != Sent || resp.Generation != 1 {
		t.Fatalf("input over open connection = %+v, %v", resp, err)
	}

	if _, err := f.client.Call(ctx, Request{Resource: "terminal", Method: "close", Mode: ModeWS}); err != nil {
		t.Fatalf("close error = %v", err)
	}
	eventually(t, "connection teardown after unsubscribe", func() bool {
		return f.client.Generation() == 0
	})
}

func TestEventsAndSubscriptionLifetime(t *testing.T) {
	f := newFixture(t)
	f.srv.Handle("model", "watch", func(req *rpctest.Request) (*protocol.Frame, error) {
		return rpctest.OK(map[string]any{"subscribe": "model:m1"})
	})
	ctx := callCtx(t)

	got := make(chan *events.Event, 4)
	dispose := f.client.OnEvent(func(ev *events.Event) {
		got <- &events.Event{Resource: ev.Resource, Control: append([]byte(nil), ev.Control...), Generation: ev.Generation}
	})
	defer dispose.Dispose()

	if _, err := f.client.Call(ctx, Request{Resource: "model", Method: "watch", Mode: ModeWS}); err != nil {
		t.Fatalf("watch error = %v", err)
	}
	sessions := f.srv.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("server has %d sessions, want 1", len(sessions))
	}

	if err := sessions[0].Push("model", map[string]any{"progress": 0.5}); err != nil {
		t.Fatal(err)
	}
	if err := sessions[0].Push("model", map[string]any{"done": true, "unsubscribe": "model:m1"}); err != nil {
		t.Fatal(err)
	}

	for i, want := range []string{`{"progress":0.5}`, `{"done":true,"unsubscribe":"model:m1"}`} {
		select {
		case ev := <-got:
			if ev.Resource != "model" || string(ev.Control) != want || ev.Generation != 1 {
				t.Errorf("event %d = %s %s gen %d", i, ev.Resource, ev.Control, ev.Generation)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("event %d not delivered", i)
		}
	}

	eventually(t, "teardown after last unsubscribe", func() bool {
		return f.client.Generation() == 0
	})
}

func TestDisconnectFailsAllPendingCalls(t *testing.T) {
	const n = 4

	f := newFixture(t)
	release := make(chan struct{})
	defer close(release)
	f.srv.Handle("slow", "wait", func(req *rpctest.Request) (*protocol.Frame, error) {
		<-release
		return rpctest.OK(nil)
	})
	ctx := callCtx(t)

	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := f.client.Call(ctx, Request{Resource: "slow", Method: "wait", Mode: ModeWS})
			errs <- err
		}()
	}

	eventually(t, "all calls to reach the server", func() bool {
		return len(f.srv.Requests()) == n
	})
	f.srv.Sessions()[0].Close()

	for i := 0; i < n; i++ {
		err := <-errs
		var te *conn.TransportError
		if !errors.As(err, &te) || te.Op != "read" {
			t.Errorf("call error = %v, want read TransportError", err)
		}
	}
	eventually(t, "slot to clear after disconnect", func() bool {
		return f.client.Generation() == 0
	})
}

func TestConcurrentWebSocketCalls(t *testing.T) {
	f := newFixture(t)
	ctx := callCtx(t)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.client.Call(ctx, Request{Resource: "echo", Method: "echo", Params: map[string]int{"i": i}, Mode: ModeWS})
			if err != nil {
				t.Errorf("call %d error = %v", i, err)
				return
			}
			var got struct{ I int }
			if err := resp.Decode(&got); err != nil || got.I != i {
				t.Errorf("call %d decoded %+v, %v", i, got, err)
			}
		}()
	}
	wg.Wait()
}

func TestCloseRejectsCalls(t *testing.T) {
	f := newFixture(t)
	f.client.Close()

	for _, mode := range []Mode{ModeHTTP, ModeWS, ModeWSIfAvailable} {
		if _, err := f.client.Call(callCtx(t), Request{Resource: "echo", Method: "echo", Mode: mode}); !errors.Is(err, ErrClientClosed) {
			t.Errorf("%v call after Close error = %v, want ErrClientClosed", mode, err)
		}
	}
}

func TestTooManySegmentsOpensNoConnection(t *testing.T) {
	f := newFixture(t)

	for _, mode := range []Mode{ModeHTTP, ModeWS, ModeWSIfAvailable} {
		req := Request{Resource: "echo", Method: "echo", Segments: make([][]byte, protocol.MaxSegments+1), Mode: mode}
		if _, err := f.client.Call(callCtx(t), req); !errors.Is(err, protocol.ErrTooManySegments) {
			t.Errorf("%v call error = %v, want ErrTooManySegments", mode, err)
		}
	}
	if gen := f.client.Generation(); gen != 0 {
		t.Errorf("Generation() = %d, want no connection", gen)
	}
	if got := f.srv.TotalConnections(); got != 0 {
		t.Errorf("TotalConnections() = %d, want 0", got)
	}
	if got := len(f.srv.Requests()); got != 0 {
		t.Errorf("server saw %d requests, want 0", got)
	}
}

func TestIdleConnectionOpenedWithoutWorkCloses(t *testing.T) {
	f := newFixture(t)

	// A connection whose only call completed before it became active is
	// closed once it is idle.
	f.client.mu.Lock()
	f.client.gen++
	f.client.conn = f.client.newConn(f.client.gen)
	f.client.mu.Unlock()

	eventually(t, "idle connection to close", func() bool {
		return f.client.Generation() == 0 && len(f.srv.Sessions()) == 0
	})
}

func TestMissingTransport(t *testing.T) {
	c, err := New(WithHTTPBase("http://127.0.0.1:1"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Call(callCtx(t), Request{Resource: "a", Method: "b", Mode: ModeWS}); !errors.Is(err, ErrNoTransport) {
		t.Errorf("ws call without websocket url error = %v, want ErrNoTransport", err)
	}
}

func TestModeString(t *testing.T) {
	tests := []struct {
		mode Mode
		want string
	}{
		{ModeHTTP, "http"},
		{ModeWS, "ws"},
		{ModeWSIfAvailable, "ws_if_available"},
		{Mode(7), "Mode(7)"},
	}
	for _, tc := range tests {
		if got := tc.mode.String(); got != tc.want {
			t.Errorf("Mode(%d).String() = %q, want %q", tc.mode, got, tc.want)
		}
	}
}
