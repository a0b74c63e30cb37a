package conn

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/wirecall/pkg/protocol"
)

// echoServer answers every request with its own control and segments and
// records the Authorization header of the upgrade request.
func echoServer(t *testing.T, auth chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth != nil {
			auth <- r.Header.Get("Authorization")
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			_, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			req, err := protocol.DecodeRequestMessage(msg)
			if err != nil {
				return
			}
			out, err := protocol.EncodeResponseMessage(req.ID, req.Frame)
			if err != nil {
				return
			}
			if err := ws.WriteMessage(websocket.BinaryMessage, out); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialWebSocket(t *testing.T) {
	auth := make(chan string, 1)
	srv := echoServer(t, auth)

	header := http.Header{}
	header.Set("Authorization", "Bearer secret")
	cfg := DefaultConfig()
	cfg.PingInterval = 10 * time.Millisecond

	c := New(1, DialWebSocket(wsURL(srv), header, cfg))
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := c.Call(ctx, "fs", "read", []byte(`{"path":"/a"}`), [][]byte{[]byte("xyz")})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if string(res.Control) != `{"path":"/a"}` {
		t.Errorf("Control = %q", res.Control)
	}
	if len(res.Segments) != 1 || string(res.Segments[0]) != "xyz" {
		t.Errorf("Segments = %q", res.Segments)
	}
	if got := <-auth; got != "Bearer secret" {
		t.Errorf("Authorization = %q, want Bearer secret", got)
	}
	if c.State() != StateActive {
		t.Errorf("State() = %v, want active", c.State())
	}
}

func TestDialWebSocketRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(1, DialWebSocket(wsURL(srv), nil, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := c.Call(ctx, "fs", "read", []byte(`{}`), nil)
	var te *TransportError
	if !errors.As(err, &te) || te.Op != "dial" {
		t.Fatalf("Call() error = %v, want dial TransportError", err)
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error %q does not mention the status", err)
	}
}

func TestConfigClone(t *testing.T) {
	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.WriteTimeout = time.Minute
	if cfg.WriteTimeout == time.Minute {
		t.Error("Clone shares state with the original")
	}
	var nilCfg *Config
	if nilCfg.Clone() != nil {
		t.Error("nil Clone should be nil")
	}
}
