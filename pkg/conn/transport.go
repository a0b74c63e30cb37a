package conn

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is a message-oriented duplex connection. ReadMessage is only
// called from one goroutine and WriteMessage from one other goroutine;
// Close may be called concurrently with both and must unblock them.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(msg []byte) error
	Close() error
}

// DialFunc establishes a Transport. It runs on the handshake goroutine and
// ctx is cancelled when the connection is closed before the dial returns.
type DialFunc func(ctx context.Context) (Transport, error)

// Config holds WebSocket transport settings.
type Config struct {
	// HandshakeTimeout bounds the opening handshake.
	// Default: 10 seconds.
	HandshakeTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a message.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// ReadTimeout is the maximum time without any message or pong from the
	// server. Zero disables the read deadline.
	// Default: 0.
	ReadTimeout time.Duration

	// PingInterval is the time between keepalive pings. Zero disables pings.
	// Default: 30 seconds.
	PingInterval time.Duration

	// MaxMessageSize is the maximum size of an inbound message.
	// Default: 64MB.
	MaxMessageSize int64

	// EnableCompression negotiates permessage-deflate.
	// Default: false.
	EnableCompression bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     30 * time.Second,
		MaxMessageSize:   64 << 20,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// DialWebSocket returns a DialFunc that opens a WebSocket to url with the
// given request headers. A nil cfg uses DefaultConfig().
func DialWebSocket(url string, header http.Header, cfg *Config) DialFunc {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.Clone()
	header = header.Clone()

	return func(ctx context.Context) (Transport, error) {
		d := websocket.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			HandshakeTimeout:  cfg.HandshakeTimeout,
			EnableCompression: cfg.EnableCompression,
		}
		ws, resp, err := d.DialContext(ctx, url, header)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("websocket handshake: %w (status %d)", err, resp.StatusCode)
			}
			return nil, fmt.Errorf("websocket handshake: %w", err)
		}
		return newWSTransport(ws, cfg), nil
	}
}

// wsTransport adapts a gorilla connection to Transport and runs the
// keepalive ping loop.
type wsTransport struct {
	ws   *websocket.Conn
	cfg  *Config
	done chan struct{}
	once sync.Once
}

func newWSTransport(ws *websocket.Conn, cfg *Config) *wsTransport {
	t := &wsTransport{
		ws:   ws,
		cfg:  cfg,
		done: make(chan struct{}),
	}
	if cfg.MaxMessageSize > 0 {
		ws.SetReadLimit(cfg.MaxMessageSize)
	}
	if cfg.ReadTimeout > 0 {
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		})
	}
	if cfg.PingInterval > 0 {
		go t.pingLoop()
	}
	return t
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	for {
		if t.cfg.ReadTimeout > 0 {
			t.ws.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout))
		}
		kind, msg, err := t.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.BinaryMessage {
			return msg, nil
		}
	}
}

func (t *wsTransport) WriteMessage(msg []byte) error {
	if t.cfg.WriteTimeout > 0 {
		t.ws.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	}
	return t.ws.WriteMessage(websocket.BinaryMessage, msg)
}

func (t *wsTransport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.done)
		deadline := time.Now().Add(time.Second)
		t.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = t.ws.Close()
	})
	return err
}

// pingLoop sends heartbeat pings until the transport is closed.
func (t *wsTransport) pingLoop() {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(t.cfg.WriteTimeout)
			if t.cfg.WriteTimeout <= 0 {
				deadline = time.Now().Add(10 * time.Second)
			}
			if err := t.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-t.done:
			return
		}
	}
}
