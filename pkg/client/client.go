package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
	"weak"

	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/wirecall/pkg/conn"
	"github.com/vango-dev/wirecall/pkg/events"
	"github.com/vango-dev/wirecall/pkg/protocol"
)

var (
	// ErrNoEndpoint is returned by New when neither an HTTP base URL nor a
	// WebSocket URL is configured.
	ErrNoEndpoint = errors.New("client: no endpoint configured")

	// ErrClientClosed is returned by calls made after Close.
	ErrClientClosed = errors.New("client: closed")

	// ErrNoTransport is returned when the requested transport has no
	// configured endpoint.
	ErrNoTransport = errors.New("client: transport not configured")
)

// Mode selects the transport of a call.
type Mode uint8

const (
	// ModeHTTP sends the call as one HTTP POST.
	ModeHTTP Mode = iota

	// ModeWS sends the call over the shared WebSocket connection, opening
	// it if needed.
	ModeWS

	// ModeWSIfAvailable sends the call over the shared connection only if
	// one is open. Otherwise the call is not sent and the response has
	// Delivery NotSent.
	ModeWSIfAvailable
)

// String returns the transport label of the mode.
func (m Mode) String() string {
	switch m {
	case ModeHTTP:
		return "http"
	case ModeWS:
		return "ws"
	case ModeWSIfAvailable:
		return "ws_if_available"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// Request is a call to method on resource.
type Request struct {
	Resource string
	Method   string

	// Params is marshaled to JSON. json.RawMessage and []byte are used as
	// is; nil becomes {}.
	Params any

	// Segments are binary data segments sent after the control segment.
	Segments [][]byte

	Mode Mode
}

// Client dispatches calls over HTTP or a shared, lazily opened WebSocket
// connection.
//
// The shared connection closes itself once it has no pending calls and no
// active subscriptions; the next WebSocket call opens a new one with a
// higher generation. Each connection holds only a weak reference back to
// the Client, so an unreferenced Client can be collected while a
// connection is still open.
type Client struct {
	httpBase   string
	wsURL      string
	token      string
	header     http.Header
	httpClient *http.Client
	wsConfig   *conn.Config
	dial       conn.DialFunc
	tracker    events.Tracker
	limits     protocol.Limits
	logger     *slog.Logger
	metrics    *Metrics
	tracer     trace.Tracer

	registry *events.Registry

	mu     sync.RWMutex
	conn   *conn.Conn
	gen    uint64
	closed bool
}

// New creates a Client.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		header:     make(http.Header),
		httpClient: http.DefaultClient,
		wsConfig:   conn.DefaultConfig(),
		tracker:    events.NewFieldTracker(),
		limits:     protocol.DefaultLimits(),
		logger:     slog.Default(),
		tracer:     defaultTracer(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.httpBase == "" && c.wsURL == "" && c.dial == nil {
		return nil, ErrNoEndpoint
	}
	if c.dial == nil && c.wsURL != "" {
		c.dial = conn.DialWebSocket(c.wsURL, c.requestHeader(), c.wsConfig)
	}
	c.registry = events.NewRegistry(c.logger)
	return c, nil
}

// Call sends req and waits for its response.
//
// Transport failures, malformed responses and non-2xx HTTP statuses are
// returned as errors. Application errors reported by the server are part
// of a successful response and surface from Response.Decode. Cancelling
// ctx stops the wait; a WebSocket call already queued is still sent.
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	ctx, span := c.startSpan(ctx, req)
	start := time.Now()

	resp, err := c.dispatch(ctx, req)

	c.metrics.observeCall(req.Mode, resp, err, time.Since(start))
	endSpan(span, resp, err)
	if err != nil {
		c.logger.Debug("call failed",
			"resource", req.Resource,
			"method", req.Method,
			"transport", req.Mode.String(),
			"error", err)
		return nil, err
	}
	return resp, nil
}

func (c *Client) dispatch(ctx context.Context, req Request) (*Response, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, ErrClientClosed
	}
	if len(req.Segments) > protocol.MaxSegments {
		return nil, protocol.ErrTooManySegments
	}

	params, err := marshalParams(req.Params)
	if err != nil {
		return nil, fmt.Errorf("client: marshal params for %s.%s: %w", req.Resource, req.Method, err)
	}

	switch req.Mode {
	case ModeHTTP:
		if c.httpBase == "" {
			return nil, ErrNoTransport
		}
		return c.callHTTP(ctx, req, params)
	case ModeWS, ModeWSIfAvailable:
		if c.dial == nil {
			return nil, ErrNoTransport
		}
		return c.callWS(ctx, req, params)
	default:
		return nil, fmt.Errorf("client: unknown mode %v", req.Mode)
	}
}

// envelope is the control segment of a WebSocket call.
type envelope struct {
	Resource string          `json:"resource"`
	Method   string          `json:"method"`
	Params   json.RawMessage `json:"params"`
}

func (c *Client) callWS(ctx context.Context, req Request, params []byte) (*Response, error) {
	control, err := json.Marshal(envelope{
		Resource: req.Resource,
		Method:   req.Method,
		Params:   params,
	})
	if err != nil {
		return nil, err
	}

	call, gen, err := c.enqueue(req, control)
	if err != nil {
		return nil, err
	}
	if call == nil {
		return &Response{Delivery: NotSent, Transport: req.Mode.String()}, nil
	}
	if sp := trace.SpanFromContext(ctx); sp.IsRecording() {
		sp.SetAttributes(generationAttr(gen))
	}

	select {
	case r := <-call.Done():
		if r.Err != nil {
			return nil, r.Err
		}
		return &Response{
			Delivery:   Sent,
			Control:    r.Control,
			Segments:   r.Segments,
			Transport:  req.Mode.String(),
			Generation: gen,
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// enqueue hands the call to the shared connection. The call is enqueued
// while the slot lock is held so an idle teardown cannot run between
// looking up the connection and enqueueing on it. A nil call means
// ModeWSIfAvailable found no open connection.
func (c *Client) enqueue(req Request, control []byte) (*conn.Call, uint64, error) {
	c.mu.RLock()
	if cn := c.conn; cn != nil && cn.State() != conn.StateClosed {
		call := cn.Go(req.Resource, req.Method, control, req.Segments)
		c.mu.RUnlock()
		return call, cn.Generation(), nil
	}
	c.mu.RUnlock()

	if req.Mode == ModeWSIfAvailable {
		return nil, 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, 0, ErrClientClosed
	}
	if c.conn == nil || c.conn.State() == conn.StateClosed {
		c.gen++
		c.conn = c.newConn(c.gen)
	}
	cn := c.conn
	return cn.Go(req.Resource, req.Method, control, req.Segments), cn.Generation(), nil
}

// newConn opens connection generation gen. Called with mu held.
func (c *Client) newConn(gen uint64) *conn.Conn {
	self := weak.Make(c)
	opts := []conn.Option{
		conn.WithLogger(c.logger),
		conn.WithRegistry(c.registry),
		conn.WithTracker(c.tracker),
		conn.WithLimits(c.limits),
		conn.OnUnused(func(gen uint64) {
			if cl := self.Value(); cl != nil {
				cl.handleUnused(gen)
			}
		}),
		conn.OnClose(func(gen uint64, err error) {
			if cl := self.Value(); cl != nil {
				cl.handleClose(gen, err)
			}
		}),
	}
	if c.metrics != nil {
		opts = append(opts, conn.WithMetrics(c.metrics))
	}
	c.logger.Debug("opening connection", "generation", gen)
	return conn.New(gen, c.dial, opts...)
}

// handleUnused closes connection gen if it is still the shared connection
// and still idle. A call enqueued after the notification was raised keeps
// the connection open.
func (c *Client) handleUnused(gen uint64) {
	c.mu.Lock()
	cn := c.conn
	if cn == nil || cn.Generation() != gen || !cn.Idle() {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()

	c.logger.Debug("closing idle connection", "generation", gen)
	cn.Close()
}

// handleClose clears the slot if it still holds connection gen.
func (c *Client) handleClose(gen uint64, err error) {
	c.mu.Lock()
	if c.conn != nil && c.conn.Generation() == gen {
		c.conn = nil
	}
	c.mu.Unlock()

	if err != nil && !errors.Is(err, conn.ErrClosed) {
		c.logger.Warn("connection lost", "generation", gen, "error", err)
	}
}

// OnEvent registers fn for every event pushed on any connection of this
// client. fn runs on the connection's reader goroutine and must not block.
func (c *Client) OnEvent(fn events.Listener) events.Disposer {
	return c.registry.Register(fn)
}

// Generation returns the generation of the open shared connection, or 0
// if there is none.
func (c *Client) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return 0
	}
	return c.conn.Generation()
}

// Subscriptions returns the active subscriptions of the shared connection.
func (c *Client) Subscriptions() []string {
	c.mu.RLock()
	cn := c.conn
	c.mu.RUnlock()
	if cn == nil {
		return nil
	}
	return cn.Subscriptions()
}

// Close closes the shared connection and rejects further calls.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if cn != nil {
		return cn.Close()
	}
	return nil
}

// requestHeader returns the extra headers plus the bearer token.
func (c *Client) requestHeader() http.Header {
	h := c.header.Clone()
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	return h
}

func marshalParams(v any) ([]byte, error) {
	switch v := v.(type) {
	case nil:
		return []byte("{}"), nil
	case json.RawMessage:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		return v, nil
	case []byte:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		return v, nil
	default:
		return json.Marshal(v)
	}
}
