package rpctest

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/wirecall/pkg/protocol"
)

// Transport names recorded on a Request.
const (
	TransportHTTP = "http"
	TransportWS   = "ws"
)

// Request is one call received by the Server.
type Request struct {
	Resource  string
	Method    string
	Params    json.RawMessage
	Segments  [][]byte
	Transport string
	Header    http.Header

	// ID is the correlation id for WebSocket calls.
	ID uint32

	// Session is the WebSocket session the call arrived on, nil for HTTP.
	Session *Session
}

// HandlerFunc answers a call with a streamed response frame.
type HandlerFunc func(req *Request) (*protocol.Frame, error)

// Server is an in-process fake of the remote platform. It serves
//
//	POST /{resource}/{method}   counted request frame in, streamed frame out
//	GET  /ws                    WebSocket with correlated calls and events
//
// Server implements http.Handler; tests mount it on httptest.NewServer.
type Server struct {
	router   chi.Router
	upgrader websocket.Upgrader
	logger   *slog.Logger
	token    string

	mu        sync.Mutex
	handlers  map[string]HandlerFunc
	sessions  map[string]*Session
	requests  []*Request
	connected int
}

// Option configures a Server.
type Option func(*Server)

// WithToken requires "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a server with no handlers.
func NewServer(opts ...Option) *Server {
	s := &Server{
		logger:   slog.Default(),
		handlers: make(map[string]HandlerFunc),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.authenticate)
	r.Get("/ws", s.handleWebSocket)
	r.Post("/{resource}/{method}", s.handleHTTP)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handle registers fn for resource.method, replacing any previous handler.
func (s *Server) Handle(resource, method string, fn HandlerFunc) {
	s.mu.Lock()
	s.handlers[resource+"."+method] = fn
	s.mu.Unlock()
}

// Requests returns every call received so far, in arrival order.
func (s *Server) Requests() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Request(nil), s.requests...)
}

// Sessions returns the open WebSocket sessions ordered by connect time.
func (s *Server) Sessions() []*Session {
	s.mu.Lock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// TotalConnections returns the number of WebSocket sessions ever accepted.
func (s *Server) TotalConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Broadcast pushes an event to every open session.
func (s *Server) Broadcast(tag string, control any, segments ...[]byte) error {
	for _, sess := range s.Sessions() {
		if err := sess.Push(tag, control, segments...); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f, err := protocol.DecodeFrame(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := &Request{
		Resource:  chi.URLParam(r, "resource"),
		Method:    chi.URLParam(r, "method"),
		Params:    json.RawMessage(f.Control),
		Segments:  f.Clone().Segments,
		Transport: TransportHTTP,
		Header:    r.Header.Clone(),
	}
	s.record(req)

	fn := s.handler(req.Resource, req.Method)
	if fn == nil {
		http.Error(w, fmt.Sprintf("no method %s.%s", req.Resource, req.Method), http.StatusNotFound)
		return
	}
	out, err := fn(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	data, err := protocol.EncodeStreamedFrame(out.Control, out.Segments)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if id := r.Header.Get("X-Request-Id"); id != "" {
		w.Header().Set("X-Request-Id", id)
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	s.mu.Lock()
	s.connected++
	sess := &Session{
		ID:     uuid.NewString(),
		Header: r.Header.Clone(),
		seq:    s.connected,
		ws:     ws,
		srv:    s,
	}
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Debug("session opened", "session", sess.ID)
	sess.readLoop()

	s.mu.Lock()
	delete(s.sessions, sess.ID)
	s.mu.Unlock()
	s.logger.Debug("session closed", "session", sess.ID)
}

func (s *Server) handler(resource, method string) HandlerFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlers[resource+"."+method]
}

func (s *Server) record(req *Request) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
}
