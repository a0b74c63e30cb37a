package rpctest

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/wirecall/pkg/protocol"
)

// Session is one accepted WebSocket connection.
type Session struct {
	ID     string
	Header http.Header

	seq int
	ws  *websocket.Conn
	srv *Server

	writeMu sync.Mutex
}

// envelope is the control segment of a WebSocket call.
type envelope struct {
	Resource string          `json:"resource"`
	Method   string          `json:"method"`
	Params   json.RawMessage `json:"params"`
}

// Push sends an event tagged with tag. control is marshaled to JSON unless
// it is already a []byte or json.RawMessage.
func (s *Session) Push(tag string, control any, segments ...[]byte) error {
	data, err := marshalControl(control)
	if err != nil {
		return err
	}
	msg, err := protocol.EncodeEventMessage(tag, protocol.NewFrame(data, segments...))
	if err != nil {
		return err
	}
	return s.write(msg)
}

// WriteRaw sends msg unmodified, for exercising malformed input.
func (s *Session) WriteRaw(msg []byte) error {
	return s.write(msg)
}

// Close drops the connection without a close handshake.
func (s *Session) Close() error {
	return s.ws.Close()
}

func (s *Session) write(msg []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.ws.WriteMessage(websocket.BinaryMessage, msg)
}

// readLoop serves calls until the connection fails. Each call runs on its
// own goroutine so handlers may block and answer out of order.
func (s *Session) readLoop() {
	defer s.ws.Close()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, msg, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.srv.logger.Error("read error", "session", s.ID, "error", err)
			}
			return
		}

		rm, err := protocol.DecodeRequestMessage(msg)
		if err != nil {
			s.srv.logger.Error("request decode error", "session", s.ID, "error", err)
			return
		}
		var env envelope
		if err := json.Unmarshal(rm.Frame.Control, &env); err != nil {
			s.srv.logger.Error("request envelope error", "session", s.ID, "error", err)
			return
		}

		req := &Request{
			Resource:  env.Resource,
			Method:    env.Method,
			Params:    env.Params,
			Segments:  rm.Frame.Segments,
			Transport: TransportWS,
			Header:    s.Header,
			ID:        rm.ID,
			Session:   s,
		}
		s.srv.record(req)

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serve(req)
		}()
	}
}

func (s *Session) serve(req *Request) {
	var out *protocol.Frame
	fn := s.srv.handler(req.Resource, req.Method)
	if fn == nil {
		out, _ = Fail("NotFound", "no method "+req.Resource+"."+req.Method)
	} else {
		var err error
		if out, err = fn(req); err != nil {
			out, _ = Fail("Internal", err.Error())
		}
	}

	msg, err := protocol.EncodeResponseMessage(req.ID, out)
	if err != nil {
		s.srv.logger.Error("response encode error", "session", s.ID, "error", err)
		return
	}
	if err := s.write(msg); err != nil {
		s.srv.logger.Debug("response write error", "session", s.ID, "error", err)
	}
}
