package conn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/wirecall/pkg/events"
	"github.com/vango-dev/wirecall/pkg/protocol"
)

// State is the lifecycle state of a Conn.
type State uint8

const (
	// StateConnecting means the handshake is in progress. Calls are queued.
	StateConnecting State = iota

	// StateActive means the reader and writer loops are running.
	StateActive

	// StateClosed is terminal.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// Result is the outcome of a call.
type Result struct {
	// Control is the JSON control segment of the response.
	Control []byte

	// Segments are the binary data segments of the response.
	Segments [][]byte

	// Err is non-nil when the call failed. Control and Segments are then nil.
	Err error
}

// Call is a request issued with Conn.Go.
type Call struct {
	Resource string
	Method   string

	control  []byte
	segments [][]byte
	done     chan Result
}

// Done returns a channel that receives the result exactly once.
func (c *Call) Done() <-chan Result {
	return c.done
}

func (c *Call) finish(r Result) {
	c.done <- r
}

// Conn multiplexes calls and pushed events over one Transport.
//
// A Conn is created in StateConnecting and dials on its own goroutine.
// Once active, one writer goroutine sends queued requests and one reader
// goroutine routes responses to their callers by correlation id and
// events to the registry. The first transport or framing failure closes
// the connection and fails every queued and pending call with that error.
//
// A Conn is never reused after it closes; callers create a new one with a
// new generation.
type Conn struct {
	gen  uint64
	dial DialFunc

	logger   *slog.Logger
	registry *events.Registry
	tracker  events.Tracker
	metrics  Metrics
	limits   protocol.Limits
	onUnused func(gen uint64)
	onClose  func(gen uint64, err error)

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wake   chan struct{}

	mu          sync.Mutex
	state       State
	err         error
	transport   Transport
	queue       []*Call
	pending     map[uint32]*Call
	subs        events.Set
	nextID      uint32
	unusedFired bool
}

// New creates a connection with generation gen and starts dialing.
func New(gen uint64, dial DialFunc, opts ...Option) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		gen:     gen,
		dial:    dial,
		logger:  slog.Default(),
		tracker: events.NewFieldTracker(),
		metrics: nopMetrics{},
		limits:  protocol.DefaultLimits(),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		wake:    make(chan struct{}, 1),
		pending: make(map[uint32]*Call),
		subs:    make(events.Set),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("generation", gen)

	go c.run()
	return c
}

// Generation returns the generation the connection was created with.
func (c *Conn) Generation() uint64 {
	return c.gen
}

// State returns the current state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error that closed the connection, or nil while open.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done is closed after the connection has closed, every outstanding call
// has been failed and the close callback has returned.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Idle reports whether there are no queued calls, no pending calls and no
// active subscriptions.
func (c *Conn) Idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idleLocked()
}

// Pending returns the number of calls awaiting a response.
func (c *Conn) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Subscriptions returns the active subscription keys, sorted.
func (c *Conn) Subscriptions() []string {
	c.mu.Lock()
	keys := c.subs.Keys()
	c.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Go enqueues a call and returns immediately. control is the complete
// JSON control segment; resource and method are passed to the tracker
// when the response arrives. The segments are not copied and must not be
// modified until the call completes.
func (c *Conn) Go(resource, method string, control []byte, segments [][]byte) *Call {
	call := &Call{
		Resource: resource,
		Method:   method,
		control:  control,
		segments: segments,
		done:     make(chan Result, 1),
	}
	if len(segments) > protocol.MaxSegments {
		call.finish(Result{Err: protocol.ErrTooManySegments})
		return call
	}

	c.mu.Lock()
	if c.state == StateClosed {
		err := closedError(c.err)
		c.mu.Unlock()
		call.finish(Result{Err: err})
		return call
	}
	c.queue = append(c.queue, call)
	c.unusedFired = false
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return call
}

// Call enqueues a call and waits for its result. Cancelling ctx stops the
// wait but not the call.
func (c *Conn) Call(ctx context.Context, resource, method string, control []byte, segments [][]byte) (*Result, error) {
	call := c.Go(resource, method, control, segments)
	select {
	case r := <-call.Done():
		if r.Err != nil {
			return nil, r.Err
		}
		return &r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes the connection and fails outstanding calls with ErrClosed.
func (c *Conn) Close() error {
	c.fail(ErrClosed)
	return nil
}

// run dials and then supervises the reader and writer loops.
func (c *Conn) run() {
	t, err := c.dial(c.ctx)
	if err != nil {
		if c.ctx.Err() == nil {
			c.metrics.TransportError("dial")
		}
		c.fail(&TransportError{Op: "dial", Err: err})
		return
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		t.Close()
		return
	}
	c.state = StateActive
	c.transport = t
	fire := c.checkUnusedLocked()
	c.mu.Unlock()
	c.notifyUnused(fire)

	c.metrics.ConnectionOpened()
	c.logger.Debug("connection active")

	g, ctx := errgroup.WithContext(c.ctx)
	stop := context.AfterFunc(ctx, func() { t.Close() })
	defer stop()
	g.Go(func() error { return c.readLoop(ctx, t) })
	g.Go(func() error { return c.writeLoop(ctx, t) })
	err = g.Wait()

	if errors.Is(err, context.Canceled) {
		err = ErrClosed
	}
	c.fail(err)
	c.metrics.ConnectionClosed()
}

// writeLoop sends queued calls until ctx is cancelled or a write fails.
func (c *Conn) writeLoop(ctx context.Context, t Transport) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
		}

		for {
			msg, more := c.nextMessage()
			if !more {
				break
			}
			if msg == nil {
				continue
			}
			if err := t.WriteMessage(msg); err != nil {
				c.metrics.TransportError("write")
				return &TransportError{Op: "write", Err: err}
			}
			c.metrics.BytesSent(len(msg))
		}
	}
}

// nextMessage pops the next queued call, registers it as pending under a
// fresh correlation id and returns its encoded request. The call is
// registered before it is written so a response cannot arrive for an
// unknown id. Encoding runs outside the lock. A nil message means the
// call failed to encode and has already been completed.
func (c *Conn) nextMessage() (msg []byte, more bool) {
	c.mu.Lock()
	if len(c.queue) == 0 || c.state == StateClosed {
		c.mu.Unlock()
		return nil, false
	}
	call := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	id := c.allocIDLocked()
	c.pending[id] = call
	c.mu.Unlock()

	msg, err := protocol.EncodeRequestMessage(id, call.control, call.segments)
	if err == nil {
		return msg, true
	}

	c.mu.Lock()
	owned := c.pending[id] == call
	if owned {
		delete(c.pending, id)
	}
	fire := c.checkUnusedLocked()
	c.mu.Unlock()
	// fail completes the call itself if it closed the connection meanwhile.
	if owned {
		call.finish(Result{Err: err})
	}
	c.notifyUnused(fire)
	return nil, true
}

// allocIDLocked returns the next correlation id. Ids start at 1, skip 0
// on wrap-around and skip ids that are still pending.
func (c *Conn) allocIDLocked() uint32 {
	for {
		c.nextID++
		if c.nextID == 0 {
			continue
		}
		if _, taken := c.pending[c.nextID]; !taken {
			return c.nextID
		}
	}
}

// readLoop routes inbound messages until the transport fails or a
// message cannot be decoded. Cancelling ctx closes the transport, which
// unblocks the pending read.
func (c *Conn) readLoop(ctx context.Context, t Transport) error {
	for {
		msg, err := t.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.metrics.TransportError("read")
			return &TransportError{Op: "read", Err: err}
		}
		c.metrics.BytesReceived(len(msg))

		in, err := protocol.DecodeInboundMessageWithLimits(msg, c.limits)
		if err != nil {
			c.logger.Error("inbound decode error", "error", err)
			return err
		}

		switch in.Kind {
		case protocol.KindResponse:
			c.handleResponse(in)
		case protocol.KindEvent:
			c.handleEvent(in)
		}
	}
}

func (c *Conn) handleResponse(in *protocol.InboundMessage) {
	c.mu.Lock()
	call, ok := c.pending[in.ID]
	c.mu.Unlock()
	if !ok {
		c.logger.Warn("response for unknown call", "id", in.ID)
		return
	}

	// Only the reader removes entries while the connection is open, so
	// the entry is still present unless the connection closed meanwhile.
	delta := c.tracker.ResponseDelta(call.Resource, call.Method, in.Frame.Control)

	c.mu.Lock()
	if c.pending[in.ID] != call {
		c.mu.Unlock()
		return
	}
	delete(c.pending, in.ID)
	c.subs.Apply(delta)
	fire := c.checkUnusedLocked()
	c.mu.Unlock()

	call.finish(Result{Control: in.Frame.Control, Segments: in.Frame.Segments})
	c.notifyUnused(fire)
}

func (c *Conn) handleEvent(in *protocol.InboundMessage) {
	ev := &events.Event{
		Resource:   in.Tag,
		Control:    in.Frame.Control,
		Segments:   in.Frame.Segments,
		Generation: c.gen,
		ReceivedAt: time.Now(),
	}
	c.metrics.EventReceived(in.Tag)
	if c.registry != nil {
		c.registry.Dispatch(ev)
	}

	delta := c.tracker.EventDelta(ev)
	if delta.Empty() {
		return
	}

	c.mu.Lock()
	c.subs.Apply(delta)
	fire := c.checkUnusedLocked()
	c.mu.Unlock()
	c.notifyUnused(fire)
}

func (c *Conn) idleLocked() bool {
	return len(c.queue) == 0 && len(c.pending) == 0 && len(c.subs) == 0
}

// checkUnusedLocked reports whether the connection just became idle. It
// returns true at most once per transition to idle.
func (c *Conn) checkUnusedLocked() bool {
	if c.state != StateActive {
		return false
	}
	if !c.idleLocked() {
		c.unusedFired = false
		return false
	}
	if c.unusedFired {
		return false
	}
	c.unusedFired = true
	return true
}

func (c *Conn) notifyUnused(fire bool) {
	if fire && c.onUnused != nil {
		go c.onUnused(c.gen)
	}
}

// fail closes the connection with err. Only the first call has an effect.
// Queued calls are failed in enqueue order, then pending calls in id
// order.
func (c *Conn) fail(err error) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.err = err

	queued := c.queue
	c.queue = nil

	ids := make([]uint32, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	pending := make([]*Call, len(ids))
	for i, id := range ids {
		pending[i] = c.pending[id]
	}
	c.pending = make(map[uint32]*Call)
	c.subs = make(events.Set)

	t := c.transport
	c.mu.Unlock()

	c.cancel()
	if t != nil {
		t.Close()
	}

	for _, call := range queued {
		call.finish(Result{Err: err})
	}
	for _, call := range pending {
		call.finish(Result{Err: err})
	}

	if errors.Is(err, ErrClosed) {
		c.logger.Debug("connection closed")
	} else {
		c.logger.Warn("connection failed", "error", err, "failed_calls", len(queued)+len(pending))
	}

	if c.onClose != nil {
		c.onClose(c.gen, err)
	}
	close(c.done)
}
