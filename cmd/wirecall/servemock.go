package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/wirecall/internal/errors"
	"github.com/vango-dev/wirecall/pkg/protocol"
	"github.com/vango-dev/wirecall/pkg/rpctest"
	"github.com/vango-dev/wirecall/pkg/tensor"
)

func serveMockCmd(g *globals) *cobra.Command {
	var (
		addr     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve-mock",
		Short: "Run a local fake platform for trying the client",
		Long: `Run an in-process fake platform speaking both wire formats.

Methods:
  echo.echo          Returns its params and segments
  tensor.zeros       {"dtype":"f32","shape":[2,3]} returns a zero tensor segment
  tensor.inspect     Describes each tensor segment it receives
  clock.subscribe    Pushes a "clock" event every --interval
  clock.unsubscribe  Stops the clock events

Routes:
  POST /{resource}/{method}
  GET  /ws

The --token flag requires a bearer token on every request.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeMock(cmd.Context(), g, addr, interval)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:8080", "Listen address")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Clock event interval")

	return cmd
}

func runServeMock(ctx context.Context, g *globals, addr string, interval time.Duration) error {
	srv := newMockServer(g, interval)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.New("E501").
			WithDetail("Cannot listen on " + addr + ": " + err.Error())
	}
	hs := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
	}

	fmt.Fprintf(g.stdout, "Serving on http://%s (WebSocket at ws://%s/ws)\n", ln.Addr(), ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- hs.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return hs.Shutdown(shutdownCtx)
}

// newMockServer returns the fake platform with the demo methods.
func newMockServer(g *globals, interval time.Duration) *rpctest.Server {
	opts := []rpctest.Option{rpctest.WithLogger(g.logger)}
	if g.token != "" {
		opts = append(opts, rpctest.WithToken(g.token))
	}
	srv := rpctest.NewServer(opts...)

	srv.Handle("echo", "echo", rpctest.Echo)
	srv.Handle("tensor", "zeros", tensorZeros)
	srv.Handle("tensor", "inspect", tensorInspect)

	clocks := &clockSet{interval: interval, stops: make(map[*rpctest.Session]func())}
	srv.Handle("clock", "subscribe", clocks.subscribe)
	srv.Handle("clock", "unsubscribe", clocks.unsubscribe)
	return srv
}

func tensorZeros(req *rpctest.Request) (*protocol.Frame, error) {
	var p struct {
		DType string   `json:"dtype"`
		Shape []uint64 `json:"shape"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return rpctest.Fail("InvalidParams", err.Error())
	}
	if p.DType == "" {
		p.DType = "f32"
	}
	dtype, err := tensor.ParseDType(p.DType)
	if err != nil {
		return rpctest.Fail("InvalidParams", err.Error())
	}
	t, err := tensor.Zeros(dtype, p.Shape)
	if err != nil {
		return rpctest.Fail("InvalidParams", err.Error())
	}
	data, err := t.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return rpctest.OK(map[string]any{"tensor": t.String()}, data)
}

func tensorInspect(req *rpctest.Request) (*protocol.Frame, error) {
	out := make([]string, len(req.Segments))
	for i, seg := range req.Segments {
		o, err := tensor.FromBytes(seg)
		if err != nil {
			return rpctest.Fail("InvalidTensor", fmt.Sprintf("segment %d: %v", i, err))
		}
		out[i] = o.String()
	}
	return rpctest.OK(out)
}

// clockSet runs one ticker per subscribed session.
type clockSet struct {
	interval time.Duration

	mu    sync.Mutex
	stops map[*rpctest.Session]func()
}

func (c *clockSet) subscribe(req *rpctest.Request) (*protocol.Frame, error) {
	if req.Session == nil {
		return rpctest.Fail("Unsupported", "clock events need the WebSocket transport")
	}

	c.mu.Lock()
	if _, ok := c.stops[req.Session]; !ok {
		done := make(chan struct{})
		c.stops[req.Session] = sync.OnceFunc(func() { close(done) })
		go c.tick(req.Session, done)
	}
	c.mu.Unlock()

	return rpctest.OK(map[string]string{"subscribe": "clock"})
}

func (c *clockSet) unsubscribe(req *rpctest.Request) (*protocol.Frame, error) {
	c.stop(req.Session)
	return rpctest.OK(map[string]string{"unsubscribe": "clock"})
}

func (c *clockSet) stop(sess *rpctest.Session) {
	c.mu.Lock()
	stop, ok := c.stops[sess]
	delete(c.stops, sess)
	c.mu.Unlock()
	if ok {
		stop()
	}
}

func (c *clockSet) tick(sess *rpctest.Session, done <-chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for seq := 1; ; seq++ {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			err := sess.Push("clock", map[string]any{
				"seq":  seq,
				"time": now.UTC().Format(time.RFC3339Nano),
			})
			if err != nil {
				c.stop(sess)
				return
			}
		}
	}
}
