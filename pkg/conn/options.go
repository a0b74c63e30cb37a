package conn

import (
	"log/slog"

	"github.com/vango-dev/wirecall/pkg/events"
	"github.com/vango-dev/wirecall/pkg/protocol"
)

// Option configures a Conn.
type Option func(*Conn)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conn) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRegistry sets the registry events are dispatched to.
func WithRegistry(r *events.Registry) Option {
	return func(c *Conn) {
		c.registry = r
	}
}

// WithTracker sets the subscription tracker. Default: events.NewFieldTracker().
func WithTracker(t events.Tracker) Option {
	return func(c *Conn) {
		if t != nil {
			c.tracker = t
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *Conn) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithLimits sets the allocation limits used to decode inbound messages.
func WithLimits(l protocol.Limits) Option {
	return func(c *Conn) {
		c.limits = l
	}
}

// OnUnused registers fn to be called, on its own goroutine, each time the
// connection becomes idle: no queued or pending calls and no active
// subscriptions.
func OnUnused(fn func(gen uint64)) Option {
	return func(c *Conn) {
		c.onUnused = fn
	}
}

// OnClose registers fn to be called once when the connection closes.
func OnClose(fn func(gen uint64, err error)) Option {
	return func(c *Conn) {
		c.onClose = fn
	}
}
