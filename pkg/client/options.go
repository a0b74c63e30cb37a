package client

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/wirecall/pkg/conn"
	"github.com/vango-dev/wirecall/pkg/events"
	"github.com/vango-dev/wirecall/pkg/protocol"
)

// Option configures a Client.
type Option func(*Client) error

// WithHTTPBase sets the base URL of HTTP calls, e.g. "https://host/api".
func WithHTTPBase(base string) Option {
	return func(c *Client) error {
		u, err := url.Parse(base)
		if err != nil {
			return fmt.Errorf("client: http base: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("client: http base %q: scheme must be http or https", base)
		}
		c.httpBase = strings.TrimSuffix(base, "/")
		return nil
	}
}

// WithWebSocketURL sets the URL of the shared connection, e.g. "wss://host/ws".
func WithWebSocketURL(wsURL string) Option {
	return func(c *Client) error {
		u, err := url.Parse(wsURL)
		if err != nil {
			return fmt.Errorf("client: websocket url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("client: websocket url %q: scheme must be ws or wss", wsURL)
		}
		c.wsURL = wsURL
		return nil
	}
}

// WithToken sets the bearer token sent on both transports.
func WithToken(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithHeader adds a header sent on both transports.
func WithHeader(key, value string) Option {
	return func(c *Client) error {
		c.header.Add(key, value)
		return nil
	}
}

// WithHeaders adds every header in h.
func WithHeaders(h http.Header) Option {
	return func(c *Client) error {
		for k, vs := range h {
			for _, v := range vs {
				c.header.Add(k, v)
			}
		}
		return nil
	}
}

// WithHTTPClient sets the client used for HTTP calls. Default: http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc != nil {
			c.httpClient = hc
		}
		return nil
	}
}

// WithWebSocketConfig sets the WebSocket transport settings.
func WithWebSocketConfig(cfg *conn.Config) Option {
	return func(c *Client) error {
		if cfg != nil {
			c.wsConfig = cfg.Clone()
		}
		return nil
	}
}

// WithDialer replaces the WebSocket dialer. The headers and WebSocket
// config of the client are not applied to a custom dialer.
func WithDialer(dial conn.DialFunc) Option {
	return func(c *Client) error {
		c.dial = dial
		return nil
	}
}

// WithTracker sets how subscriptions are derived from results and events.
func WithTracker(t events.Tracker) Option {
	return func(c *Client) error {
		if t != nil {
			c.tracker = t
		}
		return nil
	}
}

// WithLimits sets the allocation limits for decoding responses.
func WithLimits(l protocol.Limits) Option {
	return func(c *Client) error {
		c.limits = l
		return nil
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithMetrics records Prometheus metrics. See NewMetrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) error {
		c.metrics = m
		return nil
	}
}

// WithTracer sets the tracer. Default: the global tracer provider's
// "github.com/vango-dev/wirecall" tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) error {
		if t != nil {
			c.tracer = t
		}
		return nil
	}
}
