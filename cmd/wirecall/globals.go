package main

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/wirecall/internal/config"
	"github.com/vango-dev/wirecall/internal/errors"
	"github.com/vango-dev/wirecall/pkg/client"
	"github.com/vango-dev/wirecall/pkg/conn"
	"github.com/vango-dev/wirecall/pkg/protocol"
)

// globals holds the persistent flags shared by every command.
type globals struct {
	configPath string
	httpBase   string
	wsURL      string
	token      string
	headers    []string
	logLevel   string
	jsonErrors bool
	noColor    bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

// loadConfig reads wirecall.json and applies the flag overrides. A missing
// file is only an error when --config names it.
func (g *globals) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFile(g.configPath)
	} else {
		cfg, err = config.LoadFromWorkingDir()
		var coded *errors.Error
		if stderrors.As(err, &coded) && coded.Code == "E401" {
			cfg, err = config.New(), nil
		}
	}
	if err != nil {
		return nil, errors.FromError(err, "E402")
	}

	if g.httpBase != "" {
		cfg.Server.HTTP = g.httpBase
	}
	if g.wsURL != "" {
		cfg.Server.WS = g.wsURL
	}
	if g.token != "" {
		cfg.Auth.Token = g.token
	}
	for _, h := range g.headers {
		k, v, err := splitHeader(h)
		if err != nil {
			return nil, err
		}
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string)
		}
		cfg.Headers[k] = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newClient builds a client from cfg. metrics may be nil.
func (g *globals) newClient(cfg *config.Config, metrics *client.Metrics) (*client.Client, error) {
	wsCfg := conn.DefaultConfig()
	wsCfg.HandshakeTimeout = cfg.HandshakeTimeout()
	wsCfg.WriteTimeout = cfg.WriteTimeout()
	wsCfg.ReadTimeout = cfg.ReadTimeout()
	wsCfg.PingInterval = cfg.PingInterval()
	wsCfg.MaxMessageSize = cfg.Limits.MaxMessageSize

	opts := []client.Option{
		client.WithLogger(g.logger),
		client.WithWebSocketConfig(wsCfg),
		client.WithLimits(protocol.Limits{MaxSegmentSize: cfg.Limits.MaxSegmentSize}),
	}
	if cfg.Server.HTTP != "" {
		opts = append(opts, client.WithHTTPBase(cfg.Server.HTTP))
	}
	if cfg.Server.WS != "" {
		opts = append(opts, client.WithWebSocketURL(cfg.Server.WS))
	}
	if token := cfg.Token(); token != "" {
		opts = append(opts, client.WithToken(token))
	}
	for k, v := range cfg.Headers {
		opts = append(opts, client.WithHeader(k, v))
	}
	if metrics != nil {
		opts = append(opts, client.WithMetrics(metrics))
	}

	c, err := client.New(opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// startMetrics registers the client collectors on a fresh registry and
// serves them on addr at /metrics. It returns nil metrics when addr is
// empty. The server stops when ctx is done.
func startMetrics(ctx context.Context, addr string, logger *slog.Logger) (*client.Metrics, string, error) {
	if addr == "" {
		return nil, "", nil
	}

	reg := prometheus.NewRegistry()
	metrics := client.NewMetrics(client.WithRegistry(reg))

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", errors.New("E501").
			WithDetail("Cannot listen on " + addr + ": " + err.Error())
	}
	srv := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	})

	logger.Info("serving metrics", "addr", ln.Addr().String())
	return metrics, ln.Addr().String(), nil
}
