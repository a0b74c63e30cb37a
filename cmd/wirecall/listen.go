package main

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/wirecall/internal/errors"
	"github.com/vango-dev/wirecall/pkg/client"
	"github.com/vango-dev/wirecall/pkg/events"
)

type listenOptions struct {
	subscribe     []string
	params        string
	count         int
	metricsListen string
}

// eventOutput is one line printed per event.
type eventOutput struct {
	Resource   string          `json:"resource"`
	Generation uint64          `json:"generation"`
	ReceivedAt time.Time       `json:"receivedAt"`
	Control    json.RawMessage `json:"control,omitempty"`
	Segments   []int           `json:"segments,omitempty"`
}

func listenCmd(g *globals) *cobra.Command {
	opts := &listenOptions{}

	cmd := &cobra.Command{
		Use:   "listen [resource...]",
		Short: "Print server-pushed events",
		Long: `Open the shared WebSocket connection, call the --subscribe methods
and print every pushed event as one JSON line. Only events of the given
resources are printed; with none, every event is printed.

The connection stays open while at least one subscription is active.

Examples:
  wirecall listen --subscribe clock.subscribe
  wirecall listen terminal --subscribe terminal.attach --params '{"id":"t1"}' --count 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(cmd.Context(), g, opts, args)
		},
	}

	cmd.Flags().StringArrayVar(&opts.subscribe, "subscribe", nil, "Subscribe method as resource.method (repeatable)")
	cmd.Flags().StringVar(&opts.params, "params", "", "JSON params of the subscribe calls")
	cmd.Flags().IntVarP(&opts.count, "count", "n", 0, "Exit after this many events (0 runs until interrupted)")
	cmd.Flags().StringVar(&opts.metricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address")

	return cmd
}

func runListen(ctx context.Context, g *globals, opts *listenOptions, resources []string) error {
	if len(opts.subscribe) == 0 {
		return errors.New("E501").
			WithDetail("listen needs at least one --subscribe method").
			WithSuggestion("Pass --subscribe resource.method")
	}
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Server.WS == "" {
		return errors.New("E404").WithDetail("listen requires server.ws or --ws")
	}
	params, err := readParams(ctx, newBlobSource(g, cfg), opts.params)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	listen := opts.metricsListen
	if listen == "" {
		listen = cfg.Metrics.Listen
	}
	metrics, _, err := startMetrics(ctx, listen, g.logger)
	if err != nil {
		return err
	}

	c, err := g.newClient(cfg, metrics)
	if err != nil {
		return err
	}
	defer c.Close()

	filter := make(map[string]bool, len(resources))
	for _, r := range resources {
		filter[r] = true
	}

	var (
		mu   sync.Mutex
		seen int
	)
	enc := json.NewEncoder(g.stdout)
	d := c.OnEvent(func(ev *events.Event) {
		if len(filter) > 0 && !filter[ev.Resource] {
			return
		}
		out := eventOutput{
			Resource:   ev.Resource,
			Generation: ev.Generation,
			ReceivedAt: ev.ReceivedAt,
		}
		if json.Valid(ev.Control) {
			out.Control = append(json.RawMessage(nil), ev.Control...)
		}
		for _, seg := range ev.Segments {
			out.Segments = append(out.Segments, len(seg))
		}

		mu.Lock()
		defer mu.Unlock()
		if opts.count > 0 && seen >= opts.count {
			return
		}
		if err := enc.Encode(out); err != nil {
			g.logger.Warn("write event failed", "error", err)
		}
		seen++
		if opts.count > 0 && seen >= opts.count {
			cancel()
		}
	})
	defer d.Dispose()

	for _, sub := range opts.subscribe {
		resource, method, ok := strings.Cut(sub, ".")
		if !ok || resource == "" || method == "" {
			return errors.New("E501").
				WithDetail("Subscribe method " + sub + " is not of the form resource.method")
		}
		resp, err := c.Call(ctx, client.Request{
			Resource: resource,
			Method:   method,
			Params:   params,
			Mode:     client.ModeWS,
		})
		if err != nil {
			if ctx.Err() != nil && opts.count > 0 {
				return nil
			}
			return err
		}
		if err := resp.Decode(nil); err != nil {
			return err
		}
		g.logger.Info("subscribed", "method", sub, "generation", resp.Generation)
	}

	if ctx.Err() != nil {
		return nil
	}
	if len(c.Subscriptions()) == 0 {
		return errors.New("E301").
			WithDetail("The subscribe calls returned no subscription").
			WithSuggestion("Check that the methods answer with a \"subscribe\" field")
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if c.Generation() == 0 {
				return errors.New("E102").WithDetail("The event connection closed")
			}
		}
	}
}
