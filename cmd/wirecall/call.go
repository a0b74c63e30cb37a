package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/wirecall/internal/blobsource"
	"github.com/vango-dev/wirecall/internal/config"
	"github.com/vango-dev/wirecall/internal/errors"
	"github.com/vango-dev/wirecall/pkg/client"
	"github.com/vango-dev/wirecall/pkg/tensor"
)

type callOptions struct {
	transport     string
	segments      []string
	timeout       time.Duration
	metricsListen string
	saveSegments  string
	tensors       bool
}

// callOutput is the JSON printed for a call.
type callOutput struct {
	Transport  string          `json:"transport"`
	Delivery   string          `json:"delivery"`
	Generation uint64          `json:"generation,omitempty"`
	RequestID  string          `json:"requestId,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Segments   []segmentOutput `json:"segments,omitempty"`
}

type segmentOutput struct {
	Index  int    `json:"index"`
	Bytes  int    `json:"bytes"`
	Tensor string `json:"tensor,omitempty"`
	Saved  string `json:"saved,omitempty"`
}

func callCmd(g *globals) *cobra.Command {
	opts := &callOptions{}

	cmd := &cobra.Command{
		Use:   "call <resource> <method> [params]",
		Short: "Call a remote method",
		Long: `Call a remote method and print its result as JSON.

params is a JSON value, or @ref to read it from a file, "-" (stdin)
or s3://bucket/key. Binary segments are attached with --segment.

Transports:
  http              One HTTP POST per call (default when server.http is set)
  ws                The shared WebSocket connection
  ws_if_available   The shared connection only if one is already open

Examples:
  wirecall call model predict '{"input":"hello"}'
  wirecall call model infer '{}' --segment input.tensor --tensors
  wirecall call storage put '{"name":"w"}' --segment s3://models/w.bin --transport ws`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := ""
			if len(args) == 3 {
				params = args[2]
			}
			return runCall(cmd.Context(), g, opts, args[0], args[1], params)
		},
	}

	cmd.Flags().StringVarP(&opts.transport, "transport", "t", "", "Transport (http, ws, ws_if_available)")
	cmd.Flags().StringArrayVarP(&opts.segments, "segment", "s", nil, "Binary segment reference (repeatable)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Call timeout (0 waits forever)")
	cmd.Flags().StringVar(&opts.metricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&opts.saveSegments, "save-segments", "", "Write response segments to <prefix>.<index>")
	cmd.Flags().BoolVar(&opts.tensors, "tensors", false, "Describe response segments as tensors")

	return cmd
}

func runCall(ctx context.Context, g *globals, opts *callOptions, resource, method, params string) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	mode, err := parseMode(opts.transport, cfg)
	if err != nil {
		return err
	}
	src := newBlobSource(g, cfg)

	req := client.Request{
		Resource: resource,
		Method:   method,
		Mode:     mode,
	}
	if req.Params, err = readParams(ctx, src, params); err != nil {
		return err
	}
	for _, ref := range opts.segments {
		data, err := src.Read(ctx, ref)
		if err != nil {
			return errors.New("E502").WithDetail(ref).Wrap(err)
		}
		req.Segments = append(req.Segments, data)
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

	if opts.timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, opts.timeout)
		defer cancelTimeout()
	}

	resp, err := c.Call(ctx, req)
	if err != nil {
		return err
	}

	out := callOutput{
		Transport:  resp.Transport,
		Delivery:   resp.Delivery.String(),
		Generation: resp.Generation,
		RequestID:  resp.RequestID,
	}
	if resp.Sent() {
		var result json.RawMessage
		if err := resp.Decode(&result); err != nil {
			return err
		}
		out.Result = result
	}

	for i, seg := range resp.Segments {
		so := segmentOutput{Index: i, Bytes: len(seg)}
		if opts.tensors {
			if o, err := tensor.FromBytes(seg); err == nil {
				so.Tensor = o.String()
			}
		}
		if opts.saveSegments != "" {
			ref := fmt.Sprintf("%s.%d", opts.saveSegments, i)
			if err := src.Write(ctx, ref, seg); err != nil {
				return errors.New("E503").WithDetail(ref).Wrap(err)
			}
			so.Saved = ref
		}
		out.Segments = append(out.Segments, so)
	}

	return printJSON(g.stdout, out)
}

// parseMode maps --transport to a client mode. Without the flag, HTTP is
// used when configured and the WebSocket otherwise.
func parseMode(s string, cfg *config.Config) (client.Mode, error) {
	switch s {
	case "":
		if cfg.Server.HTTP != "" {
			return client.ModeHTTP, nil
		}
		return client.ModeWS, nil
	case "http":
		return client.ModeHTTP, nil
	case "ws":
		return client.ModeWS, nil
	case "ws_if_available", "ws-if-available":
		return client.ModeWSIfAvailable, nil
	}
	return 0, errors.New("E501").
		WithDetail("Unknown transport " + s).
		WithSuggestion("Use http, ws or ws_if_available")
}

// readParams returns the params argument as raw JSON. "@ref" reads it
// from a blob.
func readParams(ctx context.Context, src *blobsource.Source, arg string) (json.RawMessage, error) {
	if arg == "" {
		return nil, nil
	}
	data := []byte(arg)
	if ref, ok := strings.CutPrefix(arg, "@"); ok {
		var err error
		if data, err = src.Read(ctx, ref); err != nil {
			return nil, errors.New("E502").WithDetail(ref).Wrap(err)
		}
	}
	if !json.Valid(data) {
		return nil, errors.New("E501").
			WithDetail("params must be valid JSON").
			WithSuggestion(`Quote the value, e.g. '{"key":"value"}'`)
	}
	return json.RawMessage(data), nil
}

// newBlobSource returns a blob source on the command's stdio, bounded by
// limits.maxSegmentSize.
func newBlobSource(g *globals, cfg *config.Config) *blobsource.Source {
	src := blobsource.New(blobsource.NewS3Client(blobsource.S3Config{}), int64(cfg.Limits.MaxSegmentSize))
	src.Stdout = g.stdout
	if g.stdin != nil {
		src.Stdin = g.stdin
	}
	return src
}
