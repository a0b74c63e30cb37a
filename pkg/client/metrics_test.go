package client

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func TestMetricsRecordCalls(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg))
	f := newFixture(t, WithMetrics(m))
	ctx := callCtx(t)

	if _, err := f.client.Call(ctx, Request{Resource: "echo", Method: "echo", Mode: ModeHTTP}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.client.Call(ctx, Request{Resource: "nope", Method: "nope", Mode: ModeHTTP}); err == nil {
		t.Fatal("expected error for unknown method")
	}
	if _, err := f.client.Call(ctx, Request{Resource: "echo", Method: "echo", Mode: ModeWSIfAvailable}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.client.Call(ctx, Request{Resource: "echo", Method: "echo", Mode: ModeWS}); err != nil {
		t.Fatal(err)
	}

	checks := []struct {
		name string
		c    prometheus.Counter
		want float64
	}{
		{"http ok", m.callsTotal.WithLabelValues("http", "ok"), 1},
		{"http error", m.callsTotal.WithLabelValues("http", "error"), 1},
		{"not sent", m.callsTotal.WithLabelValues("ws_if_available", "not_sent"), 1},
		{"ws ok", m.callsTotal.WithLabelValues("ws", "ok"), 1},
		{"connections", m.connectionsTotal, 1},
	}
	for _, tc := range checks {
		if got := metricCounterValue(t, tc.c); got != tc.want {
			t.Errorf("%s = %v, want %v", tc.name, got, tc.want)
		}
	}
	if got := metricCounterValue(t, m.bytesTotal.WithLabelValues("sent")); got <= 0 {
		t.Errorf("bytes sent = %v, want > 0", got)
	}

	eventually(t, "connection gauge to drop", func() bool {
		return metricGaugeValue(t, m.connectionsActive) == 0
	})

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	for _, want := range []string{"wirecall_calls_total", "wirecall_call_duration_seconds", "wirecall_connections_total"} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.TransportError("read")
	m.BytesSent(1)
	m.BytesReceived(1)
	m.EventReceived("model")
	m.observeCall(ModeHTTP, nil, context.Canceled, 0)
}

// recordingTracer records the names of started spans.
type recordingTracer struct {
	noop.Tracer
	names chan string
}

func (r *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	r.names <- name
	return r.Tracer.Start(ctx, name, opts...)
}

func TestTracerSpanPerCall(t *testing.T) {
	tr := &recordingTracer{names: make(chan string, 4)}
	f := newFixture(t, WithTracer(tr))

	if _, err := f.client.Call(callCtx(t), Request{Resource: "echo", Method: "echo", Mode: ModeHTTP}); err != nil {
		t.Fatal(err)
	}
	if got := <-tr.names; got != "wirecall echo.echo" {
		t.Errorf("span name = %q, want %q", got, "wirecall echo.echo")
	}
}
