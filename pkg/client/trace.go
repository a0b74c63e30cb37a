package client

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/vango-dev/wirecall"

func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// startSpan starts the client span of one call.
func (c *Client) startSpan(ctx context.Context, req Request) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "wirecall "+req.Resource+"."+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("wirecall.resource", req.Resource),
			attribute.String("wirecall.method", req.Method),
			attribute.String("wirecall.transport", req.Mode.String()),
		),
	)
}

func generationAttr(gen uint64) attribute.KeyValue {
	return attribute.Int64("wirecall.generation", int64(gen))
}

func endSpan(span trace.Span, resp *Response, err error) {
	defer span.End()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(attribute.String("wirecall.delivery", resp.Delivery.String()))

	var appErr *ApplicationError
	if resp.Delivery == Sent && span.IsRecording() && errors.As(resp.Decode(nil), &appErr) {
		span.SetAttributes(attribute.String("wirecall.error_kind", appErr.Kind))
	}
	span.SetStatus(codes.Ok, "")
}
