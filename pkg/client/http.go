package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/vango-dev/wirecall/pkg/protocol"
)

// maxErrorBody bounds the body kept on an HTTPStatusError.
const maxErrorBody = 512

// callHTTP posts the call to {base}/{resource}/{method} with a counted
// frame body and decodes the streamed frame in the response body.
func (c *Client) callHTTP(ctx context.Context, req Request, params []byte) (*Response, error) {
	body, err := protocol.EncodeFrame(params, req.Segments)
	if err != nil {
		return nil, err
	}

	u := c.httpBase + "/" + url.PathEscape(req.Resource) + "/" + url.PathEscape(req.Method)
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	for k, vs := range c.requestHeader() {
		hreq.Header[k] = vs
	}
	requestID := uuid.NewString()
	hreq.Header.Set("Content-Type", "application/octet-stream")
	hreq.Header.Set("X-Request-Id", requestID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(hreq.Header))

	c.metrics.BytesSent(len(body))
	hresp, err := c.httpClient.Do(hreq)
	if err != nil {
		c.metrics.TransportError("http")
		return nil, fmt.Errorf("client: POST %s: %w", u, err)
	}
	defer hresp.Body.Close()

	data, err := io.ReadAll(hresp.Body)
	if err != nil {
		c.metrics.TransportError("http")
		return nil, fmt.Errorf("client: read response of %s.%s: %w", req.Resource, req.Method, err)
	}
	c.metrics.BytesReceived(len(data))

	if hresp.StatusCode < 200 || hresp.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, &HTTPStatusError{
			StatusCode: hresp.StatusCode,
			Status:     hresp.Status,
			Body:       strings.TrimSpace(string(data)),
			RequestID:  requestID,
		}
	}

	f, err := protocol.DecodeStreamedFrameFrom(protocol.NewDecoderWithLimits(data, c.limits))
	if err != nil {
		return nil, err
	}
	return &Response{
		Delivery:  Sent,
		Control:   f.Control,
		Segments:  f.Segments,
		Transport: ModeHTTP.String(),
		RequestID: requestID,
	}, nil
}
