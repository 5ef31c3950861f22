package client

import (
	"context"

	"github.com/ianremillard/wireline/internal/schema"
	"github.com/ianremillard/wireline/internal/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// WithTracer makes Requester wrap Request calls in a "wireline.request"
// span, mirroring pkg/server's WithTracer on the calling side of the
// round trip. Without this option, Requester returns the session's
// Requester unwrapped.
func WithTracer(tp trace.TracerProvider) Option {
	return func(c *config) { c.tracer = tp }
}

// TracedRequester decorates a Requester's Request calls with a
// "wireline.request" span, mirroring pkg/server's tracingMiddleware on
// the calling side of the round trip. It exposes only Request; it has
// no Notify method.
type TracedRequester struct {
	inner  *session.Requester
	tracer trace.Tracer
}

// NewTracedRequester wraps r, creating spans from tp.
func NewTracedRequester(r *session.Requester, tp trace.TracerProvider) *TracedRequester {
	return &TracedRequester{inner: r, tracer: tp.Tracer("github.com/ianremillard/wireline/pkg/client")}
}

// Request issues req through the wrapped Requester inside a span.
func (t *TracedRequester) Request(ctx context.Context, req schema.Request) (schema.Response, error) {
	ctx, span := t.tracer.Start(ctx, "wireline.request")
	defer span.End()

	rsp, err := t.inner.Request(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return rsp, err
	}
	span.SetAttributes(attribute.Int64("wireline.response.status", int64(rsp.Status)))
	return rsp, nil
}
