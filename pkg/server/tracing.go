package server

import (
	"context"

	"github.com/ianremillard/wireline/internal/schema"
	"github.com/ianremillard/wireline/internal/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// WithTracer wraps the server's dispatcher in a "wireline.request" span
// per inbound request. Without this option, New installs no tracing
// middleware at all.
func WithTracer(tp trace.TracerProvider) Option {
	return func(c *config) { c.tracer = tp }
}

func tracingMiddleware(tp trace.TracerProvider, h session.RequestHandler) session.RequestHandler {
	tracer := tp.Tracer("github.com/ianremillard/wireline/pkg/server")
	return func(req schema.Request) (schema.Response, error) {
		_, span := tracer.Start(context.Background(), "wireline.request")
		defer span.End()

		variant := "unknown"
		if req.ListProjects != nil {
			variant = "list_projects"
		}
		span.SetAttributes(attribute.String("wireline.request.variant", variant))

		rsp, err := h(req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int64("wireline.response.status", int64(rsp.Status)))
		}
		return rsp, err
	}
}
