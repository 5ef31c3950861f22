// Package client is a thin facade: it wraps a session with the
// client's default handler (NOT_IMPLEMENTED for any inbound request)
// and exposes the requester handle callers actually use.
package client

import (
	"context"
	"fmt"

	"github.com/ianremillard/wireline/internal/schema"
	"github.com/ianremillard/wireline/internal/session"
	"github.com/ianremillard/wireline/internal/wire"
	"go.opentelemetry.io/otel/trace"
)

// Requester is anything that can issue a request and await its
// correlated response — satisfied by both *session.Requester and
// *TracedRequester, so callers like ListProjects don't need to care
// which one a Client hands them.
type Requester interface {
	Request(ctx context.Context, req schema.Request) (schema.Response, error)
}

// Client wraps a session configured as the connection-initiating side.
type Client struct {
	sess   *session.Session
	tracer trace.TracerProvider
}

// Option configures New beyond the transport.
type Option func(*config)

type config struct {
	onUpdate session.UpdateHandler
	opts     session.Options
	tracer   trace.TracerProvider
}

// WithUpdateHandler registers a handler for inbound server-pushed
// Update notifications. Without one, updates are silently dropped.
func WithUpdateHandler(h session.UpdateHandler) Option {
	return func(c *config) { c.onUpdate = h }
}

// WithSessionOptions overrides the underlying session's Options, e.g.
// to lower the command queue capacity or tighten MaxPayloadLen.
func WithSessionOptions(opts session.Options) Option {
	return func(c *config) { c.opts = opts }
}

// New constructs a Client over out/in. Until Run is driven, no frames
// are sent or received.
func New(out wire.Sender, in wire.Receiver, options ...Option) *Client {
	cfg := config{}
	for _, opt := range options {
		opt(&cfg)
	}

	sess := session.New(out, in, nil, cfg.onUpdate, cfg.opts)
	return &Client{sess: sess, tracer: cfg.tracer}
}

// Run drives the session's event loop until the transport fails or ctx
// is canceled.
func (c *Client) Run(ctx context.Context) error {
	if err := c.sess.Run(ctx); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	return nil
}

// Requester returns a handle for issuing requests from any goroutine. When the Client was constructed with WithTracer,
// the returned handle wraps Request calls in a span; otherwise it's the
// session's own Requester, unwrapped.
func (c *Client) Requester() Requester {
	r := c.sess.Requester()
	if c.tracer == nil {
		return r
	}
	return NewTracedRequester(r, c.tracer)
}
