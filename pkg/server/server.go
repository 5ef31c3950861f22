// Package server is a thin facade: it wraps a session whose default
// handler dispatches the known request variants against a project
// registry, currently just ListProjects.
package server

import (
	"context"
	"fmt"

	"github.com/ianremillard/wireline/internal/registry"
	"github.com/ianremillard/wireline/internal/schema"
	"github.com/ianremillard/wireline/internal/session"
	"github.com/ianremillard/wireline/internal/wire"
	"go.opentelemetry.io/otel/trace"
)

// Server wraps a session configured as the accepting side, seeded with
// a project registry.
type Server struct {
	sess *session.Session
	reg  *registry.Registry
}

// Option configures New beyond the transport and registry.
type Option func(*config)

type config struct {
	metrics *Metrics
	tracer  trace.TracerProvider
	opts    session.Options
}

// WithMetrics registers a Metrics sink that observes every dispatched
// request.
func WithMetrics(m *Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithSessionOptions overrides the underlying session's Options.
func WithSessionOptions(opts session.Options) Option {
	return func(c *config) { c.opts = opts }
}

// New constructs a Server over out/in, backed by reg.
func New(out wire.Sender, in wire.Receiver, reg *registry.Registry, options ...Option) *Server {
	cfg := config{}
	for _, opt := range options {
		opt(&cfg)
	}

	s := &Server{reg: reg}
	handler := s.dispatch
	if cfg.metrics != nil {
		handler = cfg.metrics.wrap(handler)
		if cfg.opts.FrameObserver == nil {
			cfg.opts.FrameObserver = cfg.metrics.FrameObserver()
		}
		if cfg.opts.SeqWrapObserver == nil {
			cfg.opts.SeqWrapObserver = cfg.metrics.SeqWrapObserver()
		}
	}
	if cfg.tracer != nil {
		handler = tracingMiddleware(cfg.tracer, handler)
	}
	s.sess = session.New(out, in, handler, nil, cfg.opts)
	return s
}

// Run drives the session's event loop until the transport fails or ctx
// is canceled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.sess.Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// PushUpdate sends a one-way Update notification to the peer, e.g. in
// response to a registry.Watcher callback.
func (s *Server) PushUpdate(ctx context.Context, upd schema.Update) error {
	return s.sess.Requester().Notify(ctx, upd)
}

// InFlightSeqs reports the sequence ids this server currently has an
// outstanding request awaiting a response for, for the admin
// /debug/inflight endpoint.
func (s *Server) InFlightSeqs(ctx context.Context) ([]byte, error) {
	return s.sess.Requester().InFlightSeqs(ctx)
}

// dispatch is the server's default request handler: ListProjects is
// answered from the current registry snapshot; every other (currently
// nonexistent) variant gets an explicit NOT_IMPLEMENTED response.
func (s *Server) dispatch(req schema.Request) (schema.Response, error) {
	if req.ListProjects != nil {
		return s.listProjects(), nil
	}
	return schema.Response{Status: schema.StatusNotImplemented, Error: "not implemented yet"}, nil
}

// listProjects is a local synchronous helper: it never touches the
// session loop or the wire, it just turns the current registry
// snapshot into a Response.
func (s *Server) listProjects() schema.Response {
	wireProjects := registry.ToWireProjects(s.reg.Snapshot())
	return schema.Response{
		Status:       schema.StatusOK,
		ListProjects: &schema.ResponseListProjects{Projects: wireProjects},
	}
}
