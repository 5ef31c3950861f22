package server

import (
	"github.com/ianremillard/wireline/internal/schema"
	"github.com/ianremillard/wireline/internal/session"
	"github.com/ianremillard/wireline/internal/wire"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics observes a server's dispatched requests (how many are
// currently being handled and how many have completed, broken down by
// outcome status) and the underlying session's frame traffic (frames
// by type, and sequence-id generator wraparounds).
type Metrics struct {
	inFlight prometheus.Gauge
	requests *prometheus.CounterVec
	frames   *prometheus.CounterVec
	seqWraps prometheus.Counter
}

// NewMetrics builds a Metrics and registers its collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wireline",
			Subsystem: "server",
			Name:      "inflight_requests",
			Help:      "Requests currently being dispatched by on_request.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wireline",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Dispatched requests by outcome status.",
		}, []string{"status"}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wireline",
			Subsystem: "server",
			Name:      "frames_total",
			Help:      "Frames sent or received by a session, by frame type.",
		}, []string{"type"}),
		seqWraps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wireline",
			Subsystem: "server",
			Name:      "seq_wraps_total",
			Help:      "Times a session's outbound sequence-id generator wrapped from 255 back to 1.",
		}),
	}
	reg.MustRegister(m.inFlight, m.requests, m.frames, m.seqWraps)
	return m
}

// FrameObserver returns a func suitable for session.Options.FrameObserver,
// incrementing the frames-by-type counter.
func (m *Metrics) FrameObserver() func(wire.FrameType) {
	return func(typ wire.FrameType) {
		m.frames.WithLabelValues(typ.String()).Inc()
	}
}

// SeqWrapObserver returns a func suitable for
// session.Options.SeqWrapObserver, incrementing the wraparound counter.
func (m *Metrics) SeqWrapObserver() func() {
	return func() {
		m.seqWraps.Inc()
	}
}

// wrap decorates a RequestHandler with in-flight/outcome instrumentation.
func (m *Metrics) wrap(h session.RequestHandler) session.RequestHandler {
	return func(req schema.Request) (schema.Response, error) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		rsp, err := h(req)

		status := "handler_error"
		if err == nil {
			status = rsp.Status.String()
		}
		m.requests.WithLabelValues(status).Inc()
		return rsp, err
	}
}
