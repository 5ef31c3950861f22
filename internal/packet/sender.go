// Package packet implements the packet layer: the outbound sequence-id
// generator and the three frame-emitting operations (request, update,
// response). It knows about frame types and sequence ids, but nothing
// about the structured Request/Response/Update payloads above it; those
// are internal/schema's job.
package packet

import "github.com/ianremillard/wireline/internal/wire"

// SeqGen is the monotone 1..=255 sequence-id generator: it wraps to 1
// after 255 and never emits 0, so a freshly constructed generator's
// first value is 1.
type SeqGen struct {
	last byte
}

// Next returns the next sequence id.
func (g *SeqGen) Next() byte {
	g.last++
	if g.last == 0 {
		g.last = 1
	}
	return g.last
}

// frameSender lets a transport opt into writing a frame's header and
// payload as a single atomic operation (e.g. a vectorised write). When a
// Sender's underlying wire.Sender doesn't implement this, Sender falls
// back to two sequential Send calls, which is safe as long as the
// receiver buffers, which internal/wire.BufferedReader does.
type frameSender interface {
	SendFrame(header, payload []byte) error
}

// Sender owns the outbound byte sender and the sequence-id generator.
// It is not safe for concurrent use; the session's event loop is its
// sole caller.
type Sender struct {
	out    wire.Sender
	seq    SeqGen
	onSend func(wire.FrameType)
	onWrap func()
}

// SenderOption configures a Sender beyond its underlying wire.Sender.
type SenderOption func(*Sender)

// WithSendObserver calls f once for every frame this Sender writes,
// labeled by frame type.
func WithSendObserver(f func(wire.FrameType)) SenderOption {
	return func(s *Sender) { s.onSend = f }
}

// WithSeqWrapObserver calls f whenever the sequence-id generator wraps
// from 255 back to 1.
func WithSeqWrapObserver(f func()) SenderOption {
	return func(s *Sender) { s.onWrap = f }
}

// NewSender wraps out.
func NewSender(out wire.Sender, opts ...SenderOption) *Sender {
	s := &Sender{out: out}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WriteRequest assigns the next sequence id, emits a request frame
// carrying payload, and returns the assigned seq.
func (s *Sender) WriteRequest(payload []byte) (byte, error) {
	seq := s.nextSeq()
	return seq, s.writeFrame(wire.FrameRequest, seq, payload)
}

// WriteUpdate assigns the next sequence id and emits a notify frame.
// Notify frames consume a sequence id from the same generator as
// requests, for log/debug symmetry; the id carries no response
// contract.
func (s *Sender) WriteUpdate(payload []byte) (byte, error) {
	seq := s.nextSeq()
	return seq, s.writeFrame(wire.FrameNotify, seq, payload)
}

// WriteResponse emits a response frame using the caller-supplied seq,
// which must equal the originating request's seq.
func (s *Sender) WriteResponse(seq byte, payload []byte) error {
	return s.writeFrame(wire.FrameResponse, seq, payload)
}

// nextSeq advances the sequence generator, reporting a wraparound to
// onWrap when the counter rolls from 255 back to 1.
func (s *Sender) nextSeq() byte {
	wrapping := s.seq.last == 255
	seq := s.seq.Next()
	if wrapping && s.onWrap != nil {
		s.onWrap()
	}
	return seq
}

func (s *Sender) writeFrame(typ wire.FrameType, seq byte, payload []byte) error {
	if s.onSend != nil {
		s.onSend(typ)
	}
	return wire.WriteFrame(func(header, payload []byte) error {
		if fs, ok := s.out.(frameSender); ok {
			return fs.SendFrame(header, payload)
		}
		if err := s.out.Send(header); err != nil {
			return err
		}
		if len(payload) == 0 {
			return nil
		}
		return s.out.Send(payload)
	}, typ, seq, payload)
}
