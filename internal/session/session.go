// Package session implements the bidirectional coordinator: the single
// event-loop goroutine that turns a packet sender and a packet reader,
// two half-duplex abstractions, into a full-duplex, multiplexed RPC
// session. Frame reading runs on its own goroutine feeding a channel
// that the event loop selects against alongside its internal command
// channel, the same recvLoop/event-loop split smux uses to keep a
// blocking read from stalling the writer side.
package session

import (
	"context"
	"fmt"
	"log"

	"github.com/ianremillard/wireline/internal/packet"
	"github.com/ianremillard/wireline/internal/schema"
	"github.com/ianremillard/wireline/internal/wire"
)

// RequestHandler answers an inbound Request. A non-nil error is
// recovered by the event loop into a Response{Status: StatusInternalError}
// rather than propagated out of Run.
type RequestHandler func(schema.Request) (schema.Response, error)

// UpdateHandler observes an inbound one-way Update. Unlike
// RequestHandler it has no response to produce.
type UpdateHandler func(schema.Update)

// commandResult is what a command producer waits for.
type commandResult struct {
	response schema.Response
	err      error
	seqs     []byte
}

// command is the internal command-channel entry: a request task, an
// update task, or an in-flight snapshot query, depending on which of
// request/update/snapshot is set.
type command struct {
	request  *schema.Request
	update   *schema.Update
	snapshot bool
	complete chan commandResult
}

// inboundFrame carries one decoded frame (or a terminal read error) from
// the reader goroutine to the event loop.
type inboundFrame struct {
	frame   wire.Frame
	payload []byte
	err     error
}

// Session owns the packet sender, the buffered frame reader, the
// in-flight table, and the command channel. Construct with New and
// drive with Run; everything else (Requester) talks to it only through
// the command channel.
type Session struct {
	sender *packet.Sender
	reader *wire.BufferedReader

	cmds chan command

	onRequest RequestHandler
	onUpdate  UpdateHandler

	// frameObserver, if non-nil, is called for every inbound frame this
	// session dispatches, labeled by type. Outbound frames are observed
	// through the packet.Sender passed the same function.
	frameObserver func(wire.FrameType)

	// inFlight is touched only by the goroutine running Run, so it
	// needs no mutex.
	inFlight map[byte]chan commandResult
}

// Options configures a Session beyond its transport and handlers.
type Options struct {
	// MaxPayloadLen caps the declared payload length this session will
	// accept from its peer before failing the frame as malformed. Zero
	// means wire.MaxPayloadLen (the protocol ceiling of 65535).
	MaxPayloadLen int
	// CommandQueueCapacity bounds the internal command channel. Zero
	// selects a default of 1024.
	CommandQueueCapacity int
	// FrameObserver, if set, is called once for every frame this session
	// sends or receives, labeled by its wire frame type.
	FrameObserver func(wire.FrameType)
	// SeqWrapObserver, if set, is called whenever the outbound
	// sequence-id generator wraps from 255 back to 1.
	SeqWrapObserver func()
}

const defaultCommandQueueCapacity = 1024

// New constructs a Session over a byte sender/receiver pair. onRequest
// and onUpdate may be nil; absent onRequest synthesizes NOT_IMPLEMENTED
// responses and absent onUpdate silently drops notifications.
func New(out wire.Sender, in wire.Receiver, onRequest RequestHandler, onUpdate UpdateHandler, opts Options) *Session {
	maxPayload := opts.MaxPayloadLen
	if maxPayload <= 0 {
		maxPayload = wire.MaxPayloadLen
	}
	capacity := opts.CommandQueueCapacity
	if capacity <= 0 {
		capacity = defaultCommandQueueCapacity
	}

	var senderOpts []packet.SenderOption
	if opts.FrameObserver != nil {
		senderOpts = append(senderOpts, packet.WithSendObserver(opts.FrameObserver))
	}
	if opts.SeqWrapObserver != nil {
		senderOpts = append(senderOpts, packet.WithSeqWrapObserver(opts.SeqWrapObserver))
	}

	return &Session{
		sender:        packet.NewSender(out, senderOpts...),
		reader:        wire.NewBufferedReader(in, maxPayload),
		cmds:          make(chan command, capacity),
		onRequest:     onRequest,
		onUpdate:      onUpdate,
		frameObserver: opts.FrameObserver,
		inFlight:      make(map[byte]chan commandResult),
	}
}

// Requester returns a cloneable handle that lets callers issue requests
// and notifications from outside the goroutine that calls Run.
func (s *Session) Requester() *Requester {
	return &Requester{cmds: s.cmds}
}

// Run drives the event loop until the transport fails, an inbound frame
// is malformed, a response arrives for an unknown sequence id, or ctx is
// canceled. It always returns a non-nil error: a clean shutdown from ctx
// cancellation still returns ctx.Err().
func (s *Session) Run(ctx context.Context) error {
	frames := make(chan inboundFrame, 1)
	go s.readLoop(ctx, frames)
	defer s.abortInFlight()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-s.cmds:
			s.handleCommand(cmd)
		case in := <-frames:
			if in.err != nil {
				return in.err
			}
			if err := s.dispatchInbound(in.frame, in.payload); err != nil {
				return err
			}
		}
	}
}

// readLoop pulls frames off the transport and forwards them to frames.
// It runs on its own goroutine because wire.ReadFrame blocks; Run can
// then select between it and the command channel. It outlives a single
// Run call when ctx is canceled without the transport itself being
// closed; a caller that wants the reader goroutine to exit promptly
// must close the underlying transport to unblock the blocking Recv.
func (s *Session) readLoop(ctx context.Context, frames chan<- inboundFrame) {
	for {
		frame, payload, err := wire.ReadFrame(s.reader)
		select {
		case frames <- inboundFrame{frame: frame, payload: payload, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) dispatchInbound(frame wire.Frame, payload []byte) error {
	if s.frameObserver != nil {
		s.frameObserver(frame.Type)
	}
	switch frame.Type {
	case wire.FrameResponse:
		return s.handleResponseFrame(frame.Seq, payload)
	case wire.FrameRequest:
		return s.handleRequestFrame(frame.Seq, payload)
	case wire.FrameNotify:
		return s.handleNotifyFrame(payload)
	default:
		return fmt.Errorf("session: unreachable frame type %v", frame.Type)
	}
}

func (s *Session) handleResponseFrame(seq byte, payload []byte) error {
	rsp, err := schema.DecodeResponse(payload)
	if err != nil {
		return fmt.Errorf("session: decoding response seq %d: %w", seq, err)
	}
	complete, ok := s.inFlight[seq]
	if !ok {
		return fmt.Errorf("%w: seq %d", ErrUnknownSequence, seq)
	}
	delete(s.inFlight, seq)
	// Buffered with capacity 1 (see Requester), so this never blocks
	// even if the caller already gave up on reading it.
	complete <- commandResult{response: rsp}
	close(complete)
	return nil
}

func (s *Session) handleRequestFrame(seq byte, payload []byte) error {
	req, err := schema.DecodeRequest(payload)
	if err != nil {
		return fmt.Errorf("session: decoding request seq %d: %w", seq, err)
	}

	rsp := s.invokeRequestHandler(req)
	return s.sender.WriteResponse(seq, schema.EncodeResponse(rsp))
}

// invokeRequestHandler never returns an error: a handler error and a
// missing handler are both recovered locally into a Response so the
// event loop keeps running.
func (s *Session) invokeRequestHandler(req schema.Request) schema.Response {
	if s.onRequest == nil {
		return schema.Response{Status: schema.StatusNotImplemented, Error: "not implemented yet"}
	}
	rsp, err := s.onRequest(req)
	if err != nil {
		return schema.Response{Status: schema.StatusInternalError, Error: err.Error()}
	}
	return rsp
}

func (s *Session) handleNotifyFrame(payload []byte) error {
	upd, err := schema.DecodeUpdate(payload)
	if err != nil {
		return fmt.Errorf("session: decoding update: %w", err)
	}
	if s.onUpdate != nil {
		s.onUpdate(upd)
	}
	return nil
}

func (s *Session) handleCommand(cmd command) {
	switch {
	case cmd.request != nil:
		s.handleRequestTask(*cmd.request, cmd.complete)
	case cmd.update != nil:
		s.handleUpdateTask(*cmd.update, cmd.complete)
	case cmd.snapshot:
		s.handleSnapshotTask(cmd.complete)
	default:
		log.Printf("session: dropping malformed internal command")
	}
}

func (s *Session) handleRequestTask(req schema.Request, complete chan commandResult) {
	seq, err := s.sender.WriteRequest(schema.EncodeRequest(req))
	if err != nil {
		complete <- commandResult{err: err}
		close(complete)
		return
	}
	s.inFlight[seq] = complete
	// Do not wait for the response here; the next loop iteration
	// delivers it from the inbound side.
}

func (s *Session) handleUpdateTask(upd schema.Update, complete chan commandResult) {
	_, err := s.sender.WriteUpdate(schema.EncodeUpdate(upd))
	complete <- commandResult{err: err}
	close(complete)
}

// handleSnapshotTask answers an in-flight sequence-id query from the
// event-loop goroutine itself, so reading inFlight never needs a mutex.
func (s *Session) handleSnapshotTask(complete chan commandResult) {
	seqs := make([]byte, 0, len(s.inFlight))
	for seq := range s.inFlight {
		seqs = append(seqs, seq)
	}
	complete <- commandResult{seqs: seqs}
	close(complete)
}

// abortInFlight fails every outstanding completion once Run is about to
// return, so no waiting caller blocks forever.
func (s *Session) abortInFlight() {
	for seq, complete := range s.inFlight {
		complete <- commandResult{err: fmt.Errorf("session: terminated with in-flight request seq %d", seq)}
		close(complete)
		delete(s.inFlight, seq)
	}
}
