package session

import (
	"context"

	"github.com/ianremillard/wireline/internal/schema"
)

// Requester is a lightweight, cloneable handle: it holds only the
// command-channel sender, never the session itself, so it cannot reach
// into the in-flight table, the sequence generator, or the packet
// sender directly.
type Requester struct {
	cmds chan<- command
}

// Clone returns an independent handle sharing the same command channel.
func (r *Requester) Clone() *Requester {
	return &Requester{cmds: r.cmds}
}

// Request sends req, waits for the correlated response, and returns it.
// If ctx is canceled before the command is accepted or before the
// response arrives, Request returns ctx.Err(); the session still may
// deliver the response later to a channel nobody is reading, which is
// discarded silently.
func (r *Requester) Request(ctx context.Context, req schema.Request) (schema.Response, error) {
	complete := make(chan commandResult, 1)
	cmd := command{request: &req, complete: complete}

	select {
	case r.cmds <- cmd:
	case <-ctx.Done():
		return schema.Response{}, ctx.Err()
	}

	select {
	case res := <-complete:
		return res.response, res.err
	case <-ctx.Done():
		return schema.Response{}, ctx.Err()
	}
}

// Notify sends a one-way update. It carries no response payload, but
// still reports whether the write itself failed.
func (r *Requester) Notify(ctx context.Context, upd schema.Update) error {
	complete := make(chan commandResult, 1)
	cmd := command{update: &upd, complete: complete}

	select {
	case r.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case res := <-complete:
		return res.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InFlightSeqs reports the sequence ids this session currently has an
// outstanding request awaiting a response for. Answered on the
// event-loop goroutine, same as Request and Notify.
func (r *Requester) InFlightSeqs(ctx context.Context) ([]byte, error) {
	complete := make(chan commandResult, 1)
	cmd := command{snapshot: true, complete: complete}

	select {
	case r.cmds <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-complete:
		return res.seqs, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
