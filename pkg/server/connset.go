package server

import (
	"context"
	"log"
	"sync"

	"github.com/ianremillard/wireline/internal/schema"
)

// ConnSet tracks the Server for every currently connected session,
// keyed by a caller-chosen label (e.g. a per-connection id), so a
// daemon can broadcast registry updates and answer admin introspection
// queries across every live connection at once.
type ConnSet struct {
	mu      sync.Mutex
	servers map[string]*Server
}

// NewConnSet returns an empty ConnSet.
func NewConnSet() *ConnSet {
	return &ConnSet{servers: make(map[string]*Server)}
}

// Add registers s under label. A second Add with the same label
// replaces the previous entry.
func (c *ConnSet) Add(label string, s *Server) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.servers[label] = s
}

// Remove drops label from the set.
func (c *ConnSet) Remove(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.servers, label)
}

func (c *ConnSet) snapshot() map[string]*Server {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*Server, len(c.servers))
	for label, s := range c.servers {
		out[label] = s
	}
	return out
}

// Broadcast pushes upd to every currently connected session, logging
// (rather than failing) any individual PushUpdate error so one slow or
// broken connection can't stop the others from hearing about it.
func (c *ConnSet) Broadcast(ctx context.Context, upd schema.Update) {
	for label, s := range c.snapshot() {
		if err := s.PushUpdate(ctx, upd); err != nil {
			log.Printf("conn %s: push update: %v", label, err)
		}
	}
}

// InFlight returns, for every currently connected session, the
// sequence ids it has an outstanding request for. A session whose
// query fails (e.g. it's mid-shutdown) is omitted rather than failing
// the whole snapshot.
func (c *ConnSet) InFlight(ctx context.Context) map[string][]byte {
	out := make(map[string][]byte)
	for label, s := range c.snapshot() {
		seqs, err := s.InFlightSeqs(ctx)
		if err != nil {
			continue
		}
		out[label] = seqs
	}
	return out
}
