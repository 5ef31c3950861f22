// Package transport provides concrete wire.Sender/wire.Receiver
// implementations: a real net.Conn transport for production use, and an
// in-memory paired-queue transport used by tests (and by anything else
// that wants two directly-linked endpoints without a socket).
package transport

import (
	"sync"

	"github.com/ianremillard/wireline/internal/wire"
)

// defaultQueueCapacity is the default number of buffers each direction
// of a Pipe can hold before Send blocks.
const defaultQueueCapacity = 16

// PipeEnd is one side of an in-memory paired transport.
type PipeEnd struct {
	tx       chan []byte
	rx       chan []byte
	closeMu  sync.Mutex
	closed   bool
	closeSig chan struct{}
}

// NewPipe builds two PipeEnds, cross-linked so writes on one appear as
// reads on the other.
func NewPipe() (left, right *PipeEnd) {
	return NewPipeWithCapacity(defaultQueueCapacity)
}

// NewPipeWithCapacity is NewPipe with an explicit per-direction queue
// capacity — used by tests that want to exercise backpressure.
func NewPipeWithCapacity(capacity int) (left, right *PipeEnd) {
	ltr := make(chan []byte, capacity)
	rtl := make(chan []byte, capacity)
	left = &PipeEnd{tx: ltr, rx: rtl, closeSig: make(chan struct{})}
	right = &PipeEnd{tx: rtl, rx: ltr, closeSig: make(chan struct{})}
	return left, right
}

// Send implements wire.Sender.
func (p *PipeEnd) Send(buf []byte) error {
	select {
	case <-p.closeSig:
		return wire.ErrTransportClosed
	default:
	}
	cp := append([]byte(nil), buf...)
	select {
	case p.tx <- cp:
		return nil
	case <-p.closeSig:
		return wire.ErrTransportClosed
	}
}

// Recv implements wire.Receiver.
func (p *PipeEnd) Recv() ([]byte, error) {
	select {
	case <-p.closeSig:
		return nil, wire.ErrTransportClosed
	default:
	}
	select {
	case b, ok := <-p.rx:
		if !ok {
			return nil, wire.ErrTransportClosed
		}
		return b, nil
	case <-p.closeSig:
		return nil, wire.ErrTransportClosed
	}
}

// Close marks this end closed; subsequent Send/Recv calls return
// wire.ErrTransportClosed. Safe to call more than once.
func (p *PipeEnd) Close() error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.closeSig)
	return nil
}
