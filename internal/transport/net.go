package transport

import (
	"errors"
	"io"
	"net"

	"github.com/ianremillard/wireline/internal/wire"
	singbufio "github.com/sagernet/sing/common/bufio"
)

// readChunkSize is how much we read off the socket per Recv call. The
// BufferedReader above us stitches partial frames back together, so this
// number only trades syscalls against buffering and isn't load-bearing.
const readChunkSize = 4096

// Conn adapts a net.Conn into a wire.Sender/wire.Receiver, and opts into
// the packet layer's atomic-write fast path by implementing SendFrame
// with a vectorised write — grounded on SagerNet/smux's sendLoop, which
// writes a frame's header and payload in one Write via
// sagernet/sing/common/bufio.CreateVectorisedWriter/WriteVectorised so no
// other frame's bytes can land between them.
type Conn struct {
	conn net.Conn
}

// NewConn wraps conn.
func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn}
}

// Send implements wire.Sender.
func (c *Conn) Send(buf []byte) error {
	_, err := c.conn.Write(buf)
	return err
}

// Recv implements wire.Receiver.
func (c *Conn) Recv() ([]byte, error) {
	buf := make([]byte, readChunkSize)
	n, err := c.conn.Read(buf)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, wire.ErrTransportClosed
		}
		return nil, err
	}
	return buf[:n], nil
}

// SendFrame implements the packet layer's optional atomic-write
// interface. If the underlying conn supports vectorised writes, header
// and payload go out in a single syscall; otherwise it falls back to two
// sequential writes.
func (c *Conn) SendFrame(header, payload []byte) error {
	if bw, ok := singbufio.CreateVectorisedWriter(c.conn); ok {
		return singbufio.WriteVectorised(bw, [][]byte{header, payload})
	}
	if _, err := c.conn.Write(header); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := c.conn.Write(payload)
	return err
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
