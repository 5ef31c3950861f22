package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnRoundTripsOverNetPipe(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	ca := NewConn(a)
	cb := NewConn(b)

	done := make(chan error, 1)
	go func() {
		done <- ca.SendFrame([]byte{1, 2, 3, 4}, []byte("payload"))
	}()

	deadline := time.Now().Add(2 * time.Second)
	b.SetReadDeadline(deadline)

	got, err := cb.Recv()
	require.NoError(t, err)
	require.NoError(t, <-done)

	// net.Pipe is unbuffered and SendFrame may issue one write or two
	// depending on whether vectorised writes are available; either way
	// the first Recv must start with the header bytes.
	require.GreaterOrEqual(t, len(got), 4)
	require.Equal(t, []byte{1, 2, 3, 4}, got[:4])
}
