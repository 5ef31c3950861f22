package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		typ    FrameType
		seq    byte
		payLen uint16
	}{
		{FrameRequest, 1, 0},
		{FrameResponse, 255, 65535},
		{FrameNotify, 0, 4096},
	} {
		hdr := EncodeHeader(tc.typ, tc.seq, tc.payLen)
		assert.Len(t, hdr, HeaderLen)

		got, err := DecodeHeader(hdr[:])
		require.NoError(t, err)
		assert.Equal(t, tc.typ, got.Type)
		assert.Equal(t, tc.seq, got.Seq)
		assert.Equal(t, tc.payLen, got.PayLen)
	}
}

func TestDecodeHeaderRejectsUnknownType(t *testing.T) {
	hdr := EncodeHeader(FrameRequest, 1, 0)
	hdr[0] = 3 // invalid type byte

	_, err := DecodeHeader(hdr[:])
	require.ErrorIs(t, err, ErrMalformedFrame)
}

func TestDecodeHeaderRejectsShortInput(t *testing.T) {
	_, err := DecodeHeader([]byte{1, 2, 3})
	require.Error(t, err)
}

// fakeReceiver replays a canned sequence of buffers, then returns
// ErrTransportClosed.
type fakeReceiver struct {
	bufs [][]byte
	i    int
}

func (f *fakeReceiver) Recv() ([]byte, error) {
	if f.i >= len(f.bufs) {
		return nil, ErrTransportClosed
	}
	b := f.bufs[f.i]
	f.i++
	return b, nil
}

func TestReadFrameMaxLenRoundTrips(t *testing.T) {
	payload := make([]byte, MaxPayloadLen)
	for i := range payload {
		payload[i] = byte(i)
	}
	hdr := EncodeHeader(FrameRequest, 7, uint16(len(payload)))

	recv := &fakeReceiver{bufs: [][]byte{hdr[:], payload}}
	r := NewBufferedReader(recv, 0)

	frame, got, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, FrameRequest, frame.Type)
	assert.Equal(t, byte(7), frame.Seq)
	assert.Equal(t, payload, got)
}

func TestReadFrameSplitAcrossBuffers(t *testing.T) {
	hdr := EncodeHeader(FrameNotify, 9, 3)
	recv := &fakeReceiver{bufs: [][]byte{
		hdr[:2], hdr[2:4], {1}, {2, 3},
	}}
	r := NewBufferedReader(recv, 0)

	frame, got, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, FrameNotify, frame.Type)
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestReadFrameRejectsOversizedConfiguredCap(t *testing.T) {
	hdr := EncodeHeader(FrameRequest, 1, 100)
	recv := &fakeReceiver{bufs: [][]byte{hdr[:]}}
	r := NewBufferedReader(recv, 10)

	_, _, err := ReadFrame(r)
	require.ErrorIs(t, err, ErrMalformedFrame)
}

func TestReadFrameEndOfStream(t *testing.T) {
	recv := &fakeReceiver{bufs: nil}
	r := NewBufferedReader(recv, 0)

	_, _, err := ReadFrame(r)
	require.ErrorIs(t, err, ErrTransportClosed)
}

func TestBufferedReaderDoesNotLoseCarryOverBytes(t *testing.T) {
	recv := &fakeReceiver{bufs: [][]byte{{1, 2, 3, 4, 5}}}
	r := NewBufferedReader(recv, 0)

	first, err := r.ReadExact(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, first)

	second, err := r.ReadExact(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4, 5}, second)
}
