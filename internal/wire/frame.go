// Package wire implements the 4-byte frame header that every message on
// the bidirectional protocol is wrapped in, plus the byte-level plumbing
// (buffered reads, the Sender/Receiver capability contracts) underneath
// it. Nothing in this package knows about request/response semantics —
// that belongs to internal/packet and internal/session.
package wire

import (
	"encoding/binary"
	"fmt"
)

// FrameType is the first byte of a frame header.
type FrameType byte

const (
	// FrameNotify carries a one-way update; no response is expected.
	FrameNotify FrameType = 0
	// FrameRequest carries a request awaiting a response with the same seq.
	FrameRequest FrameType = 1
	// FrameResponse carries a response to a previously-sent request.
	FrameResponse FrameType = 2
)

func (t FrameType) String() string {
	switch t {
	case FrameNotify:
		return "notify"
	case FrameRequest:
		return "request"
	case FrameResponse:
		return "response"
	default:
		return fmt.Sprintf("invalid(%d)", byte(t))
	}
}

// HeaderLen is the fixed size, in bytes, of a frame header.
const HeaderLen = 4

// MaxPayloadLen is the largest payload length the 2-byte length field can
// express. The wire format never allows frames larger than this.
const MaxPayloadLen = 0xFFFF

// Frame is a decoded frame header. The payload itself travels separately
// (see ReadFrame) to avoid an extra copy for the common case of an
// already-buffered reader.
type Frame struct {
	Type    FrameType
	Seq     byte
	PayLen  uint16
}

// EncodeHeader writes the 4-byte wire representation of a frame header.
func EncodeHeader(typ FrameType, seq byte, payLen uint16) [HeaderLen]byte {
	var hdr [HeaderLen]byte
	hdr[0] = byte(typ)
	hdr[1] = seq
	binary.BigEndian.PutUint16(hdr[2:4], payLen)
	return hdr
}

// DecodeHeader parses a 4-byte header. It rejects any type byte outside
// {0, 1, 2} as a fatal protocol error.
func DecodeHeader(b []byte) (Frame, error) {
	if len(b) != HeaderLen {
		return Frame{}, fmt.Errorf("%w: header of %d bytes", ErrMalformedFrame, len(b))
	}
	typ := FrameType(b[0])
	switch typ {
	case FrameNotify, FrameRequest, FrameResponse:
	default:
		return Frame{}, fmt.Errorf("%w: type byte %d", ErrMalformedFrame, b[0])
	}
	return Frame{
		Type:   typ,
		Seq:    b[1],
		PayLen: binary.BigEndian.Uint16(b[2:4]),
	}, nil
}

// ReadFrame reads one full frame (header + payload) from r.
func ReadFrame(r *BufferedReader) (Frame, []byte, error) {
	hdr, err := r.ReadExact(HeaderLen)
	if err != nil {
		return Frame{}, nil, err
	}
	frame, err := DecodeHeader(hdr)
	if err != nil {
		return Frame{}, nil, err
	}
	if r.maxPayload > 0 && int(frame.PayLen) > r.maxPayload {
		return Frame{}, nil, fmt.Errorf("%w: payload %d exceeds configured max %d", ErrMalformedFrame, frame.PayLen, r.maxPayload)
	}
	payload, err := r.ReadExact(int(frame.PayLen))
	if err != nil {
		return Frame{}, nil, err
	}
	return frame, payload, nil
}

// WriteFrame writes one full frame (header + payload) using the supplied
// write function, which is responsible for getting both halves onto the
// wire without another frame's bytes interleaving (see internal/packet
// and internal/transport for the atomic-write strategies used here).
func WriteFrame(write func(header, payload []byte) error, typ FrameType, seq byte, payload []byte) error {
	if len(payload) > MaxPayloadLen {
		return fmt.Errorf("wire: payload of %d bytes exceeds max %d", len(payload), MaxPayloadLen)
	}
	hdr := EncodeHeader(typ, seq, uint16(len(payload)))
	return write(hdr[:], payload)
}
