package wire

import "errors"

// Sentinel errors for the frame/transport layer, in the style of
// SagerNet/smux's package-level Err* declarations.
var (
	// ErrMalformedFrame is returned for an unrecognized frame type byte,
	// a header that is not exactly HeaderLen bytes, or a payload larger
	// than a configured cap. A stream that ends mid-frame reports the
	// Receiver's own error instead.
	ErrMalformedFrame = errors.New("wire: malformed frame")

	// ErrTransportClosed is returned by a Receiver once the underlying
	// byte stream has reached end-of-stream or been closed.
	ErrTransportClosed = errors.New("wire: transport closed")
)
