package session

import "errors"

// ErrUnknownSequence is returned from Run when a response frame arrives
// whose seq does not match any entry in the in-flight table. This is a
// protocol violation and fatal to the session, unlike a handler error
// which is recovered locally.
var ErrUnknownSequence = errors.New("session: response seq not in in-flight table")
