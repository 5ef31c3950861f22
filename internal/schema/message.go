// Package schema defines the structured messages carried inside frame
// payloads — Request, Response, Update, and Project — and their
// encode/decode functions. The wire encoding is a hand-rolled tagged,
// length-delimited, field-numbered format: each field is a one-byte tag
// (field number in the high bits, wire type in the low 3 bits, the same
// packing scheme mainstream compact wire formats use) followed by either
// a varint or a length-prefixed blob. Unknown tags are skipped by their
// declared length, which is what makes additive fields forward
// compatible.
package schema

// Project is the wire-visible project description: schema.Project loses
// the registry's existence flag and on-disk session-file path (those
// never cross the wire — see internal/registry for the richer type and
// its one-directional conversions).
type Project struct {
	Name string
	Path string
}

// Status is the Response status code.
type Status uint64

const (
	StatusOK             Status = 0
	StatusInternalError  Status = 1
	StatusNotImplemented Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusInternalError:
		return "INTERNAL_ERROR"
	case StatusNotImplemented:
		return "NOT_IMPLEMENTED"
	default:
		return "UNKNOWN"
	}
}

// RequestListProjects is the (empty) body of the ListProjects request
// variant — the first, and so far only, defined Request variant.
type RequestListProjects struct{}

// Request is a discriminated union over request variants. Exactly one of
// the variant fields should be non-nil; ListProjects is the first and,
// for now, only defined one.
type Request struct {
	ListProjects *RequestListProjects
}

// ResponseListProjects is the body of a ListProjects response.
type ResponseListProjects struct {
	Projects []Project
}

// Response carries a status, an optional error string, and a
// discriminated union of response bodies.
type Response struct {
	Status       Status
	Error        string
	ListProjects *ResponseListProjects
}

// Update is a one-way notification payload, reserved for peer-pushed
// events. No variants are defined yet; cmd/wirelined broadcasts a
// zero-value Update to every connection whenever internal/registry's
// Watcher reports a reload, so its arrival is the only information it
// carries.
type Update struct{}
