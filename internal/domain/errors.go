package domain

import "errors"

var (
	// ErrTransport indicates the provider was unreachable or timed out.
	ErrTransport = errors.New("transport error")
	// ErrProtocol indicates a non-success response status.
	ErrProtocol = errors.New("protocol error")
	// ErrPayload indicates missing or malformed expected fields.
	ErrPayload = errors.New("payload error")
	// ErrUnresolvable indicates no usable data and no applicable fallback.
	ErrUnresolvable = errors.New("unresolvable asset")
)

// ErrorKind is the serializable form of the error taxonomy.
type ErrorKind string

const (
	KindNone         ErrorKind = ""
	KindTransport    ErrorKind = "transport"
	KindProtocol     ErrorKind = "protocol"
	KindPayload      ErrorKind = "payload"
	KindUnresolvable ErrorKind = "unresolvable"
)

// KindOf maps an error chain onto the taxonomy. Unknown errors are treated as transport
// failures since they surface from the network primitive.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrPayload):
		return KindPayload
	case errors.Is(err, ErrProtocol):
		return KindProtocol
	case errors.Is(err, ErrUnresolvable):
		return KindUnresolvable
	default:
		return KindTransport
	}
}
