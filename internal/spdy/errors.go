package spdy

import "fmt"

// StreamStatus is the status code carried by a RST_STREAM frame.
type StreamStatus int32

// RST_STREAM status codes from the SPDY/3 draft.
const (
	StatusProtocolError       StreamStatus = 1
	StatusInvalidStream       StreamStatus = 2
	StatusRefusedStream       StreamStatus = 3
	StatusUnsupportedVersion  StreamStatus = 4
	StatusCancel              StreamStatus = 5
	StatusInternalError       StreamStatus = 6
	StatusFlowControlError    StreamStatus = 7
	StatusStreamInUse         StreamStatus = 8
	StatusStreamAlreadyClosed StreamStatus = 9
	StatusInvalidCredentials  StreamStatus = 10
	StatusFrameTooLarge       StreamStatus = 11
)

// String returns the string representation of the StreamStatus.
func (s StreamStatus) String() string {
	switch s {
	case StatusProtocolError:
		return "PROTOCOL_ERROR"
	case StatusInvalidStream:
		return "INVALID_STREAM"
	case StatusRefusedStream:
		return "REFUSED_STREAM"
	case StatusUnsupportedVersion:
		return "UNSUPPORTED_VERSION"
	case StatusCancel:
		return "CANCEL"
	case StatusInternalError:
		return "INTERNAL_ERROR"
	case StatusFlowControlError:
		return "FLOW_CONTROL_ERROR"
	case StatusStreamInUse:
		return "STREAM_IN_USE"
	case StatusStreamAlreadyClosed:
		return "STREAM_ALREADY_CLOSED"
	case StatusInvalidCredentials:
		return "INVALID_CREDENTIALS"
	case StatusFrameTooLarge:
		return "FRAME_TOO_LARGE"
	default:
		return fmt.Sprintf("UNKNOWN_STREAM_STATUS_%d", int32(s))
	}
}

// SessionStatus is the status code carried by a GOAWAY frame.
type SessionStatus int32

// GOAWAY status codes from the SPDY/3 draft.
const (
	SessionOK            SessionStatus = 0
	SessionProtocolError SessionStatus = 1
	SessionInternalError SessionStatus = 2
)

// String returns the string representation of the SessionStatus.
func (s SessionStatus) String() string {
	switch s {
	case SessionOK:
		return "OK"
	case SessionProtocolError:
		return "PROTOCOL_ERROR"
	case SessionInternalError:
		return "INTERNAL_ERROR"
	default:
		return fmt.Sprintf("UNKNOWN_SESSION_STATUS_%d", int32(s))
	}
}

// ProtocolError reports a violation of the SPDY protocol that the peer
// is responsible for: a frame for the wrong protocol version, or a data
// frame addressed to the session stream. It implements the standard Go
// error interface.
type ProtocolError struct {
	Msg   string
	Cause error // Optional underlying cause
}

// Error returns a string representation of the ProtocolError.
func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Cause)
	}
	return e.Msg
}

// Unwrap returns the underlying cause of the error, if any.
func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

// NewProtocolError creates a new ProtocolError.
func NewProtocolError(msg string) *ProtocolError {
	return &ProtocolError{Msg: msg}
}

// FramingError reports a frame that violates the frame grammar: a bad
// header for its type, a SETTINGS entry-count mismatch, or a field a
// frame constructor rejects. The session cannot be resynchronized after
// one; the decoder is terminal once it has reported a FramingError.
type FramingError struct {
	Msg string
}

// Error returns a string representation of the FramingError.
func (e *FramingError) Error() string {
	return e.Msg
}

// NewFramingError creates a new FramingError.
func NewFramingError(msg string) *FramingError {
	return &FramingError{Msg: msg}
}

func errInvalidFrame() *FramingError {
	return NewFramingError("Received invalid frame")
}
