package transport

import "fmt"

// ErrorCode is a QUIC transport error code.
// https://www.rfc-editor.org/rfc/rfc9000#section-20.1
type ErrorCode uint64

const (
	NoError ErrorCode = iota
	InternalError
	ConnectionRefused
	FlowControlError
	StreamLimitError
	StreamStateError
	FinalSizeError
	FrameEncodingError
	TransportParameterError
	ConnectionIDLimitError
	ProtocolViolation
	InvalidToken
	ApplicationError
	CryptoBufferExceeded
	KeyUpdateError
	AEADLimitReached
	NoViablePath
)

func (c ErrorCode) String() string {
	return errorCodeString(uint64(c))
}

// Error is a connection-fatal error: the kind of failure §7 of the core
// specification requires to surface as a single CONNECTION_CLOSE frame
// followed by teardown.
type Error struct {
	Code    ErrorCode
	Message string
}

func newError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// errNeedMore signals that a frame parser needs more bytes than were
// supplied; it is recoverable by the caller awaiting the rest of the packet.
type errNeedMore struct {
	n int // additional bytes required, when known; 0 if unknown
}

func (e *errNeedMore) Error() string {
	return "incomplete frame"
}

func needMore(n int) error { return &errNeedMore{n: n} }

// errorCodeString renders a wire error code the way qlog does: known
// transport codes get their RFC name, codes in the reserved CRYPTO_ERROR
// range (0x100-0x1ff) render the carried TLS alert, anything else is
// rendered as a raw hex value.
func errorCodeString(code uint64) string {
	switch ErrorCode(code) {
	case NoError:
		return "no_error"
	case InternalError:
		return "internal_error"
	case ConnectionRefused:
		return "connection_refused"
	case FlowControlError:
		return "flow_control_error"
	case StreamLimitError:
		return "stream_limit_error"
	case StreamStateError:
		return "stream_state_error"
	case FinalSizeError:
		return "final_size_error"
	case FrameEncodingError:
		return "frame_encoding_error"
	case TransportParameterError:
		return "transport_parameter_error"
	case ConnectionIDLimitError:
		return "connection_id_limit_error"
	case ProtocolViolation:
		return "protocol_violation"
	case InvalidToken:
		return "invalid_token"
	case ApplicationError:
		return "application_error"
	case CryptoBufferExceeded:
		return "crypto_buffer_exceeded"
	case KeyUpdateError:
		return "key_update_error"
	case AEADLimitReached:
		return "aead_limit_reached"
	case NoViablePath:
		return "no_viable_path"
	}
	if code >= 0x100 && code <= 0x1ff {
		return fmt.Sprintf("crypto_error_%d", code-0x100)
	}
	return fmt.Sprintf("error_%#x", code)
}
