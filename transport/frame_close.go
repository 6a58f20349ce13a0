package transport

import "fmt"

// connectionCloseFrame is a signal that the sender is tearing down the
// connection. Its application variant (type 0x1d) omits frameType: an
// application has no notion of a QUIC frame type to blame.
type connectionCloseFrame struct {
	application  bool
	errorCode    uint64
	frameType    uint64
	reasonPhrase []byte
}

func newConnectionCloseFrame(errorCode, frameType uint64, reasonPhrase []byte, application bool) *connectionCloseFrame {
	return &connectionCloseFrame{
		application:  application,
		errorCode:    errorCode,
		frameType:    frameType,
		reasonPhrase: reasonPhrase,
	}
}

// NewConnectionCloseFrame builds a transport-level CONNECTION_CLOSE frame,
// the signal that ends a connection and every stream still open on it.
func NewConnectionCloseFrame(errorCode uint64, reasonPhrase []byte) Frame {
	return newConnectionCloseFrame(errorCode, 0, reasonPhrase, false)
}

// NewApplicationCloseFrame builds the application-level CONNECTION_CLOSE
// variant: the peer is told why without any reference to QUIC's own frame
// types.
func NewApplicationCloseFrame(errorCode uint64, reasonPhrase []byte) Frame {
	return newConnectionCloseFrame(errorCode, 0, reasonPhrase, true)
}

func (f *connectionCloseFrame) kind() frameKind           { return kindConnectionClose }
func (f *connectionCloseFrame) belongsTo(PacketSpace) bool { return true }

func (f *connectionCloseFrame) String() string {
	space := "transport"
	if f.application {
		space = "application"
	}
	s := fmt.Sprintf("frame_type=connection_close error_space=%s error_code=%s raw_error_code=%d reason=%s",
		space, errorCodeString(f.errorCode), f.errorCode, f.reasonPhrase)
	if !f.application && f.frameType > 0 {
		s += fmt.Sprintf(" trigger_frame_type=%d", f.frameType)
	}
	return s
}

func (f *connectionCloseFrame) encodedLen() int {
	n := 1 + varintLen(f.errorCode)
	if !f.application {
		n += varintLen(f.frameType)
	}
	n += varintLen(uint64(len(f.reasonPhrase))) + len(f.reasonPhrase)
	return n
}

func (f *connectionCloseFrame) maxEncodedLen() int { return f.encodedLen() }

func (f *connectionCloseFrame) encode(b []byte) int {
	off := 0
	if f.application {
		b[off] = typeConnectionCloseApp
	} else {
		b[off] = typeConnectionClose
	}
	off++
	off += putVarint(b[off:], f.errorCode)
	if !f.application {
		off += putVarint(b[off:], f.frameType)
	}
	off += putVarint(b[off:], uint64(len(f.reasonPhrase)))
	off += copy(b[off:], f.reasonPhrase)
	return off
}

func decodeConnectionCloseFrame(b []byte, transport bool) (*connectionCloseFrame, int, error) {
	f := &connectionCloseFrame{application: !transport}
	off := 0
	n := getVarint(b[off:], &f.errorCode)
	if n == 0 {
		return nil, 0, needMore(1)
	}
	off += n
	if transport {
		n = getVarint(b[off:], &f.frameType)
		if n == 0 {
			return nil, 0, needMore(1)
		}
		off += n
	}
	var length uint64
	n = getVarint(b[off:], &length)
	if n == 0 {
		return nil, 0, needMore(1)
	}
	off += n
	if uint64(len(b)-off) < length {
		return nil, 0, needMore(int(length) - (len(b) - off))
	}
	f.reasonPhrase = append([]byte(nil), b[off:off+int(length)]...)
	off += int(length)
	return f, off, nil
}
