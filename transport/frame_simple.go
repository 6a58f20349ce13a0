package transport

import "fmt"

// paddingFrame is one or more consecutive PADDING frames, coalesced into a
// single run since individual instances carry no information.
type paddingFrame struct {
	n int
}

func newPaddingFrame(n int) *paddingFrame { return &paddingFrame{n: n} }

func (f *paddingFrame) kind() frameKind               { return kindPadding }
func (f *paddingFrame) encodedLen() int                { return f.n }
func (f *paddingFrame) maxEncodedLen() int             { return f.n }
func (f *paddingFrame) belongsTo(PacketSpace) bool     { return true }
func (f *paddingFrame) String() string                 { return fmt.Sprintf("frame_type=padding length=%d", f.n) }

func (f *paddingFrame) encode(b []byte) int {
	for i := 0; i < f.n; i++ {
		b[i] = typePadding
	}
	return f.n
}

// decodePaddingFrame consumes every further PADDING byte immediately
// following the type byte already read by the caller, since a run of
// padding is represented as a single logical frame. b holds whatever
// trails the first 0x00 type byte; consumed counts only bytes past it.
func decodePaddingFrame(b []byte) (*paddingFrame, int, error) {
	consumed := 0
	for consumed < len(b) && b[consumed] == typePadding {
		consumed++
	}
	return newPaddingFrame(1 + consumed), consumed, nil
}

// NewPingFrame returns a PING frame, the simplest way to force a packet to
// be ack-eliciting when there is no other frame ready to send.
func NewPingFrame() Frame { return &pingFrame{} }

// pingFrame carries no data; its only purpose is to elicit an ACK.
type pingFrame struct{}

func (f *pingFrame) kind() frameKind           { return kindPing }
func (f *pingFrame) encodedLen() int           { return 1 }
func (f *pingFrame) maxEncodedLen() int        { return 1 }
func (f *pingFrame) belongsTo(PacketSpace) bool { return true }
func (f *pingFrame) String() string            { return "frame_type=ping" }

func (f *pingFrame) encode(b []byte) int {
	b[0] = typePing
	return 1
}

func decodePingFrame(b []byte) (*pingFrame, int, error) {
	return &pingFrame{}, 0, nil
}
