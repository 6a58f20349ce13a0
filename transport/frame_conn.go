package transport

import "fmt"

const maxConnectionIDLen = 20

// resetStreamFrame abandons a stream's send side, reporting its intended
// final size so the peer's flow controller can reconcile its byte budget.
type resetStreamFrame struct {
	streamID  uint64
	errorCode uint64
	finalSize uint64
}

func newResetStreamFrame(streamID, errorCode, finalSize uint64) *resetStreamFrame {
	return &resetStreamFrame{streamID: streamID, errorCode: errorCode, finalSize: finalSize}
}

func (f *resetStreamFrame) kind() frameKind            { return kindResetStream }
func (f *resetStreamFrame) belongsTo(s PacketSpace) bool { return zeroOrOneRTT(s) }
func (f *resetStreamFrame) String() string {
	return fmt.Sprintf("frame_type=reset_stream stream_id=%d error_code=%d final_size=%d",
		f.streamID, f.errorCode, f.finalSize)
}
func (f *resetStreamFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.errorCode) + varintLen(f.finalSize)
}
func (f *resetStreamFrame) maxEncodedLen() int { return f.encodedLen() }
func (f *resetStreamFrame) encode(b []byte) int {
	b[0] = typeResetStream
	off := 1
	off += putVarint(b[off:], f.streamID)
	off += putVarint(b[off:], f.errorCode)
	off += putVarint(b[off:], f.finalSize)
	return off
}

func decodeResetStreamFrame(b []byte) (*resetStreamFrame, int, error) {
	f := &resetStreamFrame{}
	off := 0
	for _, fp := range []*uint64{&f.streamID, &f.errorCode, &f.finalSize} {
		n := getVarint(b[off:], fp)
		if n == 0 {
			return nil, 0, needMore(1)
		}
		off += n
	}
	return f, off, nil
}

// stopSendingFrame asks the peer to abandon a stream's send side.
type stopSendingFrame struct {
	streamID  uint64
	errorCode uint64
}

func newStopSendingFrame(streamID, errorCode uint64) *stopSendingFrame {
	return &stopSendingFrame{streamID: streamID, errorCode: errorCode}
}

func (f *stopSendingFrame) kind() frameKind            { return kindStopSending }
func (f *stopSendingFrame) belongsTo(s PacketSpace) bool { return zeroOrOneRTT(s) }
func (f *stopSendingFrame) String() string {
	return fmt.Sprintf("frame_type=stop_sending stream_id=%d error_code=%d", f.streamID, f.errorCode)
}
func (f *stopSendingFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.errorCode)
}
func (f *stopSendingFrame) maxEncodedLen() int { return f.encodedLen() }
func (f *stopSendingFrame) encode(b []byte) int {
	b[0] = typeStopSending
	off := 1
	off += putVarint(b[off:], f.streamID)
	off += putVarint(b[off:], f.errorCode)
	return off
}

func decodeStopSendingFrame(b []byte) (*stopSendingFrame, int, error) {
	f := &stopSendingFrame{}
	off := 0
	n := getVarint(b[off:], &f.streamID)
	if n == 0 {
		return nil, 0, needMore(1)
	}
	off += n
	n = getVarint(b[off:], &f.errorCode)
	if n == 0 {
		return nil, 0, needMore(1)
	}
	off += n
	return f, off, nil
}

// newConnectionIDFrame offers the peer an additional connection ID it may
// address future packets to, along with its stateless reset token.
type newConnectionIDFrame struct {
	sequenceNumber      uint64
	retirePriorTo        uint64
	connectionID          []byte
	statelessResetToken [16]byte
}

func newNewConnectionIDFrame(seq, retirePriorTo uint64, cid []byte, token [16]byte) *newConnectionIDFrame {
	return &newConnectionIDFrame{
		sequenceNumber:      seq,
		retirePriorTo:       retirePriorTo,
		connectionID:        cid,
		statelessResetToken: token,
	}
}

func (f *newConnectionIDFrame) kind() frameKind            { return kindNewConnectionID }
func (f *newConnectionIDFrame) belongsTo(s PacketSpace) bool { return zeroOrOneRTT(s) }
func (f *newConnectionIDFrame) String() string {
	return fmt.Sprintf("frame_type=new_connection_id sequence_number=%d retire_prior_to=%d length=%d connection_id=%x",
		f.sequenceNumber, f.retirePriorTo, len(f.connectionID), f.connectionID)
}
func (f *newConnectionIDFrame) encodedLen() int {
	return 1 + varintLen(f.sequenceNumber) + varintLen(f.retirePriorTo) + 1 + len(f.connectionID) + 16
}
func (f *newConnectionIDFrame) maxEncodedLen() int { return f.encodedLen() }
func (f *newConnectionIDFrame) encode(b []byte) int {
	b[0] = typeNewConnectionID
	off := 1
	off += putVarint(b[off:], f.sequenceNumber)
	off += putVarint(b[off:], f.retirePriorTo)
	b[off] = byte(len(f.connectionID))
	off++
	off += copy(b[off:], f.connectionID)
	off += copy(b[off:], f.statelessResetToken[:])
	return off
}

func decodeNewConnectionIDFrame(b []byte) (*newConnectionIDFrame, int, error) {
	f := &newConnectionIDFrame{}
	off := 0
	n := getVarint(b[off:], &f.sequenceNumber)
	if n == 0 {
		return nil, 0, needMore(1)
	}
	off += n
	n = getVarint(b[off:], &f.retirePriorTo)
	if n == 0 {
		return nil, 0, needMore(1)
	}
	off += n
	if f.retirePriorTo > f.sequenceNumber {
		return nil, 0, newError(FrameEncodingError, "new_connection_id retire_prior_to exceeds sequence_number")
	}
	if off >= len(b) {
		return nil, 0, needMore(1)
	}
	length := int(b[off])
	off++
	if length == 0 || length > maxConnectionIDLen {
		return nil, 0, newError(FrameEncodingError, "new_connection_id length out of range")
	}
	if len(b)-off < length+16 {
		return nil, 0, needMore(length + 16 - (len(b) - off))
	}
	f.connectionID = append([]byte(nil), b[off:off+length]...)
	off += length
	copy(f.statelessResetToken[:], b[off:off+16])
	off += 16
	return f, off, nil
}

// pathChallengeFrame and pathResponseFrame carry an 8-byte opaque payload
// used to verify reachability of a network path; a responder echoes the
// challenge's data back verbatim.
type pathChallengeFrame struct {
	data [8]byte
}

func newPathChallengeFrame(data [8]byte) *pathChallengeFrame { return &pathChallengeFrame{data: data} }

func (f *pathChallengeFrame) kind() frameKind            { return kindPathChallenge }
func (f *pathChallengeFrame) belongsTo(s PacketSpace) bool { return s == SpaceOneRTT }
func (f *pathChallengeFrame) String() string {
	return fmt.Sprintf("frame_type=path_challenge data=%x", f.data)
}
func (f *pathChallengeFrame) encodedLen() int    { return 9 }
func (f *pathChallengeFrame) maxEncodedLen() int { return 9 }
func (f *pathChallengeFrame) encode(b []byte) int {
	b[0] = typePathChallenge
	copy(b[1:9], f.data[:])
	return 9
}

func decodePathChallengeFrame(b []byte) (*pathChallengeFrame, int, error) {
	if len(b) < 8 {
		return nil, 0, needMore(8 - len(b))
	}
	f := &pathChallengeFrame{}
	copy(f.data[:], b[:8])
	return f, 8, nil
}

type pathResponseFrame struct {
	data [8]byte
}

func newPathResponseFrame(data [8]byte) *pathResponseFrame { return &pathResponseFrame{data: data} }

func (f *pathResponseFrame) kind() frameKind            { return kindPathResponse }
func (f *pathResponseFrame) belongsTo(s PacketSpace) bool { return s == SpaceOneRTT }
func (f *pathResponseFrame) String() string {
	return fmt.Sprintf("frame_type=path_response data=%x", f.data)
}
func (f *pathResponseFrame) encodedLen() int    { return 9 }
func (f *pathResponseFrame) maxEncodedLen() int { return 9 }
func (f *pathResponseFrame) encode(b []byte) int {
	b[0] = typePathResponse
	copy(b[1:9], f.data[:])
	return 9
}

func decodePathResponseFrame(b []byte) (*pathResponseFrame, int, error) {
	if len(b) < 8 {
		return nil, 0, needMore(8 - len(b))
	}
	f := &pathResponseFrame{}
	copy(f.data[:], b[:8])
	return f, 8, nil
}
