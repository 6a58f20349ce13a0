package transport

import "fmt"

const (
	streamBitFin = 0x01
	streamBitLen = 0x02
	streamBitOff = 0x04
)

// streamFrame carries a contiguous slice of one stream's byte sequence.
type streamFrame struct {
	streamID uint64
	offset   uint64
	data     []byte
	fin      bool
}

func newStreamFrame(streamID uint64, data []byte, offset uint64, fin bool) *streamFrame {
	return &streamFrame{streamID: streamID, data: data, offset: offset, fin: fin}
}

func (f *streamFrame) kind() frameKind { return kindStream }

func (f *streamFrame) belongsTo(space PacketSpace) bool { return zeroOrOneRTT(space) }

func (f *streamFrame) String() string {
	return fmt.Sprintf("frame_type=stream stream_id=%d offset=%d length=%d fin=%t",
		f.streamID, f.offset, len(f.data), f.fin)
}

// headerLen is the encoded size of everything but the data itself, i.e.
// type byte + stream ID + offset (when non-zero) -- the Length field is
// sized separately since its own encoding depends on how much data follows.
func (f *streamFrame) headerLen() int {
	n := 1 + varintLen(f.streamID)
	if f.offset > 0 {
		n += varintLen(f.offset)
	}
	return n
}

func (f *streamFrame) encodedLen() int {
	return f.headerLen() + varintLen(uint64(len(f.data))) + len(f.data)
}

// maxEncodedLen is encodedLen's value when the Length field is omitted and
// the frame instead runs to the end of the packet; callers sizing the last
// frame in a packet use this to decide whether explicit length is needed.
func (f *streamFrame) maxEncodedLen() int {
	return f.headerLen() + len(f.data)
}

func (f *streamFrame) encode(b []byte) int {
	return f.encodeWithLength(b, true)
}

// encodeWithLength encodes the frame, including an explicit Length field
// only when withLength is true. Omitting it is only valid when the frame
// is known to run to the end of its packet.
func (f *streamFrame) encodeWithLength(b []byte, withLength bool) int {
	typ := byte(typeStream) | streamBitFin*boolByte(f.fin)
	off := 0
	if f.offset > 0 {
		typ |= streamBitOff
	}
	if withLength {
		typ |= streamBitLen
	}
	b[off] = typ
	off++
	off += putVarint(b[off:], f.streamID)
	if f.offset > 0 {
		off += putVarint(b[off:], f.offset)
	}
	if withLength {
		off += putVarint(b[off:], uint64(len(f.data)))
	}
	off += copy(b[off:], f.data)
	return off
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func decodeStreamFrame(b []byte, bits byte) (*streamFrame, int, error) {
	f := &streamFrame{fin: bits&streamBitFin != 0}
	off := 0
	n := getVarint(b[off:], &f.streamID)
	if n == 0 {
		return nil, 0, needMore(1)
	}
	off += n
	if bits&streamBitOff != 0 {
		n = getVarint(b[off:], &f.offset)
		if n == 0 {
			return nil, 0, needMore(1)
		}
		off += n
	}
	if bits&streamBitLen != 0 {
		var length uint64
		n = getVarint(b[off:], &length)
		if n == 0 {
			return nil, 0, needMore(1)
		}
		off += n
		if uint64(len(b)-off) < length {
			return nil, 0, needMore(int(length) - (len(b) - off))
		}
		f.data = b[off : off+int(length) : off+int(length)]
		off += int(length)
	} else {
		f.data = b[off:len(b):len(b)]
		off = len(b)
	}
	return f, off, nil
}

// streamLengthDecision is the outcome of deciding whether a STREAM frame
// written into a packet with the given remaining capacity should carry an
// explicit Length field, following the same three-way split as the
// original framing logic this is ported from: a frame that exactly fills
// its packet can omit Length; one that leaves a gap no larger than its own
// Length varint gets that gap filled with PADDING first and then omits
// Length; any other frame includes Length.
type streamLengthDecision int

const (
	lengthOmit streamLengthDecision = iota
	lengthInclude
	lengthPadFirst
)

// decideStreamLength reports how to frame dataLen bytes of stream data
// into a packet with capacity bytes left, given the frame's header size
// (type byte, stream ID and offset; the Length field is not counted).
func decideStreamLength(headerLen, dataLen, capacity int) (streamLengthDecision, int) {
	if headerLen+dataLen == capacity {
		return lengthOmit, 0
	}
	withLength := headerLen + varintLen(uint64(dataLen)) + dataLen
	if withLength < capacity {
		return lengthInclude, 0
	}
	// Including Length either overflows the packet outright, or exactly
	// fills it -- and a Length-included frame that exactly fills the packet
	// can't be told apart by a peer from one that omits Length and runs to
	// the end, so it isn't safe to read back either way. PADDING that fills
	// the gap brings the frame back to the omit-Length case.
	return lengthPadFirst, capacity - (headerLen + dataLen)
}
