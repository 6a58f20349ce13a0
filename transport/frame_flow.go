package transport

import "fmt"

// maxDataFrame raises the connection-level flow control limit.
type maxDataFrame struct {
	maximumData uint64
}

func newMaxDataFrame(maximumData uint64) *maxDataFrame { return &maxDataFrame{maximumData: maximumData} }

func (f *maxDataFrame) kind() frameKind            { return kindMaxData }
func (f *maxDataFrame) belongsTo(s PacketSpace) bool { return zeroOrOneRTT(s) }
func (f *maxDataFrame) String() string {
	return fmt.Sprintf("frame_type=max_data maximum=%d", f.maximumData)
}
func (f *maxDataFrame) encodedLen() int    { return 1 + varintLen(f.maximumData) }
func (f *maxDataFrame) maxEncodedLen() int { return f.encodedLen() }
func (f *maxDataFrame) encode(b []byte) int {
	b[0] = typeMaxData
	return 1 + putVarint(b[1:], f.maximumData)
}

func decodeMaxDataFrame(b []byte) (*maxDataFrame, int, error) {
	f := &maxDataFrame{}
	n := getVarint(b, &f.maximumData)
	if n == 0 {
		return nil, 0, needMore(1)
	}
	return f, n, nil
}

// maxStreamDataFrame raises the flow control limit of one stream.
type maxStreamDataFrame struct {
	streamID    uint64
	maximumData uint64
}

func newMaxStreamDataFrame(streamID, maximumData uint64) *maxStreamDataFrame {
	return &maxStreamDataFrame{streamID: streamID, maximumData: maximumData}
}

func (f *maxStreamDataFrame) kind() frameKind            { return kindMaxStreamData }
func (f *maxStreamDataFrame) belongsTo(s PacketSpace) bool { return zeroOrOneRTT(s) }
func (f *maxStreamDataFrame) String() string {
	return fmt.Sprintf("frame_type=max_stream_data stream_id=%d maximum=%d", f.streamID, f.maximumData)
}
func (f *maxStreamDataFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.maximumData)
}
func (f *maxStreamDataFrame) maxEncodedLen() int { return f.encodedLen() }
func (f *maxStreamDataFrame) encode(b []byte) int {
	b[0] = typeMaxStreamData
	off := 1
	off += putVarint(b[off:], f.streamID)
	off += putVarint(b[off:], f.maximumData)
	return off
}

func decodeMaxStreamDataFrame(b []byte) (*maxStreamDataFrame, int, error) {
	f := &maxStreamDataFrame{}
	off := 0
	n := getVarint(b[off:], &f.streamID)
	if n == 0 {
		return nil, 0, needMore(1)
	}
	off += n
	n = getVarint(b[off:], &f.maximumData)
	if n == 0 {
		return nil, 0, needMore(1)
	}
	off += n
	return f, off, nil
}

// maxStreamsFrame raises the limit on streams the peer may open, of one
// directionality.
type maxStreamsFrame struct {
	bidi           bool
	maximumStreams uint64
}

func newMaxStreamsFrame(maximumStreams uint64, bidi bool) *maxStreamsFrame {
	return &maxStreamsFrame{bidi: bidi, maximumStreams: maximumStreams}
}

func (f *maxStreamsFrame) kind() frameKind            { return kindMaxStreams }
func (f *maxStreamsFrame) belongsTo(s PacketSpace) bool { return zeroOrOneRTT(s) }
func (f *maxStreamsFrame) String() string {
	dir := "unidirectional"
	if f.bidi {
		dir = "bidirectional"
	}
	return fmt.Sprintf("frame_type=max_streams stream_type=%s maximum=%d", dir, f.maximumStreams)
}
func (f *maxStreamsFrame) encodedLen() int    { return 1 + varintLen(f.maximumStreams) }
func (f *maxStreamsFrame) maxEncodedLen() int { return f.encodedLen() }
func (f *maxStreamsFrame) encode(b []byte) int {
	if f.bidi {
		b[0] = typeMaxStreamsBidi
	} else {
		b[0] = typeMaxStreamsUni
	}
	return 1 + putVarint(b[1:], f.maximumStreams)
}

func decodeMaxStreamsFrame(b []byte, bidi bool) (*maxStreamsFrame, int, error) {
	f := &maxStreamsFrame{bidi: bidi}
	n := getVarint(b, &f.maximumStreams)
	if n == 0 {
		return nil, 0, needMore(1)
	}
	return f, n, nil
}

// dataBlockedFrame tells the peer the sender is connection-flow-control
// limited at dataLimit.
type dataBlockedFrame struct {
	dataLimit uint64
}

func newDataBlockedFrame(dataLimit uint64) *dataBlockedFrame { return &dataBlockedFrame{dataLimit: dataLimit} }

func (f *dataBlockedFrame) kind() frameKind            { return kindDataBlocked }
func (f *dataBlockedFrame) belongsTo(s PacketSpace) bool { return zeroOrOneRTT(s) }
func (f *dataBlockedFrame) String() string {
	return fmt.Sprintf("frame_type=data_blocked limit=%d", f.dataLimit)
}
func (f *dataBlockedFrame) encodedLen() int    { return 1 + varintLen(f.dataLimit) }
func (f *dataBlockedFrame) maxEncodedLen() int { return f.encodedLen() }
func (f *dataBlockedFrame) encode(b []byte) int {
	b[0] = typeDataBlocked
	return 1 + putVarint(b[1:], f.dataLimit)
}

func decodeDataBlockedFrame(b []byte) (*dataBlockedFrame, int, error) {
	f := &dataBlockedFrame{}
	n := getVarint(b, &f.dataLimit)
	if n == 0 {
		return nil, 0, needMore(1)
	}
	return f, n, nil
}

// streamDataBlockedFrame tells the peer the sender is limited by one
// stream's flow control window.
type streamDataBlockedFrame struct {
	streamID  uint64
	dataLimit uint64
}

func newStreamDataBlockedFrame(streamID, dataLimit uint64) *streamDataBlockedFrame {
	return &streamDataBlockedFrame{streamID: streamID, dataLimit: dataLimit}
}

func (f *streamDataBlockedFrame) kind() frameKind            { return kindStreamDataBlocked }
func (f *streamDataBlockedFrame) belongsTo(s PacketSpace) bool { return zeroOrOneRTT(s) }
func (f *streamDataBlockedFrame) String() string {
	return fmt.Sprintf("frame_type=stream_data_blocked stream_id=%d limit=%d", f.streamID, f.dataLimit)
}
func (f *streamDataBlockedFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.dataLimit)
}
func (f *streamDataBlockedFrame) maxEncodedLen() int { return f.encodedLen() }
func (f *streamDataBlockedFrame) encode(b []byte) int {
	b[0] = typeStreamDataBlocked
	off := 1
	off += putVarint(b[off:], f.streamID)
	off += putVarint(b[off:], f.dataLimit)
	return off
}

func decodeStreamDataBlockedFrame(b []byte) (*streamDataBlockedFrame, int, error) {
	f := &streamDataBlockedFrame{}
	off := 0
	n := getVarint(b[off:], &f.streamID)
	if n == 0 {
		return nil, 0, needMore(1)
	}
	off += n
	n = getVarint(b[off:], &f.dataLimit)
	if n == 0 {
		return nil, 0, needMore(1)
	}
	off += n
	return f, off, nil
}

// streamsBlockedFrame tells the peer the sender would open more streams of
// one directionality if its stream limit allowed it.
type streamsBlockedFrame struct {
	bidi        bool
	streamLimit uint64
}

func newStreamsBlockedFrame(streamLimit uint64, bidi bool) *streamsBlockedFrame {
	return &streamsBlockedFrame{bidi: bidi, streamLimit: streamLimit}
}

func (f *streamsBlockedFrame) kind() frameKind            { return kindStreamsBlocked }
func (f *streamsBlockedFrame) belongsTo(s PacketSpace) bool { return zeroOrOneRTT(s) }
func (f *streamsBlockedFrame) String() string {
	dir := "unidirectional"
	if f.bidi {
		dir = "bidirectional"
	}
	return fmt.Sprintf("frame_type=streams_blocked stream_type=%s limit=%d", dir, f.streamLimit)
}
func (f *streamsBlockedFrame) encodedLen() int    { return 1 + varintLen(f.streamLimit) }
func (f *streamsBlockedFrame) maxEncodedLen() int { return f.encodedLen() }
func (f *streamsBlockedFrame) encode(b []byte) int {
	if f.bidi {
		b[0] = typeStreamsBlockedBidi
	} else {
		b[0] = typeStreamsBlockedUni
	}
	return 1 + putVarint(b[1:], f.streamLimit)
}

func decodeStreamsBlockedFrame(b []byte, bidi bool) (*streamsBlockedFrame, int, error) {
	f := &streamsBlockedFrame{bidi: bidi}
	n := getVarint(b, &f.streamLimit)
	if n == 0 {
		return nil, 0, needMore(1)
	}
	return f, n, nil
}
