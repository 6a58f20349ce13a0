package transport

import "sync"

// StreamMuxer owns every locally-initiated stream's send side and
// implements streamSource, round-robining across whichever stream last
// got to send so that one very chatty stream cannot starve the others.
// This adapts the connection-wide streams map pattern down to the pure
// send-side, data-source concern a PacketNumberSpace needs.
type StreamMuxer struct {
	mu       sync.Mutex
	isClient bool
	senders  map[uint64]*StreamSender
	order    []uint64 // insertion order, rotated as a ring for fairness
	cursor   int
}

func NewStreamMuxer(isClient bool) *StreamMuxer {
	return &StreamMuxer{isClient: isClient, senders: make(map[uint64]*StreamSender)}
}

// OpenStream creates the send side for a locally-initiated unidirectional
// stream and returns it for the caller to Write/Close/Reset. Calling it
// twice for the same id returns the existing sender. It panics if
// streamID is not unidirectional or was not initiated by this endpoint
// (per this endpoint's isClient role) -- a stream whose sender this
// muxer would own has no other valid identifier shape (spec.md §3's
// stream identifier bit layout, §4.5's "single unidirectional data
// stream" scope), so either condition failing is a programming error in
// the caller, the same discipline PacketNumberSpace.QueueFrame already
// applies to a frame/space mismatch.
func (m *StreamMuxer) OpenStream(streamID uint64) *StreamSender {
	if isStreamBidi(streamID) {
		panic("transport: OpenStream called with a bidirectional stream id")
	}
	if !isStreamLocal(streamID, m.isClient) {
		panic("transport: OpenStream called with a peer-initiated stream id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.senders[streamID]; ok {
		return s
	}
	s := NewStreamSender(streamID)
	m.senders[streamID] = s
	m.order = append(m.order, streamID)
	return s
}

// Sender looks up a stream's send side without creating one.
func (m *StreamMuxer) Sender(streamID uint64) (*StreamSender, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.senders[streamID]
	return s, ok
}

// trySendControl reports the first not-yet-queued RESET_STREAM frame among
// this muxer's streams, scanned in the order the streams were opened (not
// the rotating order writeStream uses), satisfying the packet-number
// space's "at most one framing decision" per call.
func (m *StreamMuxer) trySendControl() (Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		if rf, ok := m.senders[id].pendingResetFrame(); ok {
			return rf, true
		}
	}
	return nil, false
}

// commitControl marks the RESET_STREAM frame most recently offered by
// trySendControl as sent, so it is not offered again.
func (m *StreamMuxer) commitControl(f Frame) {
	rf, ok := f.(*resetStreamFrame)
	if !ok {
		return
	}
	m.mu.Lock()
	s, known := m.senders[rf.streamID]
	m.mu.Unlock()
	if known {
		s.markResetFrameQueued()
	}
}

// peekStream reports the stream id and offset the next writeStream call
// would use, scanning in the same round-robin order, without consuming
// anything.
func (m *StreamMuxer) peekStream() (streamID uint64, offset uint64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := len(m.order)
	for i := 0; i < count; i++ {
		idx := (m.cursor + i) % count
		id := m.order[idx]
		if off, ok := m.senders[id].peekOffset(); ok {
			return id, off, true
		}
	}
	return 0, 0, false
}

func (m *StreamMuxer) writeStream(b []byte) (streamID uint64, offset uint64, fin bool, n int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := len(m.order)
	for i := 0; i < count; i++ {
		idx := (m.cursor + i) % count
		id := m.order[idx]
		s := m.senders[id]
		if off, fin, n, ok := s.tryWrite(b); ok {
			m.cursor = (idx + 1) % count
			return id, off, fin, n, true
		}
	}
	return 0, 0, false, 0, false
}

func (m *StreamMuxer) onStreamAcked(streamID uint64, offset uint64, n int, fin bool) {
	m.mu.Lock()
	s, ok := m.senders[streamID]
	m.mu.Unlock()
	if ok {
		s.onAcked(offset, n, fin)
	}
}

func (m *StreamMuxer) onStreamLost(streamID uint64, offset uint64, n int, fin bool) {
	m.mu.Lock()
	s, ok := m.senders[streamID]
	m.mu.Unlock()
	if ok {
		s.onLost(offset, n, fin)
	}
}

// HandleFrame routes one inbound frame surfaced via PacketNumberSpace.OnFrame
// to the stream send side it concerns. It reports whether the frame was one
// this muxer owns; callers composing a full connection dispatch whatever it
// leaves unhandled (RESET_STREAM, CONNECTION_CLOSE, ...) elsewhere.
func (m *StreamMuxer) HandleFrame(f Frame) bool {
	mdf, ok := f.(*maxStreamDataFrame)
	if !ok {
		return false
	}
	m.mu.Lock()
	s, known := m.senders[mdf.streamID]
	m.mu.Unlock()
	if known {
		s.SetMaxStreamData(mdf.maximumData)
	}
	return true
}
