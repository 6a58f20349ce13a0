package transport

import (
	"errors"
	"sync"
)

// senderState is the lifecycle of one stream's send side. Ready and Sending
// differ only in whether anything has been written yet; DataSent is entered
// as soon as the caller closes the stream, fixing its final size, whether
// or not every byte and the FIN have been handed to a packet yet; the FIN
// stays pending until tryWrite emits it. DataRecvd is reached once the peer has
// acknowledged all of it. Reset is orthogonal: Ready, Sending and DataSent
// can all be cut short into ResetSent, which settles into ResetRecvd once
// the RESET_STREAM frame carrying it is itself acknowledged.
type senderState uint8

const (
	senderReady senderState = iota
	senderSending
	senderDataSent
	senderDataRecvd
	senderResetSent
	senderResetRecvd
)

func (s senderState) String() string {
	switch s {
	case senderReady:
		return "ready"
	case senderSending:
		return "sending"
	case senderDataSent:
		return "data_sent"
	case senderDataRecvd:
		return "data_recvd"
	case senderResetSent:
		return "reset_sent"
	case senderResetRecvd:
		return "reset_recvd"
	default:
		return "unknown"
	}
}

var (
	// errStreamClosed is returned by Write once the stream has reached
	// DataSent or DataRecvd: the caller already declared its final size.
	errStreamClosed = errors.New("transport: write to a stream past Close")
	// errStreamReset is returned by Write and Close on a stream whose send
	// side has been abandoned.
	errStreamReset = errors.New("transport: stream was reset")
)

// StreamSender owns one stream's send-side byte buffer and lifecycle. It
// implements io.Writer and io.Closer directly; Reset provides the
// QUIC-specific abrupt-cancellation path neither of those interfaces has
// room for. Data handed off to packets is never discarded until acked, so
// the PacketNumberSpace driving retransmission can always recover the
// exact bytes of a lost range.
type StreamSender struct {
	mu sync.Mutex

	streamID uint64
	state    senderState

	data       []byte // every byte ever written; data[0] is stream offset 0
	sendOffset uint64 // offset up to which data has been handed to a packet at least once

	retransmit []pnRange // byte ranges due for resend, merged and offset-ascending
	finLost    bool
	finPending bool // Close has been called but FIN has not yet been handed to a packet

	finalSize    uint64
	hasFinalSize bool

	acked    []pnRange // merged set of byte ranges the peer has confirmed
	finAcked bool

	resetErrorCode uint64
	// resetFrameQueued is set the first time resetFrame's frame is handed
	// off to a packet-number space for transmission: after that, its fate
	// is tracked like any other pending control frame (requeued verbatim
	// by the space's own loss detection), so it must not be offered again.
	resetFrameQueued bool

	// maxStreamData is the peer-advertised flow-control credit: the
	// highest offset this stream may send. It starts unlimited because
	// this package does not parse transport parameters (that belongs to
	// the composing connection, per spec.md §1); a caller that does
	// parse them constrains it with SetMaxStreamData before any credit
	// should be assumed.
	maxStreamData uint64
}

const noStreamDataLimit = ^uint64(0)

func NewStreamSender(streamID uint64) *StreamSender {
	return &StreamSender{streamID: streamID, state: senderReady, maxStreamData: noStreamDataLimit}
}

// SetMaxStreamData raises this stream's flow-control credit in response to
// a received MaxStreamData frame. The first call replaces the unlimited
// default outright. After that, QUIC's MAX_STREAM_DATA is only ever a
// promise to raise the limit, so a stale or reordered frame carrying a
// smaller value than what is already in effect is ignored.
func (s *StreamSender) SetMaxStreamData(limit uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxStreamData == noStreamDataLimit || limit > s.maxStreamData {
		s.maxStreamData = limit
	}
}

// Write appends p to the stream. It fails once the stream has been closed
// or reset; otherwise every byte is accepted immediately; the flow control
// window only throttles how fast tryWrite releases it onto the wire.
func (s *StreamSender) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case senderDataSent, senderDataRecvd:
		return 0, errStreamClosed
	case senderResetSent, senderResetRecvd:
		return 0, errStreamReset
	}
	s.data = append(s.data, p...)
	if s.state == senderReady {
		s.state = senderSending
	}
	return len(p), nil
}

// Close declares the stream's final size: no further Write may succeed.
// It is idempotent once the stream has already reached DataSent or
// DataRecvd.
func (s *StreamSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case senderReady, senderSending:
		s.finalSize = uint64(len(s.data))
		s.hasFinalSize = true
		s.finPending = true
		s.state = senderDataSent
		return nil
	case senderDataSent, senderDataRecvd:
		return nil
	default:
		return errStreamReset
	}
}

// Reset abandons the stream's send side, reporting errorCode to the peer
// via RESET_STREAM. It is a no-op once the peer has already fully received
// the stream, and idempotent once already reset.
func (s *StreamSender) Reset(errorCode uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case senderReady, senderSending, senderDataSent:
		s.resetErrorCode = errorCode
		s.state = senderResetSent
		return nil
	case senderDataRecvd:
		return errStreamClosed
	default:
		return nil
	}
}

func (s *StreamSender) State() senderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// resetFrame builds the RESET_STREAM frame for a stream currently in
// ResetSent, or nil if it isn't. It does not consult or set
// resetFrameQueued: callers that need the one-shot handoff semantics use
// pendingResetFrame/markResetFrameQueued instead; this method exists for
// callers (and tests) that just want to inspect what the frame would be.
func (s *StreamSender) resetFrame() *resetStreamFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetFrameLocked()
}

func (s *StreamSender) resetFrameLocked() *resetStreamFrame {
	if s.state != senderResetSent {
		return nil
	}
	finalSize := s.sendOffset
	if s.hasFinalSize {
		finalSize = s.finalSize
	}
	return newResetStreamFrame(s.streamID, s.resetErrorCode, finalSize)
}

// pendingResetFrame reports this stream's RESET_STREAM frame only if it
// has never been handed off for transmission before; see resetFrameQueued.
func (s *StreamSender) pendingResetFrame() (*resetStreamFrame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resetFrameQueued {
		return nil, false
	}
	if rf := s.resetFrameLocked(); rf != nil {
		return rf, true
	}
	return nil, false
}

// markResetFrameQueued records that this stream's RESET_STREAM frame has
// been placed in a packet: pendingResetFrame will not offer it again, and
// from now on its fate is tracked the same way as any other pending
// control frame, by the packet-number space that sent it.
func (s *StreamSender) markResetFrameQueued() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetFrameQueued = true
}

// onResetAcked settles a reset stream into ResetRecvd once the peer has
// acknowledged the RESET_STREAM frame.
func (s *StreamSender) onResetAcked() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == senderResetSent {
		s.state = senderResetRecvd
	}
}

// tryWrite returns the next chunk of this stream's data ready to go into a
// packet, prioritizing ranges flagged for retransmission over new data,
// and new data over a standalone FIN. ok is false if the stream has
// nothing to send right now.
func (s *StreamSender) tryWrite(b []byte) (offset uint64, fin bool, n int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == senderResetSent || s.state == senderResetRecvd || len(b) == 0 {
		return 0, false, 0, false
	}

	if len(s.retransmit) > 0 {
		r := s.retransmit[0]
		size := int(r.size())
		if size > len(b) {
			size = len(b)
		}
		copy(b, s.data[r.smallest:r.smallest+uint64(size)])
		atStreamEnd := s.hasFinalSize && r.smallest+uint64(size) == s.finalSize
		if uint64(size) == r.size() {
			s.retransmit = s.retransmit[1:]
		} else {
			s.retransmit[0].smallest += uint64(size)
		}
		return r.smallest, atStreamEnd && s.finLost, size, true
	}

	if s.sendOffset < uint64(len(s.data)) {
		if s.sendOffset >= s.maxStreamData {
			return 0, false, 0, false // blocked on peer flow-control credit
		}
		remaining := s.data[s.sendOffset:]
		n := len(remaining)
		if n > len(b) {
			n = len(b)
		}
		if avail := s.maxStreamData - s.sendOffset; uint64(n) > avail {
			n = int(avail)
		}
		copy(b, remaining[:n])
		off := s.sendOffset
		s.sendOffset += uint64(n)
		reachedEnd := s.sendOffset == uint64(len(s.data))
		emitFin := reachedEnd && s.finPending
		if emitFin {
			s.finPending = false
		}
		return off, emitFin, n, true
	}

	if s.finPending {
		s.finPending = false
		return uint64(len(s.data)), true, 0, true
	}
	if s.finLost {
		s.finLost = false
		return uint64(len(s.data)), true, 0, true
	}
	return 0, false, 0, false
}

// peekOffset reports the offset tryWrite would hand out next, without
// consuming anything, mirroring tryWrite's own priority of retransmit
// ranges over new data over a standalone FIN. ok is false if the stream
// has nothing ready to send right now.
func (s *StreamSender) peekOffset() (offset uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == senderResetSent || s.state == senderResetRecvd {
		return 0, false
	}
	if len(s.retransmit) > 0 {
		return s.retransmit[0].smallest, true
	}
	if s.sendOffset < uint64(len(s.data)) {
		if s.sendOffset >= s.maxStreamData {
			return 0, false // blocked on peer flow-control credit
		}
		return s.sendOffset, true
	}
	if s.finPending || s.finLost {
		return uint64(len(s.data)), true
	}
	return 0, false
}

// onAcked reports that the peer has confirmed receiving n bytes starting
// at offset; fin reports whether this chunk carried the stream's end.
// Once every byte up to the final size plus the FIN are both accounted
// for, the sender settles into DataRecvd.
func (s *StreamSender) onAcked(offset uint64, n int, fin bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.acked = mergeRange(s.acked, pnRange{smallest: offset, largest: offset + uint64(n) - 1})
	}
	if fin {
		s.finAcked = true
	}
	if s.state == senderDataSent && s.finAcked && s.hasFinalSize && rangeCovers(s.acked, s.finalSize) {
		s.state = senderDataRecvd
	}
}

// onLost reports that a previously sent chunk did not arrive and needs
// retransmission.
func (s *StreamSender) onLost(offset uint64, n int, fin bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.retransmit = mergeRange(s.retransmit, pnRange{smallest: offset, largest: offset + uint64(n) - 1})
	}
	if fin {
		s.finLost = true
	}
}

// mergeRange inserts r into a sorted, non-overlapping set of ranges,
// merging it with any neighbor it touches or overlaps.
func mergeRange(ranges []pnRange, r pnRange) []pnRange {
	out := make([]pnRange, 0, len(ranges)+1)
	inserted := false
	for _, cur := range ranges {
		switch {
		case cur.largest+1 < r.smallest:
			out = append(out, cur)
		case r.largest+1 < cur.smallest:
			if !inserted {
				out = append(out, r)
				inserted = true
			}
			out = append(out, cur)
		default:
			if cur.smallest < r.smallest {
				r.smallest = cur.smallest
			}
			if cur.largest > r.largest {
				r.largest = cur.largest
			}
		}
	}
	if !inserted {
		out = append(out, r)
	}
	return out
}

// rangeCovers reports whether ranges (assumed sorted, non-overlapping,
// produced only by mergeRange) contain a contiguous prefix [0, size).
func rangeCovers(ranges []pnRange, size uint64) bool {
	if size == 0 {
		return true
	}
	for _, r := range ranges {
		if r.smallest == 0 && r.largest+1 >= size {
			return true
		}
	}
	return false
}
