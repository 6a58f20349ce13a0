package transport

import "time"

// packetThreshold is the number of packets that must be acknowledged with
// higher packet numbers before an unacknowledged packet below them is
// declared lost by the packet-number threshold detector.
const packetThreshold = 3

// rcvdState remembers when one packet number was received and whether it
// was ack-eliciting; absence from the deque it lives in means the packet
// has not yet been received at all.
type rcvdState struct {
	ackEliciting bool
	receivedAt   time.Time
}

// streamChunk and cryptoChunk record enough about one piece of data carried
// by a sent packet to report its fate -- acked or lost -- back to whichever
// source produced it, without the space itself understanding stream or
// handshake semantics.
type streamChunk struct {
	streamID uint64
	offset   uint64
	n        int
	fin      bool
}

type cryptoChunk struct {
	offset uint64
	n      int
}

// inflightPacket is everything a PacketNumberSpace remembers about one
// packet it sent, until it learns the packet's fate.
type inflightPacket struct {
	sendTime     time.Time
	sentBytes    int
	ackEliciting bool

	hasAck     bool
	ackLargest uint64

	pureFrames   []Frame
	streamChunks []streamChunk
	cryptoChunks []cryptoChunk
}

// PacketNumberSpace is one packet-number, key and reliability domain of a
// connection -- Initial, Handshake, 0-RTT or 1-RTT -- with its own packet
// numbering, ACK bookkeeping and loss detection, independent of whatever
// other spaces the same connection maintains. CRYPTO framing is refused in
// the 0-RTT space, and ACK generation is refused there too: 0-RTT data is
// inherently unreliable, so the space never has anything of its own worth
// acknowledging.
type PacketNumberSpace struct {
	id PacketSpace

	crypto  cryptoSource
	streams streamSource

	nextPN uint64

	pending []Frame // control frames awaiting first transmission or retransmission

	inflight *indexedDeque[inflightPacket]

	disorderTolerance uint64

	largestAckedPN    uint64
	hasLargestAckedPN bool

	lossTime    time.Time
	hasLossTime bool

	rcvd *indexedDeque[rcvdState]

	largestRcvdAckEliciting    uint64
	hasLargestRcvdAckEliciting bool
	lastSyncedAckLargest       uint64
	newLostEvent               bool
	rcvdUnreachedPacket        bool
	timeToSync                 time.Time
	hasTimeToSync              bool
	maxAckDelay                time.Duration

	logEventFn func(LogEvent)
	onFrame    func(Frame) // frames with no space-local handling, e.g. RESET_STREAM, CONNECTION_CLOSE
}

// OnFrame registers a callback for every received frame this space does not
// fully handle itself (everything except ACK): control frames, stream and
// crypto data frames are all surfaced here so a caller composing several
// spaces into a connection can route them to stream receivers, the
// handshake feeder, or connection-level teardown.
func (s *PacketNumberSpace) OnFrame(fn func(Frame)) {
	s.onFrame = fn
}

// RecvFrame dispatches one decoded inbound frame: ACK frames are processed
// locally against inflight/loss-detection state, everything else is handed
// to onFrame after being logged.
func (s *PacketNumberSpace) RecvFrame(f Frame, now time.Time, rtt *RTTEstimator) {
	s.logEvent(newLogEventFrame(now, logEventFrameReceived, f))
	if ack, isAck := f.(*ackFrame); isAck {
		s.recvAck(ack, now, rtt)
		return
	}
	if s.onFrame != nil {
		s.onFrame(f)
	}
}

// OnLogEvent registers a callback invoked for every frame this space sends
// or receives, plus packet-level loss and acknowledgement bookkeeping. Pass
// nil to stop logging.
func (s *PacketNumberSpace) OnLogEvent(fn func(LogEvent)) {
	s.logEventFn = fn
}

func (s *PacketNumberSpace) logEvent(e LogEvent) {
	if s.logEventFn != nil {
		s.logEventFn(e)
	}
}

// NewPacketNumberSpace constructs a space. crypto may be nil, in which case
// the space sends no CRYPTO data. streams is nil for the Initial and
// Handshake spaces, which never carry application data.
func NewPacketNumberSpace(id PacketSpace, crypto cryptoSource, streams streamSource) *PacketNumberSpace {
	return &PacketNumberSpace{
		id:          id,
		crypto:      crypto,
		streams:     streams,
		inflight:    newIndexedDeque[inflightPacket](),
		rcvd:        newIndexedDeque[rcvdState](),
		maxAckDelay: 25 * time.Millisecond,
	}
}

// Upgrade promotes a 0-RTT space to 1-RTT in place once the handshake
// confirms 1-RTT keys: packet numbers, inflight/rcvd tracking and every
// other bookkeeping scalar carry over untouched, since 0-RTT and 1-RTT
// share one packet-number sequence and this is only ever called on the
// space that was already serving it. It panics if called on any space
// other than 0-RTT, since that is a programming error in the caller.
func (s *PacketNumberSpace) Upgrade() {
	if s.id != SpaceZeroRTT {
		panic("transport: Upgrade called on a non-0-RTT space")
	}
	s.id = SpaceOneRTT
}

// QueueFrame schedules a control frame for transmission. It panics if the
// frame is not valid in this space: that is a programming error in the
// caller, never a recoverable condition.
func (s *PacketNumberSpace) QueueFrame(f Frame) {
	if !f.belongsTo(s.id) {
		panic("transport: frame does not belong to this packet-number space")
	}
	s.pending = append(s.pending, f)
}

// ExpectedPN is the next packet number this space expects to receive,
// used to size the packet number encoding of incoming packets.
func (s *PacketNumberSpace) ExpectedPN() uint64 {
	if largest, ok := s.rcvd.largest(); ok {
		return largest + 1
	}
	return 0
}

// RecordReceived records that packet pn was received at now, and updates
// the bookkeeping that drives needSendAck: an immediate ACK is due when a
// packet arrives out of order relative to prior ACKs (rcvdUnreachedPacket),
// or when enough higher packets have now arrived that a gap below them
// looks like a genuine loss rather than reordering (newLostEvent).
func (s *PacketNumberSpace) RecordReceived(pn uint64, ackEliciting bool, now time.Time) {
	s.rcvd.set(pn, rcvdState{ackEliciting: ackEliciting, receivedAt: now})
	if !ackEliciting {
		return
	}
	if !s.hasLargestRcvdAckEliciting || pn > s.largestRcvdAckEliciting {
		s.largestRcvdAckEliciting = pn
		s.hasLargestRcvdAckEliciting = true
		if s.largestRcvdAckEliciting >= packetThreshold {
			upper := s.largestRcvdAckEliciting - packetThreshold
			for p := upper; p > s.lastSyncedAckLargest; p-- {
				if _, ok := s.rcvd.get(p); !ok {
					s.newLostEvent = true
					break
				}
			}
		}
	}
	if pn < s.lastSyncedAckLargest {
		s.rcvdUnreachedPacket = true
	}
	if !s.hasTimeToSync {
		s.timeToSync = now.Add(s.maxAckDelay)
		s.hasTimeToSync = true
	}
}

// needSendAck reports whether this space has something worth acknowledging
// right now.
func (s *PacketNumberSpace) needSendAck(now time.Time) bool {
	if s.id == SpaceZeroRTT {
		return false
	}
	if s.newLostEvent || s.rcvdUnreachedPacket {
		return true
	}
	return s.hasTimeToSync && !now.Before(s.timeToSync)
}

// genAckFrame builds the ACK frame describing every packet number this
// space has received, as a descending list of contiguous ranges. It
// returns nil if nothing has been received yet.
func (s *PacketNumberSpace) genAckFrame(now time.Time) *ackFrame {
	largest, ok := s.rcvd.largest()
	if !ok {
		return nil
	}
	st, _ := s.rcvd.get(largest)
	delay := now.Sub(st.receivedAt)

	var ranges []pnRange
	s.rcvd.forEach(func(pn uint64, _ rcvdState) bool {
		if n := len(ranges); n > 0 && ranges[n-1].largest+1 == pn {
			ranges[n-1].largest = pn
		} else {
			ranges = append(ranges, pnRange{smallest: pn, largest: pn})
		}
		return true
	})
	for i, j := 0, len(ranges)-1; i < j; i, j = i+1, j-1 {
		ranges[i], ranges[j] = ranges[j], ranges[i]
	}
	return newAckFrame(ranges, uint64(delay.Microseconds()))
}

// recvAck processes an incoming ACK frame: it retires newly-acknowledged
// packets from inflight tracking, feeds an RTT sample from the frame's own
// largest acknowledged packet when that packet was ack-eliciting and newly
// acked by this frame, and runs both the packet-threshold and
// time-threshold loss detectors over what remains.
// It reports the number of newly-acknowledged bytes, or ok=false if the
// frame acknowledged nothing new -- a stale or duplicate ACK.
func (s *PacketNumberSpace) recvAck(f *ackFrame, now time.Time, rtt *RTTEstimator) (ackedBytes int, ok bool) {
	largestAcked := f.largestAck
	if s.hasLargestAckedPN && s.largestAckedPN > largestAcked {
		return 0, false
	}
	s.largestAckedPN = largestAcked
	s.hasLargestAckedPN = true

	ackDelay := time.Duration(f.ackDelay) * time.Microsecond

	noNewlyAcked := true
	var rttSampleTime time.Time
	haveRTTSample := false

	for _, r := range f.pnRanges() {
		for pn := r.smallest; ; pn++ {
			if pkt, present := s.inflight.get(pn); present {
				s.inflight.remove(pn)
				noNewlyAcked = false
				if pkt.ackEliciting && pn == largestAcked {
					haveRTTSample = true
					rttSampleTime = pkt.sendTime
				}
				s.confirmPacket(pkt)
				s.logEvent(newLogEventPacketOutcome(now, logEventPacketAcked, s.id, pn, pkt.sentBytes))
				ackedBytes += pkt.sentBytes
			}
			if pn == r.largest {
				break
			}
		}
	}

	if noNewlyAcked {
		return 0, false
	}

	if haveRTTSample {
		rtt.update(now.Sub(rttSampleTime), ackDelay, s.id == SpaceOneRTT)
	}

	s.detectPacketThresholdLoss(now, largestAcked)
	s.detectTimeThresholdLoss(now, rtt)
	s.inflight.compact()
	return ackedBytes, true
}

// detectPacketThresholdLoss declares every inflight packet numbered at
// least packetThreshold below largestAcked to be lost: QUIC's packets are
// delivered in the order the network schedules them, not necessarily the
// order they were sent, but three full packets arriving out of turn is
// treated as decisive evidence of loss rather than simple reordering.
func (s *PacketNumberSpace) detectPacketThresholdLoss(now time.Time, largestAcked uint64) {
	if largestAcked < packetThreshold {
		return
	}
	bound := largestAcked - packetThreshold
	s.inflight.forEach(func(pn uint64, pkt inflightPacket) bool {
		if pn > bound {
			return false
		}
		s.onLost(pkt)
		s.inflight.remove(pn)
		s.logEvent(newLogEventPacketOutcome(now, logEventPacketLost, s.id, pn, pkt.sentBytes))
		return true
	})
}

// detectTimeThresholdLoss declares lost any inflight packet sent long
// enough ago that, had it survived, an ACK for it should have already
// arrived. It also tracks the earliest time a currently-surviving packet
// would cross that same threshold, for the caller to arm a loss-detection
// timer against.
func (s *PacketNumberSpace) detectTimeThresholdLoss(now time.Time, rtt *RTTEstimator) {
	lossDelay := rtt.lossDelay()
	cutoff := now.Add(-lossDelay)
	s.hasLossTime = false
	s.inflight.forEach(func(pn uint64, pkt inflightPacket) bool {
		if !pkt.sendTime.After(cutoff) {
			s.onLost(pkt)
			s.inflight.remove(pn)
			s.logEvent(newLogEventPacketOutcome(now, logEventPacketLost, s.id, pn, pkt.sentBytes))
			return true
		}
		deadline := pkt.sendTime.Add(lossDelay)
		if !s.hasLossTime || deadline.Before(s.lossTime) {
			s.lossTime = deadline
			s.hasLossTime = true
		}
		return true
	})
}

// NextLossDeadline reports the time detectTimeThresholdLoss should next be
// invoked, as computed by its most recent run.
func (s *PacketNumberSpace) NextLossDeadline() (time.Time, bool) {
	return s.lossTime, s.hasLossTime
}

// confirmPacket reports a packet's contents as successfully delivered.
func (s *PacketNumberSpace) confirmPacket(pkt inflightPacket) {
	if pkt.hasAck {
		s.trimReceivedBefore(pkt.ackLargest)
	}
	for _, c := range pkt.streamChunks {
		s.streams.onStreamAcked(c.streamID, c.offset, c.n, c.fin)
	}
	for _, c := range pkt.cryptoChunks {
		s.crypto.onCryptoAcked(c.offset, c.n)
	}
}

// onLost reports a packet's contents as lost: control frames go back on
// the pending queue verbatim, and data sources are told to make the bytes
// available for retransmission. A lost ACK frame needs no action -- the
// peer will simply hear about the same received packets again next time.
func (s *PacketNumberSpace) onLost(pkt inflightPacket) {
	s.pending = append(s.pending, pkt.pureFrames...)
	for _, c := range pkt.streamChunks {
		s.streams.onStreamLost(c.streamID, c.offset, c.n, c.fin)
	}
	for _, c := range pkt.cryptoChunks {
		s.crypto.onCryptoLost(c.offset, c.n)
	}
}

// trimReceivedBefore drops tracked received-packet state for packet
// numbers safely below largest: once a peer has confirmed (by acking an
// ACK frame we sent) that it has heard about everything up to largest,
// disorderTolerance is the only further margin kept for packets that might
// still be reordered in flight.
func (s *PacketNumberSpace) trimReceivedBefore(largest uint64) {
	bound := uint64(0)
	if largest > s.disorderTolerance {
		bound = largest - s.disorderTolerance
	}
	s.rcvd.forEach(func(pn uint64, _ rcvdState) bool {
		if pn >= bound {
			return false
		}
		s.rcvd.remove(pn)
		return true
	})
	s.rcvd.compact()
}

// frameHeaderReserve is the worst-case size of a frame's non-data fields
// (type byte plus up to three 8-byte varints), used to decide whether
// there is enough room left in a packet to bother asking a data source for
// more.
const frameHeaderReserve = 1 + 8 + 8 + 8

// TrySend assembles one packet's worth of frames into buf, trying the
// frame families in order: a due ACK first, then any pending control
// frames (including ones requeued by loss detection), then at most one
// stream control frame (RESET_STREAM), then CRYPTO data, then STREAM data.
// It returns the packet number assigned to what was written, and ok=false
// if there was nothing to send at all.
func (s *PacketNumberSpace) TrySend(now time.Time, buf []byte) (pn uint64, n int, ok bool) {
	off := 0
	var pkt inflightPacket
	ackEliciting := false

	if s.needSendAck(now) {
		if ack := s.genAckFrame(now); ack != nil && ack.encodedLen() <= len(buf)-off {
			off += ack.encode(buf[off:])
			pkt.hasAck = true
			pkt.ackLargest = ack.largestAck
			s.hasTimeToSync = false
			s.newLostEvent = false
			s.rcvdUnreachedPacket = false
			s.lastSyncedAckLargest = ack.largestAck
			s.logEvent(newLogEventFrame(now, logEventFrameSent, ack))
		}
	}

	for len(s.pending) > 0 {
		f := s.pending[0]
		if f.encodedLen() > len(buf)-off {
			break
		}
		off += f.encode(buf[off:])
		pkt.pureFrames = append(pkt.pureFrames, f)
		if isFrameAckEliciting(f.kind()) {
			ackEliciting = true
		}
		s.logEvent(newLogEventFrame(now, logEventFrameSent, f))
		s.pending = s.pending[1:]
	}

	if s.streams != nil {
		if cf, has := s.streams.trySendControl(); has && cf.encodedLen() <= len(buf)-off {
			off += cf.encode(buf[off:])
			pkt.pureFrames = append(pkt.pureFrames, cf)
			ackEliciting = true
			s.streams.commitControl(cf)
			s.logEvent(newLogEventFrame(now, logEventFrameSent, cf))
		}
	}

	if s.crypto != nil && s.id != SpaceZeroRTT {
		for len(buf)-off > frameHeaderReserve {
			scratch := make([]byte, len(buf)-off-frameHeaderReserve)
			offset, wrote, has := s.crypto.writeCrypto(scratch)
			if !has || wrote == 0 {
				break
			}
			cf := newCryptoFrame(scratch[:wrote], offset)
			off += cf.encode(buf[off:])
			pkt.cryptoChunks = append(pkt.cryptoChunks, cryptoChunk{offset: offset, n: wrote})
			s.logEvent(newLogEventFrame(now, logEventFrameSent, cf))
			ackEliciting = true
		}
	}

	if s.streams != nil {
		for {
			capacity := len(buf) - off
			streamID, offset, has := s.streams.peekStream()
			if !has {
				break
			}
			headerLen := 1 + varintLen(streamID)
			if offset > 0 {
				headerLen += varintLen(offset)
			}
			// Reserve room for the worst-case Length varint so the
			// eventual encode can never overflow buf; decideStreamLength
			// below then decides whether that room actually gets used.
			scratchCap := capacity - headerLen - 8
			if scratchCap <= 0 {
				break
			}
			scratch := make([]byte, scratchCap)
			gotID, gotOffset, fin, wrote, has := s.streams.writeStream(scratch)
			if !has || wrote == 0 {
				break
			}
			sf := newStreamFrame(gotID, scratch[:wrote], gotOffset, fin)
			decision, padLen := decideStreamLength(headerLen, wrote, capacity)
			switch decision {
			case lengthOmit:
				off += sf.encodeWithLength(buf[off:], false)
			case lengthPadFirst:
				if padLen > 0 {
					off += newPaddingFrame(padLen).encode(buf[off:])
				}
				off += sf.encodeWithLength(buf[off:], false)
			default:
				off += sf.encode(buf[off:])
			}
			pkt.streamChunks = append(pkt.streamChunks, streamChunk{streamID: gotID, offset: gotOffset, n: wrote, fin: fin})
			s.logEvent(newLogEventFrame(now, logEventFrameSent, sf))
			ackEliciting = true
		}
	}

	if off == 0 {
		return 0, 0, false
	}

	pkt.sendTime = now
	pkt.sentBytes = off
	pkt.ackEliciting = ackEliciting
	pn = s.nextPN
	s.nextPN++
	s.inflight.set(pn, pkt)
	return pn, off, true
}
