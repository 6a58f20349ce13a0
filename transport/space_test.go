package transport

import (
	"testing"
	"time"
)

type fakeCrypto struct {
	pending []byte
	offset  uint64
	acked   []cryptoChunk
	lost    []cryptoChunk
}

func (c *fakeCrypto) writeCrypto(b []byte) (uint64, int, bool) {
	if len(c.pending) == 0 {
		return 0, 0, false
	}
	n := copy(b, c.pending)
	offset := c.offset
	c.offset += uint64(n)
	c.pending = c.pending[n:]
	return offset, n, true
}

func (c *fakeCrypto) onCryptoAcked(offset uint64, n int) {
	c.acked = append(c.acked, cryptoChunk{offset: offset, n: n})
}

func (c *fakeCrypto) onCryptoLost(offset uint64, n int) {
	c.lost = append(c.lost, cryptoChunk{offset: offset, n: n})
	c.pending = append(c.pending, make([]byte, n)...) // simplified requeue
}

type fakeStreams struct {
	pending []byte
	streamID uint64
	offset   uint64
	acked    []streamChunk
	lost     []streamChunk
}

func (s *fakeStreams) writeStream(b []byte) (uint64, uint64, bool, int, bool) {
	if len(s.pending) == 0 {
		return 0, 0, false, 0, false
	}
	n := copy(b, s.pending)
	offset := s.offset
	s.offset += uint64(n)
	s.pending = s.pending[n:]
	return s.streamID, offset, false, n, true
}

func (s *fakeStreams) peekStream() (uint64, uint64, bool) {
	if len(s.pending) == 0 {
		return 0, 0, false
	}
	return s.streamID, s.offset, true
}

func (s *fakeStreams) onStreamAcked(streamID uint64, offset uint64, n int, fin bool) {
	s.acked = append(s.acked, streamChunk{streamID: streamID, offset: offset, n: n, fin: fin})
}

func (s *fakeStreams) onStreamLost(streamID uint64, offset uint64, n int, fin bool) {
	s.lost = append(s.lost, streamChunk{streamID: streamID, offset: offset, n: n, fin: fin})
}

func (s *fakeStreams) trySendControl() (Frame, bool) { return nil, false }
func (s *fakeStreams) commitControl(Frame)           {}

func TestPacketNumberSpaceSendsCryptoThenStreamData(t *testing.T) {
	crypto := &fakeCrypto{pending: []byte("clienthello")}
	streams := &fakeStreams{pending: []byte("app data"), streamID: 4}
	sp := NewPacketNumberSpace(SpaceOneRTT, crypto, streams)

	buf := make([]byte, 1200)
	pn, n, ok := sp.TrySend(time.Now(), buf)
	if !ok || n == 0 {
		t.Fatalf("TrySend() = (%d, %d, %v), want data sent", pn, n, ok)
	}
	if pn != 0 {
		t.Fatalf("first packet number = %d, want 0", pn)
	}
	if len(crypto.pending) != 0 {
		t.Fatal("all pending crypto data should have been drained")
	}
	if len(streams.pending) != 0 {
		t.Fatal("all pending stream data should have been drained")
	}
}

func TestPacketNumberSpaceZeroRTTNeverSendsCrypto(t *testing.T) {
	crypto := &fakeCrypto{pending: []byte("would violate scope")}
	streams := &fakeStreams{pending: []byte("0-rtt data"), streamID: 0}
	sp := NewPacketNumberSpace(SpaceZeroRTT, crypto, streams)

	buf := make([]byte, 1200)
	_, _, ok := sp.TrySend(time.Now(), buf)
	if !ok {
		t.Fatal("expected 0-RTT space to still send stream data")
	}
	if len(crypto.pending) == 0 {
		t.Fatal("0-RTT space must never drain CRYPTO data")
	}
}

func TestPacketNumberSpaceAckRoundTrip(t *testing.T) {
	crypto := &fakeCrypto{}
	streams := &fakeStreams{pending: []byte("hello"), streamID: 0}
	sp := NewPacketNumberSpace(SpaceOneRTT, crypto, streams)

	now := time.Now()
	buf := make([]byte, 1200)
	pn, _, ok := sp.TrySend(now, buf)
	if !ok {
		t.Fatal("expected a packet to be sent")
	}

	rtt := NewRTTEstimator()
	ack := newAckFrame([]pnRange{{smallest: pn, largest: pn}}, 0)
	acked, ok := sp.recvAck(ack, now.Add(10*time.Millisecond), rtt)
	if !ok || acked == 0 {
		t.Fatalf("recvAck() = (%d, %v), want newly acked bytes", acked, ok)
	}
	if len(streams.acked) != 1 {
		t.Fatalf("expected one acked stream chunk, got %d", len(streams.acked))
	}
	if sp.inflight.len() != 0 {
		t.Fatal("acked packet should no longer be inflight")
	}
}

func TestPacketNumberSpaceDuplicateAckIsNoop(t *testing.T) {
	crypto := &fakeCrypto{}
	streams := &fakeStreams{pending: []byte("hello"), streamID: 0}
	sp := NewPacketNumberSpace(SpaceOneRTT, crypto, streams)
	now := time.Now()
	buf := make([]byte, 1200)
	pn, _, _ := sp.TrySend(now, buf)

	rtt := NewRTTEstimator()
	ack := newAckFrame([]pnRange{{smallest: pn, largest: pn}}, 0)
	sp.recvAck(ack, now, rtt)
	_, ok := sp.recvAck(ack, now, rtt)
	if ok {
		t.Fatal("a duplicate ACK must report no newly acked bytes")
	}
}

func TestPacketNumberSpacePacketThresholdLoss(t *testing.T) {
	crypto := &fakeCrypto{}
	streams := &fakeStreams{}
	sp := NewPacketNumberSpace(SpaceOneRTT, crypto, streams)
	sp.QueueFrame(newPingFrameForTest())

	now := time.Now()
	buf := make([]byte, 100)
	pn0, _, ok := sp.TrySend(now, buf)
	if !ok {
		t.Fatal("expected first packet to send")
	}

	// Send enough further packets to put pn0 beyond the packet threshold
	// once the last one is acknowledged (largestAcked - threshold > pn0).
	var lastPN uint64
	for i := 0; i < 4; i++ {
		sp.QueueFrame(newPingFrameForTest())
		lastPN, _, ok = sp.TrySend(now, buf)
		if !ok {
			t.Fatalf("expected packet %d to send", i+1)
		}
	}

	rtt := NewRTTEstimator()
	ack := newAckFrame([]pnRange{{smallest: lastPN, largest: lastPN}}, 0)
	_, ok = sp.recvAck(ack, now, rtt)
	if !ok {
		t.Fatal("expected the ack to be accepted")
	}
	if _, present := sp.inflight.get(pn0); present {
		t.Fatal("packet 0 should have been declared lost by the packet threshold")
	}
	if len(sp.pending) == 0 {
		t.Fatal("the lost packet's ping frame should have been requeued")
	}
	_ = pn0
}

// TestPacketNumberSpacePacketThresholdLossIncludesBoundary covers the
// pn == largestAcked-packetThreshold case, which
// TestPacketNumberSpacePacketThresholdLoss does not assert on.
func TestPacketNumberSpacePacketThresholdLossIncludesBoundary(t *testing.T) {
	crypto := &fakeCrypto{}
	streams := &fakeStreams{}
	sp := NewPacketNumberSpace(SpaceOneRTT, crypto, streams)

	now := time.Now()
	buf := make([]byte, 100)
	var pn0, lastPN uint64
	for i := 0; i < 4; i++ {
		sp.QueueFrame(newPingFrameForTest())
		pn, _, ok := sp.TrySend(now, buf)
		if !ok {
			t.Fatalf("expected packet %d to send", i)
		}
		if i == 0 {
			pn0 = pn
		}
		lastPN = pn
	}

	rtt := NewRTTEstimator()
	ack := newAckFrame([]pnRange{{smallest: lastPN, largest: lastPN}}, 0)
	if _, ok := sp.recvAck(ack, now, rtt); !ok {
		t.Fatal("expected the ack to be accepted")
	}
	if _, present := sp.inflight.get(pn0); present {
		t.Fatal("packet exactly at largestAcked-packetThreshold should be declared lost")
	}
}

// TestPacketNumberSpaceRTTSampleOnlyFromLargestAcked covers an ACK frame
// whose ranges cover a newly-acked packet below f.largestAck, where
// f.largestAck's own packet already left inflight on a prior ACK -- the RTT
// sample must not be taken from the lower packet in that case.
func TestPacketNumberSpaceRTTSampleOnlyFromLargestAcked(t *testing.T) {
	crypto := &fakeCrypto{}
	streams := &fakeStreams{}
	sp := NewPacketNumberSpace(SpaceOneRTT, crypto, streams)

	now := time.Now()
	buf := make([]byte, 100)
	sp.QueueFrame(newPingFrameForTest())
	pn0, _, _ := sp.TrySend(now, buf)
	sp.QueueFrame(newPingFrameForTest())
	pn1, _, _ := sp.TrySend(now, buf)

	rtt := NewRTTEstimator()
	// First ACK confirms pn1 (the frame's largestAck) after 100ms.
	firstAck := newAckFrame([]pnRange{{smallest: pn1, largest: pn1}}, 0)
	if _, ok := sp.recvAck(firstAck, now.Add(100*time.Millisecond), rtt); !ok {
		t.Fatal("expected the first ack to be accepted")
	}
	if rtt.smoothed != 100*time.Millisecond {
		t.Fatalf("smoothed after first sample = %v, want 100ms", rtt.smoothed)
	}

	// Second ACK reports the same largestAck (pn1, already retired) but now
	// also newly covers pn0, sent at the same time as pn1 -- after 5s. If
	// the RTT sample were wrongly taken from pn0, smoothed would move
	// sharply; it must instead stay unchanged since pn1 is no longer
	// present in inflight for this frame to sample from.
	secondAck := newAckFrame([]pnRange{{smallest: pn0, largest: pn1}}, 0)
	if _, ok := sp.recvAck(secondAck, now.Add(5*time.Second), rtt); !ok {
		t.Fatal("expected the second ack to be accepted (pn0 newly acked)")
	}
	if rtt.smoothed != 100*time.Millisecond {
		t.Fatalf("smoothed after second ack = %v, want unchanged at 100ms", rtt.smoothed)
	}
}

func newPingFrameForTest() Frame { return &pingFrame{} }

func TestPacketNumberSpaceLogsSentAndReceivedFrames(t *testing.T) {
	crypto := &fakeCrypto{}
	streams := &fakeStreams{}
	sp := NewPacketNumberSpace(SpaceOneRTT, crypto, streams)
	sp.QueueFrame(newPingFrameForTest())

	var sent []LogEvent
	sp.OnLogEvent(func(e LogEvent) { sent = append(sent, e) })

	now := time.Now()
	buf := make([]byte, 100)
	if _, _, ok := sp.TrySend(now, buf); !ok {
		t.Fatal("expected a packet to send")
	}
	if len(sent) != 1 || sent[0].Type != logEventFrameSent {
		t.Fatalf("sent events = %+v, want one frame_sent event", sent)
	}

	var delivered Frame
	sp.OnFrame(func(f Frame) { delivered = f })
	rtt := NewRTTEstimator()
	sp.RecvFrame(newPingFrameForTest(), now, rtt)
	if delivered == nil {
		t.Fatal("expected the ping frame to reach OnFrame")
	}
}

func TestPacketNumberSpaceUpgradeZeroRTTToOneRTT(t *testing.T) {
	sp := NewPacketNumberSpace(SpaceZeroRTT, &fakeCrypto{}, &fakeStreams{streamID: 0})
	sp.nextPN = 3 // simulate packets already sent in 0-RTT

	sp.Upgrade()

	if sp.id != SpaceOneRTT {
		t.Fatalf("id = %v, want SpaceOneRTT", sp.id)
	}
	if sp.nextPN != 3 {
		t.Fatalf("nextPN = %d, want unchanged at 3", sp.nextPN)
	}
}

func TestPacketNumberSpaceUpgradePanicsOnNonZeroRTT(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic upgrading a non-0-RTT space")
		}
	}()
	sp := NewPacketNumberSpace(SpaceOneRTT, &fakeCrypto{}, &fakeStreams{})
	sp.Upgrade()
}

func TestPacketNumberSpaceSendsResetStreamAsControlFrame(t *testing.T) {
	muxer := NewStreamMuxer(true)
	sender := muxer.OpenStream(2)
	sender.Write([]byte("abc"))
	if err := sender.Reset(7); err != nil {
		t.Fatalf("Reset() = %v", err)
	}

	sp := NewPacketNumberSpace(SpaceOneRTT, &fakeCrypto{}, muxer)
	now := time.Now()
	buf := make([]byte, 100)
	pn, n, ok := sp.TrySend(now, buf)
	if !ok || n == 0 {
		t.Fatal("expected a packet carrying the reset frame")
	}

	f, _, err := DecodeFrame(buf[:n])
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	rf, isReset := f.(*resetStreamFrame)
	if !isReset {
		t.Fatalf("got frame kind %v, want reset_stream", f.kind())
	}
	// No bytes were ever handed to a packet before Reset, so the final
	// size it reports is the current send offset: 0.
	if rf.streamID != 2 || rf.errorCode != 7 || rf.finalSize != 0 {
		t.Fatalf("reset frame = %+v, want stream 2 error 7 finalSize 0", rf)
	}

	// The next TrySend call must not offer the same frame again.
	pn2, n2, ok2 := sp.TrySend(now, buf)
	if ok2 {
		t.Fatalf("did not expect a second packet (pn=%d n=%d), reset frame should only be offered once", pn2, n2)
	}
	_ = pn
}
