package transport

import "fmt"

// pnRange is an inclusive range of packet numbers, smallest <= largest.
type pnRange struct {
	smallest uint64
	largest  uint64
}

func (r pnRange) size() uint64 { return r.largest - r.smallest + 1 }

// ackFrame acknowledges receipt of packets up to largestAck, as a
// descending list of inclusive ranges: firstAckRange covers
// [largestAck-firstAckRange, largestAck], and each further element of
// ranges walks further back, separated by a gap of unacknowledged packets.
// This mirrors the wire format directly rather than a flattened range list,
// since gaps only make sense relative to the previous range's low end.
type ackFrame struct {
	largestAck    uint64
	ackDelay      uint64
	firstAckRange uint64
	ranges        []ackGap

	ecn               bool
	ect0, ect1, ecnCE uint64
}

type ackGap struct {
	gap uint64 // packets between the previous range's low end and this range's high end, minus one
	len uint64 // this range's length, minus one
}

// newAckFrame builds an ackFrame from a descending list of packet-number
// ranges (ranges[0] is the most recent). delay is the ACK Delay field, in
// the same unit (microseconds, scaled by the peer's ack_delay_exponent)
// the caller already encoded it in.
func newAckFrame(ranges []pnRange, delay uint64) *ackFrame {
	f := &ackFrame{
		largestAck:    ranges[0].largest,
		ackDelay:      delay,
		firstAckRange: ranges[0].size() - 1,
	}
	prevLow := ranges[0].smallest
	for _, r := range ranges[1:] {
		f.ranges = append(f.ranges, ackGap{
			gap: prevLow - r.largest - 2,
			len: r.size() - 1,
		})
		prevLow = r.smallest
	}
	return f
}

// pnRanges flattens the frame back into descending inclusive ranges.
func (f *ackFrame) pnRanges() []pnRange {
	out := make([]pnRange, 0, 1+len(f.ranges))
	high := f.largestAck
	low := high - f.firstAckRange
	out = append(out, pnRange{smallest: low, largest: high})
	for _, g := range f.ranges {
		high = low - g.gap - 2
		low = high - g.len
		out = append(out, pnRange{smallest: low, largest: high})
	}
	return out
}

// validateRanges walks the same gap/length arithmetic pnRanges uses,
// checking each step stays within range before committing to it: a
// malicious or corrupt encoding could otherwise drive low/high negative
// and wrap around as a huge uint64.
func (f *ackFrame) validateRanges() error {
	high := f.largestAck
	low := high - f.firstAckRange
	for _, g := range f.ranges {
		if g.gap+2 > low {
			return newError(FrameEncodingError, "ack range gap underflows packet number space")
		}
		high = low - g.gap - 2
		if g.len > high {
			return newError(FrameEncodingError, "ack range length underflows packet number space")
		}
		low = high - g.len
	}
	return nil
}

func (f *ackFrame) kind() frameKind           { return kindAck }
func (f *ackFrame) belongsTo(PacketSpace) bool { return true }

func (f *ackFrame) String() string {
	return fmt.Sprintf("frame_type=ack ack_delay=%d", f.ackDelay)
}

func (f *ackFrame) encodedLen() int {
	n := 1 + varintLen(f.largestAck) + varintLen(f.ackDelay) +
		varintLen(uint64(len(f.ranges))) + varintLen(f.firstAckRange)
	for _, g := range f.ranges {
		n += varintLen(g.gap) + varintLen(g.len)
	}
	if f.ecn {
		n += varintLen(f.ect0) + varintLen(f.ect1) + varintLen(f.ecnCE)
	}
	return n
}

func (f *ackFrame) maxEncodedLen() int { return f.encodedLen() }

func (f *ackFrame) encode(b []byte) int {
	if f.ecn {
		b[0] = typeAck | 0x01
	} else {
		b[0] = typeAck
	}
	off := 1
	off += putVarint(b[off:], f.largestAck)
	off += putVarint(b[off:], f.ackDelay)
	off += putVarint(b[off:], uint64(len(f.ranges)))
	off += putVarint(b[off:], f.firstAckRange)
	for _, g := range f.ranges {
		off += putVarint(b[off:], g.gap)
		off += putVarint(b[off:], g.len)
	}
	if f.ecn {
		off += putVarint(b[off:], f.ect0)
		off += putVarint(b[off:], f.ect1)
		off += putVarint(b[off:], f.ecnCE)
	}
	return off
}

func decodeAckFrame(b []byte, ecn bool) (*ackFrame, int, error) {
	f := &ackFrame{ecn: ecn}
	off := 0
	var rangeCount uint64
	fields := []*uint64{&f.largestAck, &f.ackDelay, &rangeCount, &f.firstAckRange}
	for _, fp := range fields {
		n := getVarint(b[off:], fp)
		if n == 0 {
			return nil, 0, needMore(1)
		}
		off += n
	}
	if f.firstAckRange > f.largestAck {
		return nil, 0, newError(FrameEncodingError, "ack first range exceeds largest acknowledged")
	}
	f.ranges = make([]ackGap, 0, rangeCount)
	for i := uint64(0); i < rangeCount; i++ {
		var gap, length uint64
		n := getVarint(b[off:], &gap)
		if n == 0 {
			return nil, 0, needMore(1)
		}
		off += n
		n = getVarint(b[off:], &length)
		if n == 0 {
			return nil, 0, needMore(1)
		}
		off += n
		f.ranges = append(f.ranges, ackGap{gap: gap, len: length})
	}
	if err := f.validateRanges(); err != nil {
		return nil, 0, err
	}
	if ecn {
		fields := []*uint64{&f.ect0, &f.ect1, &f.ecnCE}
		for _, fp := range fields {
			n := getVarint(b[off:], fp)
			if n == 0 {
				return nil, 0, needMore(1)
			}
			off += n
		}
	}
	return f, off, nil
}
