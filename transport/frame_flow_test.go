package transport

import "testing"

func roundTripSimple(t *testing.T, f Frame, decode func([]byte) (Frame, int, error)) {
	t.Helper()
	b := make([]byte, f.encodedLen())
	n := f.encode(b)
	got, consumed, err := decode(b[1:])
	if err != nil {
		t.Fatal(err)
	}
	if consumed != n-1 {
		t.Fatalf("consumed %d, want %d", consumed, n-1)
	}
	_ = got
}

func TestMaxDataRoundTrip(t *testing.T) {
	f := newMaxDataFrame(1 << 20)
	roundTripSimple(t, f, func(b []byte) (Frame, int, error) { return decodeMaxDataFrame(b) })
}

func TestMaxStreamDataRoundTrip(t *testing.T) {
	f := newMaxStreamDataFrame(4, 1<<20)
	roundTripSimple(t, f, func(b []byte) (Frame, int, error) { return decodeMaxStreamDataFrame(b) })
}

func TestMaxStreamsTypeByteByDirection(t *testing.T) {
	uni := newMaxStreamsFrame(10, false)
	b := make([]byte, uni.encodedLen())
	uni.encode(b)
	if b[0] != typeMaxStreamsUni {
		t.Fatalf("unidirectional frame got type %#x", b[0])
	}
	bidi := newMaxStreamsFrame(10, true)
	b = make([]byte, bidi.encodedLen())
	bidi.encode(b)
	if b[0] != typeMaxStreamsBidi {
		t.Fatalf("bidirectional frame got type %#x", b[0])
	}
}

func TestDataBlockedRoundTrip(t *testing.T) {
	f := newDataBlockedFrame(5000)
	roundTripSimple(t, f, func(b []byte) (Frame, int, error) { return decodeDataBlockedFrame(b) })
}

func TestStreamDataBlockedRoundTrip(t *testing.T) {
	f := newStreamDataBlockedFrame(4, 5000)
	roundTripSimple(t, f, func(b []byte) (Frame, int, error) { return decodeStreamDataBlockedFrame(b) })
}

func TestStreamsBlockedRoundTrip(t *testing.T) {
	f := newStreamsBlockedFrame(10, true)
	roundTripSimple(t, f, func(b []byte) (Frame, int, error) {
		return decodeStreamsBlockedFrame(b, true)
	})
}

func TestFlowFramesExcludedFromInitialAndHandshake(t *testing.T) {
	frames := []Frame{
		newMaxDataFrame(1),
		newMaxStreamDataFrame(1, 1),
		newMaxStreamsFrame(1, true),
		newDataBlockedFrame(1),
		newStreamDataBlockedFrame(1, 1),
		newStreamsBlockedFrame(1, true),
	}
	for _, f := range frames {
		if f.belongsTo(SpaceInitial) || f.belongsTo(SpaceHandshake) {
			t.Errorf("%T must not be valid before 0-RTT keys exist", f)
		}
	}
}
