package transport

import "testing"

func TestPaddingRoundTrip(t *testing.T) {
	f := newPaddingFrame(3)
	b := make([]byte, f.encodedLen())
	n := f.encode(b)
	if n != 3 || b[0] != 0 || b[1] != 0 || b[2] != 0 {
		t.Fatalf("encode = %v", b[:n])
	}
	got, consumed, err := decodePaddingFrame(b[1:])
	if err != nil {
		t.Fatal(err)
	}
	if got.n != 3 || consumed != 2 {
		t.Fatalf("decode n=%d consumed=%d", got.n, consumed)
	}
}

func TestPingRoundTrip(t *testing.T) {
	f := &pingFrame{}
	b := make([]byte, f.encodedLen())
	f.encode(b)
	if b[0] != typePing {
		t.Fatalf("encode = %v", b)
	}
	if !f.belongsTo(SpaceInitial) || !f.belongsTo(SpaceOneRTT) {
		t.Fatal("ping must be valid in every space")
	}
}
