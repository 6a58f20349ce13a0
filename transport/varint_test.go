package transport

import "testing"

func TestVarintLen(t *testing.T) {
	cases := []struct {
		v uint64
		n int
	}{
		{0, 1}, {63, 1},
		{64, 2}, {16383, 2},
		{16384, 4}, {1073741823, 4},
		{1073741824, 8}, {varintMax, 8},
	}
	for _, c := range cases {
		if n := varintLen(c.v); n != c.n {
			t.Errorf("varintLen(%d) = %d, want %d", c.v, n, c.n)
		}
	}
}

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 37, 63, 64, 15293, 16383, 16384, 494878333, 1073741823, 1073741824, varintMax}
	for _, v := range values {
		b := make([]byte, 8)
		n := putVarint(b, v)
		if n != varintLen(v) {
			t.Fatalf("putVarint(%d) wrote %d bytes, want %d", v, n, varintLen(v))
		}
		var got uint64
		consumed := getVarint(b[:n], &got)
		if consumed != n || got != v {
			t.Fatalf("roundtrip %d: got %d consumed %d", v, got, consumed)
		}
	}
}

func TestVarintOverflow(t *testing.T) {
	b := make([]byte, 8)
	if n := putVarint(b, varintMax+1); n != 0 {
		t.Fatalf("putVarint(overflow) = %d, want 0", n)
	}
}

func TestVarintIncomplete(t *testing.T) {
	var v uint64
	if n := getVarint(nil, &v); n != 0 {
		t.Fatalf("getVarint(nil) = %d, want 0", n)
	}
	// First byte says 8-byte form, but only 3 bytes present.
	b := []byte{0xc0, 0x01, 0x02}
	if n := getVarint(b, &v); n != 0 {
		t.Fatalf("getVarint(short) = %d, want 0", n)
	}
}

func TestVarintAcceptsNonShortestForm(t *testing.T) {
	// RFC 9000 example: 0x4025 is a 2-byte encoding of 37, despite 37 fitting in 1 byte.
	var v uint64
	n := getVarint([]byte{0x40, 0x25}, &v)
	if n != 2 || v != 37 {
		t.Fatalf("getVarint(non-shortest) = (%d, %d), want (2, 37)", n, v)
	}
}
