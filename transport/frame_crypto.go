package transport

import "fmt"

// cryptoFrame carries a contiguous slice of one packet-number space's TLS
// handshake byte stream. Unlike streamFrame its Offset field is always
// present and there is no FIN: the handshake's end is signaled out of
// band, by the TLS layer completing.
type cryptoFrame struct {
	offset uint64
	data   []byte
}

func newCryptoFrame(data []byte, offset uint64) *cryptoFrame {
	return &cryptoFrame{data: data, offset: offset}
}

func (f *cryptoFrame) kind() frameKind { return kindCrypto }

func (f *cryptoFrame) belongsTo(space PacketSpace) bool {
	return space != SpaceZeroRTT
}

func (f *cryptoFrame) String() string {
	return fmt.Sprintf("frame_type=crypto offset=%d length=%d", f.offset, len(f.data))
}

func (f *cryptoFrame) encodedLen() int {
	return 1 + varintLen(f.offset) + varintLen(uint64(len(f.data))) + len(f.data)
}

func (f *cryptoFrame) maxEncodedLen() int { return f.encodedLen() }

func (f *cryptoFrame) encode(b []byte) int {
	off := 0
	b[off] = typeCrypto
	off++
	off += putVarint(b[off:], f.offset)
	off += putVarint(b[off:], uint64(len(f.data)))
	off += copy(b[off:], f.data)
	return off
}

func decodeCryptoFrame(b []byte) (*cryptoFrame, int, error) {
	f := &cryptoFrame{}
	off := 0
	n := getVarint(b[off:], &f.offset)
	if n == 0 {
		return nil, 0, needMore(1)
	}
	off += n
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
	return f, off, nil
}
