package transport

// cryptoSource lets a PacketNumberSpace pull pending TLS handshake bytes
// without knowing anything about the handshake itself, and learn the fate
// of bytes it already sent.
type cryptoSource interface {
	// writeCrypto writes up to len(b) bytes of unsent handshake data into
	// b, returning the stream offset of the first byte written and how
	// many bytes were written. ok is false when there is nothing pending.
	writeCrypto(b []byte) (offset uint64, n int, ok bool)
	// onCryptoAcked and onCryptoLost report what became of a chunk
	// previously returned by writeCrypto.
	onCryptoAcked(offset uint64, n int)
	onCryptoLost(offset uint64, n int)
}

// streamSource lets a PacketNumberSpace pull pending stream data across
// every open stream without owning stream state itself.
type streamSource interface {
	// writeStream writes one stream's pending data into b. It reports
	// which stream the chunk belongs to, the chunk's offset, whether the
	// chunk carries that stream's FIN, and how many bytes were written.
	// ok is false when no stream has anything ready to send.
	writeStream(b []byte) (streamID uint64, offset uint64, fin bool, n int, ok bool)
	// peekStream reports the stream id and offset the next writeStream
	// call would use, without consuming anything, so a caller can size its
	// buffer to leave exactly enough room for the frame header before
	// deciding whether the Length field can be omitted.
	peekStream() (streamID uint64, offset uint64, ok bool)
	onStreamAcked(streamID uint64, offset uint64, n int, fin bool)
	onStreamLost(streamID uint64, offset uint64, n int, fin bool)

	// trySendControl reports at most one ready-to-send stream control frame
	// (currently: RESET_STREAM for a stream that has been reset), without
	// yet committing to having sent it -- the space only calls
	// commitControl once the frame has actually been placed in a packet,
	// so a frame that doesn't fit this packet is offered again next time.
	trySendControl() (Frame, bool)
	// commitControl marks the frame most recently returned by
	// trySendControl as handed off for transmission. From then on its fate
	// (ack or loss) is tracked the same way as any other pending control
	// frame, by the packet-number space itself.
	commitControl(Frame)
}
