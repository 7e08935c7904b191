// Package transport implements the unframed byte-stream protocol the
// coordinator and worker use to exchange shards: one side writes, the
// other reads until it observes a zero-length read (the peer closing its
// write side, observed as EOF), and that's the entire protocol — no
// length prefix, no acknowledgment. This is "acceptable when the transfer
// is the only purpose of the connection" (design notes); any future
// bidirectional protocol on top of this package would need explicit
// framing.
//
// The receive side always reads into a buffer with its full length: Go
// slices carry their length, so a receive call cannot be handed a pointer
// size in place of the buffer size.
package transport

import (
	"io"
)

// BufferSize is the single copy-buffer size used by both the send and
// receive sides, overridable via --transport-buffer. The original
// implementation used a 1000-byte send buffer on the coordinator and a
// 4096-byte receive buffer on the worker; design notes flag that asymmetry
// as unintentional, so this module unifies both ends on one tunable
// instead of reintroducing two constants.
var BufferSize = 4096

// Send copies all of r to w (typically a net.Conn) using the shared buffer
// size, returning the number of bytes copied. The caller is responsible
// for signaling end-of-stream afterwards, by closing the connection's
// write side (or the whole connection, if it is not reused).
func Send(w io.Writer, r io.Reader) (int64, error) {
	buf := make([]byte, BufferSize)
	return io.CopyBuffer(w, r, buf)
}

// Receive copies all of r (typically a net.Conn) to w until r reports
// end-of-stream (a zero-length read, i.e. the peer's FIN), returning the
// number of bytes copied.
func Receive(w io.Writer, r io.Reader) (int64, error) {
	buf := make([]byte, BufferSize)
	return io.CopyBuffer(w, r, buf)
}
