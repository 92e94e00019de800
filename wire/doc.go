// Package wire provides the low-level line protocol used to talk to a
// simple queue broker.
//
// The protocol is a strict ping-pong of CRLF framed ASCII lines. The client
// writes one command and reads exactly one reply before writing the next.
// Replies are never length prefixed, so a single read from the socket is
// treated as one logical reply, bounded by a configurable ceiling.
//
// # Framing
//
// FormatLine frames a command with a leading and trailing CRLF:
//
//	wire.WriteLine(conn, wire.StartConfig)       // "\r\nSTART_CONFIG\r\n"
//	wire.WriteLine(conn, wire.FormatSet("QUEUE", "jobs"))
//
// The message payload is the one exception: the encoded body and the
// END_MESSAGE terminator travel in a single write, see FormatPayload.
//
// # Reading replies
//
//	r := wire.NewReader(conn, wire.DefaultMaxResponseSize)
//	line, err := r.ReadLine()
//	if err != nil {
//	    return err
//	}
//	if err := wire.ExpectExact(line, wire.ReplyOK); err != nil {
//	    return err
//	}
//
// ExpectContains is used for replies that carry a value, such as
// "OK: (QUEUE=jobs)".
//
// # Error Handling
//
//   - ConnectionError: I/O failure, the socket is broken
//   - UnexpectedResponseError: the broker answered something else than the
//     protocol step requires; the socket is still open
//   - BrokerError: the broker explicitly rejected a step ("ERROR: ...")
//   - ErrResponseTooLarge: a reply filled the whole read buffer
//
// Use ShouldCloseConnection to decide whether the socket can still be used.
//
// # Thread Safety
//
// Reader is not safe for concurrent use. Callers own the socket for the
// whole write+read exchange.
package wire
