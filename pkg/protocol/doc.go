// Package protocol implements the corkboard line protocol: the HELLO
// handshake, request parsing, response rendering, and response reading.
//
// The codec is symmetric. Servers use Parse and Render; clients use
// Command.String to encode requests and ReadResponse to decode replies.
//
// # Framing
//
// Every request and every single-line response is one newline-terminated
// line. List responses are framed as
//
//	OK <n>
//	<n data lines>
//	END
//
// The count is authoritative. Readers consume exactly n data lines and then
// require the END sentinel; they never scan for END, because a note message
// may itself read "END".
//
// # Errors
//
// Malformed requests produce a *ParseError (INVALID_FORMAT or INVALID_INT)
// and never reach the board. Board validation failures are rendered with the
// board's own code. Both become an ERROR line and the connection continues.
package protocol
