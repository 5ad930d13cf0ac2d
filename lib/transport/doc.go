// Package transport bridges stream sockets (TCP or Unix) into the service
// mailbox.
//
// Every frame on the wire is a 4-byte big-endian length followed by that
// many bytes. The first frame a client sends is the handshake:
//
//	[version:1][secret:N]
//
// and the server answers with a single-byte frame, 0x00 when the client is
// accepted and 0x01 when it is rejected. Every later frame carries one
// service message; replies come back on the same connection.
//
// Each accepted connection is bound to its own mailbox identity, which is
// also the owner of every session handle the connection creates. A handle
// is therefore only usable on the connection that obtained it.
package transport
