// Package client is the caller side of the CBC service.
//
// A Client speaks the service protocol over any Conn: an in-process
// mailbox endpoint, or a socket returned by Dial. Requests are strictly
// one at a time; each waits at most the client timeout for its reply.
//
//	c := client.New(conn)
//	s, err := c.Init(ctx, key, iv)
//	out, err := s.Encrypt(ctx, block)
//	err = s.Close(ctx)
//
// Service failures come back as *protocol.StatusError and match the
// protocol.Err* sentinels with errors.Is.
package client
