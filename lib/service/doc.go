// Package service runs the receive loop that bridges the message substrate to
// the request dispatcher.
//
// The loop has two states. In Idle it polls the substrate and, when nothing is
// queued, blocks in Wait; that is the only place the service suspends. In
// Processing it validates the message length, dispatches the request and sends
// the response to its sender before returning to Idle. Exactly one
// message is processed at a time, so the session table needs no locking.
package service
