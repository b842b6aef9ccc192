// Package transport owns the resolver's outbound UDP and TCP sockets.
// Per spec.md §5, a single dedicated I/O loop performs non-blocking
// reads on these sockets; anything heavier than a demux (decode, cache
// writes, callbacks) happens off this package, on the caller's worker
// pool.
package transport

import (
	"errors"
	"net"
)

var (
	ErrClosed      = errors.New("transport: closed")
	ErrMessageSize = errors.New("transport: message exceeds transport limit")
)

// MaxUDPPayload is the unextended UDP payload limit this resolver uses
// (spec.md §6: no EDNS(0) advertised, so plain 512 bytes applies).
const MaxUDPPayload = 512

// MaxTCPPayload is the largest message a 2-byte length prefix can carry.
const MaxTCPPayload = 65535

// Dispatcher receives datagrams read off a transport's socket. Dispatch
// must return quickly — it is invoked directly on the I/O loop
// goroutine — and should hand heavier work (decode, callback
// execution) to a worker pool.
type Dispatcher interface {
	Dispatch(payload []byte, from net.Addr)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(payload []byte, from net.Addr)

func (f DispatcherFunc) Dispatch(payload []byte, from net.Addr) {
	f(payload, from)
}
