package connect

import "sync/atomic"

// ConnectionGuard implements spec.md §4.1's guard against a second CONNECT
// on the same channel and the recovery spec.md §7's taxonomy names as the
// "Second CONNECT race". The transport/dispatch loop that owns a raw
// connection (out of scope per spec.md §1) creates one ConnectionGuard per
// accepted connection, before any CONNECT is decoded, and passes it to
// every call of Pipeline.Admit made for that connection.
//
// The original installs a pipeline handler
// (DisconnectClientOnConnectMessageHandler) immediately after accepting
// the first CONNECT; if that installation loses a race to a second
// CONNECT already in flight on the same channel, it re-dispatches the
// current packet to the head of the pipeline so the now-installed guard
// picks it up instead. This module has no netty-style handler pipeline to
// race against, so the two outcomes the original distinguishes — "install
// raced, retry" and "already installed, reject" — collapse into a single
// atomic compare-and-swap: whichever CONNECT arms the guard first
// proceeds, every other one is rejected outright.
type ConnectionGuard struct {
	armed atomic.Bool
}

// Arm installs the guard, reporting true if this call won the race and
// admission should proceed. A false result means a CONNECT already
// admitted (or is admitting) on this connection; the caller must not
// proceed with admission — spec.md §4.1 "do not proceed".
func (g *ConnectionGuard) Arm() bool {
	return g.armed.CompareAndSwap(false, true)
}
