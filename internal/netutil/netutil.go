// Package netutil provides the socket-option tweaks spec.md treats as
// external/trivial: TCP_NODELAY and SO_REUSEPORT-based listener
// sharing across worker goroutines.
package netutil

import (
	"context"
	"net"
)

// Listen opens a TCP listener on addr. When reusePort is true, the
// returned listener's socket has SO_REUSEPORT set, so a caller can open
// several independent listeners on the same addr — one per worker —
// each with its own accept queue (see §5's "OS-level socket sharing").
func Listen(ctx context.Context, addr string, reusePort bool) (net.Listener, error) {
	lc := net.ListenConfig{}
	if reusePort {
		lc.Control = reusePortControl
	}
	return lc.Listen(ctx, "tcp", addr)
}

// SetNoDelay sets or clears TCP_NODELAY on conn, if it is a *net.TCPConn.
// Non-TCP connections (used in tests) are left untouched.
func SetNoDelay(conn net.Conn, nodelay bool) error {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	return tc.SetNoDelay(nodelay)
}
