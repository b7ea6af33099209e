//go:build !windows

package netutil

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// SupportsReusePort reports whether reusePortControl actually sets
// SO_REUSEPORT on this platform, as opposed to being a silent no-op.
func SupportsReusePort() bool { return true }

// reusePortControl sets SO_REUSEPORT on the listening socket so that
// multiple worker goroutines can each own an independent accept queue
// bound to the same address and port.
func reusePortControl(_, _ string, c syscall.RawConn) error {
	var setErr error
	err := c.Control(func(fd uintptr) {
		setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return setErr
}
