//go:build windows

package netutil

import "syscall"

// SupportsReusePort reports whether reusePortControl actually sets
// SO_REUSEPORT on this platform, as opposed to being a silent no-op.
func SupportsReusePort() bool { return false }

// reusePortControl is a no-op on Windows, which has no SO_REUSEPORT
// equivalent exposed the same way; worker.Pool falls back to a single
// shared listener on platforms where this reports false.
func reusePortControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
