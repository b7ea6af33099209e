package resolver

import (
	"context"
	"net"

	"github.com/oluceps/shadow-tls/internal/netutil"
)

// DialTCP resolves addr's host and dials it over TCP, applying nodelay
// if requested.
func (r *Resolver) DialTCP(ctx context.Context, addr string, nodelay bool) (net.Conn, error) {
	resolved, err := r.ResolveAddr(addr)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", resolved)
	if err != nil {
		return nil, err
	}
	if err := netutil.SetNoDelay(conn, nodelay); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
