package forger

import (
	"net"

	"github.com/oluceps/shadow-tls/internal/clienthello"
	"github.com/oluceps/shadow-tls/internal/record"
)

// helloRewriteConn wraps the socket to the server proxy. It intercepts
// the single Write call the TLS library makes for the outbound
// ClientHello record and overwrites session_id with the HMAC
// authenticator before the bytes reach the wire; every other Write
// passes through untouched.
type helloRewriteConn struct {
	net.Conn
	key     []byte
	rewrote bool
}

func newHelloRewriteConn(c net.Conn, key []byte) *helloRewriteConn {
	return &helloRewriteConn{Conn: c, key: key}
}

func (c *helloRewriteConn) Write(p []byte) (int, error) {
	if c.rewrote {
		return c.Conn.Write(p)
	}

	rewritten, ok := rewriteClientHelloRecord(p, c.key)
	if !ok {
		return c.Conn.Write(p)
	}
	c.rewrote = true
	if _, err := c.Conn.Write(rewritten); err != nil {
		return 0, err
	}
	return len(p), nil
}

// rewriteClientHelloRecord returns a copy of wire with the ClientHello's
// session_id auth bytes embedded, if wire is a single well-formed
// Handshake record whose body is a ClientHello. ok is false for any
// other shape of input, in which case the caller must write wire
// unchanged.
func rewriteClientHelloRecord(wire []byte, key []byte) (out []byte, ok bool) {
	const headerLen = 5
	if len(wire) < headerLen {
		return nil, false
	}
	if record.ContentType(wire[0]) != record.ContentTypeHandshake {
		return nil, false
	}
	declared := int(wire[3])<<8 | int(wire[4])
	if declared != len(wire)-headerLen {
		return nil, false
	}
	body := wire[headerLen:]
	if len(body) == 0 || body[0] != 0x01 {
		return nil, false
	}

	out = make([]byte, len(wire))
	copy(out, wire)
	if err := clienthello.EmbedAuth(key, out[headerLen:]); err != nil {
		return nil, false
	}
	return out, true
}
