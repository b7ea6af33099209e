// Package forger implements the client-side handshake forger: it drives
// a real TLS handshake to the server splicer (which transparently
// relays it to the cover server), embeds the HMAC authenticator into
// ClientHello along the way, then detaches from the TLS library and
// relays application bytes wrapped in (unencrypted) Application-Data
// framing over the same socket.
package forger

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oluceps/shadow-tls/internal/proxyerr"
	"github.com/oluceps/shadow-tls/internal/record"
	"github.com/oluceps/shadow-tls/internal/worker"
)

// tlsRecordVersion is the version field forger writes into the
// Application-Data records it synthesizes for the relay phase; peers
// never interpret it cryptographically.
const tlsRecordVersion = 0x0303

// Dialer opens an outbound TCP connection to addr.
type Dialer func(ctx context.Context, addr string) (net.Conn, error)

// Config holds everything a Forger needs, shared read-only across all
// connections it handles.
type Config struct {
	// ServerAddr is the server-side splicer's listen address.
	ServerAddr string
	// SNI is the TLS server name sent in ClientHello; it must match a
	// name the cover server's certificate actually serves.
	SNI string
	// HMACKey is SHA-256(password): see internal/clienthello.
	HMACKey []byte
	Dial    Dialer
	Logger  *zap.Logger
	// InsecureSkipVerify disables cover-certificate validation; useful
	// for testing against a self-signed cover, never for production.
	InsecureSkipVerify bool
}

// Forger runs the client-side state machine for one connection at a
// time; it holds no per-connection mutable state itself.
type Forger struct {
	cfg Config
}

// New returns a Forger. cfg.Logger must not be nil.
func New(cfg Config) *Forger {
	return &Forger{cfg: cfg}
}

// Relay consumes app end to end: it dials the server proxy, forges the
// handshake, then bridges application bytes until either side closes.
// app is always closed by Relay before it returns.
func (f *Forger) Relay(ctx context.Context, app net.Conn) error {
	defer app.Close()
	log := f.cfg.Logger.With(zap.String("remote", app.RemoteAddr().String()))
	if id := worker.ConnID(ctx); id != "" {
		log = log.With(zap.String("conn_id", id))
	}

	server, err := f.cfg.Dial(ctx, f.cfg.ServerAddr)
	if err != nil {
		log.Warn("server proxy unreachable", zap.Error(err))
		return proxyerr.New(proxyerr.KindConnectFailure, "forger", err)
	}

	wrapped := newHelloRewriteConn(server, f.cfg.HMACKey)
	tlsConn := tls.Client(wrapped, &tls.Config{
		ServerName:         f.cfg.SNI,
		InsecureSkipVerify: f.cfg.InsecureSkipVerify,
	})

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		server.Close()
		log.Warn("forged handshake failed", zap.Error(err))
		return proxyerr.New(proxyerr.KindMalformedFrame, "forger", err)
	}
	if !wrapped.rewrote {
		server.Close()
		err := errors.New("forger: ClientHello was never observed on the wire")
		log.Error("auth embedding never ran", zap.Error(err))
		return proxyerr.New(proxyerr.KindMalformedFrame, "forger", err)
	}

	// C1 -> C2: stop using the TLS library; the raw socket beneath it
	// carries unencrypted Application-Data-framed bytes from here on.
	raw := tlsConn.NetConn()
	defer raw.Close()
	log.Debug("forged handshake complete, relaying application bytes")

	return f.relayApplicationData(app, raw, log)
}

func (f *Forger) relayApplicationData(app net.Conn, raw net.Conn, log *zap.Logger) error {
	var eg errgroup.Group
	eg.Go(func() error {
		defer raw.Close()
		return framedCopy(raw, app)
	})
	eg.Go(func() error {
		defer app.Close()
		return unframedCopy(app, raw, log)
	})
	if err := eg.Wait(); err != nil && !isClosedErr(err) {
		log.Debug("application relay ended", zap.Error(err))
	}
	return nil
}

// framedCopy reads plaintext bytes from src in chunks of at most
// record.MaxFragment and writes each as a TLS Application-Data record
// to dst, until src is exhausted or either side errors.
func framedCopy(dst io.Writer, src io.Reader) error {
	buf := make([]byte, record.MaxFragment)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if werr := record.WriteRecord(dst, record.ContentTypeApplicationData, tlsRecordVersion, buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// unframedCopy reads TLS records from src and forwards the payload of
// each Application-Data record to dst. Any other well-formed record
// type is discarded with a warning; malformed records are returned as
// errors.
func unframedCopy(dst io.Writer, src io.Reader, log *zap.Logger) error {
	r := record.NewReader(src)
	for {
		rec, err := r.ReadNext()
		if err != nil {
			if isEOFish(err) {
				return nil
			}
			return err
		}
		if rec.Type != record.ContentTypeApplicationData {
			log.Warn("discarding unexpected record during relay", zap.String("content_type", rec.Type.String()))
			continue
		}
		if len(rec.Payload) == 0 {
			continue
		}
		if _, err := dst.Write(rec.Payload); err != nil {
			return err
		}
	}
}

func isEOFish(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
