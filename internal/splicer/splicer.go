// Package splicer implements the server-side handshake splicer: it
// relays a real TLS handshake between an accepted client connection and
// a cover TLS server, authenticates the client via the HMAC embedded in
// ClientHello's session_id, and on success hands the connection off to
// a data backend instead of the cover server.
package splicer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oluceps/shadow-tls/internal/clienthello"
	"github.com/oluceps/shadow-tls/internal/proxyerr"
	"github.com/oluceps/shadow-tls/internal/record"
	"github.com/oluceps/shadow-tls/internal/worker"
)

// Dialer opens an outbound TCP connection to addr.
type Dialer func(ctx context.Context, addr string) (net.Conn, error)

// Config holds everything a Splicer needs, shared read-only across all
// connections it handles.
type Config struct {
	// HMACKey is SHA-256(password): see internal/clienthello.
	HMACKey []byte
	// CoverAddr is the real TLS server whose handshake is impersonated.
	CoverAddr string
	// BackendAddr is the data backend handed the connection after
	// authentication.
	BackendAddr string
	Dial        Dialer
	Logger      *zap.Logger
	// PendingRecordWait bounds how long the splicer waits, after the
	// client direction's handshake completes, to see whether one more record
	// is already in flight before declaring that direction quiescent.
	// See spec's Open Question on post-Finished record counting; this
	// implements the conservative "buffer up to one additional record"
	// resolution.
	PendingRecordWait time.Duration
}

// Splicer runs the server-side state machine for one connection at a
// time; it holds no per-connection mutable state itself.
type Splicer struct {
	cfg Config
}

// New returns a Splicer. cfg.Logger must not be nil.
func New(cfg Config) *Splicer {
	if cfg.PendingRecordWait <= 0 {
		cfg.PendingRecordWait = 50 * time.Millisecond
	}
	return &Splicer{cfg: cfg}
}

// Relay consumes incoming end to end: it runs the splicer state machine
// and returns when the connection is fully closed, on either graceful
// close or error. incoming is always closed by Relay before it returns.
func (s *Splicer) Relay(ctx context.Context, incoming net.Conn) error {
	defer incoming.Close()
	log := s.cfg.Logger.With(zap.String("remote", incoming.RemoteAddr().String()))
	if id := worker.ConnID(ctx); id != "" {
		log = log.With(zap.String("conn_id", id))
	}

	cover, err := s.cfg.Dial(ctx, s.cfg.CoverAddr)
	if err != nil {
		log.Warn("cover server unreachable", zap.Error(err))
		return proxyerr.New(proxyerr.KindConnectFailure, "splicer", err)
	}
	defer cover.Close()

	var firstRaw bytes.Buffer
	first, err := record.NewReader(io.TeeReader(incoming, &firstRaw)).ReadNext()
	if firstRaw.Len() > 0 {
		if _, werr := cover.Write(firstRaw.Bytes()); werr != nil {
			return proxyerr.New(proxyerr.KindIO, "splicer", werr)
		}
	}
	if err != nil {
		// First-record failures happen before S2 entry: the bytes read so
		// far were forwarded to cover above, and the connection is then
		// torn down here rather than pass-through continuing.
		log.Debug("first record malformed, degraded before auth", zap.Error(err))
		return nil
	}
	clientReader := record.NewReader(incoming)

	if !looksLikeClientHello(first) {
		log.Debug("first record is not a ClientHello, degrading to pass-through")
		return s.passthrough(incoming, cover, log)
	}

	if !clienthello.VerifyAuth(s.cfg.HMACKey, first.Payload) {
		log.Info("client hello auth failed, degrading to pass-through")
		return s.passthrough(incoming, cover, log)
	}

	log.Debug("client authenticated, relaying handshake")
	return s.authenticatedRelay(ctx, incoming, cover, clientReader, log)
}

func looksLikeClientHello(rec *record.Record) bool {
	return rec.Type == record.ContentTypeHandshake && len(rec.Payload) > 0 && rec.Payload[0] == 0x01
}

// passthrough degrades the connection to a transparent bidirectional
// TCP splice between incoming and cover: invariant (iv), the client
// never reaches the backend.
func (s *Splicer) passthrough(incoming, cover net.Conn, log *zap.Logger) error {
	var eg errgroup.Group
	eg.Go(func() error {
		_, err := io.Copy(cover, incoming)
		return err
	})
	eg.Go(func() error {
		_, err := io.Copy(incoming, cover)
		return err
	})
	if err := eg.Wait(); err != nil && !isClosedErr(err) {
		log.Debug("pass-through splice ended", zap.Error(err))
	}
	return nil
}

// authenticatedRelay implements S2_Authenticated through S4_Relaying:
// it relays handshake records on both directions while tracking
// per-direction completion, then hands off to the backend.
func (s *Splicer) authenticatedRelay(ctx context.Context, incoming, cover net.Conn, clientReader *record.Reader, log *zap.Logger) error {
	// The already-read, already-verified ClientHello record was forwarded
	// to cover by Relay before verification; nothing further to do for
	// it here.
	coverReader := record.NewReader(cover)

	var clientPending []byte
	var clientErr, coverErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		clientPending, clientErr = relayDirection(clientReader, cover, incoming, s.cfg.PendingRecordWait, true)
	}()
	go func() {
		defer wg.Done()
		_, coverErr = relayDirection(coverReader, incoming, cover, s.cfg.PendingRecordWait, false)
	}()
	wg.Wait()

	if clientErr != nil || coverErr != nil {
		// A malformed record or I/O error after S2 entry is fatal for
		// the connection.
		log.Info("handshake relay failed after authentication",
			zap.Error(firstNonNil(clientErr, coverErr)))
		return proxyerr.New(proxyerr.KindMalformedFrame, "splicer", firstNonNil(clientErr, coverErr))
	}

	log.Debug("handshake complete on both directions, handing off to backend",
		zap.Int("pending_bytes", len(clientPending)))

	backend, err := s.cfg.Dial(ctx, s.cfg.BackendAddr)
	if err != nil {
		log.Warn("backend unreachable", zap.Error(err))
		return proxyerr.New(proxyerr.KindConnectFailure, "splicer", err)
	}
	defer backend.Close()

	// S4_Relaying: cover is no longer needed.
	cover.Close()

	if len(clientPending) > 0 {
		if _, err := backend.Write(clientPending); err != nil {
			return proxyerr.New(proxyerr.KindIO, "splicer", err)
		}
	}

	var eg errgroup.Group
	eg.Go(func() error {
		_, err := io.Copy(backend, incoming)
		return err
	})
	eg.Go(func() error {
		_, err := io.Copy(incoming, backend)
		return err
	})
	if err := eg.Wait(); err != nil && !isClosedErr(err) {
		log.Debug("backend relay ended", zap.Error(err))
	}
	return nil
}

// relayDirection reads records one at a time from reader, forwarding
// each's raw bytes to fwd (as a side effect of the read itself, via
// ReadNextAndCopy) until this direction's handshake is judged complete
// (one record observed after the first ChangeCipherSpec). If
// bufferPending is true, it then makes one bounded attempt to read an
// already-in-flight extra record (conservatively treated as belonging
// to S4) and returns its raw bytes as pending data instead of
// forwarding it.
func relayDirection(reader *record.Reader, fwd io.Writer, deadliner net.Conn, wait time.Duration, bufferPending bool) ([]byte, error) {
	ccsSeen := false
	for {
		rec, err := reader.ReadNextAndCopy(fwd)
		if err != nil {
			if isEOFish(err) {
				return nil, nil
			}
			return nil, err
		}
		if rec.Type == record.ContentTypeChangeCipherSpec {
			ccsSeen = true
			continue
		}
		if ccsSeen {
			// This is the one post-CCS record that concludes the
			// handshake for this direction.
			break
		}
	}

	if !bufferPending {
		return nil, nil
	}
	return readPendingRecord(reader, deadliner, wait)
}

// readPendingRecord makes one bounded-time attempt to read a record
// that is already in flight beyond the handshake-finish record, per
// the conservative "one extra record" rule. A timeout means there was
// no such record; that is not an error.
func readPendingRecord(reader *record.Reader, conn net.Conn, wait time.Duration) ([]byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return nil, nil
	}
	defer conn.SetReadDeadline(time.Time{})

	rec, err := reader.ReadNext()
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, nil
		}
		if isEOFish(err) {
			return nil, nil
		}
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(rec.Raw)
	return buf.Bytes(), nil
}

func isEOFish(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

func firstNonNil(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
