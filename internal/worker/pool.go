// Package worker implements the per-core accept-loop pool: one worker
// per CPU (by default), each owning its own accept loop on a listening
// socket shared with the others via SO_REUSEPORT. A connection, once
// accepted by a worker, is handled entirely on that worker.
package worker

import (
	"context"
	"net"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oluceps/shadow-tls/internal/netutil"
	"github.com/oluceps/shadow-tls/internal/proxyerr"
)

type connIDKey struct{}

// ConnID returns the correlation ID the pool assigned to the
// connection ctx was derived from, or "" if ctx didn't come from a
// Pool's accept loop.
func ConnID(ctx context.Context) string {
	id, _ := ctx.Value(connIDKey{}).(string)
	return id
}

// Handler processes one accepted connection end to end. It owns conn
// and must close it before returning.
type Handler func(ctx context.Context, conn net.Conn) error

// Pool runs Handle against every connection accepted on Addr, spread
// across Threads independent accept loops.
type Pool struct {
	Addr    string
	Threads int
	Logger  *zap.Logger
	Handle  Handler
}

// Run binds Threads listeners on Addr and serves until ctx is
// cancelled or a listener fails to bind, in which case it returns that
// error (a KindBindFailure proxyerr.Error) after tearing down every
// worker it already started.
func (p *Pool) Run(ctx context.Context) error {
	threads := p.Threads
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	if threads > 1 && !netutil.SupportsReusePort() {
		// No SO_REUSEPORT equivalent: binding Addr more than once would
		// just fail with "address already in use". A single accept loop
		// still fans accepted connections out to per-connection
		// goroutines, so this only costs one kernel-level accept queue,
		// not handling concurrency.
		p.Logger.Debug("platform has no SO_REUSEPORT, collapsing to one listener", zap.Int("requested_threads", threads))
		threads = 1
	}
	reusePort := threads > 1

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < threads; i++ {
		id := i
		g.Go(func() error {
			return p.runWorker(gctx, ctx, id, reusePort)
		})
	}
	return g.Wait()
}

// runWorker owns one listener and one accept loop. gctx is the
// errgroup's context (cancelled as soon as any worker's bind fails);
// shutdownCtx is the pool's own context, whose cancellation is the
// normal path to stop accepting.
func (p *Pool) runWorker(gctx, shutdownCtx context.Context, id int, reusePort bool) error {
	listener, err := netutil.Listen(gctx, p.Addr, reusePort)
	if err != nil {
		return proxyerr.New(proxyerr.KindBindFailure, "worker", err)
	}
	log := p.Logger.With(zap.Int("worker", id))
	log.Debug("worker listening", zap.String("addr", p.Addr), zap.Bool("reuse_port", reusePort))

	closeOnce := make(chan struct{})
	go func() {
		select {
		case <-shutdownCtx.Done():
		case <-gctx.Done():
		case <-closeOnce:
			return
		}
		listener.Close()
	}()
	defer close(closeOnce)
	defer listener.Close()

	var conns sync.WaitGroup
	defer conns.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if shutdownCtx.Err() != nil || gctx.Err() != nil {
				return nil
			}
			log.Warn("accept failed", zap.Error(err))
			continue
		}
		conns.Add(1)
		id := uuid.NewString()
		connCtx := context.WithValue(shutdownCtx, connIDKey{}, id)
		go func() {
			defer conns.Done()
			if err := p.Handle(connCtx, conn); err != nil {
				log.Debug("connection handler returned", zap.String("conn_id", id), zap.Error(err))
			}
		}()
	}
}
