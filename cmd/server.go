package cmd

import (
	"context"
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oluceps/shadow-tls/config"
	"github.com/oluceps/shadow-tls/internal/resolver"
	"github.com/oluceps/shadow-tls/internal/splicer"
	"github.com/oluceps/shadow-tls/internal/worker"
)

func newServerCommand(ctx context.Context, logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "server",
		Short:   "Run the server-side handshake splicer",
		Example: `shadow-tls server --listen 0.0.0.0:443 --server 127.0.0.1:8080 --tls cloud.example.com:443 --password hunter2`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd, "server")
			if err != nil {
				return err
			}
			return RunServer(ctx, logger, cfg)
		},
	}
	cmd.Flags().String("listen", "[::]:443", "address to accept disguised handshakes on")
	cmd.Flags().String("server", "", "data backend address")
	cmd.Flags().String("tls", "", "cover TLS server address (host:port)")
	cmd.Flags().String("password", "", "shared password")
	return cmd
}

// RunServer runs the server-side splicer pool to completion for a
// fully-resolved Config, whether it came from cobra flags or the
// SIP003 environment.
func RunServer(ctx context.Context, logger *zap.Logger, cfg *config.Config) error {
	res := resolver.New(cfg.Nameserver, 0)
	dial := func(ctx context.Context, addr string) (net.Conn, error) {
		return res.DialTCP(ctx, addr, cfg.NoDelay)
	}

	s := splicer.New(splicer.Config{
		HMACKey:           cfg.HMACKey(),
		CoverAddr:         cfg.TLSAddr,
		BackendAddr:       cfg.ServerAddr,
		Dial:              dial,
		Logger:            logger,
		PendingRecordWait: cfg.PendingRecordWait,
	})

	printBanner(logger, "server", map[string]string{
		"listen": cfg.Listen,
		"server": cfg.ServerAddr,
		"tls":    cfg.TLSAddr,
	})

	pool := &worker.Pool{
		Addr:    cfg.Listen,
		Threads: cfg.Threads,
		Logger:  logger,
		Handle:  s.Relay,
	}
	return pool.Run(ctx)
}
