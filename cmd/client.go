package cmd

import (
	"context"
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oluceps/shadow-tls/config"
	"github.com/oluceps/shadow-tls/internal/forger"
	"github.com/oluceps/shadow-tls/internal/resolver"
	"github.com/oluceps/shadow-tls/internal/worker"
)

func newClientCommand(ctx context.Context, logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "client",
		Short:   "Run the client-side handshake forger",
		Example: `shadow-tls client --listen 127.0.0.1:1080 --server 1.2.3.4:443 --sni cloud.example.com --password hunter2`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd, "client")
			if err != nil {
				return err
			}
			return RunClient(ctx, logger, cfg)
		},
	}
	cmd.Flags().String("listen", "[::1]:1080", "address to accept plaintext application connections on")
	cmd.Flags().String("server", "", "shadow-tls server address")
	cmd.Flags().String("sni", "", "TLS SNI sent in the forged ClientHello")
	cmd.Flags().String("password", "", "shared password")
	cmd.Flags().Bool("insecure", false, "skip cover-certificate verification (testing only)")
	return cmd
}

// RunClient runs the client-side forger pool to completion for a
// fully-resolved Config, whether it came from cobra flags or the
// SIP003 environment.
func RunClient(ctx context.Context, logger *zap.Logger, cfg *config.Config) error {
	res := resolver.New(cfg.Nameserver, 0)
	dial := func(ctx context.Context, addr string) (net.Conn, error) {
		return res.DialTCP(ctx, addr, cfg.NoDelay)
	}

	f := forger.New(forger.Config{
		ServerAddr:         cfg.ServerAddr,
		SNI:                cfg.SNI,
		HMACKey:            cfg.HMACKey(),
		Dial:               dial,
		Logger:             logger,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})

	printBanner(logger, "client", map[string]string{
		"listen": cfg.Listen,
		"server": cfg.ServerAddr,
		"sni":    cfg.SNI,
	})

	pool := &worker.Pool{
		Addr:    cfg.Listen,
		Threads: cfg.Threads,
		Logger:  logger,
		Handle:  f.Relay,
	}
	return pool.Run(ctx)
}
