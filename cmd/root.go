// Package cmd wires the cobra command tree: a root command carrying
// the global flags, with client and server subcommands implementing
// the two halves of the proxy pair.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRoot builds the shadow-tls command tree. ctx is threaded into
// every subcommand's RunE and is the cancellation signal every worker
// and connection handler observes.
func NewRoot(ctx context.Context, logger *zap.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "shadow-tls",
		Short:         "Disguise a proxied TCP stream as a vanilla TLS handshake to a cover server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().Int("threads", 0, "worker count (default: one per CPU)")
	root.PersistentFlags().Bool("nodelay", false, "set TCP_NODELAY on accepted and dialed sockets")
	root.PersistentFlags().String("nameserver", "", "DNS server for address resolution (host:port); empty uses the system resolver")
	root.PersistentFlags().Duration("pending-record-wait", 0, "server: bound on the post-handshake pending-record probe")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")
	root.PersistentFlags().String("config", "", "load arguments from a TOML profile; explicit flags still take precedence")

	root.AddCommand(newClientCommand(ctx, logger))
	root.AddCommand(newServerCommand(ctx, logger))
	return root
}
