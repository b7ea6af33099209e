package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/oluceps/shadow-tls/config"
	"github.com/oluceps/shadow-tls/internal/sip003"
)

// RunSIP003 translates a SIP003 plugin invocation into the equivalent
// Config and dispatches to the matching mode, bypassing cobra flag
// parsing entirely.
func RunSIP003(ctx context.Context, logger *zap.Logger) error {
	args, err := sip003.FromEnviron()
	if err != nil {
		return err
	}

	cfg := &config.Config{
		Mode:       args.Mode,
		Listen:     args.Listen,
		ServerAddr: args.ServerAddr,
		SNI:        args.SNI,
		TLSAddr:    args.TLSAddr,
		Password:   args.Password,
	}

	switch args.Mode {
	case "client":
		return RunClient(ctx, logger, cfg)
	case "server":
		return RunServer(ctx, logger, cfg)
	default:
		return fmt.Errorf("cmd: unrecognized SIP003 mode %q", args.Mode)
	}
}
