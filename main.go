// Package main is the entry point for shadow-tls.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oluceps/shadow-tls/cmd"
	"github.com/oluceps/shadow-tls/internal/sip003"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	debug := hasDebugFlag(os.Args[1:])
	logger := newLogger(debug)
	defer func() { _ = logger.Sync() }()

	var err error
	if sip003.Present() {
		err = cmd.RunSIP003(ctx, logger)
	} else {
		root := cmd.NewRoot(ctx, logger)
		err = root.Execute()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "shadow-tls:", err)
		return 1
	}
	return 0
}

// hasDebugFlag peeks at the raw arguments for --debug before cobra
// parses flags, so the logger can be built at the right level from
// the very first line it emits.
func hasDebugFlag(args []string) bool {
	for _, a := range args {
		if a == "--debug" {
			return true
		}
	}
	return false
}

func newLogger(debug bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		cfg.DisableStacktrace = true
		cfg.EncoderConfig.EncodeCaller = nil
	}
	logger, err := cfg.Build()
	if err != nil {
		// zap.NewDevelopmentConfig().Build() only fails on a bad sink;
		// stdout/stderr never are.
		panic(err)
	}
	return logger
}
