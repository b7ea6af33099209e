package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"go.uber.org/zap"
)

// printBanner prints a short human-readable summary of the effective
// configuration to stdout, then logs the same fields at Info level —
// mirroring the original implementation's startup banner.
func printBanner(logger *zap.Logger, mode string, fields map[string]string) {
	title := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("%s shadow-tls %s\n", title("▶"), title(mode))

	zapFields := make([]zap.Field, 0, len(fields))
	for _, k := range []string{"listen", "server", "sni", "tls"} {
		v, ok := fields[k]
		if !ok {
			continue
		}
		fmt.Printf("  %s: %s\n", k, color.GreenString(v))
		zapFields = append(zapFields, zap.String(k, v))
	}
	logger.Info("starting "+mode, zapFields...)
}
