package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Load resolves a Config for one subcommand invocation: it binds cmd's
// flags through viper (which also picks up SHADOWTLS_-prefixed
// environment variables), then, if --config names a TOML profile,
// fills in any field the user did not explicitly pass on the command
// line from that file. Flags explicitly set on the command line always
// win over the profile.
func Load(cmd *cobra.Command, mode string) (*Config, error) {
	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("config: bind flags: %w", err)
	}
	v.SetEnvPrefix("SHADOWTLS")
	v.AutomaticEnv()

	cfg := &Config{Mode: mode}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal flags: %w", err)
	}

	path, err := cmd.Flags().GetString("config")
	if err != nil || path == "" {
		return cfg, nil
	}

	profile, err := loadProfile(path)
	if err != nil {
		return nil, err
	}
	applyProfileDefaults(cmd, cfg, profile)
	return cfg, nil
}

func loadProfile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read profile %q: %w", path, err)
	}
	profile := &Config{}
	if err := toml.Unmarshal(raw, profile); err != nil {
		return nil, fmt.Errorf("config: parse profile %q: %w", path, err)
	}
	return profile, nil
}

// applyProfileDefaults copies each field from profile into cfg, unless
// the corresponding flag was explicitly set on the command line.
func applyProfileDefaults(cmd *cobra.Command, cfg, profile *Config) {
	changed := cmd.Flags().Changed

	if profile.Listen != "" && !changed("listen") {
		cfg.Listen = profile.Listen
	}
	if profile.ServerAddr != "" && !changed("server") {
		cfg.ServerAddr = profile.ServerAddr
	}
	if profile.SNI != "" && !changed("sni") {
		cfg.SNI = profile.SNI
	}
	if profile.TLSAddr != "" && !changed("tls") {
		cfg.TLSAddr = profile.TLSAddr
	}
	if profile.Password != "" && !changed("password") {
		cfg.Password = profile.Password
	}
	if profile.Threads != 0 && !changed("threads") {
		cfg.Threads = profile.Threads
	}
	if profile.NoDelay && !changed("nodelay") {
		cfg.NoDelay = profile.NoDelay
	}
	if profile.Nameserver != "" && !changed("nameserver") {
		cfg.Nameserver = profile.Nameserver
	}
	if profile.InsecureSkipVerify && !changed("insecure") {
		cfg.InsecureSkipVerify = profile.InsecureSkipVerify
	}
	if profile.PendingRecordWait != 0 && !changed("pending-record-wait") {
		cfg.PendingRecordWait = profile.PendingRecordWait
	}
	if profile.Debug && !changed("debug") {
		cfg.Debug = profile.Debug
	}
}
