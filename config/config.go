// Package config holds the shadow-tls runtime configuration, sourced
// from CLI flags, an optional TOML profile and environment variables
// (via viper), in that order of precedence: a profile value replaces
// any field whose flag was not set explicitly, even one taken from the
// environment.
package config

import (
	"crypto/sha256"
	"time"
)

// Config is the fully-resolved set of arguments either CLI subcommand
// runs with, regardless of whether they came from flags, a TOML
// profile, or the SIP003 environment.
type Config struct {
	// Mode is "client" or "server".
	Mode string `mapstructure:"mode" toml:"mode"`

	Listen     string `mapstructure:"listen" toml:"listen"`
	ServerAddr string `mapstructure:"server" toml:"server"`
	SNI        string `mapstructure:"sni" toml:"sni"`
	TLSAddr    string `mapstructure:"tls" toml:"tls"`
	Password   string `mapstructure:"password" toml:"password"`

	Threads    int    `mapstructure:"threads" toml:"threads"`
	NoDelay    bool   `mapstructure:"nodelay" toml:"nodelay"`
	Nameserver string `mapstructure:"nameserver" toml:"nameserver"`

	// InsecureSkipVerify disables cover-certificate validation on the
	// client side. Never set in production; exists for testing against
	// a self-signed cover.
	InsecureSkipVerify bool `mapstructure:"insecure" toml:"insecure"`

	// PendingRecordWait bounds the server splicer's post-handshake
	// pending-record probe. Zero means use the package default.
	PendingRecordWait time.Duration `mapstructure:"pending-record-wait" toml:"pending_record_wait"`

	Debug bool `mapstructure:"debug" toml:"debug"`
}

// HMACKey derives the HMAC-SHA-1 key from Password: SHA-256(password).
func (c *Config) HMACKey() []byte {
	sum := sha256.Sum256([]byte(c.Password))
	return sum[:]
}
