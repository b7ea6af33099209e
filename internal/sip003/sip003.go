// Package sip003 synthesizes command-line arguments from the SIP003
// plugin environment-variable convention, which lets a shadowsocks
// host launch this binary in place of a direct connection.
package sip003

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// Args mirrors the equivalent CLI invocation. Mode selects which
// subcommand — "client" or "server" — the host wants run.
type Args struct {
	Mode string

	Listen     string
	ServerAddr string // client: the shadow-tls server; server: the data backend
	SNI        string // client only
	TLSAddr    string // server only: the cover TLS server
	Password   string
}

// Present reports whether the SIP003 environment is active. Hosts set
// SS_LOCAL_HOST and SS_REMOTE_HOST together whenever they launch a
// plugin this way; their absence means ordinary CLI flags apply.
func Present() bool {
	return os.Getenv("SS_LOCAL_HOST") != "" && os.Getenv("SS_REMOTE_HOST") != ""
}

// FromEnviron reads SS_REMOTE_HOST, SS_REMOTE_PORT, SS_LOCAL_HOST,
// SS_LOCAL_PORT and SS_PLUGIN_OPTIONS and returns the equivalent Args.
// Any malformed or missing field is an error; per spec, SIP003 parsing
// errors terminate startup.
func FromEnviron() (*Args, error) {
	localHost := os.Getenv("SS_LOCAL_HOST")
	localPort := os.Getenv("SS_LOCAL_PORT")
	remoteHost := os.Getenv("SS_REMOTE_HOST")
	remotePort := os.Getenv("SS_REMOTE_PORT")
	if localHost == "" || localPort == "" || remoteHost == "" || remotePort == "" {
		return nil, fmt.Errorf("sip003: SS_LOCAL_HOST, SS_LOCAL_PORT, SS_REMOTE_HOST and SS_REMOTE_PORT must all be set")
	}
	if _, err := strconv.Atoi(localPort); err != nil {
		return nil, fmt.Errorf("sip003: invalid SS_LOCAL_PORT %q: %w", localPort, err)
	}
	if _, err := strconv.Atoi(remotePort); err != nil {
		return nil, fmt.Errorf("sip003: invalid SS_REMOTE_PORT %q: %w", remotePort, err)
	}

	opts, err := parseOptions(os.Getenv("SS_PLUGIN_OPTIONS"))
	if err != nil {
		return nil, err
	}

	mode := opts["mode"]
	if mode == "" {
		mode = "client"
	}
	if mode != "client" && mode != "server" {
		return nil, fmt.Errorf("sip003: unrecognized mode %q in SS_PLUGIN_OPTIONS", mode)
	}

	password := opts["password"]
	if password == "" {
		return nil, fmt.Errorf(`sip003: SS_PLUGIN_OPTIONS is missing required key "password"`)
	}

	args := &Args{
		Mode:       mode,
		Listen:     net.JoinHostPort(localHost, localPort),
		ServerAddr: net.JoinHostPort(remoteHost, remotePort),
		Password:   password,
	}

	switch mode {
	case "client":
		sni := opts["sni"]
		if sni == "" {
			return nil, fmt.Errorf(`sip003: client mode requires "sni" in SS_PLUGIN_OPTIONS`)
		}
		args.SNI = sni
	case "server":
		tlsAddr := opts["tls"]
		if tlsAddr == "" {
			return nil, fmt.Errorf(`sip003: server mode requires "tls" in SS_PLUGIN_OPTIONS`)
		}
		args.TLSAddr = tlsAddr
	}
	return args, nil
}

// parseOptions parses SS_PLUGIN_OPTIONS' semicolon-separated key=value
// (or bare-flag) pairs — the shape every SIP003 plugin accepts.
func parseOptions(raw string) (map[string]string, error) {
	opts := make(map[string]string)
	if raw == "" {
		return opts, nil
	}
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		key := strings.TrimSpace(kv[0])
		if key == "" {
			return nil, fmt.Errorf("sip003: malformed option %q in SS_PLUGIN_OPTIONS", pair)
		}
		if len(kv) == 1 {
			opts[key] = "true"
			continue
		}
		opts[key] = kv[1]
	}
	return opts, nil
}
