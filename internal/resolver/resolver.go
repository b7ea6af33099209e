// Package resolver performs forward DNS lookups for the hosts of the
// addresses the proxy dials (--server, --tls). With a nameserver
// configured it queries it directly via miekg/dns, the way the
// teacher's DNS component (pkg/agent/proxy/dns.go) does; with none, it
// falls back to the OS resolver.
package resolver

import (
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// Resolver performs A lookups against a configured nameserver; AAAA
// records are not queried.
type Resolver struct {
	nameserver string
	timeout    time.Duration
	client     *dns.Client
}

// New returns a Resolver that queries nameserver (host:port, default
// port 53 if omitted). If nameserver is empty, the system resolver is
// used instead via net.DefaultResolver semantics (ResolveHost falls
// back to net.LookupHost).
func New(nameserver string, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Resolver{
		nameserver: nameserver,
		timeout:    timeout,
		client:     &dns.Client{Timeout: timeout},
	}
}

// ResolveHost returns the first A record for host from the configured
// nameserver, or, with no nameserver, the first address the system
// resolver returns (which may be IPv6). If host is already a literal
// IP address, it is returned unchanged.
func (r *Resolver) ResolveHost(host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}
	if r.nameserver == "" {
		ips, err := net.LookupHost(host)
		if err != nil {
			return "", err
		}
		if len(ips) == 0 {
			return "", fmt.Errorf("resolver: no addresses for %q", host)
		}
		return ips[0], nil
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	in, _, err := r.client.Exchange(msg, r.nameserver)
	if err != nil {
		return "", fmt.Errorf("resolver: query %q via %s: %w", host, r.nameserver, err)
	}
	for _, ans := range in.Answer {
		if a, ok := ans.(*dns.A); ok {
			return a.A.String(), nil
		}
	}
	return "", fmt.Errorf("resolver: no A record for %q", host)
}

// ResolveAddr resolves the host part of a host:port address, leaving
// the port untouched.
func (r *Resolver) ResolveAddr(hostport string) (string, error) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return "", fmt.Errorf("resolver: invalid address %q: %w", hostport, err)
	}
	ip, err := r.ResolveHost(host)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(ip, port), nil
}
