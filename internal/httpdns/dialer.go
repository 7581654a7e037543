// Package httpdns plugs a lazyresolver.Resolver into net/http by way of
// http.Transport.DialContext.
package httpdns

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"go.uber.org/multierr"

	"github.com/lc/hostres/internal/lazyresolver"
	"github.com/lc/hostres/internal/log"
)

// ContextDialer is the subset of *net.Dialer used to open connections.
type ContextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Dialer resolves hostnames with Resolver and dials the results in order
// until one connection succeeds.
type Dialer struct {
	Resolver lazyresolver.Resolver
	Dialer   ContextDialer
}

// NewDialer returns a Dialer backed by a net.Dialer with sane timeouts.
func NewDialer(r lazyresolver.Resolver) *Dialer {
	return &Dialer{
		Resolver: r,
		Dialer: &net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		},
	}
}

// DialContext has the signature of http.Transport.DialContext.
func (d *Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("httpdns: invalid port in %q: %w", address, err)
	}

	// Literal addresses never reach the resolver.
	if ip, err := netip.ParseAddr(host); err == nil {
		return d.Dialer.DialContext(ctx, network, netip.AddrPortFrom(ip, uint16(port)).String())
	}

	addrs, err := d.Resolver.Resolve(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("httpdns: resolving %q: %w", host, err)
	}

	var errs error
	for ap := range addrs.All() {
		target := netip.AddrPortFrom(ap.Addr(), uint16(port)).String()
		conn, err := d.Dialer.DialContext(ctx, network, target)
		if err == nil {
			return conn, nil
		}
		log.Debug("httpdns: dial failed", "host", host, "addr", target, "error", err)
		errs = multierr.Append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if errs == nil {
		return nil, fmt.Errorf("httpdns: no addresses for %q", host)
	}
	return nil, fmt.Errorf("httpdns: dialing %q: %w", host, errs)
}

// NewTransport clones http.DefaultTransport and routes its dials through r.
func NewTransport(r lazyresolver.Resolver) *http.Transport {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = NewDialer(r).DialContext
	return tr
}

// NewClient returns an http.Client whose connections use r for name resolution.
func NewClient(r lazyresolver.Resolver, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: NewTransport(r),
		Timeout:   timeout,
	}
}
