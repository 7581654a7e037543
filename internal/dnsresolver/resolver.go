// Package dnsresolver is the resolver engine behind hostres. It speaks
// DNS to the configured nameservers with github.com/miekg/dns, querying
// A and AAAA records concurrently with retries and a per-attempt timeout.
package dnsresolver

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/lc/hostres/internal/sysconf"
)

var (
	// ErrNoRecords is returned when no DNS records are found for a hostname.
	ErrNoRecords = errors.New("no records found")
	// ErrEmptyMsg is returned when the DNS response message is empty.
	ErrEmptyMsg = errors.New("empty message")
	// ErrEmptyHostname is returned when an empty hostname is provided.
	ErrEmptyHostname = errors.New("empty hostname")
	// ErrNXDomain is returned when the nameserver reports the name does not exist.
	ErrNXDomain = errors.New("no such host")
	// ErrRcode is returned for any other unsuccessful response code.
	ErrRcode = errors.New("unsuccessful response code")
	// ErrNoResolvers is returned by NewFromConfig when no nameserver is configured.
	ErrNoResolvers = errors.New("no nameservers to query")
	// ErrBadResolver is returned by NewFromConfig for a malformed nameserver address.
	ErrBadResolver = errors.New("invalid nameserver address")
)

var _defaultResolver = "1.1.1.1:53"

var _ Clienter = (*Client)(nil)

// Clienter defines the interface for DNS resolution.
type Clienter interface {
	// LookupHost resolves a hostname to IPv4 & IPv6 addresses.
	LookupHost(ctx context.Context, hostname string) ([]net.IPAddr, error)
}

// Exchanger defines the interface for DNS message exchange.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, a string) (r *dns.Msg, rtt time.Duration, err error)
}

// Client implements the Clienter interface for DNS resolution.
// It is immutable after construction and safe for concurrent use.
type Client struct {
	Client    Exchanger
	Timeout   time.Duration // per exchange; the caller's ctx bounds the lookup
	Resolvers []string
	Retries   uint
	Search    []string
	Ndots     int
	Strategy  sysconf.IPStrategy
	Network   string
	Rotate    bool

	next atomic.Uint32
}

// Opt is a function option for configuring the Client.
type Opt func(r *Client)

// New creates a new Client with the given timeout and optional configurations.
// The returned Client is ready to use for DNS lookups.
func New(timeout time.Duration, opts ...Opt) *Client {
	res := &Client{
		Timeout:  timeout,
		Ndots:    sysconf.DefaultNdots,
		Strategy: sysconf.IPv4AndIPv6,
	}

	for _, o := range opts {
		o(res)
	}

	if res.Client == nil {
		res.Client = &dns.Client{
			Net:     res.Network,
			Timeout: res.Timeout,
		}
	}
	return res
}

// NewFromConfig builds a Client from a resolver configuration pair.
// It fails when the configuration names no usable nameserver.
func NewFromConfig(cfg sysconf.ResolverConfig, opts sysconf.ResolverOpts) (*Client, error) {
	if len(cfg.Nameservers) == 0 {
		return nil, ErrNoResolvers
	}
	for _, ns := range cfg.Nameservers {
		if _, _, err := net.SplitHostPort(ns); err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrBadResolver, ns, err)
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = sysconf.DefaultTimeout
	}
	var retries uint
	if opts.Attempts > 1 {
		retries = opts.Attempts - 1
	}
	network := ""
	if cfg.Protocol == sysconf.ProtocolTCP {
		network = "tcp"
	}

	return New(timeout,
		WithResolvers(cfg.Nameservers),
		WithRetries(retries),
		WithSearch(cfg.Search),
		WithNdots(cfg.Ndots),
		WithIPStrategy(cfg.IPStrategy),
		WithNetwork(network),
		WithRotate(opts.Rotate),
	), nil
}

// WithResolvers returns an option to set custom DNS resolvers.
// If not provided, the default resolver (1.1.1.1:53) will be used.
func WithResolvers(resolvers []string) Opt {
	return func(r *Client) {
		r.Resolvers = resolvers
	}
}

// WithTimeout returns an option to set a custom timeout for DNS queries.
// This overrides the timeout provided to New.
func WithTimeout(timeout time.Duration) Opt {
	return func(r *Client) {
		r.Timeout = timeout
	}
}

// WithRetries sets how many additional attempts a failed query gets.
func WithRetries(n uint) Opt {
	return func(r *Client) {
		r.Retries = n
	}
}

// WithSearch sets the search list used to expand relative names.
func WithSearch(search []string) Opt {
	return func(r *Client) {
		r.Search = search
	}
}

// WithNdots sets how many dots a name needs before it is tried as given
// ahead of the search list. Zero is a valid threshold.
func WithNdots(ndots int) Opt {
	return func(r *Client) {
		r.Ndots = ndots
	}
}

// WithIPStrategy restricts the address families queried.
func WithIPStrategy(s sysconf.IPStrategy) Opt {
	return func(r *Client) {
		if s != "" {
			r.Strategy = s
		}
	}
}

// WithNetwork selects the transport ("udp" when empty, or "tcp").
func WithNetwork(network string) Opt {
	return func(r *Client) {
		r.Network = network
	}
}

// WithRotate makes the client cycle through resolvers in order instead of
// picking one at random.
func WithRotate(rotate bool) Opt {
	return func(r *Client) {
		r.Rotate = rotate
	}
}

// LookupHost resolves a hostname to a slice of IP addresses.
// IPv4 answers come before IPv6 answers. If the hostname is already an IP
// address, it returns it directly. Relative names are expanded with the
// search list; the first candidate name that yields records wins.
func (r *Client) LookupHost(ctx context.Context, hostname string) ([]net.IPAddr, error) {
	// ensure we have a hostname
	if strings.TrimSpace(hostname) == "" {
		return nil, ErrEmptyHostname
	}

	// if hostname is an IP, return it as is.
	if ip := net.ParseIP(hostname); ip != nil {
		return []net.IPAddr{{IP: ip}}, nil
	}

	var errs error
	for _, name := range r.names(hostname) {
		addrs, err := r.lookupIPs(ctx, name)
		if err == nil {
			return addrs, nil
		}
		errs = multierr.Append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("dns lookup for %q: %w", hostname, errs)
}

// names returns the fully qualified candidates for host, in query order.
func (r *Client) names(host string) []string {
	cc := dns.ClientConfig{Search: r.Search, Ndots: r.Ndots}
	return cc.NameList(host)
}

func (r *Client) qtypes() []uint16 {
	switch r.Strategy {
	case sysconf.IPv4Only:
		return []uint16{dns.TypeA}
	case sysconf.IPv6Only:
		return []uint16{dns.TypeAAAA}
	default:
		return []uint16{dns.TypeA, dns.TypeAAAA}
	}
}

// lookupIPs resolves A and AAAA records concurrently.
// It returns every address that succeeded, or an aggregated
// error if every query fails.
func (r *Client) lookupIPs(ctx context.Context, name string) ([]net.IPAddr, error) {
	qtypes := r.qtypes()
	results := make([][]net.IPAddr, len(qtypes))
	errs := make([]error, len(qtypes))

	grp, gctx := errgroup.WithContext(ctx)
	for i, qt := range qtypes {
		grp.Go(func() error {
			// collect but don't cancel the peer query
			results[i], errs[i] = r.lookup(gctx, name, qt)
			return nil
		})
	}
	_ = grp.Wait()

	var ips []net.IPAddr
	for _, res := range results {
		ips = append(ips, res...)
	}
	if len(ips) == 0 {
		return nil, multierr.Combine(errs...)
	}
	return ips, nil
}

// lookup resolves qtype (A, AAAA, …) for host and returns the parsed
// IP answers. It retries r.Retries additional times before giving up.
func (r *Client) lookup(ctx context.Context, host string, qtype uint16) ([]net.IPAddr, error) {
	var lastErr error
	for attempt := uint(0); attempt <= r.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Fresh request each attempt: ExchangeContext mutates *dns.Msg
		req := &dns.Msg{}
		req.SetQuestion(dns.Fqdn(host), qtype)

		resp, err := r.exchange(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp == nil {
			return nil, ErrEmptyMsg
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
		case dns.RcodeNameError:
			return nil, fmt.Errorf("%w: %s", ErrNXDomain, host)
		default:
			lastErr = fmt.Errorf("%w: %s", ErrRcode, dns.RcodeToString[resp.Rcode])
			continue
		}

		return parseIPs(resp)
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("dns lookup failed for %q", host)
	}
	return nil, lastErr
}

// exchange sends req to the next nameserver, bounded by r.Timeout.
func (r *Client) exchange(ctx context.Context, req *dns.Msg) (*dns.Msg, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	resp, _, err := r.Client.ExchangeContext(ctx, req, r.getResolver())
	return resp, err
}

// parseIPs parses the DNS response and returns a slice of IPv4 & v6 addresses.
func parseIPs(resp *dns.Msg) ([]net.IPAddr, error) {
	if resp == nil {
		return nil, ErrEmptyMsg
	}

	var ips []net.IPAddr
	for _, r := range resp.Answer {
		switch record := r.(type) {
		case *dns.A:
			ips = append(ips, net.IPAddr{IP: record.A})
		case *dns.AAAA:
			ips = append(ips, net.IPAddr{IP: record.AAAA})
		}
	}

	if len(ips) == 0 {
		return nil, ErrNoRecords
	}

	return ips, nil
}

// getResolver returns the nameserver to send the next query to.
func (r *Client) getResolver() string {
	if len(r.Resolvers) == 0 {
		return _defaultResolver
	}
	if r.Rotate {
		n := r.next.Inc() - 1
		return r.Resolvers[n%uint32(len(r.Resolvers))]
	}

	// Use crypto/rand for secure random selection
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(r.Resolvers))))
	if err != nil {
		// Fall back to first resolver on error
		return r.Resolvers[0]
	}

	return r.Resolvers[n.Int64()]
}
