// Package lazyresolver adapts the DNS resolver engine to the "hostname in,
// socket addresses out" shape an HTTP client needs.
//
// Building the engine requires the system DNS configuration, so it is
// deferred until the first lookup and then shared by every lookup for
// the lifetime of the Adapter. Only the check-and-construct step is
// serialized; queries run concurrently on the shared engine.
package lazyresolver

import (
	"context"
	"fmt"

	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"

	"github.com/lc/hostres/internal/dnsresolver"
	"github.com/lc/hostres/internal/log"
	"github.com/lc/hostres/internal/sysconf"
)

// Resolver resolves a hostname to a single-pass sequence of addresses
// whose ports are zero. Implementations must be safe for concurrent use.
type Resolver interface {
	Resolve(ctx context.Context, host string) (*Addrs, error)
}

// Constructor builds a resolver engine from a configuration snapshot.
type Constructor func(sysconf.ResolverConfig, sysconf.ResolverOpts) (dnsresolver.Clienter, error)

// DefaultConstructor builds a miekg/dns backed engine.
func DefaultConstructor(cfg sysconf.ResolverConfig, opts sysconf.ResolverOpts) (dnsresolver.Clienter, error) {
	c, err := dnsresolver.NewFromConfig(cfg, opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

var _ Resolver = (*Adapter)(nil)

// Adapter is a Resolver that builds its engine on first use.
type Adapter struct {
	cache     *sysconf.Cache
	construct Constructor

	// sem guards engine. It is held only while checking for and building
	// the engine, never while a query is in flight.
	sem    *semaphore.Weighted
	engine dnsresolver.Clienter
	ready  atomic.Bool

	constructions     atomic.Int64
	constructFailures atomic.Int64
	lookups           atomic.Int64
	lookupFailures    atomic.Int64
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithCache sets the configuration cache. Defaults to sysconf.Default().
func WithCache(c *sysconf.Cache) Option {
	return func(a *Adapter) {
		a.cache = c
	}
}

// WithConfig uses an explicit configuration instead of reading the OS.
func WithConfig(cfg sysconf.ResolverConfig, opts sysconf.ResolverOpts) Option {
	return WithCache(sysconf.Seeded(cfg, opts))
}

// WithConstructor replaces the engine constructor.
func WithConstructor(fn Constructor) Option {
	return func(a *Adapter) {
		a.construct = fn
	}
}

// New returns an Adapter whose engine is not built yet. It fails if the
// DNS configuration cannot be read, so a broken environment is reported at
// startup rather than on the first request.
func New(opts ...Option) (*Adapter, error) {
	a := &Adapter{
		construct: DefaultConstructor,
		sem:       semaphore.NewWeighted(1),
	}
	for _, o := range opts {
		o(a)
	}
	if a.cache == nil {
		a.cache = sysconf.Default()
	}

	if _, _, err := a.cache.GetOrCompute(); err != nil {
		return nil, fmt.Errorf("error reading DNS system conf: %w", err)
	}
	return a, nil
}

// Resolve looks up host and returns its addresses with port 0.
// Engine construction errors and lookup errors are returned unchanged;
// a failed construction is retried by the next call.
func (a *Adapter) Resolve(ctx context.Context, host string) (*Addrs, error) {
	engine, err := a.handle(ctx)
	if err != nil {
		return nil, err
	}

	a.lookups.Inc()
	ips, err := engine.LookupHost(ctx, host)
	if err != nil {
		a.lookupFailures.Inc()
		log.Debug("lazyresolver: lookup failed", "host", host, "error", err)
		return nil, err
	}
	log.Debug("lazyresolver: resolved", "host", host, "addrs", len(ips))
	return newAddrs(ips), nil
}

// handle returns the shared engine, building it if this is the first
// successful call. The lock is released before handle returns.
func (a *Adapter) handle(ctx context.Context) (dnsresolver.Clienter, error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer a.sem.Release(1)

	if a.engine != nil {
		return a.engine, nil
	}

	cfg, opts, err := a.cache.GetOrCompute()
	if err != nil {
		return nil, fmt.Errorf("error reading DNS system conf: %w", err)
	}

	engine, err := a.construct(cfg, opts)
	if err != nil {
		a.constructFailures.Inc()
		log.Warnf("lazyresolver: building resolver: %v", err)
		return nil, err
	}
	a.engine = engine
	a.ready.Store(true)
	a.constructions.Inc()
	log.Info("lazyresolver: resolver ready", "nameservers", cfg.Nameservers)
	return engine, nil
}

// Ready reports whether the engine has been built.
func (a *Adapter) Ready() bool { return a.ready.Load() }

// Stats is a point-in-time view of the Adapter's counters.
type Stats struct {
	Constructions     int64 `json:"constructions"`
	ConstructFailures int64 `json:"construct_failures"`
	Lookups           int64 `json:"lookups"`
	LookupFailures    int64 `json:"lookup_failures"`
}

// Stats returns the current counters.
func (a *Adapter) Stats() Stats {
	return Stats{
		Constructions:     a.constructions.Load(),
		ConstructFailures: a.constructFailures.Load(),
		Lookups:           a.lookups.Load(),
		LookupFailures:    a.lookupFailures.Load(),
	}
}
