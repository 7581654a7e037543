package sysconf

import (
	"sync"

	"github.com/lc/hostres/internal/filesys"
	"github.com/lc/hostres/internal/log"
)

// snapshot is the stored outcome of one Reader call. It is never
// modified after being stored; Invalidate drops it.
type snapshot struct {
	cfg  ResolverConfig
	opts ResolverOpts
	err  error
}

// Cache memoizes the outcome of a Reader, including failures.
// A failed read is returned to every caller until Invalidate is called.
type Cache struct {
	read Reader

	mu   sync.Mutex
	snap *snapshot
}

// NewCache returns an empty cache around read.
func NewCache(read Reader) *Cache {
	return &Cache{read: read}
}

// Seeded returns a cache that already holds cfg and opts and never reads
// from anywhere. It backs explicitly supplied configurations.
func Seeded(cfg ResolverConfig, opts ResolverOpts) *Cache {
	cfg = cfg.Clone()
	c := &Cache{
		snap: &snapshot{cfg: cfg.Clone(), opts: opts},
	}
	c.read = func() (ResolverConfig, ResolverOpts, error) {
		return cfg.Clone(), opts, nil
	}
	return c
}

// GetOrCompute returns the cached configuration, reading it first if the
// cache is empty. The read happens with the lock held, so concurrent first
// callers all observe the outcome of a single read.
func (c *Cache) GetOrCompute() (ResolverConfig, ResolverOpts, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snap == nil {
		cfg, opts, err := c.read()
		if err != nil {
			log.Warnf("sysconf: reading system DNS configuration: %v", err)
		} else {
			log.Debug("sysconf: loaded system DNS configuration",
				"nameservers", cfg.Nameservers, "search", cfg.Search)
		}
		c.snap = &snapshot{cfg: cfg, opts: opts, err: err}
	}
	if c.snap.err != nil {
		return ResolverConfig{}, ResolverOpts{}, c.snap.err
	}
	return c.snap.cfg.Clone(), c.snap.opts, nil
}

// Invalidate forgets the cached outcome; the next GetOrCompute reads again.
// Resolvers already built from an earlier snapshot are unaffected.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
}

var (
	_defaultOnce  sync.Once
	_defaultCache *Cache
)

// Default returns the process-wide cache backed by /etc/resolv.conf.
func Default() *Cache {
	_defaultOnce.Do(func() {
		_defaultCache = NewCache(ReadResolvConf(filesys.OS(), DefaultResolvConf))
	})
	return _defaultCache
}

// ReinitializeSystemConf invalidates the process-wide cache so the next
// lookup re-reads the OS configuration. Adapters that already built their
// resolver keep using it.
func ReinitializeSystemConf() {
	Default().Invalidate()
	log.Info("sysconf: system DNS configuration invalidated")
}
