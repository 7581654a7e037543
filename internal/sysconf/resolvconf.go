package sysconf

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/lc/hostres/internal/filesys"
)

// DefaultResolvConf is where the OS keeps its DNS client configuration.
const DefaultResolvConf = "/etc/resolv.conf"

var (
	// ErrNoNameservers is returned when the configuration lists no nameserver.
	ErrNoNameservers = errors.New("no nameservers configured")
)

// ConfigError reports that the system DNS configuration could not be read.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("reading %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Reader produces a resolver configuration. The system implementation is
// returned by ReadResolvConf; tests substitute their own.
type Reader func() (ResolverConfig, ResolverOpts, error)

// ReadResolvConf returns a Reader that parses the resolv.conf file at path.
func ReadResolvConf(fsys filesys.ReadFS, path string) Reader {
	return func() (ResolverConfig, ResolverOpts, error) {
		raw, err := fsys.ReadFile(path)
		if err != nil {
			return ResolverConfig{}, ResolverOpts{}, &ConfigError{Path: path, Err: err}
		}
		cfg, opts, err := ParseResolvConf(raw)
		if err != nil {
			return ResolverConfig{}, ResolverOpts{}, &ConfigError{Path: path, Err: err}
		}
		return cfg, opts, nil
	}
}

// ParseResolvConf converts resolv.conf content into a configuration pair.
func ParseResolvConf(raw []byte) (ResolverConfig, ResolverOpts, error) {
	cc, err := dns.ClientConfigFromReader(bytes.NewReader(raw))
	if err != nil {
		return ResolverConfig{}, ResolverOpts{}, err
	}
	if len(cc.Servers) == 0 {
		return ResolverConfig{}, ResolverOpts{}, ErrNoNameservers
	}

	port := cc.Port
	if port == "" {
		port = DefaultPort
	}

	cfg := ResolverConfig{
		Nameservers: make([]string, 0, len(cc.Servers)),
		Search:      cc.Search,
		Ndots:       cc.Ndots,
		Protocol:    ProtocolUDP,
		IPStrategy:  IPv4AndIPv6,
	}
	for _, s := range cc.Servers {
		cfg.Nameservers = append(cfg.Nameservers, net.JoinHostPort(s, port))
	}

	opts := DefaultOpts()
	if cc.Timeout > 0 {
		opts.Timeout = time.Duration(cc.Timeout) * time.Second
	}
	if cc.Attempts > 0 {
		opts.Attempts = uint(cc.Attempts)
	}

	// ClientConfig does not carry these flags.
	for _, o := range options(raw) {
		switch o {
		case "rotate":
			opts.Rotate = true
		case "use-vc", "usevc", "tcp":
			cfg.Protocol = ProtocolTCP
		case "no-aaaa":
			cfg.IPStrategy = IPv4Only
		}
	}
	return cfg, opts, nil
}

func options(raw []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) > 1 && f[0] == "options" {
			out = append(out, f[1:]...)
		}
	}
	return out
}
