// Package config loads and validates the hostres configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lc/hostres/internal/filesys"
	"github.com/lc/hostres/internal/sysconf"
)

var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNoConfig is returned when the configuration file is not found.
	ErrNoConfig = errors.New("configuration file not found")
)

const (
	// DefaultConfigPath is the default path for the configuration file,
	// relative to the user's home directory.
	DefaultConfigPath = ".hostres/config.yaml"
	// DefaultHTTPTimeout bounds a whole HTTP exchange made by the CLI.
	DefaultHTTPTimeout = 30 * time.Second
	// DefaultDNSTimeout is the default timeout for one DNS lookup.
	DefaultDNSTimeout = sysconf.DefaultTimeout
)

// Config holds the application configuration.
type Config struct {
	Resolver ResolverConfig `yaml:"resolver"`
	HTTP     HTTPConfig     `yaml:"http"`
}

// ResolverConfig selects where DNS settings come from. When Nameservers is
// empty the OS configuration at ResolvConf is used and the remaining
// fields are ignored.
type ResolverConfig struct {
	ResolvConf  string        `yaml:"resolv_conf"`
	Nameservers []string      `yaml:"nameservers"`
	Search      []string      `yaml:"search"`
	Ndots       int           `yaml:"ndots"`
	Timeout     time.Duration `yaml:"timeout"`
	Attempts    uint          `yaml:"attempts"`
	Rotate      bool          `yaml:"rotate"`
	IPStrategy  string        `yaml:"ip_strategy"`
	Protocol    string        `yaml:"protocol"`
}

// HTTPConfig holds settings for the HTTP client built on the resolver.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Provider defines the interface for loading configuration.
type Provider interface {
	Load() (*Config, error)
}

// FSProvider implements Provider using the local filesystem.
type FSProvider struct {
	fs   filesys.ReadWriteFS
	path string
}

// Verify FSProvider implements Provider interface.
var _ Provider = (*FSProvider)(nil)

// DefaultPath returns ~/.hostres/config.yaml, or a path relative to the
// working directory when the home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not determine home directory: %v\n", err)
		home = ""
	}
	return filepath.Join(home, DefaultConfigPath)
}

// New creates a new configuration provider using the default configuration path.
func New() *FSProvider {
	return NewWithPath(filesys.OS(), DefaultPath())
}

// NewWithPath creates a new provider with a specific config path.
func NewWithPath(fs filesys.ReadWriteFS, path string) *FSProvider {
	return &FSProvider{
		fs:   fs,
		path: path,
	}
}

// Path returns the file the provider reads.
func (p *FSProvider) Path() string { return p.path }

// Default returns a default configuration with preset values.
// This is used when no configuration file exists.
func Default() *Config {
	return &Config{
		Resolver: ResolverConfig{
			ResolvConf: sysconf.DefaultResolvConf,
			Ndots:      sysconf.DefaultNdots,
			Timeout:    DefaultDNSTimeout,
			Attempts:   sysconf.DefaultAttempts,
			IPStrategy: string(sysconf.IPv4AndIPv6),
			Protocol:   string(sysconf.ProtocolUDP),
		},
		HTTP: HTTPConfig{
			Timeout: DefaultHTTPTimeout,
		},
	}
}

// Load loads the configuration from the provider's path. Keys missing
// from the file keep their default values.
func (p *FSProvider) Load() (*Config, error) {
	cfg, err := p.loadAndParse()
	if err != nil {
		if errors.Is(err, ErrNoConfig) {
			return Default(), nil
		}
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// Validate checks the configuration to ensure all required fields are set.
func (c *Config) Validate() error {
	r := c.Resolver
	if len(r.Nameservers) == 0 && strings.TrimSpace(r.ResolvConf) == "" {
		return errors.New("resolv_conf cannot be empty when no nameservers are set")
	}
	for _, ns := range r.Nameservers {
		if _, err := nameserverAddr(ns); err != nil {
			return err
		}
	}
	if r.Ndots < 0 || r.Ndots > 15 {
		return errors.New("ndots must be between 0 and 15")
	}
	if r.Timeout < time.Second {
		return errors.New("DNS timeout must be at least 1 second")
	}
	if r.Attempts < 1 {
		return errors.New("attempts must be at least 1")
	}
	if _, err := sysconf.ParseIPStrategy(r.IPStrategy); err != nil {
		return err
	}
	if _, err := sysconf.ParseProtocol(r.Protocol); err != nil {
		return err
	}
	if c.HTTP.Timeout < 0 {
		return errors.New("HTTP timeout cannot be negative")
	}
	return nil
}

// Explicit converts the resolver section into an explicit configuration
// pair. ok is false when no nameservers are configured, meaning the OS
// configuration should be used instead.
func (c *Config) Explicit() (cfg sysconf.ResolverConfig, opts sysconf.ResolverOpts, ok bool) {
	r := c.Resolver
	if len(r.Nameservers) == 0 {
		return cfg, opts, false
	}
	for _, ns := range r.Nameservers {
		addr, err := nameserverAddr(ns)
		if err != nil {
			continue
		}
		cfg.Nameservers = append(cfg.Nameservers, addr)
	}
	cfg.Search = append([]string(nil), r.Search...)
	cfg.Ndots = r.Ndots
	cfg.IPStrategy, _ = sysconf.ParseIPStrategy(r.IPStrategy)
	cfg.Protocol, _ = sysconf.ParseProtocol(r.Protocol)

	opts = sysconf.ResolverOpts{
		Timeout:  r.Timeout,
		Attempts: r.Attempts,
		Rotate:   r.Rotate,
	}
	return cfg, opts, true
}

// nameserverAddr accepts "ip" or "ip:port" and returns "ip:port".
func nameserverAddr(ns string) (string, error) {
	if ip := net.ParseIP(ns); ip != nil {
		return net.JoinHostPort(ns, sysconf.DefaultPort), nil
	}
	host, _, err := net.SplitHostPort(ns)
	if err != nil || net.ParseIP(host) == nil {
		return "", fmt.Errorf("nameserver %q must be an IP address with optional port", ns)
	}
	return ns, nil
}

func (p *FSProvider) loadAndParse() (*Config, error) {
	f, err := p.fs.Open(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoConfig
		}
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	cfg := Default()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding config file: %w", err)
	}

	return cfg, nil
}

// fileView is the on-disk shape written by Write; durations are stored in
// their string form so the file stays human-editable.
type fileView struct {
	Resolver struct {
		ResolvConf  string   `yaml:"resolv_conf"`
		Nameservers []string `yaml:"nameservers,omitempty"`
		Search      []string `yaml:"search,omitempty"`
		Ndots       int      `yaml:"ndots"`
		Timeout     string   `yaml:"timeout"`
		Attempts    uint     `yaml:"attempts"`
		Rotate      bool     `yaml:"rotate"`
		IPStrategy  string   `yaml:"ip_strategy"`
		Protocol    string   `yaml:"protocol"`
	} `yaml:"resolver"`
	HTTP struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"http"`
}

// Write atomically stores cfg as YAML at path, creating parent directories.
func Write(fs filesys.FileOps, path string, cfg *Config) error {
	var v fileView
	v.Resolver.ResolvConf = cfg.Resolver.ResolvConf
	v.Resolver.Nameservers = cfg.Resolver.Nameservers
	v.Resolver.Search = cfg.Resolver.Search
	v.Resolver.Ndots = cfg.Resolver.Ndots
	v.Resolver.Timeout = cfg.Resolver.Timeout.String()
	v.Resolver.Attempts = cfg.Resolver.Attempts
	v.Resolver.Rotate = cfg.Resolver.Rotate
	v.Resolver.IPStrategy = cfg.Resolver.IPStrategy
	v.Resolver.Protocol = cfg.Resolver.Protocol
	v.HTTP.Timeout = cfg.HTTP.Timeout.String()

	data, err := yaml.Marshal(&v)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := filesys.AtomicWrite(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
