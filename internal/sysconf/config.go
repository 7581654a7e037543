// Package sysconf reads the operating system's DNS client configuration
// and keeps a process-wide snapshot of it, so the cost of parsing
// resolv.conf is paid once rather than per resolver or per lookup.
package sysconf

import (
	"fmt"
	"slices"
	"time"
)

// Protocol is the transport used to talk to nameservers.
type Protocol string

const (
	// ProtocolUDP queries nameservers over UDP.
	ProtocolUDP Protocol = "udp"
	// ProtocolTCP queries nameservers over TCP (resolv.conf "options use-vc").
	ProtocolTCP Protocol = "tcp"
)

// IPStrategy selects which address families a lookup asks for.
type IPStrategy string

const (
	IPv4AndIPv6 IPStrategy = "ipv4_and_ipv6"
	IPv4Only    IPStrategy = "ipv4_only"
	IPv6Only    IPStrategy = "ipv6_only"
)

// Defaults applied when the OS configuration leaves a value unset.
const (
	DefaultNdots    = 1
	DefaultTimeout  = 5 * time.Second
	DefaultAttempts = 2
	DefaultPort     = "53"
)

// ResolverConfig describes where and how to send queries.
// It is a value type: use Clone before handing it to code that may
// modify the slices.
type ResolverConfig struct {
	Nameservers []string   `yaml:"nameservers"`
	Search      []string   `yaml:"search"`
	Ndots       int        `yaml:"ndots"`
	Protocol    Protocol   `yaml:"protocol"`
	IPStrategy  IPStrategy `yaml:"ip_strategy"`
}

// Clone returns a deep copy of c.
func (c ResolverConfig) Clone() ResolverConfig {
	c.Nameservers = slices.Clone(c.Nameservers)
	c.Search = slices.Clone(c.Search)
	return c
}

// ResolverOpts tunes the resolver engine.
type ResolverOpts struct {
	Timeout  time.Duration `yaml:"timeout"`
	Attempts uint          `yaml:"attempts"`
	Rotate   bool          `yaml:"rotate"`
}

// DefaultOpts returns the options used when nothing else is configured.
func DefaultOpts() ResolverOpts {
	return ResolverOpts{
		Timeout:  DefaultTimeout,
		Attempts: DefaultAttempts,
	}
}

// ParseIPStrategy converts a configuration string to an IPStrategy.
// The empty string maps to IPv4AndIPv6.
func ParseIPStrategy(s string) (IPStrategy, error) {
	switch IPStrategy(s) {
	case "", IPv4AndIPv6:
		return IPv4AndIPv6, nil
	case IPv4Only, IPv6Only:
		return IPStrategy(s), nil
	}
	return "", fmt.Errorf("unknown ip strategy %q", s)
}

// ParseProtocol converts a configuration string to a Protocol.
// The empty string maps to ProtocolUDP.
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(s) {
	case "", ProtocolUDP:
		return ProtocolUDP, nil
	case ProtocolTCP:
		return ProtocolTCP, nil
	}
	return "", fmt.Errorf("unknown protocol %q", s)
}
