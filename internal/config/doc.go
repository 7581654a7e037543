// Package config provides configuration management for hostres.
//
// The package uses a Provider interface to abstract configuration loading, with the
// primary implementation being filesystem-based configuration via YAML files.
//
// # Configuration Structure
//
//	resolver:
//	  resolv_conf: /etc/resolv.conf   # OS DNS settings, used when nameservers is empty
//	  nameservers: []                 # explicit nameservers ("ip" or "ip:port")
//	  search: []                      # search domains for relative names
//	  ndots: 1
//	  timeout: 5s                     # bound on one lookup
//	  attempts: 2                     # tries per query
//	  rotate: false                   # round-robin nameservers
//	  ip_strategy: ipv4_and_ipv6      # or ipv4_only, ipv6_only
//	  protocol: udp                   # or tcp
//	http:
//	  timeout: 30s
//
// # Sources of DNS Settings
//
// When nameservers is empty the resolver is configured from the file named
// by resolv_conf and the other resolver keys are ignored. Otherwise the
// resolver section is an explicit configuration and the OS is never read;
// see Config.Explicit.
//
// # Defaults
//
// A missing file yields Default(). Keys missing from an existing file keep
// their default values.
//
// # Error Handling
//
//   - ErrInvalidConfig: validation failed; the message names the field
//   - ErrNoConfig: the file does not exist (Load returns defaults instead)
//
// Write stores a configuration with filesys.AtomicWrite, which is what the
// "hostres config init" command uses.
package config
