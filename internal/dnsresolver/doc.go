// Package dnsresolver provides the DNS resolver engine used by hostres.
//
// A Client is built either directly with functional options or from a
// system configuration snapshot with NewFromConfig:
//
//	cfg, opts, err := sysconf.Default().GetOrCompute()
//	if err != nil {
//		return err
//	}
//	client, err := dnsresolver.NewFromConfig(cfg, opts)
//	if err != nil {
//		return err
//	}
//	ips, err := client.LookupHost(ctx, "example.com")
//
// # Lookups
//
// For each candidate name (the search list expanded according to ndots, as
// resolv.conf describes) the client queries A and AAAA records
// concurrently. IPv4 answers are returned before IPv6 answers. The first
// candidate that yields at least one address wins; if every candidate
// fails the per-query errors are aggregated with go.uber.org/multierr and
// can be inspected with errors.Is:
//
//	if errors.Is(err, dnsresolver.ErrNXDomain) {
//		// name does not exist
//	}
//
// # Retries and Timeouts
//
// A query that fails at the transport level or with a SERVFAIL-like rcode
// is retried Retries more times against a freshly selected nameserver.
// NXDOMAIN and empty answers are final. Timeout bounds each attempt, so
// a nameserver that never answers costs one attempt, not the lookup. The
// whole LookupHost call is bounded only by the caller's context.
//
// # Nameserver Selection
//
// Nameservers are chosen at random for each query, or in round-robin order
// when the configuration carries "options rotate".
//
// A Client holds no mutable state besides the rotation counter and is safe
// for concurrent use.
package dnsresolver
