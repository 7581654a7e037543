package lazyresolver

import (
	"iter"
	"net"
	"net/netip"
)

// Addrs is the result of one lookup: a finite sequence of socket
// addresses that can be walked once. Every address has port 0; the
// caller supplies the real port. Addrs is not safe for concurrent use.
type Addrs struct {
	ips []net.IPAddr
	pos int
}

func newAddrs(ips []net.IPAddr) *Addrs {
	return &Addrs{ips: ips}
}

// Next returns the next address, or false once the sequence is exhausted.
func (a *Addrs) Next() (netip.AddrPort, bool) {
	for a.pos < len(a.ips) {
		ip := a.ips[a.pos]
		a.pos++

		addr, ok := netip.AddrFromSlice(ip.IP)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		if addr.Is6() && ip.Zone != "" {
			addr = addr.WithZone(ip.Zone)
		}
		return netip.AddrPortFrom(addr, 0), true
	}
	return netip.AddrPort{}, false
}

// Len returns the number of addresses not yet consumed.
func (a *Addrs) Len() int { return len(a.ips) - a.pos }

// All ranges over the remaining addresses, consuming them.
func (a *Addrs) All() iter.Seq[netip.AddrPort] {
	return func(yield func(netip.AddrPort) bool) {
		for {
			ap, ok := a.Next()
			if !ok || !yield(ap) {
				return
			}
		}
	}
}
