package mocks

import (
	"context"
	"net"

	"github.com/stretchr/testify/mock"

	"github.com/lc/hostres/internal/dnsresolver"
)

var _ dnsresolver.Clienter = (*MockClienter)(nil)

// MockClienter is a testify mock of the resolver engine.
type MockClienter struct {
	mock.Mock
}

// LookupHost mocks the LookupHost method.
func (m *MockClienter) LookupHost(ctx context.Context, hostname string) ([]net.IPAddr, error) {
	args := m.Called(ctx, hostname)
	var addrs []net.IPAddr
	if args.Get(0) != nil {
		addrs = args.Get(0).([]net.IPAddr)
	}
	return addrs, args.Error(1)
}

// IPAddrs parses ips into the slice shape returned by LookupHost.
func IPAddrs(ips ...string) []net.IPAddr {
	out := make([]net.IPAddr, 0, len(ips))
	for _, ip := range ips {
		out = append(out, net.IPAddr{IP: net.ParseIP(ip)})
	}
	return out
}
