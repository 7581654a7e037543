package sysconf_test

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"

	"github.com/lc/hostres/internal/mocks"
	"github.com/lc/hostres/internal/sysconf"
)

const _resolvConf = `
# generated by NetworkManager
search corp.internal lab.internal
nameserver 10.0.0.53
nameserver fd00::53
options ndots:2 timeout:3 attempts:4 rotate
`

type countingReader struct {
	calls atomic.Int64
	cfg   sysconf.ResolverConfig
	err   error
}

func (c *countingReader) read() (sysconf.ResolverConfig, sysconf.ResolverOpts, error) {
	c.calls.Inc()
	if c.err != nil {
		return sysconf.ResolverConfig{}, sysconf.ResolverOpts{}, c.err
	}
	return c.cfg.Clone(), sysconf.DefaultOpts(), nil
}

type SysconfTestSuite struct {
	suite.Suite
	reader *countingReader
	cache  *sysconf.Cache
}

func (s *SysconfTestSuite) SetupTest() {
	s.reader = &countingReader{
		cfg: sysconf.ResolverConfig{Nameservers: []string{"10.0.0.53:53"}, Ndots: 1},
	}
	s.cache = sysconf.NewCache(s.reader.read)
}

func (s *SysconfTestSuite) TestGetOrComputeReadsOnce() {
	for i := 0; i < 3; i++ {
		cfg, opts, err := s.cache.GetOrCompute()
		s.Require().NoError(err)
		s.Equal([]string{"10.0.0.53:53"}, cfg.Nameservers)
		s.Equal(sysconf.DefaultOpts(), opts)
	}
	s.Equal(int64(1), s.reader.calls.Load())
}

func (s *SysconfTestSuite) TestConcurrentFirstCallsShareOneRead() {
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.cache.GetOrCompute()
			s.NoError(err)
		}()
	}
	wg.Wait()
	s.Equal(int64(1), s.reader.calls.Load())
}

func (s *SysconfTestSuite) TestErrorIsCachedUntilInvalidated() {
	boom := errors.New("resolv.conf unreadable")
	s.reader.err = boom

	_, _, err := s.cache.GetOrCompute()
	s.ErrorIs(err, boom)
	_, _, err = s.cache.GetOrCompute()
	s.ErrorIs(err, boom)
	s.Equal(int64(1), s.reader.calls.Load())

	// The environment recovers, but only an explicit invalidation notices.
	s.reader.err = nil
	_, _, err = s.cache.GetOrCompute()
	s.ErrorIs(err, boom)

	s.cache.Invalidate()
	cfg, _, err := s.cache.GetOrCompute()
	s.Require().NoError(err)
	s.Equal([]string{"10.0.0.53:53"}, cfg.Nameservers)
	s.Equal(int64(2), s.reader.calls.Load())
}

func (s *SysconfTestSuite) TestInvalidateRereads() {
	_, _, err := s.cache.GetOrCompute()
	s.Require().NoError(err)

	s.reader.cfg = sysconf.ResolverConfig{Nameservers: []string{"10.0.0.54:53"}}
	s.cache.Invalidate()

	cfg, _, err := s.cache.GetOrCompute()
	s.Require().NoError(err)
	s.Equal([]string{"10.0.0.54:53"}, cfg.Nameservers)
	s.Equal(int64(2), s.reader.calls.Load())
}

func (s *SysconfTestSuite) TestReturnedConfigIsACopy() {
	cfg, _, err := s.cache.GetOrCompute()
	s.Require().NoError(err)
	cfg.Nameservers[0] = "203.0.113.1:53"

	again, _, err := s.cache.GetOrCompute()
	s.Require().NoError(err)
	s.Equal("10.0.0.53:53", again.Nameservers[0])
}

func (s *SysconfTestSuite) TestSeeded() {
	in := sysconf.ResolverConfig{Nameservers: []string{"9.9.9.9:53"}}
	c := sysconf.Seeded(in, sysconf.ResolverOpts{Timeout: time.Second, Attempts: 1})
	in.Nameservers[0] = "changed"

	cfg, opts, err := c.GetOrCompute()
	s.Require().NoError(err)
	s.Equal([]string{"9.9.9.9:53"}, cfg.Nameservers)
	s.Equal(time.Second, opts.Timeout)

	c.Invalidate()
	cfg, _, err = c.GetOrCompute()
	s.Require().NoError(err)
	s.Equal([]string{"9.9.9.9:53"}, cfg.Nameservers)
}

func (s *SysconfTestSuite) TestParseResolvConf() {
	testCases := []struct {
		name        string
		raw         string
		expectedErr error
		check       func(sysconf.ResolverConfig, sysconf.ResolverOpts)
	}{
		{
			name: "full file",
			raw:  _resolvConf,
			check: func(cfg sysconf.ResolverConfig, opts sysconf.ResolverOpts) {
				s.Equal([]string{"10.0.0.53:53", "[fd00::53]:53"}, cfg.Nameservers)
				s.Equal([]string{"corp.internal", "lab.internal"}, cfg.Search)
				s.Equal(2, cfg.Ndots)
				s.Equal(sysconf.ProtocolUDP, cfg.Protocol)
				s.Equal(sysconf.IPv4AndIPv6, cfg.IPStrategy)
				s.Equal(3*time.Second, opts.Timeout)
				s.Equal(uint(4), opts.Attempts)
				s.True(opts.Rotate)
			},
		},
		{
			name: "defaults",
			raw:  "nameserver 127.0.0.53\n",
			check: func(cfg sysconf.ResolverConfig, opts sysconf.ResolverOpts) {
				s.Equal([]string{"127.0.0.53:53"}, cfg.Nameservers)
				s.Equal(1, cfg.Ndots)
				s.Equal(sysconf.DefaultTimeout, opts.Timeout)
				s.Equal(uint(sysconf.DefaultAttempts), opts.Attempts)
				s.False(opts.Rotate)
			},
		},
		{
			name: "tcp and no-aaaa",
			raw:  "nameserver 10.0.0.1\noptions use-vc no-aaaa\n",
			check: func(cfg sysconf.ResolverConfig, _ sysconf.ResolverOpts) {
				s.Equal(sysconf.ProtocolTCP, cfg.Protocol)
				s.Equal(sysconf.IPv4Only, cfg.IPStrategy)
			},
		},
		{
			name:        "no nameservers",
			raw:         "search corp.internal\n",
			expectedErr: sysconf.ErrNoNameservers,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			cfg, opts, err := sysconf.ParseResolvConf([]byte(tc.raw))
			if tc.expectedErr != nil {
				s.ErrorIs(err, tc.expectedErr)
				return
			}
			s.Require().NoError(err)
			tc.check(cfg, opts)
		})
	}
}

func (s *SysconfTestSuite) TestReadResolvConf() {
	fs := new(mocks.MockReadFS)
	fs.On("ReadFile", "/etc/resolv.conf").Return([]byte(_resolvConf), nil).Once()
	fs.On("ReadFile", "/missing").Return(nil, os.ErrNotExist).Once()

	cfg, _, err := sysconf.ReadResolvConf(fs, "/etc/resolv.conf")()
	s.Require().NoError(err)
	s.Len(cfg.Nameservers, 2)

	_, _, err = sysconf.ReadResolvConf(fs, "/missing")()
	var cerr *sysconf.ConfigError
	s.Require().ErrorAs(err, &cerr)
	s.Equal("/missing", cerr.Path)
	s.ErrorIs(err, os.ErrNotExist)

	fs.AssertExpectations(s.T())
}

func (s *SysconfTestSuite) TestReadResolvConfWrapsParseErrors() {
	fs := new(mocks.MockReadFS)
	fs.On("ReadFile", "/etc/resolv.conf").Return([]byte("# empty\n"), nil)

	_, _, err := sysconf.ReadResolvConf(fs, "/etc/resolv.conf")()
	var cerr *sysconf.ConfigError
	s.ErrorAs(err, &cerr)
	s.ErrorIs(err, sysconf.ErrNoNameservers)
}

func (s *SysconfTestSuite) TestParseIPStrategy() {
	for in, want := range map[string]sysconf.IPStrategy{
		"":              sysconf.IPv4AndIPv6,
		"ipv4_and_ipv6": sysconf.IPv4AndIPv6,
		"ipv4_only":     sysconf.IPv4Only,
		"ipv6_only":     sysconf.IPv6Only,
	} {
		got, err := sysconf.ParseIPStrategy(in)
		s.NoError(err)
		s.Equal(want, got)
	}
	_, err := sysconf.ParseIPStrategy("ipv5")
	s.Error(err)

	p, err := sysconf.ParseProtocol("")
	s.NoError(err)
	s.Equal(sysconf.ProtocolUDP, p)
	_, err = sysconf.ParseProtocol("quic")
	s.Error(err)
}

func TestSysconfSuite(t *testing.T) {
	suite.Run(t, new(SysconfTestSuite))
}
