// Command hostres resolves hostnames and fetches URLs through the lazily
// constructed DNS resolver that backs hostres' HTTP client integration.
//
// Usage:
//
//	hostres resolve <host>...    - Resolve hostnames concurrently
//	hostres fetch <url>          - GET a URL using the resolver for dialing
//	hostres sysconf [--reinit]   - Show the cached system DNS configuration
//	hostres config init          - Write a default configuration file
//	hostres version              - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lc/hostres/internal/buildinfo"
	"github.com/lc/hostres/internal/config"
	"github.com/lc/hostres/internal/filesys"
	"github.com/lc/hostres/internal/lazyresolver"
	"github.com/lc/hostres/internal/log"
	"github.com/lc/hostres/internal/sysconf"
)

type app struct {
	cfgPath  string
	logLevel string
}

func main() {
	a := &app{}

	root := &cobra.Command{
		Use:   "hostres",
		Short: "Lazy DNS resolution for HTTP clients",
		Long: `hostres resolves hostnames with a DNS resolver that is configured from the
operating system (resolv.conf) or from an explicit nameserver list, and built
only when the first lookup needs it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if a.logLevel == "" {
				return nil
			}
			return log.SetLevel(a.logLevel)
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", config.DefaultPath(), "path to the configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("version: %s\n", buildinfo.Version)
			fmt.Printf("commit: %s\n", buildinfo.Commit)
		},
	}

	root.AddCommand(a.resolveCmd(), a.fetchCmd(), a.sysconfCmd(), a.configCmd(), versionCmd)
	err := root.Execute()
	log.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func (a *app) loadConfig() (*config.Config, error) {
	return config.NewWithPath(filesys.OS(), a.cfgPath).Load()
}

// systemCache returns the configuration cache for the resolv.conf at path.
// The standard location shares the process-wide cache.
func systemCache(path string) *sysconf.Cache {
	if path == sysconf.DefaultResolvConf {
		return sysconf.Default()
	}
	return sysconf.NewCache(sysconf.ReadResolvConf(filesys.OS(), path))
}

// newResolver builds the adapter described by cfg.
func newResolver(cfg *config.Config) (*lazyresolver.Adapter, error) {
	if rc, opts, ok := cfg.Explicit(); ok {
		log.Debug("using explicit resolver configuration", "nameservers", rc.Nameservers)
		return lazyresolver.New(lazyresolver.WithConfig(rc, opts))
	}
	return lazyresolver.New(lazyresolver.WithCache(systemCache(cfg.Resolver.ResolvConf)))
}
