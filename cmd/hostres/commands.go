package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lc/hostres/internal/config"
	"github.com/lc/hostres/internal/filesys"
	"github.com/lc/hostres/internal/httpdns"
	"github.com/lc/hostres/internal/sysconf"
)

// ---- resolve command ----
func (a *app) resolveCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "resolve <host>...",
		Short: "Resolve one or more hostnames",
		Long: `Resolve hostnames concurrently through a single shared resolver.
The resolver is built on the first lookup; every other lookup reuses it.`,
		Example: "hostres resolve example.com golang.org",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			res, err := newResolver(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			results := make([][]string, len(args))
			failures := make([]error, len(args))
			var grp errgroup.Group
			for i, host := range args {
				grp.Go(func() error {
					addrs, err := res.Resolve(ctx, host)
					if err != nil {
						failures[i] = err
						return nil
					}
					for ap := range addrs.All() {
						results[i] = append(results[i], ap.Addr().String())
					}
					return nil
				})
			}
			_ = grp.Wait()

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Host", "Address"})
			table.SetHeaderColor(
				tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
				tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
			)
			table.SetBorder(false)
			table.SetColumnColor(
				tablewriter.Colors{tablewriter.FgGreenColor},
				tablewriter.Colors{tablewriter.FgHiWhiteColor},
			)
			var failed int
			for i, host := range args {
				if failures[i] != nil {
					failed++
					table.Append([]string{host, color.RedString("error: %v", failures[i])})
					continue
				}
				table.Append([]string{host, strings.Join(results[i], "\n")})
			}
			table.Render()

			stats := res.Stats()
			color.New(color.Faint).Printf("resolver builds: %d, lookups: %d, failed: %d\n",
				stats.Constructions, stats.Lookups, stats.LookupFailures)
			if failed > 0 {
				return fmt.Errorf("%d of %d lookups failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall deadline for all lookups")
	return cmd
}

// ---- fetch command ----
func (a *app) fetchCmd() *cobra.Command {
	var head bool
	cmd := &cobra.Command{
		Use:     "fetch <url>",
		Short:   "GET a URL, resolving its host with hostres",
		Example: "hostres fetch https://example.com/",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			res, err := newResolver(cfg)
			if err != nil {
				return err
			}
			client := httpdns.NewClient(res, cfg.HTTP.Timeout)

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, args[0], nil)
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			reqID := uuid.NewString()
			req.Header.Set("X-Request-Id", reqID)

			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			statusColor := color.New(color.FgGreen, color.Bold)
			if resp.StatusCode >= 400 {
				statusColor = color.New(color.FgRed, color.Bold)
			}
			statusColor.Fprintf(os.Stderr, "%s", resp.Status)
			color.New(color.Faint).Fprintf(os.Stderr, " (request %s)\n", reqID)
			if head {
				for k, v := range resp.Header {
					fmt.Fprintf(os.Stderr, "%s: %s\n", k, strings.Join(v, ", "))
				}
				return nil
			}
			_, err = io.Copy(os.Stdout, resp.Body)
			return err
		},
	}
	cmd.Flags().BoolVar(&head, "head", false, "print the response headers instead of the body")
	return cmd
}

// ---- sysconf command ----
func (a *app) sysconfCmd() *cobra.Command {
	var reinit bool
	cmd := &cobra.Command{
		Use:   "sysconf",
		Short: "Show the system DNS configuration hostres would use",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			cache := systemCache(cfg.Resolver.ResolvConf)
			if reinit {
				if cache == sysconf.Default() {
					sysconf.ReinitializeSystemConf()
				} else {
					cache.Invalidate()
				}
			}
			rc, opts, err := cache.GetOrCompute()
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Setting", "Value"})
			table.SetBorder(false)
			table.SetColumnColor(
				tablewriter.Colors{tablewriter.FgHiCyanColor},
				tablewriter.Colors{tablewriter.FgHiWhiteColor},
			)
			table.AppendBulk([][]string{
				{"source", cfg.Resolver.ResolvConf},
				{"nameservers", strings.Join(rc.Nameservers, "\n")},
				{"search", strings.Join(rc.Search, " ")},
				{"ndots", strconv.Itoa(rc.Ndots)},
				{"protocol", string(rc.Protocol)},
				{"ip strategy", string(rc.IPStrategy)},
				{"timeout", opts.Timeout.String()},
				{"attempts", strconv.FormatUint(uint64(opts.Attempts), 10)},
				{"rotate", strconv.FormatBool(opts.Rotate)},
			})
			table.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&reinit, "reinit", false, "discard the cached configuration and read it again")
	return cmd
}

// ---- config command ----
func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the hostres configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			fs := filesys.OS()
			if _, err := fs.Stat(a.cfgPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", a.cfgPath)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.Write(fs, a.cfgPath, config.Default()); err != nil {
				return err
			}
			color.New(color.FgGreen, color.Bold).Printf("✓ Wrote ")
			color.New(color.FgHiGreen, color.Bold).Printf("%s\n", a.cfgPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}
