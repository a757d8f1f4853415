// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: argparse_slaver/main_slaver in original_source/slaver.py.
//

// Command goslaver is a reverse TCP tunnel endpoint: it dials out to a
// public master peer and, once activated, bridges the resulting
// connection to a local target service. Run alongside a matching master
// process to reach a service behind NAT from the public internet.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aploium/goslaver/controller"
	"github.com/aploium/goslaver/slavercfg"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("goslaver", flag.ContinueOnError)

	master := fs.String("m", "", "master address, usually a public IP (host:port)")
	target := fs.String("t", "", "address traffic from master is tunneled to (host:port)")
	secret := fs.String("k", "shootback", "shared secret; must match the master's")
	ttl := fs.Duration("ttl", 600*time.Second, "standby connection TTL")
	maxStandby := fs.Int("max-standby", 5, "max standby TCP connections (working connections are unbounded)")
	verbose := fs.Bool("v", false, "verbose (debug) output")
	quiet := fs.Bool("q", false, "quiet output: only warnings and errors")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *verbose && *quiet {
		fmt.Fprintln(os.Stderr, "-v and -q should not appear together")
		return 1
	}
	if *master == "" || *target == "" {
		fmt.Fprintln(os.Stderr, "both -m (master) and -t (target) are required")
		return 1
	}

	masterAddr, err := resolveAddrPort(*master)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid master address %q: %v\n", *master, err)
		return 1
	}
	targetAddr, err := resolveAddrPort(*target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid target address %q: %v\n", *target, err)
		return 1
	}

	level := slog.LevelInfo
	switch {
	case *verbose:
		level = slog.LevelDebug
	case *quiet:
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := slavercfg.New()
	cfg.MasterAddr = masterAddr
	cfg.TargetAddr = targetAddr
	cfg.Secret = *secret
	cfg.SpareSlaverTTL = *ttl
	cfg.MaxSpareCount = *maxStandby

	logger.Info("goslaver running", "master", masterAddr.String(), "target", targetAddr.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller.New(cfg, logger).Run(ctx)
	return 0
}

// resolveAddrPort parses "host:port", resolving hostnames via DNS when
// the host is not already a literal IP address.
func resolveAddrPort(hostport string) (netip.AddrPort, error) {
	if addr, err := netip.ParseAddrPort(hostport); err == nil {
		return addr, nil
	}
	tcpAddr, err := net.ResolveTCPAddr("tcp", hostport)
	if err != nil {
		return netip.AddrPort{}, err
	}
	return tcpAddr.AddrPort(), nil
}
