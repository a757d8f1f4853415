// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: Slaver.serve_forever in original_source/slaver.py.
//

// Package controller implements the top-level supervision loop: dial the
// master, register a spare connection, hand it to a [session.Session]
// worker, and repeat — backing off on dial failure and idling once the
// spare pool is full.
package controller

import (
	"context"
	"net"
	"net/netip"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/aploium/goslaver/bridge"
	"github.com/aploium/goslaver/ctrlpkg"
	"github.com/aploium/goslaver/dialx"
	"github.com/aploium/goslaver/pool"
	"github.com/aploium/goslaver/session"
	"github.com/aploium/goslaver/slavercfg"
	"github.com/aploium/goslaver/slaverlog"
)

// defaultSpareDelay is the idle poll interval the spare-pool-full delay
// decays toward, mirroring DEFAULT_SPARE_DELAY in the original slaver.
const defaultSpareDelay = 100 * time.Millisecond

// maxErrDelay caps the linear dial-failure backoff, mirroring
// MAX_ERR_DELAY in the original slaver.
const maxErrDelay = 15 * time.Second

// Controller owns the pool of master connections and the session workers
// that animate them.
type Controller struct {
	Config *slavercfg.Config
	Logger slaverlog.Logger
	Codec  *ctrlpkg.Codec
	Bridge *bridge.Bridge
	Pools  *pool.Pools

	connector *dialx.Connector
	dialSem   *semaphore.Weighted
}

// New builds a ready-to-run [*Controller] from cfg. A nil logger is
// replaced with the discard logger.
func New(cfg *slavercfg.Config, logger slaverlog.Logger) *Controller {
	if logger == nil {
		logger = slaverlog.Default()
	}
	br := bridge.New(logger)
	var sem *semaphore.Weighted
	if cfg.MaxConcurrentTargetDials > 0 {
		sem = semaphore.NewWeighted(cfg.MaxConcurrentTargetDials)
	}
	return &Controller{
		Config:    cfg,
		Logger:    logger,
		Codec:     ctrlpkg.New(cfg.Secret),
		Bridge:    br,
		Pools:     pool.New(),
		connector: dialx.New(cfg.Dialer, logger, cfg.ErrClassifier, cfg.TimeNow),
		dialSem:   sem,
	}
}

// Run drives the supervision loop until ctx is canceled. It mirrors
// serve_forever: while the spare pool is full, idle on a decaying delay;
// otherwise dial the master, register the connection as spare, and spawn
// a session worker for it. Master-dial failures back off linearly up to
// maxErrDelay, and the backoff resets to zero on the next successful dial.
// A dialed connection whose local address cannot be read is closed and the
// loop continues without backing off.
func (c *Controller) Run(ctx context.Context) {
	c.Bridge.Start()

	errDelay := time.Duration(0)
	spareDelay := defaultSpareDelay

	for {
		if ctx.Err() != nil {
			return
		}

		if c.Pools.SpareCount() >= c.Config.MaxSpareCount {
			if !sleepCtx(ctx, spareDelay) {
				return
			}
			spareDelay = (spareDelay + defaultSpareDelay) / 2
			continue
		}
		spareDelay = 0

		conn, err := c.connector.Dial(ctx, "tcp", c.Config.MasterAddr.String())
		if err != nil {
			if !sleepCtx(ctx, errDelay) {
				return
			}
			errDelay = nextErrDelay(errDelay)
			continue
		}
		errDelay = 0

		key, ok := localAddrPort(conn)
		if !ok {
			c.Logger.Error("controllerLocalAddrUnavailable", "remoteAddr", conn.RemoteAddr().String())
			conn.Close()
			continue
		}

		rec := &pool.Record{Key: key, MasterConn: conn}
		c.Pools.AddSpare(rec)

		c.Logger.Info("controllerConnectedMaster",
			"localAddr", key.String(),
			"remoteAddr", conn.RemoteAddr().String(),
			"spareCount", c.Pools.SpareCount(),
		)

		sess := session.New(c.Config, c.Logger, c.Codec, c.Bridge, c.Pools, c.dialSem)
		go sess.Run(ctx, rec)
	}
}

// nextErrDelay advances the linear dial-failure backoff by one second,
// saturating at maxErrDelay.
func nextErrDelay(d time.Duration) time.Duration {
	d += time.Second
	if d > maxErrDelay {
		return maxErrDelay
	}
	return d
}

// sleepCtx sleeps for d or until ctx is canceled, reporting which
// happened first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// localAddrPort extracts conn's local endpoint as the stable pool key.
func localAddrPort(conn net.Conn) (netip.AddrPort, bool) {
	tcpAddr, ok := conn.LocalAddr().(*net.TCPAddr)
	if !ok {
		addr, err := netip.ParseAddrPort(conn.LocalAddr().String())
		return addr, err == nil
	}
	return tcpAddr.AddrPort(), true
}
