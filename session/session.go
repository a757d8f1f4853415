// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: Slaver._slaver_working / _waiting_handshake in
// original_source/slaver.py, and the ConnectFunc dial-logging idiom in
// connect.go applied here to the target dial.
//

// Package session implements the per-connection worker that carries one
// dialed master connection through the standby→active lifecycle
// described in spec.md §4.4: wait for activation, promote, dial the
// target, and hand off to the bridge.
package session

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/sync/semaphore"

	"github.com/aploium/goslaver/bridge"
	"github.com/aploium/goslaver/cancelwatch"
	"github.com/aploium/goslaver/ctrlpkg"
	"github.com/aploium/goslaver/dialx"
	"github.com/aploium/goslaver/ioutil"
	"github.com/aploium/goslaver/pool"
	"github.com/aploium/goslaver/slavercfg"
	"github.com/aploium/goslaver/slaverlog"
)

// Session runs once per dialed master connection, from registration as
// spare through either failure or handoff to the [bridge.Bridge].
//
// All fields are safe to read concurrently after construction; none are
// mutated after [New] returns.
type Session struct {
	Config *slavercfg.Config
	Logger slaverlog.Logger
	Codec  *ctrlpkg.Codec
	Bridge *bridge.Bridge
	Pools  *pool.Pools

	// TargetDialSem bounds the number of concurrent target dials across
	// all sessions (spec.md §4.5 supplement). A nil semaphore disables
	// the bound.
	TargetDialSem *semaphore.Weighted

	connector *dialx.Connector
}

// New returns a [*Session] wired from its dependencies. A nil logger is
// replaced with the discard logger.
func New(cfg *slavercfg.Config, logger slaverlog.Logger, codec *ctrlpkg.Codec, br *bridge.Bridge, pools *pool.Pools, sem *semaphore.Weighted) *Session {
	if logger == nil {
		logger = slaverlog.Default()
	}
	return &Session{
		Config:        cfg,
		Logger:        logger,
		Codec:         codec,
		Bridge:        br,
		Pools:         pools,
		TargetDialSem: sem,
		connector:     dialx.New(cfg.Dialer, logger, cfg.ErrClassifier, cfg.TimeNow),
	}
}

// Run drives rec through the standby→active lifecycle. rec must already
// be registered in the spare pool by the caller (spec.md §4.4 phase S0).
//
// Run never panics and never blocks beyond the configured timeouts; it
// returns once the session has either failed or handed its connections
// off to the bridge.
func (s *Session) Run(ctx context.Context, rec *pool.Record) {
	// Watching ctx here means a controller shutdown (e.g. SIGTERM) force-
	// closes this connection immediately rather than waiting out
	// SpareSlaverTTL or an in-progress bridge copy.
	master := cancelwatch.Watch(ctx, rec.MasterConn)
	rec.MasterConn = master
	masterLog := observeConn(master, s.Logger, s.Config.ErrClassifier, s.Config.TimeNow)

	ok := s.waitHandshake(masterLog, rec.Key)
	if !ok {
		s.Logger.Warn("sessionHandshakeFailed", "localAddr", rec.Key.String())
		s.Pools.RemoveSpare(rec.Key)
		master.Close()
		return
	}

	if _, promoted := s.Pools.Promote(rec.Key); !promoted {
		// Raced with an external teardown of the spare record; nothing
		// left to promote, so there is nothing left to do either.
		master.Close()
		return
	}
	s.Logger.Info("sessionPromoted", "localAddr", rec.Key.String())

	targetConn, err := s.dialTarget(ctx)
	if err != nil {
		s.Logger.Error("sessionTargetUnreachable",
			"localAddr", rec.Key.String(),
			"targetAddr", s.Config.TargetAddr.String(),
			"err", err,
			"errClass", s.Config.ErrClassifier.Classify(err),
		)
		s.Pools.RemoveWorking(rec.Key)
		master.Close()
		return
	}
	rec.TargetConn = targetConn

	key := rec.Key
	s.Bridge.AddConnPair(master, rec.TargetConn, func() {
		s.Pools.RemoveWorking(key)
		s.Logger.Info("sessionComplete", "localAddr", key.String())
	})
}

// waitHandshake implements spec.md §4.4 phase S1: loop on control
// frames, answering heartbeats, until HS_M2S arrives, then reply with
// HS_S2M. It returns false for any timeout, transport error, integrity
// failure, or reserved packet type (tightened per spec.md §9 Open
// Question (a): the spare channel tolerates only HEART_BEAT and HS_M2S).
func (s *Session) waitHandshake(conn net.Conn, key fmt.Stringer) bool {
	for {
		raw, err := ioutil.ReadExact(conn, ctrlpkg.PackageSize, s.Config.SpareSlaverTTL)
		if err != nil {
			s.Logger.Warn("sessionWaitHandshakeReadFailed", "localAddr", key.String(), "err", err)
			return false
		}

		pkt, ok := s.Codec.Decode(raw)
		if !ok {
			s.Logger.Warn("sessionBadPacket", "localAddr", key.String())
			return false
		}

		switch pkt.Type {
		case ctrlpkg.HeartBeat:
			hb := s.Codec.HeartBeat()
			if _, err := conn.Write(hb[:]); err != nil {
				s.Logger.Warn("sessionHeartbeatReplyFailed", "localAddr", key.String(), "err", err)
				return false
			}
		case ctrlpkg.HandshakeMasterToSlaver:
			s2m := s.Codec.HandshakeSlaverToMaster()
			if _, err := conn.Write(s2m[:]); err != nil {
				s.Logger.Warn("sessionHandshakeReplyFailed", "localAddr", key.String(), "err", err)
				return false
			}
			return true
		default:
			s.Logger.Warn("sessionUnexpectedPacketType", "localAddr", key.String(), "type", pkt.Type.String())
			return false
		}
	}
}

// dialTarget dials Config.TargetAddr, bounded by TargetDialSem if set.
func (s *Session) dialTarget(ctx context.Context) (net.Conn, error) {
	if s.TargetDialSem != nil {
		if err := s.TargetDialSem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer s.TargetDialSem.Release(1)
	}

	return s.connector.Dial(ctx, "tcp", s.Config.TargetAddr.String())
}
