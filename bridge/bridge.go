// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: the bidiPipe duplex-copy idiom (see other retrieved
// reverse-tunnel bridges), and spanid.go's NewSpanID convention applied
// here to bridge pairs instead of DNS spans.
//

// Package bridge implements the duplex byte-pump that splices a
// master-side connection to a target-side connection once a session has
// been activated. Bridge performs no interpretation of the bytes it
// copies.
package bridge

import (
	"io"
	"net"
	"sync"

	"github.com/aploium/goslaver/slaverlog"
	"github.com/aploium/goslaver/spanid"
)

// copyBufferSize is the fixed per-direction buffer size. No buffering
// beyond one kernel-sized chunk is required.
const copyBufferSize = 16 * 1024

// OnDone is invoked exactly once per pair, after both sockets have been
// closed.
type OnDone func()

// pair is one spliced connection pair awaiting or undergoing pumping.
type pair struct {
	spanID string
	a, b   net.Conn
	onDone OnDone
}

// Bridge copies bytes bidirectionally between connection pairs until
// either side closes, then invokes each pair's completion callback.
//
// The zero value is not ready for use; construct one with [New]. Call
// [Bridge.Start] once before the first [Bridge.AddConnPair].
type Bridge struct {
	Logger slaverlog.Logger

	pairs chan *pair
	wg    sync.WaitGroup
}

// New returns a [*Bridge] with the given logger. A nil logger is
// replaced with the discard logger.
func New(logger slaverlog.Logger) *Bridge {
	if logger == nil {
		logger = slaverlog.Default()
	}
	return &Bridge{
		Logger: logger,
		pairs:  make(chan *pair, 64),
	}
}

// Start begins background servicing of pairs submitted via
// [Bridge.AddConnPair]. Must be called once before any AddConnPair.
func (br *Bridge) Start() {
	go br.serve()
}

// AddConnPair enqueues a new pair and returns immediately. The bridge
// owns both a and b from this moment: it closes both (idempotently)
// before invoking onDone exactly once.
func (br *Bridge) AddConnPair(a, b net.Conn, onDone OnDone) {
	br.pairs <- &pair{
		spanID: spanid.New(),
		a:      a,
		b:      b,
		onDone: onDone,
	}
}

func (br *Bridge) serve() {
	for p := range br.pairs {
		br.wg.Add(1)
		go func(p *pair) {
			defer br.wg.Done()
			br.pump(p)
		}(p)
	}
}

// pump runs the two unidirectional copies for p and invokes its
// completion callback once both have finished.
func (br *Bridge) pump(p *pair) {
	br.Logger.Info("bridgeStart", "spanID", p.spanID)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		br.copyDirection(p.spanID, "a->b", p.a, p.b)
	}()
	go func() {
		defer wg.Done()
		br.copyDirection(p.spanID, "b->a", p.b, p.a)
	}()
	wg.Wait()

	p.a.Close()
	p.b.Close()

	br.Logger.Info("bridgeDone", "spanID", p.spanID)

	if p.onDone != nil {
		p.onDone()
	}
}

// copyDirection copies from src to dst until EOF or error, then
// half-closes dst's write side so the counterpart pump can drain and
// exit cleanly.
func (br *Bridge) copyDirection(spanID, dir string, src, dst net.Conn) {
	buf := make([]byte, copyBufferSize)
	n, err := io.CopyBuffer(dst, src, buf)

	br.Logger.Debug("bridgeDirectionDone",
		"spanID", spanID,
		"direction", dir,
		"bytesCopied", n,
		"err", err,
	)

	halfCloseWrite(dst)
}

// halfCloseWrite shuts down the write side of conn if it supports
// half-close, so the peer observes EOF without losing the ability to
// drain bytes still in flight in the other direction. Connections that
// do not support half-close (e.g. test doubles) are left untouched;
// the final Close in [Bridge.pump] still tears them down.
func halfCloseWrite(conn net.Conn) {
	type writeCloser interface {
		CloseWrite() error
	}
	if wc, ok := conn.(writeCloser); ok {
		wc.CloseWrite()
	}
}
