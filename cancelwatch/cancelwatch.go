// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: cancelwatch.go, generalized from the Func[A,B] pipeline
// shape to a constructor used directly by the session worker.
//

// Package cancelwatch arranges for a connection to be closed promptly
// when a context is canceled, instead of waiting for the connection's
// own I/O deadlines to expire. The pool controller uses this so that
// shutting down its context (e.g. on SIGTERM) tears down in-flight spare
// and working connections without waiting out their TTLs.
package cancelwatch

import (
	"context"
	"net"
)

// Watch returns conn wrapped so that ctx being done closes it. Closing
// the returned connection unregisters the watcher and closes conn; this
// guarantees no goroutine leak even if ctx is never canceled.
func Watch(ctx context.Context, conn net.Conn) net.Conn {
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	return &watchedConn{Conn: conn, stop: stop}
}

type watchedConn struct {
	net.Conn
	stop func() bool
}

// Close unregisters the context watcher and closes the underlying connection.
func (c *watchedConn) Close() error {
	c.stop()
	return c.Conn.Close()
}

// CloseWrite half-closes the underlying connection's write side if it
// supports that, e.g. *net.TCPConn. Embedding net.Conn only promotes its
// declared method set, not this extra method the wrapped value may have,
// so it must be forwarded explicitly or callers that type-assert for
// CloseWrite (such as the bridge's half-close propagation) never see it.
func (c *watchedConn) CloseWrite() error {
	type writeCloser interface {
		CloseWrite() error
	}
	if wc, ok := c.Conn.(writeCloser); ok {
		return wc.CloseWrite()
	}
	return nil
}
