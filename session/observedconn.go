// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: observeconn.go, generalized from the Func[A,B] pipeline
// shape to a constructor used directly by [Session].
//

package session

import (
	"net"
	"sync"
	"time"

	"github.com/bassosimone/safeconn"

	"github.com/aploium/goslaver/errclass"
	"github.com/aploium/goslaver/slaverlog"
)

// observeConn wraps conn to log I/O operations: per-operation events at
// Debug level, lifecycle (close) events at Info level. This mirrors the
// two-tier verbosity convention used throughout this codebase's ambient
// logging.
func observeConn(conn net.Conn, logger slaverlog.Logger, classifier errclass.Classifier, timeNow func() time.Time) net.Conn {
	return &observedConn{
		conn:       conn,
		logger:     logger,
		classifier: classifier,
		timeNow:    timeNow,
		laddr:      safeconn.LocalAddr(conn),
		raddr:      safeconn.RemoteAddr(conn),
		protocol:   safeconn.Network(conn),
	}
}

type observedConn struct {
	closeonce  sync.Once
	conn       net.Conn
	logger     slaverlog.Logger
	classifier errclass.Classifier
	timeNow    func() time.Time
	laddr      string
	raddr      string
	protocol   string
}

var _ net.Conn = (*observedConn)(nil)

// Close implements [net.Conn]. Subsequent calls return [net.ErrClosed].
func (c *observedConn) Close() (err error) {
	err = net.ErrClosed
	c.closeonce.Do(func() {
		t0 := c.timeNow()
		c.logger.Info("closeStart", "localAddr", c.laddr, "protocol", c.protocol, "remoteAddr", c.raddr, "t", t0)

		err = c.conn.Close()

		c.logger.Info("closeDone",
			"err", err,
			"errClass", c.classifier.Classify(err),
			"localAddr", c.laddr,
			"protocol", c.protocol,
			"remoteAddr", c.raddr,
			"t0", t0,
			"t", c.timeNow(),
		)
	})
	return
}

// LocalAddr implements [net.Conn].
func (c *observedConn) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// RemoteAddr implements [net.Conn].
func (c *observedConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Read implements [net.Conn].
func (c *observedConn) Read(buf []byte) (int, error) {
	t0 := c.timeNow()
	c.logger.Debug("readStart", "ioBufferSize", len(buf), "localAddr", c.laddr, "protocol", c.protocol, "remoteAddr", c.raddr, "t", t0)

	n, err := c.conn.Read(buf)

	c.logger.Debug("readDone",
		"ioBytesCount", n,
		"err", err,
		"errClass", c.classifier.Classify(err),
		"localAddr", c.laddr,
		"protocol", c.protocol,
		"remoteAddr", c.raddr,
		"t0", t0,
		"t", c.timeNow(),
	)
	return n, err
}

// Write implements [net.Conn].
func (c *observedConn) Write(data []byte) (int, error) {
	t0 := c.timeNow()
	c.logger.Debug("writeStart", "ioBufferSize", len(data), "localAddr", c.laddr, "protocol", c.protocol, "remoteAddr", c.raddr, "t", t0)

	n, err := c.conn.Write(data)

	c.logger.Debug("writeDone",
		"ioBytesCount", n,
		"err", err,
		"errClass", c.classifier.Classify(err),
		"localAddr", c.laddr,
		"protocol", c.protocol,
		"remoteAddr", c.raddr,
		"t0", t0,
		"t", c.timeNow(),
	)
	return n, err
}

// SetDeadline implements [net.Conn].
func (c *observedConn) SetDeadline(t time.Time) error { return c.conn.SetDeadline(t) }

// SetReadDeadline implements [net.Conn].
func (c *observedConn) SetReadDeadline(t time.Time) error { return c.conn.SetReadDeadline(t) }

// SetWriteDeadline implements [net.Conn].
func (c *observedConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }
