// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: connect.go
//

// Package dialx provides an observed dialer: a thin wrapper around
// [slavercfg.Dialer] that logs connectStart/connectDone events around
// every dial, used identically by the pool controller (dialing the
// master) and the session worker (dialing the target).
package dialx

import (
	"context"
	"net"
	"time"

	"github.com/bassosimone/safeconn"

	"github.com/aploium/goslaver/errclass"
	"github.com/aploium/goslaver/slaverlog"
)

// Dialer abstracts [*net.Dialer] so tests can inject a fake one.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Connector dials a network address, logging the attempt.
//
// All fields are safe to modify after construction but before first use;
// they must not be mutated concurrently with calls to [Connector.Dial].
type Connector struct {
	Dialer        Dialer
	ErrClassifier errclass.Classifier
	Logger        slaverlog.Logger
	TimeNow       func() time.Time
}

// New returns a [*Connector]. A nil logger is replaced with the discard
// logger and a nil classifier with [errclass.Default].
func New(dialer Dialer, logger slaverlog.Logger, classifier errclass.Classifier, timeNow func() time.Time) *Connector {
	if logger == nil {
		logger = slaverlog.Default()
	}
	if classifier == nil {
		classifier = errclass.Default
	}
	if timeNow == nil {
		timeNow = time.Now
	}
	return &Connector{
		Dialer:        dialer,
		ErrClassifier: classifier,
		Logger:        logger,
		TimeNow:       timeNow,
	}
}

// Dial connects to address over network, logging connectStart/connectDone.
func (c *Connector) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	t0 := c.TimeNow()
	deadline, _ := ctx.Deadline()
	c.Logger.Info("connectStart",
		"deadline", deadline,
		"protocol", network,
		"remoteAddr", address,
		"t", t0,
	)

	conn, err := c.Dialer.DialContext(ctx, network, address)

	c.Logger.Info("connectDone",
		"deadline", deadline,
		"err", err,
		"errClass", c.ErrClassifier.Classify(err),
		"localAddr", safeconn.LocalAddr(conn),
		"protocol", network,
		"remoteAddr", address,
		"t0", t0,
		"t", c.TimeNow(),
	)
	return conn, err
}
