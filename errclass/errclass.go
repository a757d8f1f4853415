// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/common/errclass/errclass.go
//

// Package errclass classifies network errors into short, categorical
// strings suitable for structured logging and for the error taxonomy
// described in the top-level specification (TransportError, TimeoutError,
// ProtocolError, TargetUnreachable, SpawnError).
//
// The platform-specific errno tables live in unix.go and windows.go.
package errclass

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// Classifier classifies errors into categorical strings for analysis.
//
// Implementations map errors to short, descriptive labels (e.g., "ETIMEDOUT",
// "ECONNRESET") that facilitate systematic analysis of logs.
type Classifier interface {
	Classify(err error) string
}

// ClassifierFunc adapts a function to the [Classifier] interface.
type ClassifierFunc func(error) string

var _ Classifier = ClassifierFunc(nil)

// Classify implements [Classifier].
func (f ClassifierFunc) Classify(err error) string {
	return f(err)
}

// Default is the [Classifier] used unless a slavercfg.Config's
// ErrClassifier field overrides it.
var Default = ClassifierFunc(Classify)

// Classify maps err to a short categorical string. It returns "" when err
// is nil and "EUNKNOWN" when err does not match a known category.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, io.EOF):
		return "EOF"
	case errors.Is(err, net.ErrClosed):
		return "ECONNCLOSED"
	case errors.Is(err, context.DeadlineExceeded):
		return "ETIMEDOUT"
	case errors.Is(err, context.Canceled):
		return "ECANCELED"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "ETIMEDOUT"
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if s := classifyErrno(errno); s != "" {
			return s
		}
	}

	return "EUNKNOWN"
}

// classifyErrno maps a platform errno to a short label using the
// platform-specific constants declared in unix.go / windows.go.
func classifyErrno(errno syscall.Errno) string {
	switch errno {
	case errEADDRNOTAVAIL:
		return "EADDRNOTAVAIL"
	case errEADDRINUSE:
		return "EADDRINUSE"
	case errECONNABORTED:
		return "ECONNABORTED"
	case errECONNREFUSED:
		return "ECONNREFUSED"
	case errECONNRESET:
		return "ECONNRESET"
	case errEHOSTUNREACH:
		return "EHOSTUNREACH"
	case errEINVAL:
		return "EINVAL"
	case errEINTR:
		return "EINTR"
	case errENETDOWN:
		return "ENETDOWN"
	case errENETUNREACH:
		return "ENETUNREACH"
	case errENOBUFS:
		return "ENOBUFS"
	case errENOTCONN:
		return "ENOTCONN"
	case errEPROTONOSUPPORT:
		return "EPROTONOSUPPORT"
	case errETIMEDOUT:
		return "ETIMEDOUT"
	default:
		return ""
	}
}
