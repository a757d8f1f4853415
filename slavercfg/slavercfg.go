// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: config.go
//

// Package slavercfg holds the immutable configuration consumed by the
// ctrlpkg codec, the session workers, and the pool controller.
package slavercfg

import (
	"context"
	"math"
	"net"
	"net/netip"
	"time"

	"github.com/aploium/goslaver/errclass"
)

// Dialer abstracts [*net.Dialer] so tests can inject a fake dialer.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config holds the configuration set once before the pool controller
// starts and read-only thereafter. Changing [Config.Secret] after the
// controller has started requires a process restart; the codec built
// from a [Config] is only as fresh as the moment it was constructed.
type Config struct {
	// MasterAddr is where the slaver dials for the control channel.
	MasterAddr netip.AddrPort

	// TargetAddr is where the slaver dials for data once activated.
	TargetAddr netip.AddrPort

	// Secret is the shared-secret key used by the control-packet codec.
	Secret string

	// SpareSlaverTTL bounds how long a standby connection may sit idle
	// between activations before its session gives up.
	//
	// Set by [New] to 600 seconds.
	SpareSlaverTTL time.Duration

	// MaxSpareCount is the maximum number of standby connections the pool
	// controller maintains.
	//
	// Set by [New] to 5.
	MaxSpareCount int

	// MaxConcurrentTargetDials bounds how many target dials may be in
	// flight at once across all sessions. This is a supplement beyond the
	// original slaver's behavior (which allows unlimited working
	// connections); the default leaves it effectively unbounded.
	//
	// Set by [New] to [math.MaxInt64].
	MaxConcurrentTargetDials int64

	// Dialer is used to dial both the master and the target.
	//
	// Set by [New] to [*net.Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [New] to [errclass.Default].
	ErrClassifier errclass.Classifier

	// TimeNow returns the current time.
	//
	// Set by [New] to [time.Now].
	TimeNow func() time.Time
}

// New creates a [*Config] with sensible defaults. Callers should set
// MasterAddr, TargetAddr, and Secret explicitly before use.
func New() *Config {
	return &Config{
		SpareSlaverTTL:           600 * time.Second,
		MaxSpareCount:            5,
		MaxConcurrentTargetDials: math.MaxInt64,
		Dialer:                   &net.Dialer{},
		ErrClassifier:            errclass.Default,
		TimeNow:                  time.Now,
	}
}
