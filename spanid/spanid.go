// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: spanid.go
//

// Package spanid generates correlation identifiers for logging a single
// bridged connection pair from handoff to completion.
package spanid

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// New returns a UUIDv7 identifying one bridge pair's lifetime, suitable
// for correlating its start/direction/completion log lines.
//
// This function panics if the system random number generator fails,
// which should only happen under extraordinary circumstances.
func New() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
