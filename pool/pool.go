// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: the spare_slaver_pool / working_pool dict pair in
// original_source/slaver.py, ported to a mutex-guarded map pair.
//

// Package pool holds the two disjoint connection-record pools — spare
// (standby, pre-handshake) and working (activated) — that the session
// and controller packages mutate under a single lock.
package pool

import (
	"net"
	"net/netip"
	"sync"
)

// Record is one dialed master connection, keyed by its local endpoint.
// Every record has a master-side socket and, after activation, a
// target-side socket.
type Record struct {
	// Key is the local (slaver-side) endpoint of MasterConn; the stable
	// pool key for this record.
	Key netip.AddrPort

	// MasterConn is the socket dialed to the master. Always non-nil.
	MasterConn net.Conn

	// TargetConn is the socket dialed to the target, attached only after
	// activation (spec.md §4.4 phase S3). Nil while the record is spare.
	TargetConn net.Conn
}

// Pools holds the spareSlaverPool and workingPool maps under one mutex.
// Every live record is in exactly one of the two maps until terminal
// teardown.
type Pools struct {
	mu      sync.Mutex
	spare   map[netip.AddrPort]*Record
	working map[netip.AddrPort]*Record
}

// New returns empty, ready-to-use [*Pools].
func New() *Pools {
	return &Pools{
		spare:   make(map[netip.AddrPort]*Record),
		working: make(map[netip.AddrPort]*Record),
	}
}

// AddSpare registers rec in the spare pool. rec must have no target
// socket attached, per the invariant in spec.md §3.
func (p *Pools) AddSpare(rec *Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spare[rec.Key] = rec
}

// SpareCount returns the current number of spare (standby) connections.
func (p *Pools) SpareCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.spare)
}

// WorkingCount returns the current number of activated connections.
func (p *Pools) WorkingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.working)
}

// Promote atomically moves the record keyed by key from the spare pool
// to the working pool. It reports false if key was not in the spare
// pool (e.g. it was already torn down by a racing failure path).
func (p *Pools) Promote(key netip.AddrPort) (*Record, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.spare[key]
	if !ok {
		return nil, false
	}
	delete(p.spare, key)
	p.working[key] = rec
	return rec, true
}

// RemoveSpare removes the record keyed by key from the spare pool, if
// present.
func (p *Pools) RemoveSpare(key netip.AddrPort) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.spare, key)
}

// RemoveWorking removes the record keyed by key from the working pool,
// if present.
func (p *Pools) RemoveWorking(key netip.AddrPort) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.working, key)
}
