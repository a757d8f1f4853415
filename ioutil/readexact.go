// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: the connection-observability idiom in observeconn.go,
// applied here to a single accumulating read instead of a conn wrapper.
//

// Package ioutil provides the deadline-bounded exact-length read used by
// the control-plane handshake loop.
package ioutil

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// ErrReadTimeout is returned by [ReadExact] when the deadline elapses
// before n bytes have been accumulated.
var ErrReadTimeout = errors.New("ioutil: read timed out")

// ErrReadClosed is returned by [ReadExact] when the peer closes the
// connection (EOF) before n bytes have been accumulated.
var ErrReadClosed = errors.New("ioutil: connection closed by peer")

// ReadExact reads exactly n bytes from conn within timeout, accumulating
// across partial reads. It never consumes bytes beyond n.
//
// It fails with [ErrReadTimeout] if the deadline elapses, [ErrReadClosed]
// if the peer closes the connection with fewer than n bytes delivered, or
// a wrapped transport error for any other I/O failure.
func ReadExact(conn net.Conn, n int, timeout time.Duration) ([]byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("ioutil: set read deadline: %w", err)
	}
	defer conn.SetReadDeadline(time.Time{})

	buf := make([]byte, n)
	_, err := io.ReadFull(conn, buf)
	switch {
	case err == nil:
		return buf, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return nil, ErrReadClosed
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, ErrReadTimeout
		}
		return nil, fmt.Errorf("ioutil: read: %w", err)
	}
}
