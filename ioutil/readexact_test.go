// SPDX-License-Identifier: GPL-3.0-or-later

package ioutil

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/bassosimone/netstub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMinimalConn() *netstub.FuncConn {
	return &netstub.FuncConn{
		LocalAddrFunc:  func() net.Addr { return &net.TCPAddr{} },
		RemoteAddrFunc: func() net.Addr { return &net.TCPAddr{} },
		SetReadDeadlineFunc: func(time.Time) error {
			return nil
		},
	}
}

// ReadExact accumulates across partial reads and returns exactly n bytes.
func TestReadExactPartialReads(t *testing.T) {
	want := []byte("hello world!")
	offset := 0
	conn := newMinimalConn()
	conn.ReadFunc = func(b []byte) (int, error) {
		if offset >= len(want) {
			return 0, errors.New("no more data")
		}
		n := copy(b[:1], want[offset:offset+1])
		offset += n
		return n, nil
	}

	got, err := ReadExact(conn, len(want), time.Second)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// ReadExact returns ErrReadClosed when the peer sends EOF early.
func TestReadExactRemoteClose(t *testing.T) {
	conn := newMinimalConn()
	conn.ReadFunc = func(b []byte) (int, error) {
		return 0, io.EOF
	}

	_, err := ReadExact(conn, 32, time.Second)
	assert.ErrorIs(t, err, ErrReadClosed)
}

// ReadExact returns ErrReadTimeout when the deadline elapses.
func TestReadExactTimeout(t *testing.T) {
	conn := newMinimalConn()
	conn.ReadFunc = func(b []byte) (int, error) {
		return 0, &net.OpError{Op: "read", Err: timeoutErr{}}
	}

	_, err := ReadExact(conn, 32, time.Millisecond)
	assert.ErrorIs(t, err, ErrReadTimeout)
}

// ReadExact wraps any other transport error.
func TestReadExactTransportError(t *testing.T) {
	wantErr := errors.New("connection reset")
	conn := newMinimalConn()
	conn.ReadFunc = func(b []byte) (int, error) {
		return 0, wantErr
	}

	_, err := ReadExact(conn, 32, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
}

// ReadExact never reads beyond n bytes.
func TestReadExactDoesNotOverread(t *testing.T) {
	want := []byte("0123456789")
	reads := 0
	conn := newMinimalConn()
	conn.ReadFunc = func(b []byte) (int, error) {
		reads++
		n := copy(b, want)
		return n, nil
	}

	got, err := ReadExact(conn, 5, time.Second)
	require.NoError(t, err)
	assert.Equal(t, want[:5], got)
	assert.Equal(t, 1, reads)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }
