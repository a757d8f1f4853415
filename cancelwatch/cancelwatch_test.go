// SPDX-License-Identifier: GPL-3.0-or-later

package cancelwatch

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/bassosimone/netstub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Close delegates to the underlying conn.
func TestWatchCall(t *testing.T) {
	closeCalled := false
	mockConn := &netstub.FuncConn{
		CloseFunc: func() error {
			closeCalled = true
			return nil
		},
	}

	result := Watch(context.Background(), mockConn)
	require.NotNil(t, result)

	err := result.Close()
	require.NoError(t, err)
	assert.True(t, closeCalled)
}

// Cancelling the context triggers Close on the underlying conn.
func TestWatchClosesOnCancel(t *testing.T) {
	done := make(chan bool, 1)
	mockConn := &netstub.FuncConn{
		CloseFunc: func() error {
			done <- true
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())

	Watch(ctx, mockConn)

	select {
	case <-done:
		t.Fatal("connection should not be closed yet")
	default:
	}

	cancel()

	waitClose := func() bool {
		return <-done
	}
	assert.Eventually(t, waitClose, time.Second, 10*time.Millisecond)
}

// If the context is already cancelled, the connection is closed immediately.
func TestWatchAlreadyCancelled(t *testing.T) {
	done := make(chan bool, 1)
	mockConn := &netstub.FuncConn{
		CloseFunc: func() error {
			done <- true
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	Watch(ctx, mockConn)

	waitClose := func() bool {
		return <-done
	}
	assert.Eventually(t, waitClose, time.Second, 10*time.Millisecond)
}

// Closing the wrapper unregisters the watcher so that subsequent context
// cancellation does not call Close on the underlying conn a second time.
func TestWatchCloseUnregistersWatcher(t *testing.T) {
	closeCount := 0
	mockConn := &netstub.FuncConn{
		CloseFunc: func() error {
			closeCount++
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result := Watch(ctx, mockConn)

	err := result.Close()
	require.NoError(t, err)
	assert.Equal(t, 1, closeCount)

	cancel()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, closeCount)
}

// tcpPipe returns two connected, loopback TCP net.Conns, so CloseWrite
// support matches what the real master connection provides.
func tcpPipe(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	acceptCh := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		acceptCh <- c
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	server := <-acceptCh
	require.NotNil(t, server)
	return client, server
}

// Watch's returned conn forwards CloseWrite to an underlying conn that
// supports it, instead of silently stripping that capability.
func TestWatchCloseWriteDelegates(t *testing.T) {
	client, server := tcpPipe(t)
	defer client.Close()
	defer server.Close()

	wrapped := Watch(context.Background(), client)

	cw, ok := wrapped.(interface{ CloseWrite() error })
	require.True(t, ok, "Watch's return value must expose CloseWrite when the wrapped conn does")
	require.NoError(t, cw.CloseWrite())

	buf := make([]byte, 1)
	n, err := server.Read(buf)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

// CloseWrite on a conn that does not support it is a harmless no-op rather
// than a panic.
func TestWatchCloseWriteUnsupported(t *testing.T) {
	mockConn := &netstub.FuncConn{}
	wrapped := Watch(context.Background(), mockConn)

	cw, ok := wrapped.(interface{ CloseWrite() error })
	require.True(t, ok)
	assert.NoError(t, cw.CloseWrite())
}
