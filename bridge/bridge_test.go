// SPDX-License-Identifier: GPL-3.0-or-later

package bridge

import (
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tcpPipe returns two connected, loopback TCP [net.Conn]s (so CloseWrite
// half-close support matches what the real master/target sockets provide).
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

// Bytes written to one side of a pair arrive intact on the other.
func TestBridgeBytePreservation(t *testing.T) {
	a, b := tcpPipe(t)
	targetA, targetB := tcpPipe(t)

	br := New(nil)
	br.Start()

	done := make(chan struct{})
	br.AddConnPair(b, targetA, func() { close(done) })

	payload := []byte("the quick brown fox jumps over the lazy dog")
	_, err := a.Write(payload)
	require.NoError(t, err)

	got := make([]byte, len(payload))
	_, err = io.ReadFull(targetB, got)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	reply := []byte("acknowledged")
	_, err = targetB.Write(reply)
	require.NoError(t, err)

	gotReply := make([]byte, len(reply))
	_, err = io.ReadFull(a, gotReply)
	require.NoError(t, err)
	assert.Equal(t, reply, gotReply)

	a.Close()
	targetB.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("onDone was never invoked")
	}
}

// onDone is invoked exactly once per pair, after both sockets are closed.
func TestBridgeOnDoneExactlyOnce(t *testing.T) {
	a, b := tcpPipe(t)
	targetA, targetB := tcpPipe(t)

	br := New(nil)
	br.Start()

	var calls int32
	done := make(chan struct{})
	br.AddConnPair(b, targetA, func() {
		atomic.AddInt32(&calls, 1)
		close(done)
	})

	a.Close()
	targetB.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("onDone was never invoked")
	}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, err := b.Write([]byte("x"))
	assert.Error(t, err, "bridge must have closed its side of the pair")
}

// Half-close: one side finishing its writes does not stop the bridge
// from draining the other direction.
func TestBridgeHalfClose(t *testing.T) {
	master, masterPeer := tcpPipe(t)
	target, targetPeer := tcpPipe(t)

	br := New(nil)
	br.Start()

	done := make(chan struct{})
	br.AddConnPair(masterPeer, targetPeer, func() { close(done) })

	// Target sends its data, then closes its write side.
	outbound := []byte("target-to-master payload")
	_, err := target.Write(outbound)
	require.NoError(t, err)
	if cw, ok := target.(interface{ CloseWrite() error }); ok {
		require.NoError(t, cw.CloseWrite())
	}

	got := make([]byte, len(outbound))
	_, err = io.ReadFull(master, got)
	require.NoError(t, err)
	assert.Equal(t, outbound, got)

	// Master keeps sending after the target half-closed; the bridge must
	// still pump master->target.
	inbound := []byte("master-to-target payload")
	_, err = master.Write(inbound)
	require.NoError(t, err)

	gotInbound := make([]byte, len(inbound))
	_, err = io.ReadFull(target, gotInbound)
	require.NoError(t, err)
	assert.Equal(t, inbound, gotInbound)

	master.Close()
	target.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("onDone was never invoked after half-close sequence")
	}
}
