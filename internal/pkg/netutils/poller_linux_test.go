// Copyright (C) 2016 Nippon Telegraph and Telephone Corporation.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux

package netutils

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loopbackPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ch := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(ch)
			return
		}
		ch <- c
	}()
	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	server, ok := <-ch
	require.True(t, ok)
	return client, server
}

func TestPollerWritableAndHangup(t *testing.T) {
	p, err := NewPoller()
	require.NoError(t, err)
	defer p.Close()

	client, server := loopbackPair(t)
	defer client.Close()

	fd, err := p.RegisterConn(client.(*net.TCPConn), 7, Readable|Writable)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Len())

	waitEvent(t, p, 7, func(ev Event) bool { return ev.Writable && !ev.Closed })

	server.Close()
	waitEvent(t, p, 7, func(ev Event) bool { return ev.Closed })

	require.NoError(t, p.Deregister(fd))
	assert.Equal(t, 0, p.Len())
	// unknown descriptors are ignored
	require.NoError(t, p.Deregister(fd))
}

func TestPollerRegisterTwice(t *testing.T) {
	p, err := NewPoller()
	require.NoError(t, err)
	defer p.Close()

	client, server := loopbackPair(t)
	defer client.Close()
	defer server.Close()

	fd, err := p.RegisterConn(client.(*net.TCPConn), 1, Readable)
	require.NoError(t, err)
	assert.Error(t, p.Register(fd, 2, Readable))
}

func TestPollerClosed(t *testing.T) {
	p, err := NewPoller()
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	assert.ErrorIs(t, p.Register(0, 1, Readable), ErrPollerClosed)
	assert.ErrorIs(t, p.Deregister(0), ErrPollerClosed)
}

func TestPollerWaitTimeout(t *testing.T) {
	p, err := NewPoller()
	require.NoError(t, err)
	defer p.Close()

	start := time.Now()
	n, err := p.Wait(make([]Event, 4), 20*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}
