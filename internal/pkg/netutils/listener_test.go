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

	"github.com/routelab/bgpd/pkg/log"
)

func waitEvent(t *testing.T, p *Poller, token Token, match func(Event) bool) {
	t.Helper()
	events := make([]Event, 16)
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		n, err := p.Wait(events, 100*time.Millisecond)
		require.NoError(t, err)
		for _, ev := range events[:n] {
			if ev.Token == token && match(ev) {
				return
			}
		}
	}
	t.Fatalf("no matching event for token %d", token)
}

func TestTCPListenerAcceptAll(t *testing.T) {
	l, err := NewTCPListener(log.NewTestLogger(), "127.0.0.1", 0)
	require.NoError(t, err)
	defer l.Close()

	addr, ok := l.Addr().(*net.TCPAddr)
	require.True(t, ok)
	assert.NotZero(t, addr.Port)

	p, err := NewPoller()
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.Register(l.Fd(), 0, Readable))

	c1, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer c1.Close()
	c2, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer c2.Close()

	var accepted []*TCPConn
	deadline := time.Now().Add(3 * time.Second)
	for len(accepted) < 2 && time.Now().Before(deadline) {
		waitEvent(t, p, 0, func(ev Event) bool { return ev.Readable })
		_, err := l.AcceptAll(func(c *TCPConn) {
			accepted = append(accepted, c)
		})
		require.NoError(t, err)
	}
	require.Len(t, accepted, 2)
	assert.Equal(t, 2, l.Accepted())

	// nothing left in the backlog
	n, err := l.AcceptAll(func(*TCPConn) {})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, accepted[0].Close())
	assert.Equal(t, 1, l.Accepted())

	require.NoError(t, p.Deregister(l.Fd()))
	l.Close()
	assert.Equal(t, 0, l.Accepted())
	assert.Equal(t, -1, l.Fd())
	_, err = l.AcceptAll(func(*TCPConn) {})
	assert.ErrorIs(t, err, ErrListenerClosed)
}

func TestTCPListenerReusePort(t *testing.T) {
	l1, err := NewTCPListener(log.NewTestLogger(), "127.0.0.1", 0)
	require.NoError(t, err)
	defer l1.Close()

	port := l1.Addr().(*net.TCPAddr).Port
	l2, err := NewTCPListener(log.NewTestLogger(), "127.0.0.1", uint32(port))
	require.NoError(t, err)
	l2.Close()
}

func TestTCPListenerIPv6(t *testing.T) {
	l, err := NewTCPListener(log.NewTestLogger(), "::1", 0)
	if err != nil {
		t.Skipf("no IPv6 loopback: %v", err)
	}
	defer l.Close()
	addr := l.Addr().(*net.TCPAddr)
	assert.Equal(t, "::1", addr.IP.String())
}

func TestNewTCPListenerErrors(t *testing.T) {
	_, err := NewTCPListener(log.NewTestLogger(), "not-an-address", 0)
	assert.Error(t, err)

	_, err = NewTCPListener(log.NewTestLogger(), "127.0.0.1", 70000)
	assert.Error(t, err)
}

func TestTCPListenerMappedAddress(t *testing.T) {
	l, err := NewTCPListener(log.NewTestLogger(), "::ffff:127.0.0.1", 0)
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, "127.0.0.1", l.Addr().(*net.TCPAddr).IP.String())
}
