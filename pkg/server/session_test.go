// Copyright (C) 2014-2021 Nippon Telegraph and Telephone Corporation.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routelab/bgpd/internal/pkg/netutils"
	"github.com/routelab/bgpd/pkg/log"
	"github.com/routelab/bgpd/pkg/packet/bgp"
)

type fakeRegistrar struct {
	mu           sync.Mutex
	err          error
	regs         []*registration
	deregistered int
}

func (f *fakeRegistrar) register(s *Session, conn net.Conn) (*registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	r := &registration{
		token:   netutils.Token(len(f.regs) + 1),
		session: s,
		dropped: make(chan struct{}),
	}
	f.regs = append(f.regs, r)
	return r, nil
}

func (f *fakeRegistrar) deregister(r *registration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deregistered++
}

func (f *fakeRegistrar) last() *registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.regs) == 0 {
		return nil
	}
	return f.regs[len(f.regs)-1]
}

// peerListener accepts every connection and keeps it until the test ends.
func peerListener(t *testing.T) (uint16, <-chan net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ch := make(chan net.Conn, 16)
	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
			select {
			case ch <- c:
			default:
			}
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return uint16(ln.Addr().(*net.TCPAddr).Port), ch
}

func unusedPort(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return uint16(port)
}

func startSession(t *testing.T, r registrar, logger log.Logger, port uint16, interval time.Duration) *Session {
	t.Helper()
	s := newSession(r, logger, "127.0.0.1", port, interval)
	s.start()
	t.Cleanup(func() {
		s.stop()
	})
	return s
}

func TestSessionNeverConnectsWithoutListener(t *testing.T) {
	logger := log.NewTestLogger()
	logger.SetLevel(log.DebugLevel)
	s := startSession(t, &fakeRegistrar{}, logger, unusedPort(t), 50*time.Millisecond)

	deadline := time.Now().Add(400 * time.Millisecond)
	for time.Now().Before(deadline) {
		require.Equal(t, bgp.BGP_FSM_IDLE, s.State())
		time.Sleep(5 * time.Millisecond)
	}
	stats := s.Stats()
	assert.Zero(t, stats.Connects)
	assert.GreaterOrEqual(t, stats.ConnectFailures, uint64(2))
	assert.GreaterOrEqual(t, logger.Count(log.DebugLevel, "failed to connect"), 2)
}

func TestSessionRetryWaitsFullInterval(t *testing.T) {
	s := startSession(t, &fakeRegistrar{}, log.NewTestLogger(), unusedPort(t), 100*time.Millisecond)

	// attempts at 0, 100, 200 and 300ms at the earliest
	time.Sleep(350 * time.Millisecond)
	attempts := s.Stats().ConnectAttempts
	assert.LessOrEqual(t, attempts, uint64(4))
	assert.GreaterOrEqual(t, attempts, uint64(2))
}

func TestSessionAdvance(t *testing.T) {
	port, _ := peerListener(t)
	r := &fakeRegistrar{}
	s := startSession(t, r, log.NewTestLogger(), port, 100*time.Millisecond)

	require.Eventually(t, func() bool {
		return s.State() == bgp.BGP_FSM_CONNECT
	}, 2*time.Second, 5*time.Millisecond)

	ctx := context.Background()
	err := s.Advance(ctx, FSMOpenReceived)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, bgp.BGP_FSM_CONNECT, s.State())

	require.NoError(t, s.Advance(ctx, FSMOpenSent))
	assert.Equal(t, bgp.BGP_FSM_OPENSENT, s.State())
	require.NoError(t, s.Advance(ctx, FSMOpenReceived))
	assert.Equal(t, bgp.BGP_FSM_OPENCONFIRM, s.State())
	require.NoError(t, s.Advance(ctx, FSMKeepaliveReceived))
	assert.Equal(t, bgp.BGP_FSM_ESTABLISHED, s.State())

	require.NoError(t, s.Advance(ctx, FSMNotificationReceived))
	require.Eventually(t, func() bool {
		return s.Stats().Connects == 2 && s.State() == bgp.BGP_FSM_CONNECT
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), s.Stats().Drops)
}

func TestSessionAdvanceWithoutConnection(t *testing.T) {
	s := newSession(&fakeRegistrar{}, log.NewTestLogger(), "127.0.0.1", unusedPort(t), time.Second)
	assert.ErrorIs(t, s.Advance(context.Background(), FSMOpenSent), ErrNotConnected)
}

func TestSessionDropReconnects(t *testing.T) {
	port, _ := peerListener(t)
	r := &fakeRegistrar{}
	s := startSession(t, r, log.NewTestLogger(), port, 100*time.Millisecond)

	require.Eventually(t, func() bool {
		return s.State() == bgp.BGP_FSM_CONNECT
	}, 2*time.Second, 5*time.Millisecond)

	first := r.last()
	first.drop()
	// a second hangup for the same registration is harmless
	first.drop()

	require.Eventually(t, func() bool {
		return r.last() != first && s.State() == bgp.BGP_FSM_CONNECT
	}, 2*time.Second, 5*time.Millisecond)

	r.mu.Lock()
	assert.Equal(t, 1, r.deregistered)
	r.mu.Unlock()
	assert.Equal(t, uint64(1), s.Stats().Drops)
}

func TestSessionCloseReconnects(t *testing.T) {
	port, accepted := peerListener(t)
	interval := 500 * time.Millisecond
	s := startSession(t, &fakeRegistrar{}, log.NewTestLogger(), port, interval)

	require.Eventually(t, func() bool {
		return s.State() == bgp.BGP_FSM_CONNECT
	}, interval, 5*time.Millisecond)
	peer := <-accepted

	s.Close()
	require.Eventually(t, func() bool {
		return s.Stats().Connects == 2 && s.State() == bgp.BGP_FSM_CONNECT
	}, interval, 5*time.Millisecond)

	// the dropped connection was closed on our side
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(time.Second)))
	_, err := peer.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestSessionRegistrationFailure(t *testing.T) {
	port, _ := peerListener(t)
	logger := log.NewTestLogger()
	r := &fakeRegistrar{err: errors.New("no room")}
	interval := 200 * time.Millisecond
	s := startSession(t, r, logger, port, interval)

	time.Sleep(500 * time.Millisecond)

	n := uint64(logger.Count(log.WarnLevel, "failed to register connection"))
	stats := s.Stats()
	assert.GreaterOrEqual(t, n, uint64(1))
	// one attempt per interval, never a busy loop
	assert.LessOrEqual(t, stats.ConnectAttempts, uint64(5))
	assert.GreaterOrEqual(t, stats.Connects, n)
	assert.LessOrEqual(t, stats.Connects, n+1)
}

func TestSessionStop(t *testing.T) {
	port, _ := peerListener(t)
	s := newSession(&fakeRegistrar{}, log.NewTestLogger(), "127.0.0.1", port, 100*time.Millisecond)
	s.start()
	require.Eventually(t, func() bool {
		return s.State() == bgp.BGP_FSM_CONNECT
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.stop())
	assert.Equal(t, bgp.BGP_FSM_IDLE, s.State())
	assert.ErrorIs(t, s.Advance(context.Background(), FSMOpenSent), ErrNotConnected)
}

func TestConnection(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()

	in := NewIncomingConnection(a)
	assert.True(t, in.Incoming())
	assert.False(t, in.Outgoing())
	assert.Equal(t, a, in.Conn())

	out := NewOutgoingConnection(b)
	assert.True(t, out.Outgoing())
	assert.NoError(t, in.Close())
}
