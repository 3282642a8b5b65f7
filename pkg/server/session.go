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
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gopkg.in/tomb.v2"

	"github.com/routelab/bgpd/pkg/log"
	"github.com/routelab/bgpd/pkg/packet/bgp"
)

var (
	ErrNotConnected        = errors.New("session has no connection")
	ErrSessionStopped      = errors.New("session is stopped")
	ErrConnectionInstalled = errors.New("session already holds a connection")
)

// Connection holds exactly one stream, either accepted from the listener or
// dialed by the session.
type Connection struct {
	conn     net.Conn
	incoming bool
}

func NewIncomingConnection(conn net.Conn) *Connection {
	return &Connection{conn: conn, incoming: true}
}

func NewOutgoingConnection(conn net.Conn) *Connection {
	return &Connection{conn: conn}
}

func (c *Connection) Conn() net.Conn {
	return c.conn
}

func (c *Connection) Incoming() bool {
	return c.incoming
}

func (c *Connection) Outgoing() bool {
	return !c.incoming
}

func (c *Connection) Close() error {
	return c.conn.Close()
}

type SessionStats struct {
	ConnectAttempts uint64
	ConnectFailures uint64
	Connects        uint64
	Drops           uint64
}

type sessionEvent struct {
	event FSMEvent
	errCh chan error
}

// Session is the actor for one configured peer. Its loop goroutine is the
// only writer of the state and the connection slot; other goroutines talk to
// it through Close and Advance.
type Session struct {
	ID       uuid.UUID
	hostname string
	port     uint16
	interval time.Duration

	t         tomb.Tomb
	state     atomic.Uint32
	conn      *Connection
	reg       *registration
	registrar registrar
	closeCh   chan struct{}
	eventCh   chan *sessionEvent
	logger    log.Logger

	attempts atomic.Uint64
	failures atomic.Uint64
	connects atomic.Uint64
	drops    atomic.Uint64
}

func newSession(r registrar, logger log.Logger, hostname string, port uint16, interval time.Duration) *Session {
	s := &Session{
		ID:        uuid.New(),
		hostname:  hostname,
		port:      port,
		interval:  interval,
		registrar: r,
		closeCh:   make(chan struct{}, 1),
		eventCh:   make(chan *sessionEvent),
		logger:    logger,
	}
	s.state.Store(uint32(bgp.BGP_FSM_IDLE))
	return s
}

func (s *Session) start() {
	s.t.Go(s.loop)
}

func (s *Session) stop() error {
	s.t.Kill(nil)
	return s.t.Wait()
}

func (s *Session) Hostname() string {
	return s.hostname
}

func (s *Session) Port() uint16 {
	return s.port
}

func (s *Session) Interval() time.Duration {
	return s.interval
}

// Key is the "host:port" the session dials.
func (s *Session) Key() string {
	return sessionKey(s.hostname, s.port)
}

func sessionKey(hostname string, port uint16) string {
	return net.JoinHostPort(hostname, strconv.Itoa(int(port)))
}

func (s *Session) State() bgp.FSMState {
	return bgp.FSMState(s.state.Load())
}

func (s *Session) Stats() SessionStats {
	return SessionStats{
		ConnectAttempts: s.attempts.Load(),
		ConnectFailures: s.failures.Load(),
		Connects:        s.connects.Load(),
		Drops:           s.drops.Load(),
	}
}

// Close drops the current connection, if any. The session is not stopped:
// it starts reconnecting immediately.
func (s *Session) Close() {
	select {
	case s.closeCh <- struct{}{}:
	default:
	}
}

// Advance hands an event from the message exchange to the session. It
// blocks until the session is waiting on an installed connection or ctx is
// done.
func (s *Session) Advance(ctx context.Context, event FSMEvent) error {
	if s.State() == bgp.BGP_FSM_IDLE {
		return ErrNotConnected
	}
	ev := &sessionEvent{
		event: event,
		errCh: make(chan error, 1),
	}
	select {
	case s.eventCh <- ev:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.t.Dying():
		return ErrSessionStopped
	}
	return <-ev.errCh
}

func (s *Session) fields() log.Fields {
	return log.Fields{
		"Topic":   "Peer",
		"Key":     s.Key(),
		"Session": s.ID.String(),
	}
}

func (s *Session) setState(next bgp.FSMState, reason FSMStateReasonType) {
	old := s.State()
	if old == next {
		return
	}
	s.state.Store(uint32(next))
	f := s.fields()
	f["OldState"] = old.String()
	f["NewState"] = next.String()
	f["Reason"] = reason.String()
	s.logger.Info("Peer state changed", f)
}

func (s *Session) connect(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{
		KeepAlive: -1,
	}
	return d.DialContext(ctx, "tcp", s.Key())
}

func (s *Session) sleep() bool {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	select {
	case <-s.t.Dying():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Session) install(c *Connection) error {
	if s.conn != nil {
		return ErrConnectionInstalled
	}
	s.conn = c
	return nil
}

func (s *Session) teardown(reason FSMStateReasonType) {
	if s.reg != nil {
		s.registrar.deregister(s.reg)
		s.reg = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	switch reason {
	case FSMConnectionClosed, FSMPeerClosed, FSMNotificationRecv:
		s.drops.Add(1)
	}
	next, _ := nextState(s.State(), FSMConnectionDropped)
	s.setState(next, reason)
}

func (s *Session) wait(reg *registration) FSMStateReasonType {
	for {
		select {
		case <-s.t.Dying():
			return FSMDying
		case <-reg.dropped:
			return FSMPeerClosed
		case <-s.closeCh:
			return FSMConnectionClosed
		case ev := <-s.eventCh:
			next, err := nextState(s.State(), ev.event)
			if err != nil {
				ev.errCh <- err
				continue
			}
			switch ev.event {
			case FSMNotificationReceived:
				ev.errCh <- nil
				return FSMNotificationRecv
			case FSMConnectionDropped:
				ev.errCh <- nil
				return FSMPeerClosed
			}
			s.setState(next, FSMEventReceived)
			ev.errCh <- nil
		}
	}
}

func (s *Session) loop() error {
	ctx := s.t.Context(context.Background())
	for {
		s.attempts.Add(1)
		conn, err := s.connect(ctx)
		if err != nil {
			select {
			case <-s.t.Dying():
				return nil
			default:
			}
			s.failures.Add(1)
			f := s.fields()
			f["Error"] = err
			f["Reason"] = FSMConnectFailed.String()
			s.logger.Debug("failed to connect", f)
			if !s.sleep() {
				return nil
			}
			continue
		}

		// a close requested while there was no connection applies to nothing
		select {
		case <-s.closeCh:
		default:
		}

		next, _ := nextState(s.State(), FSMTCPConnected)
		s.setState(next, FSMConnected)
		if err := s.install(NewOutgoingConnection(conn)); err != nil {
			conn.Close()
			f := s.fields()
			f["Error"] = err
			s.logger.Error("failed to install connection", f)
			s.setState(bgp.BGP_FSM_IDLE, FSMRegisterFailed)
			continue
		}
		s.connects.Add(1)

		reg, err := s.registrar.register(s, conn)
		if err != nil {
			f := s.fields()
			f["Error"] = err
			s.logger.Warn("failed to register connection", f)
			s.teardown(FSMRegisterFailed)
			if !s.sleep() {
				return nil
			}
			continue
		}
		s.reg = reg

		reason := s.wait(reg)
		s.teardown(reason)
		if reason == FSMDying {
			return nil
		}
	}
}
