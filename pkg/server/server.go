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
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/eapache/channels"
	cmap "github.com/orcaman/concurrent-map/v2"
	"gopkg.in/tomb.v2"

	"github.com/routelab/bgpd/internal/pkg/netutils"
	"github.com/routelab/bgpd/pkg/log"
	"github.com/routelab/bgpd/pkg/packet/bgp"
)

const (
	// pollTimeout bounds each readiness wait so the poll loop notices Stop.
	pollTimeout   = 100 * time.Millisecond
	pollBatchSize = 128

	listenerToken netutils.Token = 0
)

var (
	ErrServerNotStarted = errors.New("server is not started")
	ErrServerStarted    = errors.New("server is already started")
	ErrSessionExists    = errors.New("session already exists")
	ErrSessionNotFound  = errors.New("session not found")
)

type options struct {
	logger        log.Logger
	listenAddress string
	listenPort    int32
}

type ServerOption func(*options)

func LoggerOption(logger log.Logger) ServerOption {
	return func(o *options) {
		o.logger = logger
	}
}

// ListenOption sets the passive listener address. A negative port disables
// the listener and zero picks an ephemeral port.
func ListenOption(address string, port int32) ServerOption {
	return func(o *options) {
		o.listenAddress = address
		o.listenPort = port
	}
}

// registration ties a session connection to its readiness token. dropped is
// closed once, on the first hangup reported for the token.
type registration struct {
	token   netutils.Token
	fd      int
	session *Session
	dropped chan struct{}
	once    sync.Once
}

func (r *registration) drop() {
	r.once.Do(func() {
		close(r.dropped)
	})
}

type registrar interface {
	register(*Session, net.Conn) (*registration, error)
	deregister(*registration)
}

type BgpServer struct {
	mu            sync.Mutex
	started       bool
	t             *tomb.Tomb
	poller        *netutils.Poller
	listener      *netutils.TCPListener
	pending       *channels.InfiniteChannel
	sessions      cmap.ConcurrentMap[string, *Session]
	registrations cmap.ConcurrentMap[netutils.Token, *registration]
	nextToken     atomic.Uint32
	logger        log.Logger
	opts          options
}

func NewBgpServer(opt ...ServerOption) *BgpServer {
	opts := options{
		listenAddress: "0.0.0.0",
		listenPort:    bgp.BGP_PORT,
	}
	for _, o := range opt {
		o(&opts)
	}
	logger := opts.logger
	if logger == nil {
		logger = log.NewDefaultLogger()
	}
	return &BgpServer{
		sessions: cmap.New[*Session](),
		registrations: cmap.NewWithCustomShardingFunction[netutils.Token, *registration](func(t netutils.Token) uint32 {
			return uint32(t)
		}),
		logger: logger,
		opts:   opts,
	}
}

func (s *BgpServer) Logger() log.Logger {
	return s.logger
}

func (s *BgpServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrServerStarted
	}

	poller, err := netutils.NewPoller()
	if err != nil {
		return err
	}
	if s.opts.listenPort >= 0 {
		l, err := netutils.NewTCPListener(s.logger, s.opts.listenAddress, uint32(s.opts.listenPort))
		if err != nil {
			poller.Close()
			return fmt.Errorf("failed to listen on %s: %w", s.opts.listenAddress, err)
		}
		if err := poller.Register(l.Fd(), listenerToken, netutils.Readable); err != nil {
			l.Close()
			poller.Close()
			return err
		}
		s.listener = l
	}
	s.poller = poller
	s.pending = channels.NewInfiniteChannel()
	s.t = &tomb.Tomb{}
	s.started = true

	s.t.Go(s.pollLoop)
	s.t.Go(s.pendingLoop)
	return nil
}

func (s *BgpServer) pollLoop() error {
	events := make([]netutils.Event, pollBatchSize)
	for {
		select {
		case <-s.t.Dying():
			return nil
		default:
		}
		n, err := s.poller.Wait(events, pollTimeout)
		if err != nil {
			s.logger.Error("failed to wait for readiness events",
				log.Fields{
					"Topic": "Server",
					"Error": err,
				})
			return err
		}
		for _, ev := range events[:n] {
			s.handleEvent(ev)
		}
	}
}

func (s *BgpServer) handleEvent(ev netutils.Event) {
	if ev.Token == listenerToken {
		if s.listener == nil || !ev.Readable {
			return
		}
		if _, err := s.listener.AcceptAll(func(conn *netutils.TCPConn) {
			s.pending.In() <- conn
		}); err != nil {
			s.logger.Warn("failed to accept",
				log.Fields{
					"Topic": "Server",
					"Error": err,
				})
		}
		return
	}
	if !ev.Closed {
		return
	}
	// stale tokens have already been removed
	if r, ok := s.registrations.Get(ev.Token); ok {
		r.drop()
	}
}

// pendingLoop receives accepted connections. Nothing matches them to a
// session yet: they stay open and tracked until the server stops.
func (s *BgpServer) pendingLoop() error {
	for {
		select {
		case <-s.t.Dying():
			return nil
		case v, ok := <-s.pending.Out():
			if !ok {
				return nil
			}
			conn := v.(*netutils.TCPConn)
			s.logger.Info("accepted a connection not associated with any session",
				log.Fields{
					"Topic": "Peer",
					"Key":   conn.Key(),
				})
		}
	}
}

func (s *BgpServer) register(session *Session, conn net.Conn) (*registration, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil, fmt.Errorf("connection %T has no descriptor", conn)
	}
	r := &registration{
		token:   netutils.Token(s.nextToken.Add(1)),
		session: session,
		dropped: make(chan struct{}),
	}
	s.registrations.Set(r.token, r)
	fd, err := s.poller.RegisterConn(sc, r.token, netutils.Readable|netutils.Writable)
	if err != nil {
		s.registrations.Remove(r.token)
		return nil, err
	}
	r.fd = fd
	return r, nil
}

func (s *BgpServer) deregister(r *registration) {
	s.registrations.Remove(r.token)
	if err := s.poller.Deregister(r.fd); err != nil {
		s.logger.Warn("failed to deregister connection",
			log.Fields{
				"Topic": "Peer",
				"Key":   r.session.Key(),
				"Error": err,
			})
	}
}

// NewSession starts a session that keeps dialing hostname:port, waiting
// interval between failed attempts.
func (s *BgpServer) NewSession(hostname string, port uint16, interval time.Duration) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, ErrServerNotStarted
	}
	if interval <= 0 {
		return nil, fmt.Errorf("invalid reconnect interval %s", interval)
	}
	session := newSession(s, s.logger, hostname, port, interval)
	if !s.sessions.SetIfAbsent(session.Key(), session) {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, session.Key())
	}
	s.logger.Info("Add a peer configuration",
		log.Fields{
			"Topic":   "Peer",
			"Key":     session.Key(),
			"Session": session.ID.String(),
		})
	session.start()
	return session, nil
}

// RemoveSession stops the session and releases its connection.
func (s *BgpServer) RemoveSession(hostname string, port uint16) error {
	key := sessionKey(hostname, port)
	session, ok := s.sessions.Pop(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, key)
	}
	s.logger.Info("Delete a peer configuration",
		log.Fields{
			"Topic":   "Peer",
			"Key":     key,
			"Session": session.ID.String(),
		})
	return session.stop()
}

func (s *BgpServer) Session(hostname string, port uint16) (*Session, bool) {
	return s.sessions.Get(sessionKey(hostname, port))
}

// Sessions returns the sessions ordered by key.
func (s *BgpServer) Sessions() []*Session {
	l := make([]*Session, 0, s.sessions.Count())
	for t := range s.sessions.IterBuffered() {
		l = append(l, t.Val)
	}
	sort.Slice(l, func(i, j int) bool {
		return l[i].Key() < l[j].Key()
	})
	return l
}

func (s *BgpServer) ListenAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// PendingConnections returns the number of accepted connections still open.
func (s *BgpServer) PendingConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return 0
	}
	return s.listener.Accepted()
}

func (s *BgpServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return ErrServerNotStarted
	}
	for _, key := range s.sessions.Keys() {
		if session, ok := s.sessions.Pop(key); ok {
			session.stop()
		}
	}
	s.t.Kill(nil)
	err := s.t.Wait()
	s.pending.Close()
	if s.listener != nil {
		s.poller.Deregister(s.listener.Fd())
		s.listener.Close()
		s.listener = nil
	}
	s.poller.Close()
	s.started = false
	s.logger.Info("stopped", log.Fields{"Topic": "Server"})
	return err
}
