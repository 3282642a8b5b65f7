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
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"

	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/sys/unix"

	"github.com/routelab/bgpd/pkg/log"
)

const ListenBacklog = 4096

var ErrListenerClosed = errors.New("listener is closed")

type TCPConn struct {
	*net.TCPConn
	cb func(*TCPConn)
}

func (c *TCPConn) Close() error {
	if c.cb != nil {
		c.cb(c)
	}
	return c.TCPConn.Close()
}

func (c *TCPConn) Key() string {
	if c == nil || c.TCPConn == nil {
		return ""
	}
	return ConnKey(c.TCPConn)
}

// Ensure TCPConn implements net.Conn/syscall.Conn interfaces
var (
	_ net.Conn     = (*TCPConn)(nil)
	_ syscall.Conn = (*TCPConn)(nil)
)

// TCPListener is a non-blocking listening socket driven by readiness events.
// Accepted connections stay tracked until they are closed or the listener
// itself is closed.
type TCPListener struct {
	mu           sync.Mutex
	fd           int
	addr         *net.TCPAddr
	acceptedConn cmap.ConcurrentMap[string, *TCPConn] // key is RemoteAddr().String()
	logger       log.Logger
}

func NewTCPListener(logger log.Logger, address string, port uint32) (*TCPListener, error) {
	if port > 0xffff {
		return nil, fmt.Errorf("invalid listen port %d", port)
	}
	ip, err := parseListenAddress(address)
	if err != nil {
		return nil, err
	}
	family := extractFamilyFromAddress(ip)

	var sa unix.Sockaddr
	if family == syscall.AF_INET6 {
		sa = &unix.SockaddrInet6{Port: int(port), Addr: ip.As16()}
	} else {
		sa = &unix.SockaddrInet4{Port: int(port), Addr: ip.As4()}
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	if err := setListenerSockopts(fd, family); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("bind", err)
	}
	if err := unix.Listen(fd, ListenBacklog); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("listen", err)
	}
	bound, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("getsockname", err)
	}

	l := &TCPListener{
		fd:           fd,
		addr:         sockaddrToTCPAddr(bound),
		acceptedConn: cmap.New[*TCPConn](),
		logger:       logger,
	}
	logger.Info("listening for incoming connections",
		log.Fields{
			"Topic": "Listener",
			"Key":   l.addr.String(),
			"Proto": extractProtoFromAddress(ip),
		})
	return l, nil
}

func sockaddrToTCPAddr(sa unix.Sockaddr) *net.TCPAddr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(sa.Addr[:]).To16(), Port: sa.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(sa.Addr[:]), Port: sa.Port}
	}
	return &net.TCPAddr{}
}

func (l *TCPListener) closeConnCb(tcpConn *TCPConn) {
	key := tcpConn.Key()
	if key == "" {
		return // nothing to do
	}
	l.acceptedConn.Remove(key)
}

// Fd returns the listening descriptor for readiness registration, or -1 once
// the listener is closed.
func (l *TCPListener) Fd() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fd
}

func (l *TCPListener) accept() (*TCPConn, error) {
	nfd, _, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return nil, err
	}
	f := os.NewFile(uintptr(nfd), "")
	conn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		return nil, err
	}
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("unexpected connection type %T (not for TCP)", conn)
	}
	return &TCPConn{
		TCPConn: tcp,
		cb:      l.closeConnCb,
	}, nil
}

// AcceptAll accepts until the backlog is empty and hands every connection to
// fn. It returns the number of connections accepted.
func (l *TCPListener) AcceptAll(fn func(*TCPConn)) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fd < 0 {
		return 0, ErrListenerClosed
	}
	n := 0
	for {
		conn, err := l.accept()
		if err != nil {
			switch {
			case errors.Is(err, unix.EAGAIN):
				return n, nil
			case errors.Is(err, unix.EINTR), errors.Is(err, unix.ECONNABORTED):
				continue
			}
			return n, os.NewSyscallError("accept4", err)
		}
		key := conn.Key()
		l.acceptedConn.Set(key, conn)
		if err := conn.SetKeepAlive(false); err != nil {
			l.logger.Warn("Failed to SetKeepAlive",
				log.Fields{
					"Topic": "Listener",
					"Key":   key,
					"Error": err,
				})
		}
		n++
		fn(conn)
	}
}

// Accepted returns the number of accepted connections that are still open.
func (l *TCPListener) Accepted() int {
	return l.acceptedConn.Count()
}

func (l *TCPListener) Close() {
	l.mu.Lock()
	if l.fd >= 0 {
		unix.Close(l.fd)
		l.fd = -1
	}
	l.mu.Unlock()
	for t := range l.acceptedConn.IterBuffered() {
		_ = t.Val.TCPConn.Close()
	}
	l.acceptedConn.Clear()
}

func (l *TCPListener) Addr() net.Addr {
	return l.addr
}
