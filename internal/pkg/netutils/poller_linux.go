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
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const epollET = 1 << 31

// Poller is an edge-triggered epoll instance shared by the listener and the
// sessions. Register and Deregister are serialized; Wait must only be called
// from a single goroutine.
type Poller struct {
	mu      sync.Mutex
	epfd    int
	fds     map[int]Token
	closed  bool
	waitBuf []unix.EpollEvent
}

func NewPoller() (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	return &Poller{
		epfd: epfd,
		fds:  make(map[int]Token),
	}, nil
}

func epollEvents(interest Interest) uint32 {
	events := uint32(epollET | unix.EPOLLRDHUP)
	if interest&Readable != 0 {
		events |= unix.EPOLLIN
	}
	if interest&Writable != 0 {
		events |= unix.EPOLLOUT
	}
	return events
}

func (p *Poller) Register(fd int, token Token, interest Interest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPollerClosed
	}
	if t, ok := p.fds[fd]; ok {
		return fmt.Errorf("descriptor %d is already registered with token %d", fd, t)
	}
	ev := unix.EpollEvent{
		Events: epollEvents(interest),
		Fd:     int32(token),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return os.NewSyscallError("epoll_ctl", err)
	}
	p.fds[fd] = token
	return nil
}

// RegisterConn registers the descriptor behind conn and returns it for a
// later Deregister.
func (p *Poller) RegisterConn(conn syscall.Conn, token Token, interest Interest) (int, error) {
	fd, err := connFd(conn)
	if err != nil {
		return -1, err
	}
	return fd, p.Register(fd, token, interest)
}

// Deregister removes fd. It must be called before fd is closed.
func (p *Poller) Deregister(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPollerClosed
	}
	if _, ok := p.fds[fd]; !ok {
		return nil
	}
	delete(p.fds, fd)
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil && err != unix.ENOENT && err != unix.EBADF {
		return os.NewSyscallError("epoll_ctl", err)
	}
	return nil
}

// Wait blocks for at most timeout and fills events. An interrupted wait
// returns zero events.
func (p *Poller) Wait(events []Event, timeout time.Duration) (int, error) {
	if len(p.waitBuf) < len(events) {
		p.waitBuf = make([]unix.EpollEvent, len(events))
	}
	n, err := unix.EpollWait(p.epfd, p.waitBuf[:len(events)], int(timeout/time.Millisecond))
	if err == unix.EINTR {
		return 0, nil
	}
	if err != nil {
		return 0, os.NewSyscallError("epoll_wait", err)
	}
	for i, ev := range p.waitBuf[:n] {
		events[i] = Event{
			Token:    Token(ev.Fd),
			Readable: ev.Events&unix.EPOLLIN != 0,
			Writable: ev.Events&unix.EPOLLOUT != 0,
			Closed:   ev.Events&(unix.EPOLLRDHUP|unix.EPOLLHUP|unix.EPOLLERR) != 0,
		}
	}
	return n, nil
}

// Len returns the number of registered descriptors.
func (p *Poller) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fds)
}

func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.fds = nil
	return unix.Close(p.epfd)
}
