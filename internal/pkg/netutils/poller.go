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

package netutils

import (
	"errors"
	"syscall"
)

var (
	ErrNotSupported = errors.New("readiness polling is not supported on this platform")
	ErrPollerClosed = errors.New("poller is closed")
)

// Token identifies a registration in events returned by Poller.Wait.
type Token uint32

type Interest uint8

const (
	Readable Interest = 1 << iota
	Writable
)

// Event reports readiness for one registration. Closed is set on peer
// hangup, read half shutdown or socket error.
type Event struct {
	Token    Token
	Readable bool
	Writable bool
	Closed   bool
}

// connFd returns the descriptor behind conn. The caller must keep conn open
// while the descriptor is in use.
func connFd(conn syscall.Conn) (int, error) {
	rc, err := conn.SyscallConn()
	if err != nil {
		return -1, err
	}
	fd := -1
	if err := rc.Control(func(s uintptr) {
		fd = int(s)
	}); err != nil {
		return -1, err
	}
	return fd, nil
}
