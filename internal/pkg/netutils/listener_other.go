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

//go:build !linux

package netutils

import (
	"net"

	"github.com/routelab/bgpd/pkg/log"
)

type TCPConn struct {
	*net.TCPConn
}

func (c *TCPConn) Key() string {
	if c == nil || c.TCPConn == nil {
		return ""
	}
	return ConnKey(c.TCPConn)
}

type TCPListener struct{}

func NewTCPListener(logger log.Logger, address string, port uint32) (*TCPListener, error) {
	return nil, ErrNotSupported
}

func (l *TCPListener) Fd() int {
	return -1
}

func (l *TCPListener) AcceptAll(fn func(*TCPConn)) (int, error) {
	return 0, ErrNotSupported
}

func (l *TCPListener) Accepted() int {
	return 0
}

func (l *TCPListener) Close() {}

func (l *TCPListener) Addr() net.Addr {
	return nil
}
