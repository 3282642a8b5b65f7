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
	"syscall"
	"time"
)

type Poller struct{}

func NewPoller() (*Poller, error) {
	return nil, ErrNotSupported
}

func (p *Poller) Register(fd int, token Token, interest Interest) error {
	return ErrNotSupported
}

func (p *Poller) RegisterConn(conn syscall.Conn, token Token, interest Interest) (int, error) {
	return -1, ErrNotSupported
}

func (p *Poller) Deregister(fd int) error {
	return ErrNotSupported
}

func (p *Poller) Wait(events []Event, timeout time.Duration) (int, error) {
	return 0, ErrNotSupported
}

func (p *Poller) Len() int {
	return 0
}

func (p *Poller) Close() error {
	return nil
}
