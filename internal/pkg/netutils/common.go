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
	"fmt"
	"net"
	"net/netip"
	"syscall"
)

// avoid mapped IPv6 address
func parseListenAddress(address string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("invalid listen address %q: %w", address, err)
	}
	return addr.Unmap(), nil
}

func extractFamilyFromAddress(addr netip.Addr) int {
	if addr.Is6() {
		return syscall.AF_INET6
	}
	return syscall.AF_INET
}

func extractProtoFromAddress(addr netip.Addr) string {
	if addr.Is6() {
		return "tcp6"
	}
	return "tcp4"
}

// ConnKey returns the string used to index an accepted connection.
func ConnKey(conn net.Conn) string {
	if conn == nil {
		return ""
	}
	addr := conn.RemoteAddr()
	if addr == nil {
		return ""
	}
	return addr.String()
}
