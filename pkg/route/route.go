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

package route

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"

	radix "github.com/armon/go-radix"

	"github.com/routelab/bgpd/pkg/packet/bgp"
)

var ErrNotSupported = errors.New("route table is not supported on this platform")

type RouteProtocol uint8

const (
	PROTO_OTHER RouteProtocol = iota
	PROTO_STATIC
	PROTO_BGP
	PROTO_DHCP
	PROTO_OSPF
	PROTO_KERNEL
	PROTO_ROUTER_ADVERTISEMENT
)

func (p RouteProtocol) String() string {
	switch p {
	case PROTO_STATIC:
		return "static"
	case PROTO_BGP:
		return "bgp"
	case PROTO_DHCP:
		return "dhcp"
	case PROTO_OSPF:
		return "ospf"
	case PROTO_KERNEL:
		return "kernel"
	case PROTO_ROUTER_ADVERTISEMENT:
		return "ra"
	}
	return "other"
}

// Route is one entry of the host routing table. A nil Destination is the
// default route.
type Route struct {
	Protocol    RouteProtocol
	NextHop     net.IP
	Destination *bgp.IPAddrPrefix
	Priority    *uint32
}

func (r *Route) String() string {
	var b strings.Builder
	if r.Destination != nil {
		b.WriteString(r.Destination.String())
	} else {
		b.WriteString("default")
	}
	if r.NextHop != nil {
		fmt.Fprintf(&b, " via %s", r.NextHop)
	}
	fmt.Fprintf(&b, " proto %s", r.Protocol)
	if r.Priority != nil {
		fmt.Fprintf(&b, " metric %d", *r.Priority)
	}
	return b.String()
}

// RouteTable enumerates the routes installed in the host.
type RouteTable interface {
	All(ctx context.Context) ([]*Route, error)
}

func radixKey(addr netip.Addr, length int) string {
	var b strings.Builder
	b.Grow(length)
	for i, octet := range addr.AsSlice() {
		for j := 0; j < 8 && i*8+j < length; j++ {
			if octet&(0x80>>j) != 0 {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		}
	}
	return b.String()
}

// Index answers longest prefix match queries over a set of routes.
type Index struct {
	trees map[bgp.RouteFamily]*radix.Tree
}

func NewIndex(routes []*Route) *Index {
	idx := &Index{
		trees: map[bgp.RouteFamily]*radix.Tree{
			bgp.RF_IPv4_UC: radix.New(),
			bgp.RF_IPv6_UC: radix.New(),
		},
	}
	for _, r := range routes {
		idx.Add(r)
	}
	return idx
}

func (idx *Index) tree(addr netip.Addr) *radix.Tree {
	if addr.Is4() {
		return idx.trees[bgp.RF_IPv4_UC]
	}
	return idx.trees[bgp.RF_IPv6_UC]
}

// Add indexes r. Routes without a destination are indexed as the default
// route of the next hop's family, or IPv4 when there is no next hop.
func (idx *Index) Add(r *Route) {
	var tree *radix.Tree
	key := ""
	if r.Destination != nil {
		tree = idx.tree(r.Destination.Prefix)
		key = radixKey(r.Destination.Prefix, int(r.Destination.Length))
	} else {
		tree = idx.trees[bgp.RF_IPv4_UC]
		if r.NextHop != nil && r.NextHop.To4() == nil {
			tree = idx.trees[bgp.RF_IPv6_UC]
		}
	}
	if v, ok := tree.Get(key); ok {
		tree.Insert(key, append(v.([]*Route), r))
		return
	}
	tree.Insert(key, []*Route{r})
}

// Lookup returns the routes of the longest prefix covering addr.
func (idx *Index) Lookup(addr netip.Addr) []*Route {
	addr = addr.Unmap()
	if !addr.IsValid() {
		return nil
	}
	_, v, ok := idx.tree(addr).LongestPrefix(radixKey(addr, addr.BitLen()))
	if !ok {
		return nil
	}
	return v.([]*Route)
}

// Lookup builds an index over routes and queries it once.
func Lookup(routes []*Route, addr netip.Addr) []*Route {
	return NewIndex(routes).Lookup(addr)
}

func prefixFromIPNet(n *net.IPNet) *bgp.IPAddrPrefix {
	if n == nil {
		return nil
	}
	addr, ok := netip.AddrFromSlice(n.IP)
	if !ok {
		return nil
	}
	ones, _ := n.Mask.Size()
	return bgp.NewIPAddrPrefix(netip.PrefixFrom(addr.Unmap(), ones))
}
