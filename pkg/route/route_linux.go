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

package route

import (
	"context"
	"fmt"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

const (
	rtprotBGP  = 186
	rtprotOSPF = 188
)

type netlinkRouteTable struct{}

func NewRouteTable() RouteTable {
	return &netlinkRouteTable{}
}

func protocolFromKernel(proto int) RouteProtocol {
	switch proto {
	case unix.RTPROT_BOOT, unix.RTPROT_KERNEL:
		return PROTO_KERNEL
	case unix.RTPROT_STATIC:
		return PROTO_STATIC
	case unix.RTPROT_DHCP:
		return PROTO_DHCP
	case unix.RTPROT_RA:
		return PROTO_ROUTER_ADVERTISEMENT
	case rtprotBGP:
		return PROTO_BGP
	case rtprotOSPF:
		return PROTO_OSPF
	}
	return PROTO_OTHER
}

func fromNetlink(r netlink.Route) *Route {
	route := &Route{
		Protocol:    protocolFromKernel(int(r.Protocol)),
		NextHop:     r.Gw,
		Destination: prefixFromIPNet(r.Dst),
	}
	if route.NextHop == nil && len(r.MultiPath) > 0 {
		route.NextHop = r.MultiPath[0].Gw
	}
	if r.Priority > 0 {
		p := uint32(r.Priority)
		route.Priority = &p
	}
	return route
}

// All lists the IPv4 and IPv6 routes of the main table.
func (t *netlinkRouteTable) All(ctx context.Context) ([]*Route, error) {
	var routes []*Route
	filter := &netlink.Route{Table: unix.RT_TABLE_MAIN}
	for _, family := range []int{netlink.FAMILY_V4, netlink.FAMILY_V6} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		list, err := netlink.RouteListFiltered(family, filter, netlink.RT_FILTER_TABLE)
		if err != nil {
			return nil, fmt.Errorf("failed to list routes: %w", err)
		}
		for _, r := range list {
			routes = append(routes, fromNetlink(r))
		}
	}
	return routes, nil
}
