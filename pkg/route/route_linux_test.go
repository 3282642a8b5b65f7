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
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

func TestProtocolFromKernel(t *testing.T) {
	tests := map[int]RouteProtocol{
		unix.RTPROT_BOOT:   PROTO_KERNEL,
		unix.RTPROT_KERNEL: PROTO_KERNEL,
		unix.RTPROT_STATIC: PROTO_STATIC,
		unix.RTPROT_DHCP:   PROTO_DHCP,
		unix.RTPROT_RA:     PROTO_ROUTER_ADVERTISEMENT,
		186:                PROTO_BGP,
		188:                PROTO_OSPF,
		42:                 PROTO_OTHER,
	}
	for proto, want := range tests {
		assert.Equal(t, want, protocolFromKernel(proto), "protocol %d", proto)
	}
}

func TestFromNetlink(t *testing.T) {
	_, dst, err := net.ParseCIDR("10.10.0.0/16")
	require.NoError(t, err)
	r := fromNetlink(netlink.Route{
		Dst:      dst,
		Protocol: unix.RTPROT_STATIC,
		Priority: 20,
		MultiPath: []*netlink.NexthopInfo{
			{Gw: net.ParseIP("10.0.0.254")},
		},
	})
	assert.Equal(t, PROTO_STATIC, r.Protocol)
	assert.Equal(t, "10.10.0.0/16", r.Destination.String())
	assert.Equal(t, "10.0.0.254", r.NextHop.String())
	require.NotNil(t, r.Priority)
	assert.Equal(t, uint32(20), *r.Priority)

	def := fromNetlink(netlink.Route{Gw: net.ParseIP("192.0.2.1")})
	assert.Nil(t, def.Destination)
	assert.Nil(t, def.Priority)
}

func TestNetlinkRouteTableAll(t *testing.T) {
	routes, err := NewRouteTable().All(context.Background())
	if err != nil {
		t.Skipf("netlink is not available: %v", err)
	}
	for _, r := range routes {
		assert.NotEmpty(t, r.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewRouteTable().All(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
