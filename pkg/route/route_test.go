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
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routelab/bgpd/pkg/packet/bgp"
)

func mustPrefix(t *testing.T, s string) *bgp.IPAddrPrefix {
	t.Helper()
	p, err := bgp.ParseIPAddrPrefix(s)
	require.NoError(t, err)
	return p
}

func TestRadixKey(t *testing.T) {
	assert.Equal(t, "00001010", radixKey(netip.MustParseAddr("10.0.0.0"), 8))
	assert.Equal(t, "110000001010", radixKey(netip.MustParseAddr("192.168.0.0"), 12))
	assert.Equal(t, "", radixKey(netip.MustParseAddr("0.0.0.0"), 0))
	assert.Len(t, radixKey(netip.MustParseAddr("2001:db8::1"), 128), 128)
}

func TestIndexLookup(t *testing.T) {
	def := &Route{Protocol: PROTO_DHCP, NextHop: net.ParseIP("192.168.0.1")}
	wide := &Route{Protocol: PROTO_KERNEL, Destination: mustPrefix(t, "10.0.0.0/8")}
	narrow := &Route{Protocol: PROTO_BGP, Destination: mustPrefix(t, "10.1.0.0/16")}
	narrow2 := &Route{Protocol: PROTO_STATIC, Destination: mustPrefix(t, "10.1.0.0/16")}
	v6 := &Route{Protocol: PROTO_ROUTER_ADVERTISEMENT, Destination: mustPrefix(t, "2001:db8::/32")}

	idx := NewIndex([]*Route{def, wide, narrow, narrow2, v6})

	assert.Equal(t, []*Route{narrow, narrow2}, idx.Lookup(netip.MustParseAddr("10.1.2.3")))
	assert.Equal(t, []*Route{wide}, idx.Lookup(netip.MustParseAddr("10.2.0.1")))
	assert.Equal(t, []*Route{def}, idx.Lookup(netip.MustParseAddr("8.8.8.8")))
	assert.Equal(t, []*Route{def}, idx.Lookup(netip.MustParseAddr("::ffff:8.8.8.8")))
	assert.Equal(t, []*Route{v6}, idx.Lookup(netip.MustParseAddr("2001:db8::1")))
	assert.Nil(t, idx.Lookup(netip.MustParseAddr("2001:db9::1")))
	assert.Nil(t, idx.Lookup(netip.Addr{}))

	assert.Equal(t, []*Route{wide}, Lookup([]*Route{wide, v6}, netip.MustParseAddr("10.200.0.1")))
}

func TestRouteString(t *testing.T) {
	metric := uint32(100)
	r := &Route{
		Protocol:    PROTO_STATIC,
		NextHop:     net.ParseIP("10.0.0.1"),
		Destination: mustPrefix(t, "192.168.1.0/24"),
		Priority:    &metric,
	}
	assert.Equal(t, "192.168.1.0/24 via 10.0.0.1 proto static metric 100", r.String())
	assert.Equal(t, "default proto other", (&Route{}).String())
}

func TestPrefixFromIPNet(t *testing.T) {
	_, n, err := net.ParseCIDR("172.16.5.0/24")
	require.NoError(t, err)
	p := prefixFromIPNet(n)
	require.NotNil(t, p)
	assert.Equal(t, "172.16.5.0/24", p.String())
	assert.Equal(t, uint16(bgp.AFI_IP), p.AFI())
	assert.Nil(t, prefixFromIPNet(nil))
}
