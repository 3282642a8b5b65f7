// Copyright (C) 2015 Nippon Telegraph and Telephone Corporation.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"net"
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routelab/bgpd/pkg/packet/bgp"
	"github.com/routelab/bgpd/pkg/route"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	globalOpts.Json = false
	globalOpts.Debug = false
	decodeOpts.Hex = false
	routeOpts.Lookup = ""

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func Test_EncodeKeepalive(t *testing.T) {
	out, err := execute(t, "", "encode", "keepalive")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ff", 16)+"001304\n", out)
}

func Test_EncodeOpenDecodeRoundTrip(t *testing.T) {
	out, err := execute(t, "", "encode", "open", "--as", "4200000000", "--router-id", "10.0.0.1", "--family", "ipv4-unicast,ipv6-unicast")
	require.NoError(t, err)

	buf, err := hex.DecodeString(strings.TrimSpace(out))
	require.NoError(t, err)
	msg, err := bgp.ParseBGPMessage(buf)
	require.NoError(t, err)
	open, ok := msg.Body.(*bgp.BGPOpen)
	require.True(t, ok)
	assert.Equal(t, uint16(bgp.AS_TRANS), open.MyAS)
	assert.Equal(t, uint16(90), open.HoldTime)
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), open.ID)
	assert.Len(t, open.Capabilities(), 3)

	out, err = execute(t, strings.TrimSpace(out), "decode", "--hex")
	require.NoError(t, err)
	assert.Contains(t, out, "OPEN version 4 as 23456 hold 90 id 10.0.0.1")
	assert.Contains(t, out, "capability 4-octet-as")
}

func Test_EncodeOpenErrors(t *testing.T) {
	_, err := newOpenMessage(65000, "::1", 90, nil)
	assert.Error(t, err)
	_, err = newOpenMessage(65000, "10.0.0.1", 90, []string{"l2vpn-evpn"})
	assert.Error(t, err)

	msg, err := newOpenMessage(65000, "10.0.0.1", 180, nil)
	require.NoError(t, err)
	assert.Equal(t, uint16(65000), msg.Body.(*bgp.BGPOpen).MyAS)
}

func Test_DecodeStream(t *testing.T) {
	ka, err := bgp.NewBGPKeepAliveMessage().Serialize()
	require.NoError(t, err)
	n, err := bgp.NewBGPNotificationMessage(bgp.BGP_ERROR_CEASE, 2, nil).Serialize()
	require.NoError(t, err)

	out, err := execute(t, string(append(ka, n...)), "decode")
	require.NoError(t, err)
	assert.Equal(t, "KEEPALIVE\nNOTIFICATION code 6 subcode 2\n", out)

	_, err = execute(t, string(ka[:10]), "decode")
	assert.Error(t, err)

	_, err = execute(t, "zz", "decode", "--hex")
	assert.Error(t, err)
}

type staticRouteTable []*route.Route

func (s staticRouteTable) All(context.Context) ([]*route.Route, error) {
	return s, nil
}

func Test_ListRoutes(t *testing.T) {
	table := staticRouteTable{
		{Protocol: route.PROTO_KERNEL, NextHop: net.ParseIP("192.168.0.1")},
		{Protocol: route.PROTO_STATIC, Destination: bgp.NewIPAddrPrefix(netip.MustParsePrefix("10.0.0.0/8"))},
	}

	routes, err := listRoutes(context.Background(), table, "")
	require.NoError(t, err)
	assert.Len(t, routes, 2)

	routes, err = listRoutes(context.Background(), table, "10.1.2.3")
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, route.PROTO_STATIC, routes[0].Protocol)

	routes, err = listRoutes(context.Background(), table, "172.16.0.1")
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, route.PROTO_KERNEL, routes[0].Protocol)

	_, err = listRoutes(context.Background(), table, "not-an-address")
	assert.Error(t, err)

	routeTable = func() route.RouteTable { return table }
	defer func() { routeTable = route.NewRouteTable }()
	out, err := execute(t, "", "route", "list", "--lookup", "10.9.9.9")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/8 proto static\n", out)
}
