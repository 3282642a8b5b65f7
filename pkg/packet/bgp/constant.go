// Copyright (C) 2014 Nippon Telegraph and Telephone Corporation.
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

package bgp

import "fmt"

const AS_TRANS = 23456

const BGP_PORT = 179

const (
	BGP_HEADER_LENGTH      = 19
	BGP_MAX_MESSAGE_LENGTH = 4096
	BGP_MARKER_LENGTH      = 16
	BGP_VERSION            = 4
)

const (
	_ = iota
	BGP_MSG_OPEN
	BGP_MSG_UPDATE
	BGP_MSG_NOTIFICATION
	BGP_MSG_KEEPALIVE
	BGP_MSG_ROUTE_REFRESH
)

const (
	AFI_IP  = 1
	AFI_IP6 = 2
)

const (
	SAFI_UNICAST   = 1
	SAFI_MULTICAST = 2
)

type RouteFamily int

func (f RouteFamily) String() string {
	if n, y := AddressFamilyNameMap[f]; y {
		return n
	}
	return fmt.Sprintf("UnknownFamily(%d)", f)
}

func (f RouteFamily) Afi() uint16 {
	return uint16(int(f) >> 16)
}

func (f RouteFamily) Safi() uint8 {
	return uint8(int(f) & 0xff)
}

func AfiSafiToRouteFamily(afi uint16, safi uint8) RouteFamily {
	return RouteFamily(int(afi)<<16 | int(safi))
}

func RouteFamilyToAfiSafi(rf RouteFamily) (uint16, uint8) {
	return rf.Afi(), rf.Safi()
}

const (
	RF_IPv4_UC RouteFamily = AFI_IP<<16 | SAFI_UNICAST
	RF_IPv6_UC RouteFamily = AFI_IP6<<16 | SAFI_UNICAST
	RF_IPv4_MC RouteFamily = AFI_IP<<16 | SAFI_MULTICAST
	RF_IPv6_MC RouteFamily = AFI_IP6<<16 | SAFI_MULTICAST
)

var AddressFamilyNameMap = map[RouteFamily]string{
	RF_IPv4_UC: "ipv4-unicast",
	RF_IPv6_UC: "ipv6-unicast",
	RF_IPv4_MC: "ipv4-multicast",
	RF_IPv6_MC: "ipv6-multicast",
}

var AddressFamilyValueMap = map[string]RouteFamily{
	AddressFamilyNameMap[RF_IPv4_UC]: RF_IPv4_UC,
	AddressFamilyNameMap[RF_IPv6_UC]: RF_IPv6_UC,
	AddressFamilyNameMap[RF_IPv4_MC]: RF_IPv4_MC,
	AddressFamilyNameMap[RF_IPv6_MC]: RF_IPv6_MC,
}

func GetRouteFamily(name string) (RouteFamily, error) {
	if v, ok := AddressFamilyValueMap[name]; ok {
		return v, nil
	}
	return RouteFamily(0), fmt.Errorf("%s isn't a valid route family name", name)
}

// FSMState is the session state. States are ordered; a session only moves
// forward one step at a time or falls back to BGP_FSM_IDLE.
type FSMState int

const (
	BGP_FSM_IDLE FSMState = iota
	BGP_FSM_CONNECT
	BGP_FSM_OPENSENT
	BGP_FSM_OPENCONFIRM
	BGP_FSM_ESTABLISHED
)

func (s FSMState) String() string {
	switch s {
	case BGP_FSM_IDLE:
		return "BGP_FSM_IDLE"
	case BGP_FSM_CONNECT:
		return "BGP_FSM_CONNECT"
	case BGP_FSM_OPENSENT:
		return "BGP_FSM_OPENSENT"
	case BGP_FSM_OPENCONFIRM:
		return "BGP_FSM_OPENCONFIRM"
	case BGP_FSM_ESTABLISHED:
		return "BGP_FSM_ESTABLISHED"
	}
	return fmt.Sprintf("FSMState(%d)", int(s))
}
