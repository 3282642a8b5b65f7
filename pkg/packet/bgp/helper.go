// Copyright (C) 2016 Nippon Telegraph and Telephone Corporation.
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

import (
	"net/netip"
)

func NewTestBGPOpenMessage() *BGPMessage {
	p1 := NewOptionParameterCapability(
		[]ParameterCapabilityInterface{NewCapMultiProtocol(RF_IPv4_UC), NewCapMultiProtocol(RF_IPv6_UC)})
	p2 := NewOptionParameterCapability(
		[]ParameterCapabilityInterface{NewCapFourOctetASNumber(100000)})
	p3 := &OptionParameterUnknown{ParamType: 7, Value: []byte{1, 2, 3}}
	return NewBGPOpenMessage(AS_TRANS, 90, netip.MustParseAddr("10.0.0.1"),
		[]OptionParameterInterface{p1, p2, p3})
}

func NewTestBGPUpdateMessage() *BGPMessage {
	w1, _ := ParseIPAddrPrefix("121.1.3.2/23")
	w2, _ := ParseIPAddrPrefix("100.33.3.0/17")
	w := []*IPAddrPrefix{w1, w2}

	aspath := []AsPathSegmentInterface{
		NewAsPathSequence(65001, 1000000),
		NewAsPathSet(NewAsPathSequence(1001, 1002), NewAsPathSequence(1003)),
	}

	mpNLRI := []*IPAddrPrefix{
		NewIPAddrPrefix(netip.MustParsePrefix("fe80:1234:1234:5667:8967:af12:8912:1023/64")),
	}
	mpWithdrawn := []*IPAddrPrefix{
		NewIPAddrPrefix(netip.MustParsePrefix("2001:db8::/32")),
	}

	p := []PathAttributeInterface{
		NewPathAttributeOrigin(BGP_ORIGIN_ATTR_TYPE_EGP),
		NewPathAttributeAsPath(aspath),
		NewPathAttributeNextHop(netip.MustParseAddr("129.1.1.2")),
		NewPathAttributeMultiExitDisc(1 << 20),
		NewPathAttributeLocalPref(1 << 22),
		NewPathAttributeAtomicAggregate(),
		NewPathAttributeAggregator(30002, netip.MustParseAddr("129.0.2.99")),
		NewPathAttributeCommunities([]Community{{65001, 1}, {65535, 65281}}),
		NewPathAttributeExtendedCommunities([]ExtendedCommunityInterface{
			NewTwoOctetAsSpecificExtended(EC_SUBTYPE_ROUTE_TARGET, 65001, 200, 0),
			NewIPv4AddressSpecificExtended(EC_SUBTYPE_ROUTE_ORIGIN, netip.MustParseAddr("10.0.0.1"), 300, EC_FLAG_TRANSITIVE),
			NewFourOctetAsSpecificExtended(EC_SUBTYPE_ROUTE_TARGET, 4200000000, 10, 0),
		}),
		NewPathAttributeMpReachNLRI(RF_IPv6_UC, NextHop{
			Address:   netip.MustParseAddr("2003:de:6f44:c9bf:9414:9acf:1cc9:8ff9"),
			LinkLocal: netip.MustParseAddr("fe80::56e8:fd91:6c8e:a350"),
		}, mpNLRI),
		NewPathAttributeMpUnreachNLRI(RF_IPv6_UC, mpWithdrawn),
		NewPathAttributeUnknown(BGP_ATTR_FLAG_OPTIONAL|BGP_ATTR_FLAG_TRANSITIVE, 100, []byte{1, 2, 3, 4}),
	}
	n, _ := ParseIPAddrPrefix("13.2.3.1/24")
	return NewBGPUpdateMessage(w, p, []*IPAddrPrefix{n})
}
