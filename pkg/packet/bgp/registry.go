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

import "sync"

// registry maps a numeric kind to a constructor of the decoder for that
// kind. Kinds without an entry are decoded into the opaque Unknown types.
type registry[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]func() V
}

func newRegistry[K comparable, V any]() *registry[K, V] {
	return &registry[K, V]{m: make(map[K]func() V)}
}

func (r *registry[K, V]) register(k K, f func() V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[k] = f
}

func (r *registry[K, V]) get(k K) (V, bool) {
	r.mu.RLock()
	f, ok := r.m[k]
	r.mu.RUnlock()
	if !ok {
		var zero V
		return zero, false
	}
	return f(), true
}

var (
	messageRegistry    = newRegistry[uint8, BGPBody]()
	attributeRegistry  = newRegistry[BGPAttrType, PathAttributeInterface]()
	capabilityRegistry = newRegistry[BGPCapabilityCode, ParameterCapabilityInterface]()
)

// RegisterMessage installs the body decoder used for message type t.
func RegisterMessage(t uint8, f func() BGPBody) {
	messageRegistry.register(t, f)
}

// RegisterPathAttribute installs the decoder used for attribute type t.
func RegisterPathAttribute(t BGPAttrType, f func() PathAttributeInterface) {
	attributeRegistry.register(t, f)
}

// RegisterCapability installs the decoder used for capability code c.
func RegisterCapability(c BGPCapabilityCode, f func() ParameterCapabilityInterface) {
	capabilityRegistry.register(c, f)
}

func init() {
	RegisterMessage(BGP_MSG_OPEN, func() BGPBody { return &BGPOpen{} })
	RegisterMessage(BGP_MSG_UPDATE, func() BGPBody { return &BGPUpdate{} })
	RegisterMessage(BGP_MSG_NOTIFICATION, func() BGPBody { return &BGPNotification{} })
	RegisterMessage(BGP_MSG_KEEPALIVE, func() BGPBody { return &BGPKeepAlive{} })
	RegisterMessage(BGP_MSG_ROUTE_REFRESH, func() BGPBody { return &BGPRouteRefresh{} })

	RegisterPathAttribute(BGP_ATTR_TYPE_ORIGIN, func() PathAttributeInterface { return &PathAttributeOrigin{} })
	RegisterPathAttribute(BGP_ATTR_TYPE_AS_PATH, func() PathAttributeInterface { return &PathAttributeAsPath{} })
	RegisterPathAttribute(BGP_ATTR_TYPE_NEXT_HOP, func() PathAttributeInterface { return &PathAttributeNextHop{} })
	RegisterPathAttribute(BGP_ATTR_TYPE_MULTI_EXIT_DISC, func() PathAttributeInterface { return &PathAttributeMultiExitDisc{} })
	RegisterPathAttribute(BGP_ATTR_TYPE_LOCAL_PREF, func() PathAttributeInterface { return &PathAttributeLocalPref{} })
	RegisterPathAttribute(BGP_ATTR_TYPE_ATOMIC_AGGREGATE, func() PathAttributeInterface { return &PathAttributeAtomicAggregate{} })
	RegisterPathAttribute(BGP_ATTR_TYPE_AGGREGATOR, func() PathAttributeInterface { return &PathAttributeAggregator{} })
	RegisterPathAttribute(BGP_ATTR_TYPE_COMMUNITIES, func() PathAttributeInterface { return &PathAttributeCommunities{} })
	RegisterPathAttribute(BGP_ATTR_TYPE_MP_REACH_NLRI, func() PathAttributeInterface { return &PathAttributeMpReachNLRI{} })
	RegisterPathAttribute(BGP_ATTR_TYPE_MP_UNREACH_NLRI, func() PathAttributeInterface { return &PathAttributeMpUnreachNLRI{} })
	RegisterPathAttribute(BGP_ATTR_TYPE_EXTENDED_COMMUNITIES, func() PathAttributeInterface { return &PathAttributeExtendedCommunities{} })

	RegisterCapability(BGP_CAP_MULTIPROTOCOL, func() ParameterCapabilityInterface { return &CapMultiProtocol{} })
	RegisterCapability(BGP_CAP_FOUR_OCTET_AS_NUMBER, func() ParameterCapabilityInterface { return &CapFourOctetASNumber{} })
}
