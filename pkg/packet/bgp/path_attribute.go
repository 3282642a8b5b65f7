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

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strings"
)

type BGPAttrFlag uint8

const (
	BGP_ATTR_FLAG_EXTENDED_LENGTH BGPAttrFlag = 1 << 4
	BGP_ATTR_FLAG_PARTIAL         BGPAttrFlag = 1 << 5
	BGP_ATTR_FLAG_TRANSITIVE      BGPAttrFlag = 1 << 6
	BGP_ATTR_FLAG_OPTIONAL        BGPAttrFlag = 1 << 7
)

const bgpAttrFlagMask = BGP_ATTR_FLAG_EXTENDED_LENGTH | BGP_ATTR_FLAG_PARTIAL | BGP_ATTR_FLAG_TRANSITIVE | BGP_ATTR_FLAG_OPTIONAL

func (f BGPAttrFlag) String() string {
	strs := make([]string, 0, 4)
	if f&BGP_ATTR_FLAG_EXTENDED_LENGTH > 0 {
		strs = append(strs, "EXTENDED_LENGTH")
	}
	if f&BGP_ATTR_FLAG_PARTIAL > 0 {
		strs = append(strs, "PARTIAL")
	}
	if f&BGP_ATTR_FLAG_TRANSITIVE > 0 {
		strs = append(strs, "TRANSITIVE")
	}
	if f&BGP_ATTR_FLAG_OPTIONAL > 0 {
		strs = append(strs, "OPTIONAL")
	}
	return strings.Join(strs, "|")
}

type BGPAttrType uint8

const (
	_ BGPAttrType = iota
	BGP_ATTR_TYPE_ORIGIN
	BGP_ATTR_TYPE_AS_PATH
	BGP_ATTR_TYPE_NEXT_HOP
	BGP_ATTR_TYPE_MULTI_EXIT_DISC
	BGP_ATTR_TYPE_LOCAL_PREF
	BGP_ATTR_TYPE_ATOMIC_AGGREGATE
	BGP_ATTR_TYPE_AGGREGATOR
	BGP_ATTR_TYPE_COMMUNITIES
	_
	_
	_
	_
	_
	BGP_ATTR_TYPE_MP_REACH_NLRI // = 14
	BGP_ATTR_TYPE_MP_UNREACH_NLRI
	BGP_ATTR_TYPE_EXTENDED_COMMUNITIES
)

var attrNameMap = map[BGPAttrType]string{
	BGP_ATTR_TYPE_ORIGIN:               "ORIGIN",
	BGP_ATTR_TYPE_AS_PATH:              "AS_PATH",
	BGP_ATTR_TYPE_NEXT_HOP:             "NEXT_HOP",
	BGP_ATTR_TYPE_MULTI_EXIT_DISC:      "MULTI_EXIT_DISC",
	BGP_ATTR_TYPE_LOCAL_PREF:           "LOCAL_PREF",
	BGP_ATTR_TYPE_ATOMIC_AGGREGATE:     "ATOMIC_AGGREGATE",
	BGP_ATTR_TYPE_AGGREGATOR:           "AGGREGATOR",
	BGP_ATTR_TYPE_COMMUNITIES:          "COMMUNITIES",
	BGP_ATTR_TYPE_MP_REACH_NLRI:        "MP_REACH_NLRI",
	BGP_ATTR_TYPE_MP_UNREACH_NLRI:      "MP_UNREACH_NLRI",
	BGP_ATTR_TYPE_EXTENDED_COMMUNITIES: "EXTENDED_COMMUNITIES",
}

func (t BGPAttrType) String() string {
	if n, ok := attrNameMap[t]; ok {
		return n
	}
	return fmt.Sprintf("UNKNOWN_ATTR(%d)", uint8(t))
}

// PathAttrFlags holds the flags set by the New* constructors.
var PathAttrFlags = map[BGPAttrType]BGPAttrFlag{
	BGP_ATTR_TYPE_ORIGIN:               BGP_ATTR_FLAG_TRANSITIVE,
	BGP_ATTR_TYPE_AS_PATH:              BGP_ATTR_FLAG_TRANSITIVE,
	BGP_ATTR_TYPE_NEXT_HOP:             BGP_ATTR_FLAG_TRANSITIVE,
	BGP_ATTR_TYPE_MULTI_EXIT_DISC:      BGP_ATTR_FLAG_OPTIONAL,
	BGP_ATTR_TYPE_LOCAL_PREF:           BGP_ATTR_FLAG_TRANSITIVE,
	BGP_ATTR_TYPE_ATOMIC_AGGREGATE:     BGP_ATTR_FLAG_TRANSITIVE,
	BGP_ATTR_TYPE_AGGREGATOR:           BGP_ATTR_FLAG_TRANSITIVE | BGP_ATTR_FLAG_OPTIONAL,
	BGP_ATTR_TYPE_COMMUNITIES:          BGP_ATTR_FLAG_TRANSITIVE | BGP_ATTR_FLAG_OPTIONAL,
	BGP_ATTR_TYPE_MP_REACH_NLRI:        BGP_ATTR_FLAG_OPTIONAL,
	BGP_ATTR_TYPE_MP_UNREACH_NLRI:      BGP_ATTR_FLAG_OPTIONAL,
	BGP_ATTR_TYPE_EXTENDED_COMMUNITIES: BGP_ATTR_FLAG_TRANSITIVE | BGP_ATTR_FLAG_OPTIONAL,
}

type PathAttributeInterface interface {
	DecodeFromBytes([]byte) error
	Serialize() ([]byte, error)
	Len() int
	GetFlags() BGPAttrFlag
	GetType() BGPAttrType
	String() string
}

// PathAttribute is the flags/type/length header shared by every attribute
// plus the raw value bytes.
type PathAttribute struct {
	Flags  BGPAttrFlag
	Type   BGPAttrType
	Length uint16
	Value  []byte
}

func (p *PathAttribute) Len() int {
	l := 2 + int(p.Length)
	if p.Flags&BGP_ATTR_FLAG_EXTENDED_LENGTH != 0 {
		l += 2
	} else {
		l += 1
	}
	return l
}

func (p *PathAttribute) GetFlags() BGPAttrFlag {
	return p.Flags
}

func (p *PathAttribute) GetType() BGPAttrType {
	return p.Type
}

func (p *PathAttribute) DecodeFromBytes(data []byte) error {
	eCode := uint8(BGP_ERROR_UPDATE_MESSAGE_ERROR)
	eSubCode := uint8(BGP_ERROR_SUB_ATTRIBUTE_LENGTH_ERROR)
	if len(data) < 2 {
		return NewMessageError(eCode, eSubCode, data, "attribute header length is short")
	}
	p.Flags = BGPAttrFlag(data[0])
	p.Type = BGPAttrType(data[1])
	if p.Flags&^bgpAttrFlagMask != 0 {
		return NewMessageError(eCode, BGP_ERROR_SUB_ATTRIBUTE_FLAGS_ERROR, data[:2], fmt.Sprintf("invalid flags 0x%02x for %s", uint8(p.Flags), p.Type))
	}

	if p.Flags&BGP_ATTR_FLAG_EXTENDED_LENGTH != 0 {
		if len(data) < 4 {
			return NewMessageError(eCode, eSubCode, data, "attribute header length is short")
		}
		p.Length = binary.BigEndian.Uint16(data[2:4])
		data = data[4:]
	} else {
		if len(data) < 3 {
			return NewMessageError(eCode, eSubCode, data, "attribute header length is short")
		}
		p.Length = uint16(data[2])
		data = data[3:]
	}
	if len(data) < int(p.Length) {
		return NewMessageError(eCode, eSubCode, data, "attribute value length is short")
	}
	p.Value = data[:p.Length]
	return nil
}

// Serialize writes the header and Value. EXTENDED_LENGTH is forced on when
// the value does not fit a one byte length.
func (p *PathAttribute) Serialize() ([]byte, error) {
	if len(p.Value) > 0xffff {
		return nil, fmt.Errorf("%s value is too long: %d", p.Type, len(p.Value))
	}
	p.Length = uint16(len(p.Value))
	if p.Length > 255 {
		p.Flags |= BGP_ATTR_FLAG_EXTENDED_LENGTH
	}
	buf := make([]byte, p.Len())
	buf[0] = uint8(p.Flags)
	buf[1] = uint8(p.Type)
	if p.Flags&BGP_ATTR_FLAG_EXTENDED_LENGTH != 0 {
		binary.BigEndian.PutUint16(buf[2:4], p.Length)
		copy(buf[4:], p.Value)
	} else {
		buf[2] = byte(p.Length)
		copy(buf[3:], p.Value)
	}
	return buf, nil
}

func (p *PathAttribute) lengthError(msg string) error {
	return NewMessageError(BGP_ERROR_UPDATE_MESSAGE_ERROR, BGP_ERROR_SUB_ATTRIBUTE_LENGTH_ERROR, p.Value, msg)
}

func newPathAttribute(t BGPAttrType) PathAttribute {
	return PathAttribute{
		Flags: PathAttrFlags[t],
		Type:  t,
	}
}

const (
	BGP_ORIGIN_ATTR_TYPE_IGP        uint8 = 0
	BGP_ORIGIN_ATTR_TYPE_EGP        uint8 = 1
	BGP_ORIGIN_ATTR_TYPE_INCOMPLETE uint8 = 2
)

type PathAttributeOrigin struct {
	PathAttribute
	Value uint8
}

// DecodeFromBytes maps every origin value other than IGP and EGP to
// INCOMPLETE.
func (p *PathAttributeOrigin) DecodeFromBytes(data []byte) error {
	if err := p.PathAttribute.DecodeFromBytes(data); err != nil {
		return err
	}
	if p.Length != 1 {
		return p.lengthError("origin length isn't correct")
	}
	switch v := p.PathAttribute.Value[0]; v {
	case BGP_ORIGIN_ATTR_TYPE_IGP, BGP_ORIGIN_ATTR_TYPE_EGP:
		p.Value = v
	default:
		p.Value = BGP_ORIGIN_ATTR_TYPE_INCOMPLETE
	}
	return nil
}

func (p *PathAttributeOrigin) Serialize() ([]byte, error) {
	p.PathAttribute.Value = []byte{p.Value}
	return p.PathAttribute.Serialize()
}

func (p *PathAttributeOrigin) String() string {
	typ := "-"
	switch p.Value {
	case BGP_ORIGIN_ATTR_TYPE_IGP:
		typ = "i"
	case BGP_ORIGIN_ATTR_TYPE_EGP:
		typ = "e"
	case BGP_ORIGIN_ATTR_TYPE_INCOMPLETE:
		typ = "?"
	}
	return fmt.Sprintf("{Origin: %s}", typ)
}

func NewPathAttributeOrigin(value uint8) *PathAttributeOrigin {
	return &PathAttributeOrigin{
		PathAttribute: newPathAttribute(BGP_ATTR_TYPE_ORIGIN),
		Value:         value,
	}
}

type PathAttributeNextHop struct {
	PathAttribute
	Value netip.Addr
}

func (p *PathAttributeNextHop) DecodeFromBytes(data []byte) error {
	if err := p.PathAttribute.DecodeFromBytes(data); err != nil {
		return err
	}
	if p.Length != 4 && p.Length != 16 {
		return NewMessageError(BGP_ERROR_UPDATE_MESSAGE_ERROR, BGP_ERROR_SUB_INVALID_NEXT_HOP_ATTRIBUTE, p.PathAttribute.Value, "nexthop length isn't correct")
	}
	p.Value = addrFromSlice(p.PathAttribute.Value)
	return nil
}

func (p *PathAttributeNextHop) Serialize() ([]byte, error) {
	if !p.Value.IsValid() {
		return nil, fmt.Errorf("invalid nexthop address")
	}
	p.PathAttribute.Value = p.Value.AsSlice()
	return p.PathAttribute.Serialize()
}

func (p *PathAttributeNextHop) String() string {
	return fmt.Sprintf("{Nexthop: %s}", p.Value)
}

func NewPathAttributeNextHop(addr netip.Addr) *PathAttributeNextHop {
	return &PathAttributeNextHop{
		PathAttribute: newPathAttribute(BGP_ATTR_TYPE_NEXT_HOP),
		Value:         addr,
	}
}

type PathAttributeMultiExitDisc struct {
	PathAttribute
	Value uint32
}

func (p *PathAttributeMultiExitDisc) DecodeFromBytes(data []byte) error {
	if err := p.PathAttribute.DecodeFromBytes(data); err != nil {
		return err
	}
	if p.Length != 4 {
		return p.lengthError("med length isn't correct")
	}
	p.Value = binary.BigEndian.Uint32(p.PathAttribute.Value)
	return nil
}

func (p *PathAttributeMultiExitDisc) Serialize() ([]byte, error) {
	p.PathAttribute.Value = binary.BigEndian.AppendUint32(nil, p.Value)
	return p.PathAttribute.Serialize()
}

func (p *PathAttributeMultiExitDisc) String() string {
	return fmt.Sprintf("{Med: %d}", p.Value)
}

func NewPathAttributeMultiExitDisc(med uint32) *PathAttributeMultiExitDisc {
	return &PathAttributeMultiExitDisc{
		PathAttribute: newPathAttribute(BGP_ATTR_TYPE_MULTI_EXIT_DISC),
		Value:         med,
	}
}

type PathAttributeLocalPref struct {
	PathAttribute
	Value uint32
}

func (p *PathAttributeLocalPref) DecodeFromBytes(data []byte) error {
	if err := p.PathAttribute.DecodeFromBytes(data); err != nil {
		return err
	}
	if p.Length != 4 {
		return p.lengthError("local pref length isn't correct")
	}
	p.Value = binary.BigEndian.Uint32(p.PathAttribute.Value)
	return nil
}

func (p *PathAttributeLocalPref) Serialize() ([]byte, error) {
	p.PathAttribute.Value = binary.BigEndian.AppendUint32(nil, p.Value)
	return p.PathAttribute.Serialize()
}

func (p *PathAttributeLocalPref) String() string {
	return fmt.Sprintf("{LocalPref: %d}", p.Value)
}

func NewPathAttributeLocalPref(value uint32) *PathAttributeLocalPref {
	return &PathAttributeLocalPref{
		PathAttribute: newPathAttribute(BGP_ATTR_TYPE_LOCAL_PREF),
		Value:         value,
	}
}

type PathAttributeAtomicAggregate struct {
	PathAttribute
}

func (p *PathAttributeAtomicAggregate) DecodeFromBytes(data []byte) error {
	if err := p.PathAttribute.DecodeFromBytes(data); err != nil {
		return err
	}
	if p.Length != 0 {
		return p.lengthError("atomic aggregate should have no value")
	}
	return nil
}

func (p *PathAttributeAtomicAggregate) Serialize() ([]byte, error) {
	p.PathAttribute.Value = nil
	return p.PathAttribute.Serialize()
}

func (p *PathAttributeAtomicAggregate) String() string {
	return "{AtomicAggregate}"
}

func NewPathAttributeAtomicAggregate() *PathAttributeAtomicAggregate {
	return &PathAttributeAtomicAggregate{
		PathAttribute: newPathAttribute(BGP_ATTR_TYPE_ATOMIC_AGGREGATE),
	}
}

type PathAttributeAggregatorParam struct {
	AS      uint32
	Address netip.Addr
	// FourOctet selects the 8 byte encoding.
	FourOctet bool
}

type PathAttributeAggregator struct {
	PathAttribute
	Value PathAttributeAggregatorParam
}

func (p *PathAttributeAggregator) DecodeFromBytes(data []byte) error {
	if err := p.PathAttribute.DecodeFromBytes(data); err != nil {
		return err
	}
	switch p.Length {
	case 6:
		p.Value.AS = uint32(binary.BigEndian.Uint16(p.PathAttribute.Value[0:2]))
		p.Value.Address = addrFromSlice(p.PathAttribute.Value[2:6])
		p.Value.FourOctet = false
	case 8:
		p.Value.AS = binary.BigEndian.Uint32(p.PathAttribute.Value[0:4])
		p.Value.Address = addrFromSlice(p.PathAttribute.Value[4:8])
		p.Value.FourOctet = true
	default:
		return p.lengthError("aggregator length isn't correct")
	}
	return nil
}

// Serialize uses the 8 byte form when the AS does not fit in two octets or
// the attribute was received in that form; the length always matches the
// width actually written.
func (p *PathAttributeAggregator) Serialize() ([]byte, error) {
	if !p.Value.Address.Is4() {
		return nil, fmt.Errorf("aggregator address %s is not IPv4", p.Value.Address)
	}
	addr := p.Value.Address.As4()
	var buf []byte
	if p.Value.FourOctet || p.Value.AS > 0xffff {
		buf = binary.BigEndian.AppendUint32(make([]byte, 0, 8), p.Value.AS)
	} else {
		buf = binary.BigEndian.AppendUint16(make([]byte, 0, 6), uint16(p.Value.AS))
	}
	p.PathAttribute.Value = append(buf, addr[:]...)
	return p.PathAttribute.Serialize()
}

func (p *PathAttributeAggregator) String() string {
	return fmt.Sprintf("{Aggregate: {AS: %d, Address: %s}}", p.Value.AS, p.Value.Address)
}

func NewPathAttributeAggregator(as uint32, address netip.Addr) *PathAttributeAggregator {
	return &PathAttributeAggregator{
		PathAttribute: newPathAttribute(BGP_ATTR_TYPE_AGGREGATOR),
		Value: PathAttributeAggregatorParam{
			AS:        as,
			Address:   address,
			FourOctet: as > 0xffff,
		},
	}
}

// PathAttributeMpReachNLRI is MP_REACH_NLRI (RFC 4760 section 3).
type PathAttributeMpReachNLRI struct {
	PathAttribute
	AFI     uint16
	SAFI    uint8
	Nexthop NextHop
	Value   []*IPAddrPrefix
}

func (p *PathAttributeMpReachNLRI) DecodeFromBytes(data []byte) error {
	if err := p.PathAttribute.DecodeFromBytes(data); err != nil {
		return err
	}
	value := p.PathAttribute.Value
	if len(value) < 3 {
		return p.lengthError("mpreach header length is short")
	}
	p.AFI = binary.BigEndian.Uint16(value[0:2])
	p.SAFI = value[2]
	value = value[3:]
	if err := p.Nexthop.DecodeFromBytes(value, p.AFI); err != nil {
		return err
	}
	value = value[p.Nexthop.Len():]
	if len(value) < 1 {
		return p.lengthError("mpreach reserved byte is missing")
	}
	// skip reserved
	value = value[1:]
	var err error
	p.Value, err = decodePrefixes(value, p.AFI)
	return err
}

func (p *PathAttributeMpReachNLRI) Serialize() ([]byte, error) {
	buf := make([]byte, 3)
	binary.BigEndian.PutUint16(buf, p.AFI)
	buf[2] = p.SAFI
	nh, err := p.Nexthop.Serialize()
	if err != nil {
		return nil, err
	}
	buf = append(buf, nh...)
	buf = append(buf, 0)
	nlri, err := serializePrefixes(p.Value)
	if err != nil {
		return nil, err
	}
	p.PathAttribute.Value = append(buf, nlri...)
	return p.PathAttribute.Serialize()
}

func (p *PathAttributeMpReachNLRI) String() string {
	return fmt.Sprintf("{MpReach(%s): {Nexthop: %s, NLRIs: %s}}", AfiSafiToRouteFamily(p.AFI, p.SAFI), p.Nexthop.String(), prefixesString(p.Value))
}

func NewPathAttributeMpReachNLRI(rf RouteFamily, nexthop NextHop, nlri []*IPAddrPrefix) *PathAttributeMpReachNLRI {
	return &PathAttributeMpReachNLRI{
		PathAttribute: newPathAttribute(BGP_ATTR_TYPE_MP_REACH_NLRI),
		AFI:           rf.Afi(),
		SAFI:          rf.Safi(),
		Nexthop:       nexthop,
		Value:         nlri,
	}
}

// PathAttributeMpUnreachNLRI is MP_UNREACH_NLRI (RFC 4760 section 4).
type PathAttributeMpUnreachNLRI struct {
	PathAttribute
	AFI   uint16
	SAFI  uint8
	Value []*IPAddrPrefix
}

func (p *PathAttributeMpUnreachNLRI) DecodeFromBytes(data []byte) error {
	if err := p.PathAttribute.DecodeFromBytes(data); err != nil {
		return err
	}
	value := p.PathAttribute.Value
	if len(value) < 3 {
		return p.lengthError("mpunreach header length is short")
	}
	p.AFI = binary.BigEndian.Uint16(value[0:2])
	p.SAFI = value[2]
	var err error
	p.Value, err = decodePrefixes(value[3:], p.AFI)
	return err
}

func (p *PathAttributeMpUnreachNLRI) Serialize() ([]byte, error) {
	buf := make([]byte, 3)
	binary.BigEndian.PutUint16(buf, p.AFI)
	buf[2] = p.SAFI
	withdrawn, err := serializePrefixes(p.Value)
	if err != nil {
		return nil, err
	}
	p.PathAttribute.Value = append(buf, withdrawn...)
	return p.PathAttribute.Serialize()
}

func (p *PathAttributeMpUnreachNLRI) String() string {
	return fmt.Sprintf("{MpUnreach(%s): {NLRIs: %s}}", AfiSafiToRouteFamily(p.AFI, p.SAFI), prefixesString(p.Value))
}

func NewPathAttributeMpUnreachNLRI(rf RouteFamily, withdrawn []*IPAddrPrefix) *PathAttributeMpUnreachNLRI {
	return &PathAttributeMpUnreachNLRI{
		PathAttribute: newPathAttribute(BGP_ATTR_TYPE_MP_UNREACH_NLRI),
		AFI:           rf.Afi(),
		SAFI:          rf.Safi(),
		Value:         withdrawn,
	}
}

func prefixesString(prefixes []*IPAddrPrefix) string {
	strs := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		strs = append(strs, p.String())
	}
	return "[" + strings.Join(strs, ", ") + "]"
}

// PathAttributeUnknown keeps the flags and value of an attribute type
// without a registered decoder.
type PathAttributeUnknown struct {
	PathAttribute
}

func (p *PathAttributeUnknown) String() string {
	return fmt.Sprintf("{Flags: %s, Type: %s, Value: %v}", p.Flags, p.Type, p.Value)
}

func NewPathAttributeUnknown(flags BGPAttrFlag, typ BGPAttrType, value []byte) *PathAttributeUnknown {
	return &PathAttributeUnknown{
		PathAttribute: PathAttribute{
			Flags:  flags,
			Type:   typ,
			Length: uint16(len(value)),
			Value:  value,
		},
	}
}

// DecodePathAttribute decodes the attribute at the head of data. The number
// of bytes consumed is given by Len() of the result.
func DecodePathAttribute(data []byte) (PathAttributeInterface, error) {
	if len(data) < 2 {
		return nil, NewMessageError(BGP_ERROR_UPDATE_MESSAGE_ERROR, BGP_ERROR_SUB_MALFORMED_ATTRIBUTE_LIST, nil, "attribute type length is short")
	}
	p, ok := attributeRegistry.get(BGPAttrType(data[1]))
	if !ok {
		p = &PathAttributeUnknown{}
	}
	if err := p.DecodeFromBytes(data); err != nil {
		return nil, err
	}
	return p, nil
}
