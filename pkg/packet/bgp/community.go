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
	"strconv"
	"strings"
)

// Community is an RFC 1997 community.
type Community struct {
	GlobalAdministrator uint16
	LocalAdministrator  uint16
}

func (c Community) String() string {
	return fmt.Sprintf("%d:%d", c.GlobalAdministrator, c.LocalAdministrator)
}

// ParseCommunity parses the "global:local" form.
func ParseCommunity(s string) (Community, error) {
	elems := strings.Split(s, ":")
	if len(elems) != 2 {
		return Community{}, fmt.Errorf("invalid community format: %s", s)
	}
	g, err := strconv.ParseUint(elems[0], 10, 16)
	if err != nil {
		return Community{}, fmt.Errorf("invalid community format: %s", s)
	}
	l, err := strconv.ParseUint(elems[1], 10, 16)
	if err != nil {
		return Community{}, fmt.Errorf("invalid community format: %s", s)
	}
	return Community{uint16(g), uint16(l)}, nil
}

type PathAttributeCommunities struct {
	PathAttribute
	Value []Community
}

func (p *PathAttributeCommunities) DecodeFromBytes(data []byte) error {
	if err := p.PathAttribute.DecodeFromBytes(data); err != nil {
		return err
	}
	value := p.PathAttribute.Value
	if len(value)%4 != 0 {
		return NewMessageError(BGP_ERROR_UPDATE_MESSAGE_ERROR, BGP_ERROR_SUB_OPTIONAL_ATTRIBUTE_ERROR, value, "communities length isn't correct")
	}
	p.Value = make([]Community, 0, len(value)/4)
	for ; len(value) >= 4; value = value[4:] {
		p.Value = append(p.Value, Community{
			GlobalAdministrator: binary.BigEndian.Uint16(value[0:2]),
			LocalAdministrator:  binary.BigEndian.Uint16(value[2:4]),
		})
	}
	return nil
}

func (p *PathAttributeCommunities) Serialize() ([]byte, error) {
	buf := make([]byte, 0, 4*len(p.Value))
	for _, c := range p.Value {
		buf = binary.BigEndian.AppendUint16(buf, c.GlobalAdministrator)
		buf = binary.BigEndian.AppendUint16(buf, c.LocalAdministrator)
	}
	p.PathAttribute.Value = buf
	return p.PathAttribute.Serialize()
}

func (p *PathAttributeCommunities) String() string {
	strs := make([]string, 0, len(p.Value))
	for _, c := range p.Value {
		strs = append(strs, c.String())
	}
	return fmt.Sprintf("{Communities: %s}", strings.Join(strs, ", "))
}

func NewPathAttributeCommunities(value []Community) *PathAttributeCommunities {
	return &PathAttributeCommunities{
		PathAttribute: newPathAttribute(BGP_ATTR_TYPE_COMMUNITIES),
		Value:         value,
	}
}

type ExtendedCommunityAttrType uint8

// Type octets recognised by the decoder. The two high bits of the type are
// flags; only the forms listed here carry a known value layout.
const (
	EC_TYPE_TRANSITIVE_TWO_OCTET_AS_SPECIFIC      ExtendedCommunityAttrType = 0x00
	EC_TYPE_TRANSITIVE_IP4_SPECIFIC               ExtendedCommunityAttrType = 0x01
	EC_TYPE_TRANSITIVE_FOUR_OCTET_AS_SPECIFIC     ExtendedCommunityAttrType = 0x02
	EC_TYPE_TRANSITIVE_OPAQUE                     ExtendedCommunityAttrType = 0x03
	EC_TYPE_NON_TRANSITIVE_TWO_OCTET_AS_SPECIFIC  ExtendedCommunityAttrType = 0x40
	EC_TYPE_NON_TRANSITIVE_IP4_SPECIFIC           ExtendedCommunityAttrType = 0x41
	EC_TYPE_NON_TRANSITIVE_FOUR_OCTET_AS_SPECIFIC ExtendedCommunityAttrType = 0x42
	EC_TYPE_NON_TRANSITIVE_OPAQUE                 ExtendedCommunityAttrType = 0x43
)

type ExtendedCommunityAttrSubType uint8

const (
	EC_SUBTYPE_ROUTE_TARGET ExtendedCommunityAttrSubType = 0x02
	EC_SUBTYPE_ROUTE_ORIGIN ExtendedCommunityAttrSubType = 0x03
)

func (s ExtendedCommunityAttrSubType) String() string {
	switch s {
	case EC_SUBTYPE_ROUTE_TARGET:
		return "RouteTarget"
	case EC_SUBTYPE_ROUTE_ORIGIN:
		return "RouteOrigin"
	}
	return fmt.Sprintf("Unknown(%d)", uint8(s))
}

// ExtendedCommunityFlag holds the two high bits of the type octet. A set
// EC_FLAG_TRANSITIVE bit marks the community as non-transitive (RFC 4360 2).
type ExtendedCommunityFlag uint8

const (
	EC_FLAG_TRANSITIVE     ExtendedCommunityFlag = 0x40
	EC_FLAG_IANA_AUTHORITY ExtendedCommunityFlag = 0x80
)

const ecFlagMask = EC_FLAG_TRANSITIVE | EC_FLAG_IANA_AUTHORITY

func (f ExtendedCommunityFlag) String() string {
	strs := make([]string, 0, 2)
	if f&EC_FLAG_IANA_AUTHORITY != 0 {
		strs = append(strs, "IANA_AUTHORITY")
	}
	if f&EC_FLAG_TRANSITIVE != 0 {
		strs = append(strs, "TRANSITIVE")
	}
	return strings.Join(strs, "|")
}

type ExtendedCommunityInterface interface {
	Serialize() ([]byte, error)
	String() string
	GetTypes() (ExtendedCommunityAttrType, ExtendedCommunityAttrSubType)
	GetFlags() ExtendedCommunityFlag
}

func ecTypeByte(class uint8, flags ExtendedCommunityFlag) uint8 {
	return class | uint8(flags&ecFlagMask)
}

// TwoOctetAsSpecificExtended is the RFC 4360 two-octet AS specific form.
type TwoOctetAsSpecificExtended struct {
	SubType    ExtendedCommunityAttrSubType
	Flags      ExtendedCommunityFlag
	AS         uint16
	LocalAdmin uint32
}

func (e *TwoOctetAsSpecificExtended) Serialize() ([]byte, error) {
	buf := make([]byte, 8)
	buf[0] = ecTypeByte(0x00, e.Flags)
	buf[1] = uint8(e.SubType)
	binary.BigEndian.PutUint16(buf[2:], e.AS)
	binary.BigEndian.PutUint32(buf[4:], e.LocalAdmin)
	return buf, nil
}

func (e *TwoOctetAsSpecificExtended) String() string {
	return fmt.Sprintf("%d:%d", e.AS, e.LocalAdmin)
}

func (e *TwoOctetAsSpecificExtended) GetTypes() (ExtendedCommunityAttrType, ExtendedCommunityAttrSubType) {
	return ExtendedCommunityAttrType(ecTypeByte(0x00, e.Flags)), e.SubType
}

func (e *TwoOctetAsSpecificExtended) GetFlags() ExtendedCommunityFlag {
	return e.Flags
}

func NewTwoOctetAsSpecificExtended(subtype ExtendedCommunityAttrSubType, as uint16, localAdmin uint32, flags ExtendedCommunityFlag) *TwoOctetAsSpecificExtended {
	return &TwoOctetAsSpecificExtended{
		SubType:    subtype,
		Flags:      flags,
		AS:         as,
		LocalAdmin: localAdmin,
	}
}

// IPv4AddressSpecificExtended is the RFC 4360 IPv4 address specific form.
type IPv4AddressSpecificExtended struct {
	SubType    ExtendedCommunityAttrSubType
	Flags      ExtendedCommunityFlag
	IPv4       netip.Addr
	LocalAdmin uint16
}

func (e *IPv4AddressSpecificExtended) Serialize() ([]byte, error) {
	if !e.IPv4.Is4() {
		return nil, fmt.Errorf("%s is not an IPv4 address", e.IPv4)
	}
	buf := make([]byte, 8)
	buf[0] = ecTypeByte(0x01, e.Flags)
	buf[1] = uint8(e.SubType)
	addr := e.IPv4.As4()
	copy(buf[2:6], addr[:])
	binary.BigEndian.PutUint16(buf[6:], e.LocalAdmin)
	return buf, nil
}

func (e *IPv4AddressSpecificExtended) String() string {
	return fmt.Sprintf("%s:%d", e.IPv4, e.LocalAdmin)
}

func (e *IPv4AddressSpecificExtended) GetTypes() (ExtendedCommunityAttrType, ExtendedCommunityAttrSubType) {
	return ExtendedCommunityAttrType(ecTypeByte(0x01, e.Flags)), e.SubType
}

func (e *IPv4AddressSpecificExtended) GetFlags() ExtendedCommunityFlag {
	return e.Flags
}

func NewIPv4AddressSpecificExtended(subtype ExtendedCommunityAttrSubType, ip netip.Addr, localAdmin uint16, flags ExtendedCommunityFlag) *IPv4AddressSpecificExtended {
	return &IPv4AddressSpecificExtended{
		SubType:    subtype,
		Flags:      flags,
		IPv4:       ip,
		LocalAdmin: localAdmin,
	}
}

// FourOctetAsSpecificExtended is the RFC 5668 four-octet AS specific form.
type FourOctetAsSpecificExtended struct {
	SubType    ExtendedCommunityAttrSubType
	Flags      ExtendedCommunityFlag
	AS         uint32
	LocalAdmin uint16
}

func (e *FourOctetAsSpecificExtended) Serialize() ([]byte, error) {
	buf := make([]byte, 8)
	buf[0] = ecTypeByte(0x02, e.Flags)
	buf[1] = uint8(e.SubType)
	binary.BigEndian.PutUint32(buf[2:], e.AS)
	binary.BigEndian.PutUint16(buf[6:], e.LocalAdmin)
	return buf, nil
}

func (e *FourOctetAsSpecificExtended) String() string {
	return fmt.Sprintf("%d.%d:%d", e.AS>>16, e.AS&0xffff, e.LocalAdmin)
}

func (e *FourOctetAsSpecificExtended) GetTypes() (ExtendedCommunityAttrType, ExtendedCommunityAttrSubType) {
	return ExtendedCommunityAttrType(ecTypeByte(0x02, e.Flags)), e.SubType
}

func (e *FourOctetAsSpecificExtended) GetFlags() ExtendedCommunityFlag {
	return e.Flags
}

func NewFourOctetAsSpecificExtended(subtype ExtendedCommunityAttrSubType, as uint32, localAdmin uint16, flags ExtendedCommunityFlag) *FourOctetAsSpecificExtended {
	return &FourOctetAsSpecificExtended{
		SubType:    subtype,
		Flags:      flags,
		AS:         as,
		LocalAdmin: localAdmin,
	}
}

// OpaqueExtended is the RFC 4360 opaque form.
type OpaqueExtended struct {
	SubType ExtendedCommunityAttrSubType
	Flags   ExtendedCommunityFlag
	Value   [6]byte
}

func (e *OpaqueExtended) Serialize() ([]byte, error) {
	buf := make([]byte, 2, 8)
	buf[0] = ecTypeByte(0x03, e.Flags)
	buf[1] = uint8(e.SubType)
	return append(buf, e.Value[:]...), nil
}

func (e *OpaqueExtended) String() string {
	return fmt.Sprintf("%x", e.Value[:])
}

func (e *OpaqueExtended) GetTypes() (ExtendedCommunityAttrType, ExtendedCommunityAttrSubType) {
	return ExtendedCommunityAttrType(ecTypeByte(0x03, e.Flags)), e.SubType
}

func (e *OpaqueExtended) GetFlags() ExtendedCommunityFlag {
	return e.Flags
}

// UnknownExtended is any other type octet. Only the type, subtype and flags
// are kept; the six value bytes are dropped, so it serializes to nothing.
type UnknownExtended struct {
	Type    ExtendedCommunityAttrType
	SubType ExtendedCommunityAttrSubType
	Flags   ExtendedCommunityFlag
}

func (e *UnknownExtended) Serialize() ([]byte, error) {
	return nil, nil
}

func (e *UnknownExtended) String() string {
	return fmt.Sprintf("unknown(type: %d, subtype: %d)", e.Type, e.SubType)
}

func (e *UnknownExtended) GetTypes() (ExtendedCommunityAttrType, ExtendedCommunityAttrSubType) {
	return e.Type, e.SubType
}

func (e *UnknownExtended) GetFlags() ExtendedCommunityFlag {
	return e.Flags
}

// ParseExtended decodes one 8 byte extended community.
func ParseExtended(data []byte) (ExtendedCommunityInterface, error) {
	if len(data) < 8 {
		return nil, NewMessageError(BGP_ERROR_UPDATE_MESSAGE_ERROR, BGP_ERROR_SUB_ATTRIBUTE_LENGTH_ERROR, data, "not all extended community bytes are available")
	}
	typ := ExtendedCommunityAttrType(data[0])
	subtype := ExtendedCommunityAttrSubType(data[1])
	flags := ExtendedCommunityFlag(data[0]) & ecFlagMask
	switch typ {
	case EC_TYPE_TRANSITIVE_TWO_OCTET_AS_SPECIFIC, EC_TYPE_NON_TRANSITIVE_TWO_OCTET_AS_SPECIFIC:
		return &TwoOctetAsSpecificExtended{
			SubType:    subtype,
			Flags:      flags,
			AS:         binary.BigEndian.Uint16(data[2:4]),
			LocalAdmin: binary.BigEndian.Uint32(data[4:8]),
		}, nil
	case EC_TYPE_TRANSITIVE_IP4_SPECIFIC, EC_TYPE_NON_TRANSITIVE_IP4_SPECIFIC:
		return &IPv4AddressSpecificExtended{
			SubType:    subtype,
			Flags:      flags,
			IPv4:       addrFromSlice(data[2:6]),
			LocalAdmin: binary.BigEndian.Uint16(data[6:8]),
		}, nil
	case EC_TYPE_TRANSITIVE_FOUR_OCTET_AS_SPECIFIC, EC_TYPE_NON_TRANSITIVE_FOUR_OCTET_AS_SPECIFIC:
		return &FourOctetAsSpecificExtended{
			SubType:    subtype,
			Flags:      flags,
			AS:         binary.BigEndian.Uint32(data[2:6]),
			LocalAdmin: binary.BigEndian.Uint16(data[6:8]),
		}, nil
	case EC_TYPE_TRANSITIVE_OPAQUE, EC_TYPE_NON_TRANSITIVE_OPAQUE:
		e := &OpaqueExtended{SubType: subtype, Flags: flags}
		copy(e.Value[:], data[2:8])
		return e, nil
	}
	return &UnknownExtended{Type: typ, SubType: subtype, Flags: flags}, nil
}

type PathAttributeExtendedCommunities struct {
	PathAttribute
	Value []ExtendedCommunityInterface
}

func (p *PathAttributeExtendedCommunities) DecodeFromBytes(data []byte) error {
	if err := p.PathAttribute.DecodeFromBytes(data); err != nil {
		return err
	}
	value := p.PathAttribute.Value
	if len(value)%8 != 0 {
		return NewMessageError(BGP_ERROR_UPDATE_MESSAGE_ERROR, BGP_ERROR_SUB_OPTIONAL_ATTRIBUTE_ERROR, value, "extendedcommunities length isn't correct")
	}
	p.Value = make([]ExtendedCommunityInterface, 0, len(value)/8)
	for ; len(value) >= 8; value = value[8:] {
		e, err := ParseExtended(value)
		if err != nil {
			return err
		}
		p.Value = append(p.Value, e)
	}
	return nil
}

func (p *PathAttributeExtendedCommunities) Serialize() ([]byte, error) {
	buf := make([]byte, 0, 8*len(p.Value))
	for _, e := range p.Value {
		b, err := e.Serialize()
		if err != nil {
			return nil, err
		}
		buf = append(buf, b...)
	}
	p.PathAttribute.Value = buf
	return p.PathAttribute.Serialize()
}

func (p *PathAttributeExtendedCommunities) String() string {
	strs := make([]string, 0, len(p.Value))
	for _, e := range p.Value {
		_, subtype := e.GetTypes()
		strs = append(strs, fmt.Sprintf("[%s: %s]", subtype, e.String()))
	}
	return fmt.Sprintf("{Extcomms: %s}", strings.Join(strs, ", "))
}

func NewPathAttributeExtendedCommunities(value []ExtendedCommunityInterface) *PathAttributeExtendedCommunities {
	return &PathAttributeExtendedCommunities{
		PathAttribute: newPathAttribute(BGP_ATTR_TYPE_EXTENDED_COMMUNITIES),
		Value:         value,
	}
}
