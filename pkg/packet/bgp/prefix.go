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
	"fmt"
	"net/netip"
)

func addrLenForAfi(afi uint16) (int, error) {
	switch afi {
	case AFI_IP:
		return 4, nil
	case AFI_IP6:
		return 16, nil
	}
	return 0, NewMessageError(BGP_ERROR_UPDATE_MESSAGE_ERROR, BGP_ERROR_SUB_OPTIONAL_ATTRIBUTE_ERROR, nil, fmt.Sprintf("unsupported address family %d", afi))
}

func afiForAddr(addr netip.Addr) uint16 {
	if addr.Is4() {
		return AFI_IP
	}
	return AFI_IP6
}

func addrFromSlice(b []byte) netip.Addr {
	addr, _ := netip.AddrFromSlice(b)
	return addr
}

// IPAddrPrefix is an NLRI entry: a mask length followed by the minimum
// number of address octets covering it.
type IPAddrPrefix struct {
	Prefix netip.Addr
	Length uint8
}

// NewIPAddrPrefix returns the prefix with the host bits cleared.
func NewIPAddrPrefix(p netip.Prefix) *IPAddrPrefix {
	return &IPAddrPrefix{
		Prefix: p.Masked().Addr(),
		Length: uint8(p.Bits()),
	}
}

// ParseIPAddrPrefix parses the "address/length" form.
func ParseIPAddrPrefix(s string) (*IPAddrPrefix, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return nil, err
	}
	return NewIPAddrPrefix(p), nil
}

func (r *IPAddrPrefix) AFI() uint16 {
	return afiForAddr(r.Prefix)
}

func (r *IPAddrPrefix) Len() int {
	return 1 + (int(r.Length)+7)/8
}

func (r *IPAddrPrefix) DecodeFromBytes(data []byte, afi uint16) error {
	eCode := uint8(BGP_ERROR_UPDATE_MESSAGE_ERROR)
	eSubCode := uint8(BGP_ERROR_SUB_INVALID_NETWORK_FIELD)
	addrlen, err := addrLenForAfi(afi)
	if err != nil {
		return err
	}
	if len(data) < 1 {
		return NewMessageError(eCode, eSubCode, nil, "prefix misses length field")
	}
	r.Length = data[0]
	if int(r.Length) > addrlen*8 {
		return NewMessageError(eCode, eSubCode, data[:1], fmt.Sprintf("prefix length %d is too long", r.Length))
	}
	bytelen := (int(r.Length) + 7) / 8
	if len(data[1:]) < bytelen {
		return NewMessageError(eCode, eSubCode, nil, "network bytes is short")
	}
	b := make([]byte, addrlen)
	copy(b, data[1:1+bytelen])
	clearHostBits(b, r.Length)
	r.Prefix = addrFromSlice(b)
	return nil
}

func (r *IPAddrPrefix) Serialize() ([]byte, error) {
	if !r.Prefix.IsValid() {
		return nil, fmt.Errorf("invalid prefix address")
	}
	addr := r.Prefix.AsSlice()
	if int(r.Length) > len(addr)*8 {
		return nil, fmt.Errorf("prefix length %d is too long for %s", r.Length, r.Prefix)
	}
	bytelen := (int(r.Length) + 7) / 8
	buf := make([]byte, 1+bytelen)
	buf[0] = r.Length
	copy(buf[1:], addr[:bytelen])
	clearHostBits(buf[1:], r.Length)
	return buf, nil
}

func (r *IPAddrPrefix) String() string {
	return fmt.Sprintf("%s/%d", r.Prefix, r.Length)
}

// clearHostBits zeroes every bit of b beyond the first length bits.
func clearHostBits(b []byte, length uint8) {
	for i := range b {
		bit := i * 8
		switch {
		case bit >= int(length):
			b[i] = 0
		case bit+8 > int(length):
			b[i] &^= 0xff >> (int(length) - bit)
		}
	}
}

func decodePrefixes(data []byte, afi uint16) ([]*IPAddrPrefix, error) {
	prefixes := make([]*IPAddrPrefix, 0)
	for len(data) > 0 {
		p := &IPAddrPrefix{}
		if err := p.DecodeFromBytes(data, afi); err != nil {
			return nil, err
		}
		prefixes = append(prefixes, p)
		data = data[p.Len():]
	}
	return prefixes, nil
}

func serializePrefixes(prefixes []*IPAddrPrefix) ([]byte, error) {
	buf := make([]byte, 0)
	for _, p := range prefixes {
		b, err := p.Serialize()
		if err != nil {
			return nil, err
		}
		buf = append(buf, b...)
	}
	return buf, nil
}

// NextHop is the next hop carried by MP_REACH_NLRI. LinkLocal is only
// meaningful for IPv6.
type NextHop struct {
	Address   netip.Addr
	LinkLocal netip.Addr
}

func (n *NextHop) Len() int {
	l := 1 + n.Address.BitLen()/8
	if n.LinkLocal.IsValid() {
		l += n.LinkLocal.BitLen() / 8
	}
	return l
}

// DecodeFromBytes reads the length prefixed form used by MP_REACH_NLRI.
func (n *NextHop) DecodeFromBytes(data []byte, afi uint16) error {
	eCode := uint8(BGP_ERROR_UPDATE_MESSAGE_ERROR)
	eSubCode := uint8(BGP_ERROR_SUB_INVALID_NEXT_HOP_ATTRIBUTE)
	addrlen, err := addrLenForAfi(afi)
	if err != nil {
		return err
	}
	if len(data) < 1 {
		return NewMessageError(eCode, eSubCode, nil, "next hop misses length field")
	}
	l := int(data[0])
	data = data[1:]
	if len(data) < l {
		return NewMessageError(eCode, eSubCode, nil, "next hop bytes is short")
	}
	switch {
	case l == addrlen:
		n.Address = addrFromSlice(data[:l])
		n.LinkLocal = netip.Addr{}
	case afi == AFI_IP6 && l == 2*addrlen:
		n.Address = addrFromSlice(data[:addrlen])
		n.LinkLocal = addrFromSlice(data[addrlen:l])
	default:
		return NewMessageError(eCode, eSubCode, nil, fmt.Sprintf("invalid next hop length %d", l))
	}
	return nil
}

func (n *NextHop) Serialize() ([]byte, error) {
	if !n.Address.IsValid() {
		return nil, fmt.Errorf("invalid next hop address")
	}
	buf := append([]byte{0}, n.Address.AsSlice()...)
	if n.LinkLocal.IsValid() {
		if !n.Address.Is6() || !n.LinkLocal.Is6() {
			return nil, fmt.Errorf("link-local next hop requires IPv6")
		}
		buf = append(buf, n.LinkLocal.AsSlice()...)
	}
	buf[0] = uint8(len(buf) - 1)
	return buf, nil
}

func (n *NextHop) String() string {
	if n.LinkLocal.IsValid() {
		return fmt.Sprintf("%s(%s)", n.Address, n.LinkLocal)
	}
	return n.Address.String()
}
