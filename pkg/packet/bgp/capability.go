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
)

const (
	BGP_OPT_CAPABILITY = 2
)

type BGPCapabilityCode uint8

const (
	BGP_CAP_MULTIPROTOCOL        BGPCapabilityCode = 1
	BGP_CAP_FOUR_OCTET_AS_NUMBER BGPCapabilityCode = 65
)

var CapNameMap = map[BGPCapabilityCode]string{
	BGP_CAP_MULTIPROTOCOL:        "multiprotocol",
	BGP_CAP_FOUR_OCTET_AS_NUMBER: "4-octet-as",
}

func (c BGPCapabilityCode) String() string {
	if n, y := CapNameMap[c]; y {
		return n
	}
	return fmt.Sprintf("UnknownCapability(%d)", c)
}

type ParameterCapabilityInterface interface {
	DecodeFromBytes([]byte) error
	Serialize() ([]byte, error)
	Len() int
	Code() BGPCapabilityCode
}

func capabilityError(data []byte, msg string) error {
	return NewMessageError(BGP_ERROR_OPEN_MESSAGE_ERROR, 0, data, msg)
}

type DefaultParameterCapability struct {
	CapCode  BGPCapabilityCode
	CapLen   uint8
	CapValue []byte
}

func (c *DefaultParameterCapability) Code() BGPCapabilityCode {
	return c.CapCode
}

func (c *DefaultParameterCapability) DecodeFromBytes(data []byte) error {
	if len(data) < 2 {
		return capabilityError(data, "not all capability header bytes available")
	}
	c.CapCode = BGPCapabilityCode(data[0])
	c.CapLen = data[1]
	if len(data) < 2+int(c.CapLen) {
		return capabilityError(data, "not all capability bytes available")
	}
	c.CapValue = data[2 : 2+c.CapLen]
	return nil
}

func (c *DefaultParameterCapability) Serialize() ([]byte, error) {
	if len(c.CapValue) > 0xff {
		return nil, fmt.Errorf("capability %s is too long", c.CapCode)
	}
	c.CapLen = uint8(len(c.CapValue))
	buf := make([]byte, 2, 2+len(c.CapValue))
	buf[0] = uint8(c.CapCode)
	buf[1] = c.CapLen
	return append(buf, c.CapValue...), nil
}

func (c *DefaultParameterCapability) Len() int {
	return int(c.CapLen) + 2
}

// CapMultiProtocol advertises one AFI/SAFI pair (RFC 4760 section 8).
type CapMultiProtocol struct {
	DefaultParameterCapability
	AFI  uint16
	SAFI uint8
}

func (c *CapMultiProtocol) DecodeFromBytes(data []byte) error {
	if err := c.DefaultParameterCapability.DecodeFromBytes(data); err != nil {
		return err
	}
	if c.CapLen != 4 {
		return capabilityError(data, fmt.Sprintf("invalid multiprotocol capability length %d", c.CapLen))
	}
	c.AFI = binary.BigEndian.Uint16(c.CapValue[0:2])
	// CapValue[2] is reserved
	c.SAFI = c.CapValue[3]
	return nil
}

func (c *CapMultiProtocol) Serialize() ([]byte, error) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:], c.AFI)
	buf[3] = c.SAFI
	c.CapValue = buf
	return c.DefaultParameterCapability.Serialize()
}

func (c *CapMultiProtocol) RouteFamily() RouteFamily {
	return AfiSafiToRouteFamily(c.AFI, c.SAFI)
}

func NewCapMultiProtocol(rf RouteFamily) *CapMultiProtocol {
	afi, safi := RouteFamilyToAfiSafi(rf)
	return &CapMultiProtocol{
		DefaultParameterCapability: DefaultParameterCapability{
			CapCode: BGP_CAP_MULTIPROTOCOL,
			CapLen:  4,
		},
		AFI:  afi,
		SAFI: safi,
	}
}

// CapFourOctetASNumber carries the speaker's 4-octet AS (RFC 6793).
type CapFourOctetASNumber struct {
	DefaultParameterCapability
	CapValue uint32
}

func (c *CapFourOctetASNumber) DecodeFromBytes(data []byte) error {
	if err := c.DefaultParameterCapability.DecodeFromBytes(data); err != nil {
		return err
	}
	if c.CapLen != 4 {
		return capabilityError(data, fmt.Sprintf("invalid 4-octet-as capability length %d", c.CapLen))
	}
	c.CapValue = binary.BigEndian.Uint32(c.DefaultParameterCapability.CapValue)
	return nil
}

func (c *CapFourOctetASNumber) Serialize() ([]byte, error) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, c.CapValue)
	c.DefaultParameterCapability.CapValue = buf
	return c.DefaultParameterCapability.Serialize()
}

func NewCapFourOctetASNumber(asnum uint32) *CapFourOctetASNumber {
	return &CapFourOctetASNumber{
		DefaultParameterCapability: DefaultParameterCapability{
			CapCode: BGP_CAP_FOUR_OCTET_AS_NUMBER,
			CapLen:  4,
		},
		CapValue: asnum,
	}
}

type CapUnknown struct {
	DefaultParameterCapability
}

func NewCapUnknown(code BGPCapabilityCode, value []byte) *CapUnknown {
	return &CapUnknown{
		DefaultParameterCapability: DefaultParameterCapability{
			CapCode:  code,
			CapLen:   uint8(len(value)),
			CapValue: value,
		},
	}
}

func decodeCapability(data []byte) (ParameterCapabilityInterface, error) {
	if len(data) < 2 {
		return nil, capabilityError(data, "not all capability header bytes available")
	}
	c, ok := capabilityRegistry.get(BGPCapabilityCode(data[0]))
	if !ok {
		c = &CapUnknown{}
	}
	if err := c.DecodeFromBytes(data); err != nil {
		return nil, err
	}
	return c, nil
}

type OptionParameterInterface interface {
	Serialize() ([]byte, error)
	Len() int
}

// OptionParameterCapability is optional parameter 2. Its value is a list of
// capabilities that must fill the parameter exactly.
type OptionParameterCapability struct {
	ParamType  uint8
	ParamLen   uint8
	Capability []ParameterCapabilityInterface
}

func (o *OptionParameterCapability) DecodeFromBytes(data []byte) error {
	if len(data) < int(o.ParamLen) {
		return capabilityError(data, "not all OptionParameterCapability bytes available")
	}
	data = data[:o.ParamLen]
	for len(data) > 0 {
		c, err := decodeCapability(data)
		if err != nil {
			return err
		}
		o.Capability = append(o.Capability, c)
		data = data[c.Len():]
	}
	return nil
}

func (o *OptionParameterCapability) Serialize() ([]byte, error) {
	buf := make([]byte, 2)
	buf[0] = o.ParamType
	for _, p := range o.Capability {
		pbuf, err := p.Serialize()
		if err != nil {
			return nil, err
		}
		buf = append(buf, pbuf...)
	}
	if len(buf)-2 > 0xff {
		return nil, fmt.Errorf("capability parameter is too long")
	}
	o.ParamLen = uint8(len(buf) - 2)
	buf[1] = o.ParamLen
	return buf, nil
}

func (o *OptionParameterCapability) Len() int {
	return int(o.ParamLen) + 2
}

func NewOptionParameterCapability(capability []ParameterCapabilityInterface) *OptionParameterCapability {
	o := &OptionParameterCapability{
		ParamType:  BGP_OPT_CAPABILITY,
		Capability: capability,
	}
	for _, c := range capability {
		o.ParamLen += uint8(c.Len())
	}
	return o
}

type OptionParameterUnknown struct {
	ParamType uint8
	ParamLen  uint8
	Value     []byte
}

func (o *OptionParameterUnknown) Serialize() ([]byte, error) {
	if len(o.Value) > 0xff {
		return nil, fmt.Errorf("optional parameter %d is too long", o.ParamType)
	}
	o.ParamLen = uint8(len(o.Value))
	buf := make([]byte, 2, 2+len(o.Value))
	buf[0] = o.ParamType
	buf[1] = o.ParamLen
	return append(buf, o.Value...), nil
}

func (o *OptionParameterUnknown) Len() int {
	return int(o.ParamLen) + 2
}

// DecodeOptionParameter decodes a single optional parameter from the head of
// data.
func DecodeOptionParameter(data []byte) (OptionParameterInterface, error) {
	if len(data) < 2 {
		return nil, capabilityError(data, "not all optional parameter header bytes available")
	}
	paramType := data[0]
	paramLen := data[1]
	if len(data) < 2+int(paramLen) {
		return nil, capabilityError(data, "not all optional parameter bytes available")
	}
	if paramType == BGP_OPT_CAPABILITY {
		p := &OptionParameterCapability{ParamType: paramType, ParamLen: paramLen}
		if err := p.DecodeFromBytes(data[2:]); err != nil {
			return nil, err
		}
		return p, nil
	}
	return &OptionParameterUnknown{
		ParamType: paramType,
		ParamLen:  paramLen,
		Value:     data[2 : 2+paramLen],
	}, nil
}
