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
)

type BGPBody interface {
	DecodeFromBytes([]byte) error
	Serialize() ([]byte, error)
}

type BGPHeader struct {
	Marker []byte
	Len    uint16
	Type   uint8
}

// DecodeFromBytes reads the fixed 19 byte header. The marker is kept but
// not checked.
func (msg *BGPHeader) DecodeFromBytes(data []byte) error {
	if len(data) < BGP_HEADER_LENGTH {
		return NewMessageError(BGP_ERROR_MESSAGE_HEADER_ERROR, BGP_ERROR_SUB_BAD_MESSAGE_LENGTH, nil, "not all BGP message header bytes available")
	}
	msg.Marker = data[:BGP_MARKER_LENGTH]
	msg.Len = binary.BigEndian.Uint16(data[16:18])
	if int(msg.Len) < BGP_HEADER_LENGTH || int(msg.Len) > BGP_MAX_MESSAGE_LENGTH {
		return NewMessageError(BGP_ERROR_MESSAGE_HEADER_ERROR, BGP_ERROR_SUB_BAD_MESSAGE_LENGTH, data[16:18], fmt.Sprintf("bad message length %d", msg.Len))
	}
	msg.Type = data[18]
	return nil
}

func (msg *BGPHeader) Serialize() ([]byte, error) {
	buf := make([]byte, BGP_HEADER_LENGTH)
	for i := range buf[:BGP_MARKER_LENGTH] {
		buf[i] = 0xff
	}
	binary.BigEndian.PutUint16(buf[16:18], msg.Len)
	buf[18] = msg.Type
	return buf, nil
}

type BGPMessage struct {
	Header BGPHeader
	Body   BGPBody
}

func parseBody(h *BGPHeader, data []byte) (*BGPMessage, error) {
	if len(data) < int(h.Len)-BGP_HEADER_LENGTH {
		return nil, NewMessageError(BGP_ERROR_MESSAGE_HEADER_ERROR, BGP_ERROR_SUB_BAD_MESSAGE_LENGTH, nil, "not all BGP message bytes available")
	}
	msg := &BGPMessage{Header: *h}

	body, ok := messageRegistry.get(h.Type)
	if !ok {
		body = &BGPUnknown{}
	}
	if err := body.DecodeFromBytes(data); err != nil {
		return nil, err
	}
	msg.Body = body
	return msg, nil
}

// UnpackBGPMessage decodes the message at the head of data and returns the
// bytes following it.
func UnpackBGPMessage(data []byte) (*BGPMessage, []byte, error) {
	h := &BGPHeader{}
	if err := h.DecodeFromBytes(data); err != nil {
		return nil, nil, err
	}
	if len(data) < int(h.Len) {
		return nil, nil, NewMessageError(BGP_ERROR_MESSAGE_HEADER_ERROR, BGP_ERROR_SUB_BAD_MESSAGE_LENGTH, nil, "not all BGP message bytes available")
	}
	msg, err := parseBody(h, data[BGP_HEADER_LENGTH:h.Len])
	if err != nil {
		return nil, nil, err
	}
	return msg, data[h.Len:], nil
}

// ParseBGPMessage decodes the first message in data. Trailing bytes are
// ignored.
func ParseBGPMessage(data []byte) (*BGPMessage, error) {
	msg, _, err := UnpackBGPMessage(data)
	return msg, err
}

// ParseBGPMessages decodes every message in data. Each one has to be
// complete; partial trailing messages are an error, not buffered. At least
// one message is required.
func ParseBGPMessages(data []byte) ([]*BGPMessage, error) {
	if len(data) == 0 {
		return nil, NewMessageError(BGP_ERROR_MESSAGE_HEADER_ERROR, BGP_ERROR_SUB_BAD_MESSAGE_LENGTH, nil, "no BGP message available")
	}
	msgs := make([]*BGPMessage, 0)
	for len(data) > 0 {
		msg, rest, err := UnpackBGPMessage(data)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
		data = rest
	}
	return msgs, nil
}

func (msg *BGPMessage) Serialize() ([]byte, error) {
	b, err := msg.Body.Serialize()
	if err != nil {
		return nil, err
	}
	if BGP_HEADER_LENGTH+len(b) > BGP_MAX_MESSAGE_LENGTH {
		return nil, NewMessageError(0, 0, nil, fmt.Sprintf("too long message length %d", BGP_HEADER_LENGTH+len(b)))
	}
	msg.Header.Len = BGP_HEADER_LENGTH + uint16(len(b))
	h, err := msg.Header.Serialize()
	if err != nil {
		return nil, err
	}
	return append(h, b...), nil
}

type BGPOpen struct {
	Version     uint8
	MyAS        uint16
	HoldTime    uint16
	ID          netip.Addr
	OptParamLen uint8
	OptParams   []OptionParameterInterface
}

func (msg *BGPOpen) DecodeFromBytes(data []byte) error {
	if len(data) < 10 {
		return NewMessageError(BGP_ERROR_MESSAGE_HEADER_ERROR, BGP_ERROR_SUB_BAD_MESSAGE_LENGTH, nil, "not all BGP Open message bytes available")
	}
	msg.Version = data[0]
	if msg.Version != BGP_VERSION {
		return NewMessageError(BGP_ERROR_OPEN_MESSAGE_ERROR, BGP_ERROR_SUB_UNSUPPORTED_VERSION_NUMBER, []byte{0, BGP_VERSION}, fmt.Sprintf("unsupported version number %d", msg.Version))
	}
	msg.MyAS = binary.BigEndian.Uint16(data[1:3])
	msg.HoldTime = binary.BigEndian.Uint16(data[3:5])
	msg.ID = netip.AddrFrom4([4]byte(data[5:9]))
	msg.OptParamLen = data[9]
	data = data[10:]
	if len(data) < int(msg.OptParamLen) {
		return NewMessageError(BGP_ERROR_MESSAGE_HEADER_ERROR, BGP_ERROR_SUB_BAD_MESSAGE_LENGTH, nil, "not all BGP Open message bytes available")
	}
	data = data[:msg.OptParamLen]
	msg.OptParams = make([]OptionParameterInterface, 0)
	for len(data) > 0 {
		p, err := DecodeOptionParameter(data)
		if err != nil {
			return err
		}
		msg.OptParams = append(msg.OptParams, p)
		data = data[p.Len():]
	}
	return nil
}

func (msg *BGPOpen) Serialize() ([]byte, error) {
	buf := make([]byte, 10)
	buf[0] = msg.Version
	binary.BigEndian.PutUint16(buf[1:3], msg.MyAS)
	binary.BigEndian.PutUint16(buf[3:5], msg.HoldTime)
	if !msg.ID.Is4() {
		return nil, fmt.Errorf("router id %s is not an IPv4 address", msg.ID)
	}
	id := msg.ID.As4()
	copy(buf[5:9], id[:])
	pbuf := make([]byte, 0)
	for _, p := range msg.OptParams {
		onepbuf, err := p.Serialize()
		if err != nil {
			return nil, err
		}
		pbuf = append(pbuf, onepbuf...)
	}
	if len(pbuf) > 0xff {
		return nil, fmt.Errorf("optional parameters are too long")
	}
	msg.OptParamLen = uint8(len(pbuf))
	buf[9] = msg.OptParamLen
	return append(buf, pbuf...), nil
}

// Capabilities returns every capability carried in the optional parameters,
// in order.
func (msg *BGPOpen) Capabilities() []ParameterCapabilityInterface {
	caps := make([]ParameterCapabilityInterface, 0)
	for _, p := range msg.OptParams {
		if c, ok := p.(*OptionParameterCapability); ok {
			caps = append(caps, c.Capability...)
		}
	}
	return caps
}

func NewBGPOpenMessage(myas uint16, holdtime uint16, id netip.Addr, optparams []OptionParameterInterface) *BGPMessage {
	return &BGPMessage{
		Header: BGPHeader{Type: BGP_MSG_OPEN},
		Body:   &BGPOpen{BGP_VERSION, myas, holdtime, id, 0, optparams},
	}
}

type BGPUpdate struct {
	WithdrawnRoutesLen    uint16
	WithdrawnRoutes       []*IPAddrPrefix
	TotalPathAttributeLen uint16
	PathAttributes        []PathAttributeInterface
	NLRI                  []*IPAddrPrefix
}

func (msg *BGPUpdate) DecodeFromBytes(data []byte) error {
	// cache error codes
	eCode := uint8(BGP_ERROR_UPDATE_MESSAGE_ERROR)
	eSubCode := uint8(BGP_ERROR_SUB_MALFORMED_ATTRIBUTE_LIST)

	if len(data) < 2 {
		return NewMessageError(eCode, eSubCode, nil, "message length isn't enough for withdrawn route length")
	}
	msg.WithdrawnRoutesLen = binary.BigEndian.Uint16(data[0:2])
	data = data[2:]
	if len(data) < int(msg.WithdrawnRoutesLen) {
		return NewMessageError(eCode, eSubCode, nil, "withdrawn route length exceeds message length")
	}
	var err error
	msg.WithdrawnRoutes, err = decodePrefixes(data[:msg.WithdrawnRoutesLen], AFI_IP)
	if err != nil {
		return err
	}
	data = data[msg.WithdrawnRoutesLen:]

	if len(data) < 2 {
		return NewMessageError(eCode, eSubCode, nil, "message length isn't enough for path total attribute length")
	}
	msg.TotalPathAttributeLen = binary.BigEndian.Uint16(data[0:2])
	data = data[2:]
	if len(data) < int(msg.TotalPathAttributeLen) {
		return NewMessageError(eCode, eSubCode, nil, "path total attribute length exceeds message length")
	}
	attrs := data[:msg.TotalPathAttributeLen]
	msg.PathAttributes = make([]PathAttributeInterface, 0)
	for len(attrs) > 0 {
		p, err := DecodePathAttribute(attrs)
		if err != nil {
			return err
		}
		msg.PathAttributes = append(msg.PathAttributes, p)
		attrs = attrs[p.Len():]
	}
	data = data[msg.TotalPathAttributeLen:]

	msg.NLRI, err = decodePrefixes(data, AFI_IP)
	return err
}

func (msg *BGPUpdate) Serialize() ([]byte, error) {
	wbuf, err := serializePrefixes(msg.WithdrawnRoutes)
	if err != nil {
		return nil, err
	}
	msg.WithdrawnRoutesLen = uint16(len(wbuf))

	pbuf := make([]byte, 0)
	for _, p := range msg.PathAttributes {
		onepbuf, err := p.Serialize()
		if err != nil {
			return nil, err
		}
		pbuf = append(pbuf, onepbuf...)
	}
	msg.TotalPathAttributeLen = uint16(len(pbuf))

	nbuf, err := serializePrefixes(msg.NLRI)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 2, 4+len(wbuf)+len(pbuf)+len(nbuf))
	binary.BigEndian.PutUint16(buf, msg.WithdrawnRoutesLen)
	buf = append(buf, wbuf...)
	buf = binary.BigEndian.AppendUint16(buf, msg.TotalPathAttributeLen)
	buf = append(buf, pbuf...)
	return append(buf, nbuf...), nil
}

// PathAttribute returns the first attribute of type t, or nil.
func (msg *BGPUpdate) PathAttribute(t BGPAttrType) PathAttributeInterface {
	for _, p := range msg.PathAttributes {
		if p.GetType() == t {
			return p
		}
	}
	return nil
}

func NewBGPUpdateMessage(withdrawnRoutes []*IPAddrPrefix, pathattrs []PathAttributeInterface, nlri []*IPAddrPrefix) *BGPMessage {
	return &BGPMessage{
		Header: BGPHeader{Type: BGP_MSG_UPDATE},
		Body:   &BGPUpdate{0, withdrawnRoutes, 0, pathattrs, nlri},
	}
}

type BGPNotification struct {
	ErrorCode    uint8
	ErrorSubcode uint8
	Data         []byte
}

func (msg *BGPNotification) DecodeFromBytes(data []byte) error {
	if len(data) < 2 {
		return NewMessageError(BGP_ERROR_MESSAGE_HEADER_ERROR, BGP_ERROR_SUB_BAD_MESSAGE_LENGTH, nil, "not all Notification bytes available")
	}
	msg.ErrorCode = data[0]
	msg.ErrorSubcode = data[1]
	if len(data) > 2 {
		msg.Data = data[2:]
	}
	return nil
}

func (msg *BGPNotification) Serialize() ([]byte, error) {
	buf := make([]byte, 2, 2+len(msg.Data))
	buf[0] = msg.ErrorCode
	buf[1] = msg.ErrorSubcode
	return append(buf, msg.Data...), nil
}

func NewBGPNotificationMessage(errcode uint8, errsubcode uint8, data []byte) *BGPMessage {
	return &BGPMessage{
		Header: BGPHeader{Type: BGP_MSG_NOTIFICATION},
		Body:   &BGPNotification{errcode, errsubcode, data},
	}
}

type BGPKeepAlive struct {
}

func (msg *BGPKeepAlive) DecodeFromBytes(data []byte) error {
	if len(data) != 0 {
		return NewMessageError(BGP_ERROR_MESSAGE_HEADER_ERROR, BGP_ERROR_SUB_BAD_MESSAGE_LENGTH, nil, "keepalive message has a body")
	}
	return nil
}

func (msg *BGPKeepAlive) Serialize() ([]byte, error) {
	return nil, nil
}

func NewBGPKeepAliveMessage() *BGPMessage {
	return &BGPMessage{
		Header: BGPHeader{Len: BGP_HEADER_LENGTH, Type: BGP_MSG_KEEPALIVE},
		Body:   &BGPKeepAlive{},
	}
}

// BGPRouteRefresh is the RFC 2918 ROUTE-REFRESH message.
type BGPRouteRefresh struct {
	AFI         uint16
	Demarcation uint8
	SAFI        uint8
}

func (msg *BGPRouteRefresh) DecodeFromBytes(data []byte) error {
	if len(data) != 4 {
		return NewMessageError(BGP_ERROR_ROUTE_REFRESH_MESSAGE_ERROR, 1, data, "invalid route refresh message length")
	}
	msg.AFI = binary.BigEndian.Uint16(data[0:2])
	msg.Demarcation = data[2]
	msg.SAFI = data[3]
	return nil
}

func (msg *BGPRouteRefresh) Serialize() ([]byte, error) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], msg.AFI)
	buf[2] = msg.Demarcation
	buf[3] = msg.SAFI
	return buf, nil
}

func NewBGPRouteRefreshMessage(afi uint16, demarcation uint8, safi uint8) *BGPMessage {
	return &BGPMessage{
		Header: BGPHeader{Type: BGP_MSG_ROUTE_REFRESH},
		Body:   &BGPRouteRefresh{afi, demarcation, safi},
	}
}

// BGPUnknown keeps the body of a message type without a registered
// decoder so that it can be written back unchanged.
type BGPUnknown struct {
	Value []byte
}

func (msg *BGPUnknown) DecodeFromBytes(data []byte) error {
	msg.Value = data
	return nil
}

func (msg *BGPUnknown) Serialize() ([]byte, error) {
	return msg.Value, nil
}
