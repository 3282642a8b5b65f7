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
	"strings"
)

const (
	BGP_ASPATH_ATTR_TYPE_SET = 1
	BGP_ASPATH_ATTR_TYPE_SEQ = 2
)

// BGP_ASPATH_MAX_DEPTH bounds how deeply AS_SET segments may nest.
const BGP_ASPATH_MAX_DEPTH = 8

// AsPathSegmentInterface is one node of an AS_PATH. A set holds nested
// segments rather than AS numbers, so an AS_PATH is a tree.
type AsPathSegmentInterface interface {
	Serialize() ([]byte, error)
	Len() int
	GetType() uint8
	String() string
}

// AsPathSequence is an AS_SEQUENCE of 4-octet AS numbers.
type AsPathSequence struct {
	AS []uint32
}

func (s *AsPathSequence) GetType() uint8 {
	return BGP_ASPATH_ATTR_TYPE_SEQ
}

func (s *AsPathSequence) Len() int {
	return 2 + 4*len(s.AS)
}

func (s *AsPathSequence) Serialize() ([]byte, error) {
	if len(s.AS) > 0xff {
		return nil, fmt.Errorf("too many AS numbers in a segment: %d", len(s.AS))
	}
	buf := make([]byte, 2, s.Len())
	buf[0] = BGP_ASPATH_ATTR_TYPE_SEQ
	buf[1] = uint8(len(s.AS))
	for _, as := range s.AS {
		buf = binary.BigEndian.AppendUint32(buf, as)
	}
	return buf, nil
}

func (s *AsPathSequence) String() string {
	strs := make([]string, 0, len(s.AS))
	for _, as := range s.AS {
		strs = append(strs, fmt.Sprint(as))
	}
	return strings.Join(strs, " ")
}

// AsPathSet is an AS_SET whose members are segments.
type AsPathSet struct {
	Segments []AsPathSegmentInterface
}

func (s *AsPathSet) GetType() uint8 {
	return BGP_ASPATH_ATTR_TYPE_SET
}

func (s *AsPathSet) Len() int {
	l := 2
	for _, seg := range s.Segments {
		l += seg.Len()
	}
	return l
}

func (s *AsPathSet) Serialize() ([]byte, error) {
	if len(s.Segments) > 0xff {
		return nil, fmt.Errorf("too many segments in a set: %d", len(s.Segments))
	}
	buf := []byte{BGP_ASPATH_ATTR_TYPE_SET, uint8(len(s.Segments))}
	for _, seg := range s.Segments {
		b, err := seg.Serialize()
		if err != nil {
			return nil, err
		}
		buf = append(buf, b...)
	}
	return buf, nil
}

func (s *AsPathSet) String() string {
	strs := make([]string, 0, len(s.Segments))
	for _, seg := range s.Segments {
		strs = append(strs, seg.String())
	}
	return "{" + strings.Join(strs, ",") + "}"
}

// AsPathUnknown keeps a segment of an unknown type. It swallows everything
// after its header up to the end of the enclosing data.
type AsPathUnknown struct {
	Type  uint8
	Num   uint8
	Value []byte
}

func (s *AsPathUnknown) GetType() uint8 {
	return s.Type
}

func (s *AsPathUnknown) Len() int {
	return 2 + len(s.Value)
}

func (s *AsPathUnknown) Serialize() ([]byte, error) {
	buf := []byte{s.Type, s.Num}
	return append(buf, s.Value...), nil
}

func (s *AsPathUnknown) String() string {
	return fmt.Sprintf("?(%d)", s.Type)
}

func NewAsPathSequence(as ...uint32) *AsPathSequence {
	return &AsPathSequence{AS: as}
}

func NewAsPathSet(segments ...AsPathSegmentInterface) *AsPathSet {
	return &AsPathSet{Segments: segments}
}

func asPathError(data []byte, msg string) error {
	return NewMessageError(BGP_ERROR_UPDATE_MESSAGE_ERROR, BGP_ERROR_SUB_MALFORMED_AS_PATH, data, msg)
}

func decodeAsPathSegment(data []byte, depth int) (AsPathSegmentInterface, []byte, error) {
	if depth > BGP_ASPATH_MAX_DEPTH {
		return nil, nil, asPathError(nil, "as path segments are nested too deeply")
	}
	if len(data) < 2 {
		return nil, nil, asPathError(data, "as path segment header is short")
	}
	typ, num := data[0], data[1]
	data = data[2:]
	switch typ {
	case BGP_ASPATH_ATTR_TYPE_SEQ:
		if num == 0 {
			return nil, nil, asPathError(nil, "empty as path sequence")
		}
		if len(data) < 4*int(num) {
			return nil, nil, asPathError(data, "as path sequence is short")
		}
		as := make([]uint32, 0, num)
		for i := 0; i < int(num); i++ {
			as = append(as, binary.BigEndian.Uint32(data[4*i:]))
		}
		return &AsPathSequence{AS: as}, data[4*int(num):], nil
	case BGP_ASPATH_ATTR_TYPE_SET:
		if num == 0 {
			return nil, nil, asPathError(nil, "empty as path set")
		}
		set := &AsPathSet{Segments: make([]AsPathSegmentInterface, 0, num)}
		for i := 0; i < int(num); i++ {
			seg, rest, err := decodeAsPathSegment(data, depth+1)
			if err != nil {
				return nil, nil, err
			}
			set.Segments = append(set.Segments, seg)
			data = rest
		}
		return set, data, nil
	}
	return &AsPathUnknown{Type: typ, Num: num, Value: data}, nil, nil
}

type PathAttributeAsPath struct {
	PathAttribute
	Value []AsPathSegmentInterface
}

func (p *PathAttributeAsPath) DecodeFromBytes(data []byte) error {
	if err := p.PathAttribute.DecodeFromBytes(data); err != nil {
		return err
	}
	value := p.PathAttribute.Value
	p.Value = make([]AsPathSegmentInterface, 0)
	for len(value) > 0 {
		seg, rest, err := decodeAsPathSegment(value, 0)
		if err != nil {
			return err
		}
		p.Value = append(p.Value, seg)
		value = rest
	}
	return nil
}

func (p *PathAttributeAsPath) Serialize() ([]byte, error) {
	buf := make([]byte, 0)
	for _, seg := range p.Value {
		b, err := seg.Serialize()
		if err != nil {
			return nil, err
		}
		buf = append(buf, b...)
	}
	p.PathAttribute.Value = buf
	return p.PathAttribute.Serialize()
}

func (p *PathAttributeAsPath) String() string {
	strs := make([]string, 0, len(p.Value))
	for _, seg := range p.Value {
		strs = append(strs, seg.String())
	}
	return fmt.Sprintf("{AsPath: %s}", strings.Join(strs, " "))
}

func NewPathAttributeAsPath(value []AsPathSegmentInterface) *PathAttributeAsPath {
	return &PathAttributeAsPath{
		PathAttribute: newPathAttribute(BGP_ATTR_TYPE_AS_PATH),
		Value:         value,
	}
}
