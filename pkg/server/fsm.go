// Copyright (C) 2014-2021 Nippon Telegraph and Telephone Corporation.
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

package server

import (
	"errors"
	"fmt"

	"github.com/routelab/bgpd/pkg/packet/bgp"
)

var ErrInvalidTransition = errors.New("invalid session state transition")

// FSMEvent drives a session between states. Only FSMTCPConnected and
// FSMConnectionDropped are raised by the session itself; the others are fed
// through Session.Advance by the OPEN/KEEPALIVE exchange.
type FSMEvent uint8

const (
	FSMTCPConnected FSMEvent = iota + 1
	FSMOpenSent
	FSMOpenReceived
	FSMKeepaliveReceived
	FSMNotificationReceived
	FSMConnectionDropped
)

var fsmEventNames = map[FSMEvent]string{
	FSMTCPConnected:         "tcp-connected",
	FSMOpenSent:             "open-sent",
	FSMOpenReceived:         "open-received",
	FSMKeepaliveReceived:    "keepalive-received",
	FSMNotificationReceived: "notification-received",
	FSMConnectionDropped:    "connection-dropped",
}

func (e FSMEvent) String() string {
	if n, ok := fsmEventNames[e]; ok {
		return n
	}
	return fmt.Sprintf("FSMEvent(%d)", uint8(e))
}

type FSMStateReasonType uint8

const (
	FSMDying FSMStateReasonType = iota
	FSMConnected
	FSMConnectFailed
	FSMRegisterFailed
	FSMConnectionClosed
	FSMPeerClosed
	FSMNotificationRecv
	FSMEventReceived
)

func (r FSMStateReasonType) String() string {
	switch r {
	case FSMDying:
		return "dying"
	case FSMConnected:
		return "connected"
	case FSMConnectFailed:
		return "connect-failed"
	case FSMRegisterFailed:
		return "register-failed"
	case FSMConnectionClosed:
		return "closed"
	case FSMPeerClosed:
		return "peer-closed"
	case FSMNotificationRecv:
		return "notification-received"
	case FSMEventReceived:
		return "event"
	}
	return fmt.Sprintf("FSMStateReasonType(%d)", uint8(r))
}

// nextState is the transition table. The forward edges are strictly linear;
// a notification or a dropped connection returns any state to idle.
func nextState(state bgp.FSMState, event FSMEvent) (bgp.FSMState, error) {
	switch event {
	case FSMNotificationReceived, FSMConnectionDropped:
		return bgp.BGP_FSM_IDLE, nil
	case FSMTCPConnected:
		if state == bgp.BGP_FSM_IDLE {
			return bgp.BGP_FSM_CONNECT, nil
		}
	case FSMOpenSent:
		if state == bgp.BGP_FSM_CONNECT {
			return bgp.BGP_FSM_OPENSENT, nil
		}
	case FSMOpenReceived:
		if state == bgp.BGP_FSM_OPENSENT {
			return bgp.BGP_FSM_OPENCONFIRM, nil
		}
	case FSMKeepaliveReceived:
		if state == bgp.BGP_FSM_OPENCONFIRM {
			return bgp.BGP_FSM_ESTABLISHED, nil
		}
	default:
		return state, fmt.Errorf("%w: unknown event %s", ErrInvalidTransition, event)
	}
	return state, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, event, state)
}
