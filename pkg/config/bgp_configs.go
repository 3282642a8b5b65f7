// Copyright (C) 2014,2015 Nippon Telegraph and Telephone Corporation.
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

package config

import (
	"net"
	"strconv"
	"time"
)

// struct for container bgp:config
type GlobalConfig struct {
	// original -> bgp:as
	As uint32 `mapstructure:"as" toml:"as"`
	// original -> bgp:router-id
	RouterId string `mapstructure:"router-id" toml:"router-id"`
	// original -> gobgp:port
	Port int32 `mapstructure:"port" toml:"port"`
	// original -> gobgp:local-address
	LocalAddressList []string `mapstructure:"local-address-list" toml:"local-address-list"`
}

// struct for container bgp:global
type Global struct {
	Config GlobalConfig `mapstructure:"config" toml:"config"`
}

// struct for container bgp:config
type NeighborConfig struct {
	// original -> bgp:peer-as
	PeerAs uint32 `mapstructure:"peer-as" toml:"peer-as"`
	// original -> bgp:neighbor-address
	NeighborAddress string `mapstructure:"neighbor-address" toml:"neighbor-address"`
	// original -> bgp:description
	Description string `mapstructure:"description" toml:"description,omitempty"`
}

// struct for container bgp:config
type TimersConfig struct {
	// original -> bgp:connect-retry
	ConnectRetry float64 `mapstructure:"connect-retry" toml:"connect-retry"`
}

// struct for container bgp:timers
type Timers struct {
	Config TimersConfig `mapstructure:"config" toml:"config"`
}

// struct for container bgp:config
type TransportConfig struct {
	// original -> gobgp:remote-port
	RemotePort uint16 `mapstructure:"remote-port" toml:"remote-port"`
}

// struct for container bgp:transport
type Transport struct {
	Config TransportConfig `mapstructure:"config" toml:"config"`
}

// struct for container bgp:neighbor
type Neighbor struct {
	Config    NeighborConfig `mapstructure:"config" toml:"config"`
	Timers    Timers         `mapstructure:"timers" toml:"timers"`
	Transport Transport      `mapstructure:"transport" toml:"transport"`
}

// Key identifies a neighbor by the address and port its session dials.
func (n *Neighbor) Key() string {
	return net.JoinHostPort(n.Config.NeighborAddress, strconv.Itoa(int(n.Transport.Config.RemotePort)))
}

func (n *Neighbor) ConnectRetryInterval() time.Duration {
	return time.Duration(n.Timers.Config.ConnectRetry * float64(time.Second))
}

type BgpConfigSet struct {
	Global    Global     `mapstructure:"global" toml:"global"`
	Neighbors []Neighbor `mapstructure:"neighbors" toml:"neighbors"`
}
