// Copyright (C) 2015 Nippon Telegraph and Telephone Corporation.
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

package main

import (
	"encoding/hex"
	"fmt"
	"net/netip"

	"github.com/spf13/cobra"

	"github.com/routelab/bgpd/pkg/packet/bgp"
)

var openOpts struct {
	As       uint32
	RouterId string
	HoldTime uint16
	Families []string
}

func printMessage(cmd *cobra.Command, msg *bgp.BGPMessage) error {
	buf, err := msg.Serialize()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(buf))
	return nil
}

func newOpenMessage(as uint32, routerId string, holdTime uint16, families []string) (*bgp.BGPMessage, error) {
	id, err := netip.ParseAddr(routerId)
	if err != nil || !id.Is4() {
		return nil, fmt.Errorf("invalid router id: %s", routerId)
	}
	caps := make([]bgp.ParameterCapabilityInterface, 0, len(families)+1)
	for _, name := range families {
		rf, err := bgp.GetRouteFamily(name)
		if err != nil {
			return nil, err
		}
		caps = append(caps, bgp.NewCapMultiProtocol(rf))
	}
	myas := uint16(as)
	if as > 0xffff {
		myas = bgp.AS_TRANS
	}
	caps = append(caps, bgp.NewCapFourOctetASNumber(as))
	params := []bgp.OptionParameterInterface{bgp.NewOptionParameterCapability(caps)}
	return bgp.NewBGPOpenMessage(myas, holdTime, id, params), nil
}

func newEncodeCmd() *cobra.Command {
	encodeCmd := &cobra.Command{
		Use:   cmdEncode,
		Short: "encode a BGP message as hex",
	}

	keepaliveCmd := &cobra.Command{
		Use:  cmdKeepalive,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printMessage(cmd, bgp.NewBGPKeepAliveMessage())
		},
	}

	openCmd := &cobra.Command{
		Use:  cmdOpen,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := newOpenMessage(openOpts.As, openOpts.RouterId, openOpts.HoldTime, openOpts.Families)
			if err != nil {
				return err
			}
			return printMessage(cmd, msg)
		},
	}
	openCmd.Flags().Uint32VarP(&openOpts.As, "as", "a", 0, "local AS number")
	openCmd.Flags().StringVarP(&openOpts.RouterId, "router-id", "r", "", "router id")
	openCmd.Flags().Uint16VarP(&openOpts.HoldTime, "hold-time", "", 90, "hold time in seconds")
	openCmd.Flags().StringSliceVarP(&openOpts.Families, "family", "f", []string{"ipv4-unicast"}, "advertised address families")
	openCmd.MarkFlagRequired("as")
	openCmd.MarkFlagRequired("router-id")

	encodeCmd.AddCommand(keepaliveCmd, openCmd)
	return encodeCmd
}
