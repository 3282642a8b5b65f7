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
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/routelab/bgpd/pkg/packet/bgp"
)

var decodeOpts struct {
	Hex bool
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	var r io.Reader = cmd.InOrStdin()
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !decodeOpts.Hex {
		return data, nil
	}
	s := strings.Join(strings.Fields(string(data)), "")
	s = strings.ReplaceAll(s, ":", "")
	return hex.DecodeString(s)
}

func describeMessage(msg *bgp.BGPMessage) string {
	var b strings.Builder
	switch body := msg.Body.(type) {
	case *bgp.BGPOpen:
		fmt.Fprintf(&b, "OPEN version %d as %d hold %d id %s", body.Version, body.MyAS, body.HoldTime, body.ID)
		for _, c := range body.Capabilities() {
			fmt.Fprintf(&b, "\n  capability %s", c.Code())
		}
	case *bgp.BGPUpdate:
		fmt.Fprintf(&b, "UPDATE withdrawn %d nlri %d", len(body.WithdrawnRoutes), len(body.NLRI))
		for _, p := range body.WithdrawnRoutes {
			fmt.Fprintf(&b, "\n  withdraw %s", p)
		}
		for _, a := range body.PathAttributes {
			fmt.Fprintf(&b, "\n  %s", a)
		}
		for _, p := range body.NLRI {
			fmt.Fprintf(&b, "\n  nlri %s", p)
		}
	case *bgp.BGPNotification:
		fmt.Fprintf(&b, "NOTIFICATION code %d subcode %d", body.ErrorCode, body.ErrorSubcode)
	case *bgp.BGPKeepAlive:
		b.WriteString("KEEPALIVE")
	case *bgp.BGPRouteRefresh:
		fmt.Fprintf(&b, "ROUTE-REFRESH afi %d safi %d", body.AFI, body.SAFI)
	default:
		fmt.Fprintf(&b, "type %d", msg.Header.Type)
	}
	return b.String()
}

func newDecodeCmd() *cobra.Command {
	decodeCmd := &cobra.Command{
		Use:   cmdDecode + " [<file>|-]",
		Short: "decode a stream of BGP messages",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			msgs, err := bgp.ParseBGPMessages(data)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if globalOpts.Json || globalOpts.Debug {
				return printValue(w, msgs)
			}
			for _, msg := range msgs {
				fmt.Fprintln(w, describeMessage(msg))
			}
			return nil
		},
	}
	decodeCmd.Flags().BoolVarP(&decodeOpts.Hex, "hex", "x", false, "input is hex text")
	return decodeCmd
}
