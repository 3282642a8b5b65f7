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
	"context"
	"fmt"
	"net/netip"

	"github.com/spf13/cobra"

	"github.com/routelab/bgpd/pkg/route"
)

var routeOpts struct {
	Lookup string
}

var routeTable = route.NewRouteTable

func listRoutes(ctx context.Context, table route.RouteTable, lookup string) ([]*route.Route, error) {
	routes, err := table.All(ctx)
	if err != nil {
		return nil, err
	}
	if lookup == "" {
		return routes, nil
	}
	addr, err := netip.ParseAddr(lookup)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %s", lookup)
	}
	return route.Lookup(routes, addr), nil
}

func newRouteCmd() *cobra.Command {
	routeCmd := &cobra.Command{
		Use:   cmdRoute,
		Short: "inspect the host routing table",
	}

	listCmd := &cobra.Command{
		Use:  cmdList,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			routes, err := listRoutes(cmd.Context(), routeTable(), routeOpts.Lookup)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if globalOpts.Json || globalOpts.Debug {
				return printValue(w, routes)
			}
			if len(routes) == 0 {
				if !globalOpts.Quiet {
					fmt.Fprintln(w, "no routes")
				}
				return nil
			}
			for _, r := range routes {
				fmt.Fprintln(w, r)
			}
			return nil
		},
	}
	listCmd.Flags().StringVarP(&routeOpts.Lookup, "lookup", "l", "", "only show the longest match for this address")

	routeCmd.AddCommand(listCmd)
	return routeCmd
}
