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
	"encoding/json"
	"fmt"
	"io"

	"github.com/kr/pretty"
	"github.com/spf13/cobra"
)

const (
	cmdDecode    = "decode"
	cmdEncode    = "encode"
	cmdKeepalive = "keepalive"
	cmdOpen      = "open"
	cmdRoute     = "route"
	cmdList      = "list"
)

var globalOpts struct {
	Json    bool
	Debug   bool
	Quiet   bool
	GenCmpl bool

	BashCmplFile string
}

func newRootCmd() *cobra.Command {
	cobra.EnablePrefixMatching = true

	rootCmd := &cobra.Command{
		Use:           "bgpctl",
		Short:         "inspect BGP messages and the host routing table",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if globalOpts.GenCmpl {
				return cmd.GenBashCompletionFile(globalOpts.BashCmplFile)
			}
			cmd.HelpFunc()(cmd, args)
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&globalOpts.Json, "json", "j", false, "use json format to output format")
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.Debug, "debug", "d", false, "use debug")
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.Quiet, "quiet", "q", false, "use quiet")
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.GenCmpl, "gen-cmpl", "c", false, "generate completion file")
	rootCmd.PersistentFlags().StringVarP(&globalOpts.BashCmplFile, "bash-cmpl-file", "", "bgpctl-completion.bash", "bash cmpl filename")

	rootCmd.AddCommand(newDecodeCmd(), newEncodeCmd(), newRouteCmd())
	return rootCmd
}

// printValue renders v as indented json with --json, with pretty's Go syntax
// under --debug and with its fmt form otherwise.
func printValue(w io.Writer, v interface{}) error {
	switch {
	case globalOpts.Json:
		j, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(j))
	case globalOpts.Debug:
		fmt.Fprintf(w, "%# v\n", pretty.Formatter(v))
	default:
		fmt.Fprintln(w, v)
	}
	return nil
}
