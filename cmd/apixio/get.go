// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

// +build linux

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/warthog618/apix"
)

func init() {
	getCmd.Flags().BoolVarP(&getOpts.ActiveLow, "active-low", "l", false, "treat the line level as active low")
	getCmd.Flags().BoolVarP(&getOpts.Short, "short", "s", false, "display level as 0 or 1")
	rootCmd.AddCommand(getCmd)
}

var (
	getCmd = &cobra.Command{
		Use:     "get <line1>...",
		Short:   "Read the level of a line or lines",
		Args:    cobra.MinimumNArgs(1),
		RunE:    get,
		Example: "  apixio get user_button 72",
	}
	getOpts = struct {
		ActiveLow bool
		Short     bool
	}{}
)

func get(cmd *cobra.Command, args []string) error {
	oo, err := parseOffsets(args)
	if err != nil {
		return err
	}
	vv := make([]apix.Level, len(oo))
	for i, o := range oo {
		l, err := apix.Request(o, apix.Input, apix.Shared())
		if err != nil {
			return err
		}
		v, err := l.Value()
		l.Close()
		if err != nil {
			return err
		}
		if getOpts.ActiveLow {
			v = !v
		}
		vv[i] = v
	}
	printLevels(vv)
	return nil
}

func printLevels(vv []apix.Level) {
	ss := make([]string, len(vv))
	for i, v := range vv {
		if getOpts.Short {
			ss[i] = "0"
			if v {
				ss[i] = "1"
			}
		} else {
			ss[i] = "low"
			if v {
				ss[i] = "high"
			}
		}
	}
	fmt.Println(strings.Join(ss, " "))
}

func parseOffsets(args []string) ([]int, error) {
	oo := make([]int, len(args))
	for i, arg := range args {
		o, err := apix.ParseLine(arg)
		if err != nil {
			return nil, err
		}
		oo[i] = o
	}
	return oo, nil
}
