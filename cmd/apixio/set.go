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
	setCmd.Flags().BoolVarP(&setOpts.ActiveLow, "active-low", "l", false, "treat the line level as active low")
	setCmd.SetHelpTemplate(setCmd.HelpTemplate() + extendedSetHelp)
	rootCmd.AddCommand(setCmd)
}

var (
	setCmd = &cobra.Command{
		Use:     "set <line1>=<level1>...",
		Short:   "Set the level of a line or lines",
		Args:    cobra.MinimumNArgs(1),
		RunE:    set,
		Example: "  apixio set user_led=high 73=0",
	}
	setOpts = struct {
		ActiveLow bool
	}{}
)

var extendedSetHelp = `
Lines:
  Lines may be identified by kernel GPIO number or by an alias from the
  library config file.

Levels:
  Levels may be [high|hi|true|1|low|lo|false|0] and are case insensitive.

Note that setting a line forces it into output mode.  The line is left
exported so the level persists after apixio exits.
`

func set(cmd *cobra.Command, args []string) error {
	oo := []int(nil)
	vv := []apix.Level(nil)
	for _, arg := range args {
		o, v, err := parseLineLevel(arg)
		if err != nil {
			return err
		}
		oo = append(oo, o)
		vv = append(vv, v)
	}
	for i, v := range vv {
		if setOpts.ActiveLow {
			v = !v
		}
		mode := apix.OutputLow
		if v {
			mode = apix.OutputHigh
		}
		l, err := apix.Request(oo[i], mode, apix.Shared())
		if err != nil {
			return err
		}
		l.Close()
	}
	return nil
}

func parseLineLevel(arg string) (int, apix.Level, error) {
	aa := strings.Split(arg, "=")
	if len(aa) != 2 {
		return 0, apix.Low, fmt.Errorf("invalid line<->level mapping: %s", arg)
	}
	o, err := apix.ParseLine(aa[0])
	if err != nil {
		return 0, apix.Low, err
	}
	v, err := parseLevel(aa[1])
	if err != nil {
		return 0, apix.Low, err
	}
	return o, v, nil
}

func parseLevel(arg string) (apix.Level, error) {
	if l, ok := levelNames[strings.ToLower(arg)]; ok {
		return l, nil
	}
	return apix.Low, fmt.Errorf("can't parse level '%s'", arg)
}

var levelNames = map[string]apix.Level{
	"high":  apix.High,
	"hi":    apix.High,
	"true":  apix.High,
	"1":     apix.High,
	"low":   apix.Low,
	"lo":    apix.Low,
	"false": apix.Low,
	"0":     apix.Low,
}
