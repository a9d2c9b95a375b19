// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

// +build linux

// gpio-toggle waits for edges on an input line, typically a push-button,
// and toggles an output line, typically a LED, on each one.
//
// The first half of the run uses blocking waits, the second an
// asynchronous watch.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/warthog618/apix"
	"github.com/warthog618/apix/toggle"
)

// Default aliases used when no lines are given on the command line.
const (
	defaultButtonAlias = "user_button"
	defaultLEDAlias    = "user_led"
)

var rootCmd = &cobra.Command{
	Use:   "gpio-toggle [<input-line> <output-line>]",
	Short: "Toggle an output line on edges from an input line",
	Long: `Wait for rising edges on an input line, typically a push-button, and
toggle an output line, typically a LED, on each one.

With no arguments the lines default to the '` + defaultButtonAlias + `' and '` + defaultLEDAlias + `'
aliases.  Lines may be identified by kernel GPIO number or by an alias
from the library config file.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return errors.New("requires either zero or two line arguments")
		}
		return nil
	},
	RunE: run,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gpio-toggle: %s\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	// arguments are good - errors from here on are runtime, not usage.
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	inArg, outArg := defaultButtonAlias, defaultLEDAlias
	if len(args) == 2 {
		inArg, outArg = args[0], args[1]
	}
	button, err := apix.ParseLine(inArg)
	if err != nil {
		return err
	}
	led, err := apix.ParseLine(outArg)
	if err != nil {
		return err
	}

	// terminating signals cancel the run; the deferred Close still
	// releases the lines.
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	demo, err := toggle.Open(button, led)
	if err != nil {
		return err
	}
	defer demo.Close()

	return demo.Run(ctx)
}
