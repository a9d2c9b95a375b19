// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

// +build linux

package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/warthog618/apix"
)

func init() {
	monCmd.Flags().BoolVarP(&monOpts.ActiveLow, "active-low", "l", false, "treat the line state as active low")
	monCmd.Flags().BoolVarP(&monOpts.FallingEdge, "falling-edge", "f", false, "detect only falling edge events")
	monCmd.Flags().BoolVarP(&monOpts.RisingEdge, "rising-edge", "r", false, "detect only rising edge events")
	monCmd.Flags().UintVarP(&monOpts.NumEvents, "num-events", "n", 0, "exit after n edges")
	monCmd.Flags().BoolVarP(&monOpts.Quiet, "quiet", "q", false, "don't display event details")
	monCmd.SetHelpTemplate(monCmd.HelpTemplate() + extendedMonHelp)
	rootCmd.AddCommand(monCmd)
}

var extendedMonHelp = `
By default both rising and falling edge events are detected and reported.
`

var (
	monCmd = &cobra.Command{
		Use:   "mon <line1>...",
		Short: "Monitor the level of a line or lines",
		Long:  `Wait for edge events on GPIO lines and print them to standard output.`,
		Args:  cobra.MinimumNArgs(1),
		RunE:  mon,
	}
	monOpts = struct {
		ActiveLow   bool
		RisingEdge  bool
		FallingEdge bool
		Quiet       bool
		NumEvents   uint
	}{}
)

type event struct {
	Time   time.Time
	Offset int
	Level  apix.Level
}

func mon(cmd *cobra.Command, args []string) error {
	if monOpts.RisingEdge && monOpts.FallingEdge {
		return errors.New("can't filter both falling-edge and rising-edge events")
	}
	oo, err := parseOffsets(args)
	if err != nil {
		return err
	}
	var mode apix.Mode
	switch {
	case monOpts.RisingEdge == monOpts.FallingEdge:
		mode = apix.InputBoth
	case monOpts.RisingEdge:
		mode = apix.InputRising
	case monOpts.FallingEdge:
		mode = apix.InputFalling
	}
	evtchan := make(chan event)
	eh := func(l *apix.Line) {
		evt := event{
			Time:   time.Now(),
			Offset: l.Offset(),
			Level:  l.Shadow(),
		}
		evtchan <- evt
	}
	for _, o := range oo {
		l, err := apix.Request(o, mode, apix.Shared())
		if err != nil {
			return err
		}
		defer l.Close()
		if monOpts.ActiveLow {
			if err = l.SetActive(apix.ActiveLow); err != nil {
				return err
			}
		}
		if err = l.Watch(eh); err != nil {
			return err
		}
	}
	monWait(evtchan)
	return nil
}

func monWait(evtchan <-chan event) {
	sigdone := make(chan os.Signal, 1)
	signal.Notify(sigdone, os.Interrupt, os.Kill)
	defer signal.Stop(sigdone)
	count := uint(0)
	for {
		select {
		case evt := <-evtchan:
			edge := "rising"
			if evt.Level == apix.Low {
				edge = "falling"
			}
			if !monOpts.Quiet {
				fmt.Printf("event:%3d %-7s %s\n", evt.Offset, edge, evt.Time.Format(time.RFC3339Nano))
			}
			count++
			if monOpts.NumEvents > 0 && count >= monOpts.NumEvents {
				return
			}
		case <-sigdone:
			return
		}
	}
}
