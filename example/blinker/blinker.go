// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warthog618/apix"
)

// Blinks the user LED at 1Hz with a 50% duty cycle.
//
// An alternative line may be given as the only argument, by number or
// alias.  Do not run this on a board where that line is externally
// driven.
func main() {
	arg := "user_led"
	if len(os.Args) > 1 {
		arg = os.Args[1]
	}
	offset, err := apix.ParseLine(arg)
	if err != nil {
		panic(err)
	}
	led, err := apix.Request(offset, apix.OutputLow)
	if err != nil {
		panic(err)
	}
	defer led.Close()

	// capture exit signals to ensure the line is released on exit.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	for {
		select {
		case <-time.After(500 * time.Millisecond):
			led.Toggle()
			fmt.Println("Toggled", led.Shadow())
		case <-quit:
			return
		}
	}
}
