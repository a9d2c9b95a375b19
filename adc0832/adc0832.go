// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package adc0832 provides a device driver for the ADC0832 ADC.
package adc0832

import (
	"sync"
	"time"

	"github.com/warthog618/apix"
)

// ADC0832 reads ADC values from a connected ADC0832.
//
// The two data lines, di and do, may be tied and connected to a single
// GPIO line.
type ADC0832 struct {
	mu sync.Mutex
	// time between clock edges (i.e. half the cycle time)
	tclk time.Duration
	// time to allow the mux to settle after clocking out ODD/SIGN
	tset time.Duration
	clk  *apix.Line
	csz  *apix.Line
	di   *apix.Line
	do   *apix.Line
}

// New requests the four converter lines and returns the ADC0832.
//
// The converter is held reset until a read.  On failure any lines
// already acquired are released.
func New(tclk, tset time.Duration, clk, csz, di, do int) (*ADC0832, error) {
	a := &ADC0832{tclk: tclk, tset: tset}
	var err error
	if a.clk, err = apix.Request(clk, apix.OutputLow); err != nil {
		return nil, err
	}
	if a.csz, err = apix.Request(csz, apix.OutputHigh); err != nil {
		a.Close()
		return nil, err
	}
	if a.di, err = apix.Request(di, apix.OutputLow); err != nil {
		a.Close()
		return nil, err
	}
	if do != di {
		if a.do, err = apix.Request(do, apix.Input); err != nil {
			a.Close()
			return nil, err
		}
	} else {
		a.do = a.di
	}
	return a, nil
}

// Close releases the converter lines.
//
// Lines never acquired are skipped, so Close is safe on a partially
// constructed converter.
func (a *ADC0832) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	err := a.clk.Close()
	if cerr := a.csz.Close(); err == nil {
		err = cerr
	}
	if cerr := a.di.Close(); err == nil {
		err = cerr
	}
	if a.do != a.di {
		if cerr := a.do.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Read returns the value read from channel ch of the ADC.
func (a *ADC0832) Read(ch int) (uint8, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.startConversion(); err != nil {
		return 0, err
	}
	odd := apix.Low
	if ch != 0 {
		odd = apix.High
	}
	if err := a.clockOut(apix.High); err != nil { // Start
		return 0, err
	}
	if err := a.clockOut(apix.High); err != nil { // SGL/DIFZ - single mode
		return 0, err
	}
	if err := a.clockOut(odd); err != nil { // ODD/Sign
		return 0, err
	}
	// release di so a tied do can drive the line
	if err := a.di.SetMode(apix.Input); err != nil {
		return 0, err
	}
	// mux settling
	time.Sleep(a.tset)
	if err := a.clk.SetValue(apix.High); err != nil {
		return 0, err
	}
	// MSB first byte
	var d uint8
	for i := 0; i < 8; i++ {
		b, err := a.clockIn()
		if err != nil {
			return 0, err
		}
		d = d << 1
		if b {
			d = d | 0x01
		}
	}
	// ignore LSB bits - same as MSB just reversed order
	return d, a.csz.SetValue(apix.High)
}

func (a *ADC0832) startConversion() error {
	if err := a.csz.SetValue(apix.High); err != nil {
		return err
	}
	if err := a.clk.SetValue(apix.Low); err != nil {
		return err
	}
	if err := a.di.SetMode(apix.OutputHigh); err != nil {
		return err
	}
	time.Sleep(a.tclk)
	return a.csz.SetValue(apix.Low)
}

// clockIn clocks in a data bit from the converter on do.
//
// Assumes clock starts high and ends with the rising edge of the next
// clock.
func (a *ADC0832) clockIn() (apix.Level, error) {
	time.Sleep(a.tclk)
	// converter writes on the falling edge
	if err := a.clk.SetValue(apix.Low); err != nil {
		return apix.Low, err
	}
	time.Sleep(a.tclk)
	b, err := a.do.Value()
	if err != nil {
		return apix.Low, err
	}
	return b, a.clk.SetValue(apix.High)
}

// clockOut clocks out a data bit to the converter on di.
//
// Assumes clock starts low and ends with the falling edge of the next
// clock.
func (a *ADC0832) clockOut(l apix.Level) error {
	if err := a.di.SetValue(l); err != nil {
		return err
	}
	time.Sleep(a.tclk)
	// converter reads on the rising edge
	if err := a.clk.SetValue(apix.High); err != nil {
		return err
	}
	time.Sleep(a.tclk)
	return a.clk.SetValue(apix.Low)
}
