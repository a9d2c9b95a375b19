// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package mcp3w0c provides device drivers for MCP3004/3008/3204/3208 SPI ADCs.
package mcp3w0c

import (
	"time"

	"github.com/warthog618/apix"
	"github.com/warthog618/apix/spi"
)

// MCP3w0c reads ADC values from a connected Microchip MCP3xxx family device.
//
// Supported variants are MCP3004/3008/3204/3208.
// The w indicates the width of the device (0 => 10, 2 => 12)
// and the c the number of channels.
// The two data lines, Mosi and Miso, may be tied and connected to a
// single GPIO line.
type MCP3w0c struct {
	s     *spi.SPI
	width uint
}

// New creates a MCP3w0c.
func New(tclk time.Duration, sclk, ssz, mosi, miso int, width uint) (*MCP3w0c, error) {
	s, err := spi.New(tclk, sclk, ssz, mosi, miso)
	if err != nil {
		return nil, err
	}
	return &MCP3w0c{s, width}, nil
}

// NewMCP3008 creates a MCP3008.
func NewMCP3008(tclk time.Duration, sclk, ssz, mosi, miso int) (*MCP3w0c, error) {
	return New(tclk, sclk, ssz, mosi, miso, 10)
}

// NewMCP3208 creates a MCP3208.
func NewMCP3208(tclk time.Duration, sclk, ssz, mosi, miso int) (*MCP3w0c, error) {
	return New(tclk, sclk, ssz, mosi, miso, 12)
}

// Close releases the ADC lines.
func (adc *MCP3w0c) Close() error {
	return adc.s.Close()
}

// Read returns the value of a single channel read from the ADC.
func (adc *MCP3w0c) Read(ch int) (uint16, error) {
	return adc.read(ch, apix.High)
}

// ReadDifferential returns the value of a differential pair read from the ADC.
func (adc *MCP3w0c) ReadDifferential(ch int) (uint16, error) {
	return adc.read(ch, apix.Low)
}

func (adc *MCP3w0c) read(ch int, sgl apix.Level) (uint16, error) {
	s := adc.s
	s.Mu.Lock()
	defer s.Mu.Unlock()

	err := startTransfer(s)
	if err != nil {
		return 0, err
	}

	if err = s.ClockOut(apix.High); err != nil { // Start
		return 0, err
	}
	if err = s.ClockOut(sgl); err != nil { // SGL/DIFFZ
		return 0, err
	}
	for i := 2; i >= 0; i-- {
		d := apix.Level(ch&(0x01<<uint(i)) != 0)
		if err = s.ClockOut(d); err != nil {
			return 0, err
		}
	}
	// release mosi so a tied miso can drive the line
	if err = s.Mosi.SetMode(apix.Input); err != nil {
		return 0, err
	}
	// mux settling
	time.Sleep(s.Tclk)
	if err = s.Sclk.SetValue(apix.High); err != nil {
		return 0, err
	}
	// null bit
	if _, err = s.ClockIn(); err != nil {
		return 0, err
	}

	var d uint16
	for i := uint(0); i < adc.width; i++ {
		b, cerr := s.ClockIn()
		if cerr != nil {
			return 0, cerr
		}
		d = d << 1
		if b {
			d = d | 0x01
		}
	}
	if err = s.Ssz.SetValue(apix.High); err != nil {
		return 0, err
	}
	return d, nil
}

// startTransfer raises the clock and selects the device.
func startTransfer(s *spi.SPI) error {
	if err := s.Ssz.SetValue(apix.High); err != nil {
		return err
	}
	if err := s.Sclk.SetValue(apix.Low); err != nil {
		return err
	}
	if err := s.Mosi.SetMode(apix.OutputHigh); err != nil {
		return err
	}
	time.Sleep(s.Tclk)
	return s.Ssz.SetValue(apix.Low)
}
