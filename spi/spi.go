// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package spi provides a bit bashed SPI master on GPIO lines.
//
// This is the basis for SPI devices driven directly over apix lines.
// It is not related to the SPI device drivers provided by Linux.
package spi

import (
	"sync"
	"time"

	"github.com/warthog618/apix"
)

// SPI represents a device connected via an SPI bus bashed onto 4 GPIO
// lines.
//
// Depending on the device, the two data lines, Mosi and Miso, may be
// tied and connected to a single GPIO line.
type SPI struct {
	Mu sync.Mutex
	// time between clock edges (i.e. half the cycle time)
	Tclk time.Duration
	Sclk *apix.Line
	Ssz  *apix.Line
	Mosi *apix.Line
	Miso *apix.Line
}

// New requests the four SPI lines and returns the bus.
//
// The clock is held low and the device deselected until a transfer.
// On failure any lines already acquired are released.
func New(tclk time.Duration, sclk, ssz, mosi, miso int) (*SPI, error) {
	s := &SPI{Tclk: tclk}
	var err error
	if s.Sclk, err = apix.Request(sclk, apix.OutputLow); err != nil {
		return nil, err
	}
	if s.Ssz, err = apix.Request(ssz, apix.OutputHigh); err != nil {
		s.Close()
		return nil, err
	}
	if s.Mosi, err = apix.Request(mosi, apix.OutputLow); err != nil {
		s.Close()
		return nil, err
	}
	if miso != mosi {
		if s.Miso, err = apix.Request(miso, apix.Input); err != nil {
			s.Close()
			return nil, err
		}
	} else {
		s.Miso = s.Mosi
	}
	return s, nil
}

// Close releases the SPI lines.
//
// Lines never acquired are skipped, so Close is safe on a partially
// constructed bus.
func (s *SPI) Close() error {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	err := s.Sclk.Close()
	if serr := s.Ssz.Close(); err == nil {
		err = serr
	}
	if serr := s.Mosi.Close(); err == nil {
		err = serr
	}
	if s.Miso != s.Mosi {
		if serr := s.Miso.Close(); err == nil {
			err = serr
		}
	}
	return err
}

// ClockIn clocks in a data bit from the device on Miso.
//
// Assumes clock starts high and ends with the rising edge of the next
// clock.  Assumes the caller already holds the Mu lock.
func (s *SPI) ClockIn() (apix.Level, error) {
	time.Sleep(s.Tclk)
	// device writes on the falling edge
	if err := s.Sclk.SetValue(apix.Low); err != nil {
		return apix.Low, err
	}
	time.Sleep(s.Tclk)
	b, err := s.Miso.Value()
	if err != nil {
		return apix.Low, err
	}
	if err = s.Sclk.SetValue(apix.High); err != nil {
		return apix.Low, err
	}
	return b, nil
}

// ClockOut clocks out a data bit to the device on Mosi.
//
// Assumes clock starts low and ends with the falling edge of the next
// clock.  Assumes the caller already holds the Mu lock.
func (s *SPI) ClockOut(l apix.Level) error {
	if err := s.Mosi.SetValue(l); err != nil {
		return err
	}
	time.Sleep(s.Tclk)
	// device reads on the rising edge
	if err := s.Sclk.SetValue(apix.High); err != nil {
		return err
	}
	time.Sleep(s.Tclk)
	return s.Sclk.SetValue(apix.Low)
}
