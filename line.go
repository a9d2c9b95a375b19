// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package apix provides GPIO line access on embedded Linux boards using
// the sysfs GPIO interface.
//
// Lines are requested with an explicit mode and released with Close:
//
// 	button, err := apix.Request(72, apix.InputRising)
// 	if err != nil {
// 		...
// 	}
// 	defer button.Close()
//
// 	led, err := apix.Request(73, apix.OutputLow)
// 	if err != nil {
// 		...
// 	}
// 	defer led.Close()
//
// 	for {
// 		if err = button.WaitEdge(time.Second); err == nil {
// 			led.Toggle()
// 		}
// 	}
//
// Lines are identified by kernel GPIO number, or by a symbolic alias
// defined in the library config file - see ParseLine.
//
// The package does not provide pin mux, pull or drive strength control.
// Those are SoC specific and outside the sysfs interface.
//
package apix

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// Level represents the logical level of a Line - active (true) or
// inactive (false).
//
// The mapping from logical level to physical line level is controlled by
// the active-low attribute - see SetActive.
type Level bool

// Mode defines how a Line is requested - as an edge detecting input or
// as a driven output with a given initial level.
type Mode int

// Polarity maps the logical level of a line to its physical level.
type Polarity int

// Levels of a line, High / Low.
const (
	Low  Level = false
	High Level = true
)

// Request modes for a line.
const (
	// Input requests the line as an input with no edge detection.
	Input Mode = iota

	// InputRising requests the line as an input detecting rising edges.
	InputRising

	// InputFalling requests the line as an input detecting falling edges.
	InputFalling

	// InputBoth requests the line as an input detecting both edges.
	InputBoth

	// OutputLow requests the line as an output driven initially low.
	OutputLow

	// OutputHigh requests the line as an output driven initially high.
	OutputHigh
)

// Line polarity, ActiveHigh / ActiveLow.
const (
	ActiveHigh Polarity = iota
	ActiveLow
)

var (
	// ErrTimeout indicates a wait expired before an edge was detected.
	ErrTimeout = errors.New("timeout")

	// ErrBusy indicates the line is exported by someone else and the
	// request did not allow shared access.
	ErrBusy = errors.New("line busy")

	// ErrClosed indicates the line has already been released.
	ErrClosed = errors.New("line closed")
)

// Line represents a single requested GPIO line.
//
// The Line is owned by the requester until released with Close.
type Line struct {
	// Immutable fields
	offset int
	shared bool

	// mu guards the mutable fields and sysfs interactions for this line.
	mu      sync.Mutex
	mode    Mode
	value   *os.File
	shadow  Level
	watched bool
	closed  bool
}

// Option modifies the way a line is requested.
type Option func(*Line)

// Shared allows the request to succeed if the line is already exported,
// and leaves the line exported when it is released.
func Shared() Option {
	return func(l *Line) {
		l.shared = true
	}
}

// Request acquires a GPIO line for the given mode.
//
// The line is exported via sysfs, configured for the mode, and held until
// released with Close.
func Request(offset int, mode Mode, options ...Option) (*Line, error) {
	if offset < 0 {
		return nil, fmt.Errorf("invalid line offset %d", offset)
	}
	if mode < Input || mode > OutputHigh {
		return nil, fmt.Errorf("invalid request mode %d", mode)
	}
	l := &Line{offset: offset, mode: mode}
	for _, option := range options {
		option(l)
	}
	fresh, err := export(offset)
	if err != nil {
		if fresh {
			unexport(offset)
		}
		return nil, fmt.Errorf("exporting line %d: %w", offset, err)
	}
	if !fresh && !l.shared {
		return nil, fmt.Errorf("requesting line %d: %w", offset, ErrBusy)
	}
	if err = l.setup(); err != nil {
		if fresh {
			unexport(offset)
		}
		return nil, fmt.Errorf("requesting line %d: %w", offset, err)
	}
	return l, nil
}

func (l *Line) setup() error {
	if err := setDirection(l.offset, l.mode); err != nil {
		return err
	}
	if edge := l.mode.edge(); edge != edgeNone {
		if err := setEdge(l.offset, edge); err != nil {
			return err
		}
	}
	f, err := openValue(l.offset)
	if err != nil {
		return err
	}
	l.value = f
	switch l.mode {
	case OutputHigh:
		l.shadow = High
	default:
		l.shadow = Low
	}
	return nil
}

// Close releases the line.
//
// Any active watch is removed, the value file is closed and, unless the
// line was requested shared, the line is unexported.
//
// Close is idempotent, and may be called on a nil Line, so release paths
// do not need to track which lines were actually acquired.
func (l *Line) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	watched := l.watched
	l.watched = false
	l.mu.Unlock()

	if watched {
		getDefaultWatcher().unregister(l)
	}
	err := l.value.Close()
	if !l.shared {
		if uerr := unexport(l.offset); err == nil {
			err = uerr
		}
	}
	return err
}

// Offset returns the kernel GPIO number of the line.
func (l *Line) Offset() int {
	return l.offset
}

// Shadow returns the value of the last write to an output line, or the
// last read of an input line.
func (l *Line) Shadow() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shadow
}

// Value reads the logical level of the line.
func (l *Line) Value() (Level, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return Low, ErrClosed
	}
	v, err := readLevel(l.value)
	if err != nil {
		return Low, err
	}
	l.shadow = v
	return v, nil
}

// SetValue drives the line to the given logical level.
func (l *Line) SetValue(v Level) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if err := writeLevel(l.value, v); err != nil {
		return err
	}
	l.shadow = v
	return nil
}

// Toggle inverts the driven level of the line.
func (l *Line) Toggle() error {
	if l.Shadow() == Low {
		return l.SetValue(High)
	}
	return l.SetValue(Low)
}

// SetMode reconfigures the line for the given mode.
//
// Intended for drivers that tie data lines together and flip the shared
// line between input and output during a transfer.
func (l *Line) SetMode(mode Mode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if mode < Input || mode > OutputHigh {
		return fmt.Errorf("invalid request mode %d", mode)
	}
	if err := setDirection(l.offset, mode); err != nil {
		return err
	}
	if edge := mode.edge(); edge != edgeNone {
		if err := setEdge(l.offset, edge); err != nil {
			return err
		}
	}
	l.mode = mode
	switch mode {
	case OutputHigh:
		l.shadow = High
	case OutputLow:
		l.shadow = Low
	}
	return nil
}

// SetActive sets the polarity of the line.
//
// With ActiveLow the logical and physical levels are inverted, for both
// reads and writes, and edges are detected on the logical transitions.
func (l *Line) SetActive(p Polarity) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	return setActiveLow(l.offset, p == ActiveLow)
}

func (m Mode) edge() edge {
	switch m {
	case InputRising:
		return edgeRising
	case InputFalling:
		return edgeFalling
	case InputBoth:
		return edgeBoth
	}
	return edgeNone
}

func (m Mode) direction() string {
	switch m {
	case OutputLow:
		return "low"
	case OutputHigh:
		return "high"
	}
	return "in"
}
