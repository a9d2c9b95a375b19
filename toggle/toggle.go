// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package toggle drives an output line from edges detected on an input
// line, first using blocking waits and then an asynchronous watch.
//
// The demo runs a fixed number of iterations in each mode and exits.
// It exists to exercise both edge detection paths through the apix line
// layer, but the ownership pattern - a single object owning both lines,
// releasing them exactly once on any exit path - is the part worth
// copying.
package toggle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/warthog618/apix"
)

// DefaultLoops is the number of edges handled in each mode.
const DefaultLoops = 6

// InputLine is the demo's view of the edge detecting input.
//
// Watch handlers are invoked one at a time - the implementation must not
// deliver a second event while a handler is in flight.
type InputLine interface {
	WaitEdge(timeout time.Duration) error
	Watch(handler func()) error
	Unwatch()
	Close() error
}

// OutputLine is the demo's view of the driven output.
type OutputLine interface {
	SetValue(v apix.Level) error
	Close() error
}

// Demo owns the two lines for the duration of a run.
type Demo struct {
	in    InputLine
	out   OutputLine
	loops int
	// poll sets how often the blocking phase checks for cancellation.
	poll time.Duration
	// status sets how often the async phase reports that it is waiting.
	status time.Duration
	w      io.Writer

	// value is the logical level last driven onto the output.
	// It is written by the main sequence during the blocking phase and
	// by the watch handler during the async phase, never both at once.
	value apix.Level

	closeOnce sync.Once
	closeErr  error
}

// Option modifies the behaviour of the demo.
type Option func(*Demo)

// WithLoops sets the number of edges handled in each mode.
func WithLoops(n int) Option {
	return func(d *Demo) {
		d.loops = n
	}
}

// WithProgress directs progress output to w instead of stdout.
func WithProgress(w io.Writer) Option {
	return func(d *Demo) {
		d.w = w
	}
}

// WithIntervals sets the blocking phase cancellation poll period and the
// async phase status period.
func WithIntervals(poll, status time.Duration) Option {
	return func(d *Demo) {
		d.poll = poll
		d.status = status
	}
}

// New creates a Demo owning the given lines.
//
// The output is assumed to be driven initially low.
func New(in InputLine, out OutputLine, options ...Option) *Demo {
	d := &Demo{
		in:     in,
		out:    out,
		loops:  DefaultLoops,
		poll:   500 * time.Millisecond,
		status: 5 * time.Second,
		w:      os.Stdout,
		value:  apix.Low,
	}
	for _, option := range options {
		option(d)
	}
	return d
}

// The line requests are indirected so tests can simulate acquisition
// failures.
var (
	requestInput = func(offset int) (InputLine, error) {
		l, err := apix.Request(offset, apix.InputRising, apix.Shared())
		if err != nil {
			return nil, err
		}
		if err = l.SetActive(apix.ActiveHigh); err != nil {
			l.Close()
			return nil, err
		}
		return watchInput{l}, nil
	}
	requestOutput = func(offset int) (OutputLine, error) {
		l, err := apix.Request(offset, apix.OutputLow, apix.Shared())
		if err != nil {
			return nil, err
		}
		return l, nil
	}
)

// Open requests the demo lines and returns a Demo owning them.
//
// The input is requested as a rising edge interrupt input with active
// high polarity, the output driven initially low, both shared.  If any
// step fails, lines already acquired are released before returning.
func Open(input, output int, options ...Option) (*Demo, error) {
	in, err := requestInput(input)
	if err != nil {
		return nil, fmt.Errorf("requesting input line %d: %w", input, err)
	}
	out, err := requestOutput(output)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("requesting output line %d: %w", output, err)
	}
	return New(in, out, options...), nil
}

// watchInput adapts an apix line to the InputLine watch signature.
type watchInput struct {
	*apix.Line
}

func (w watchInput) Watch(handler func()) error {
	return w.Line.Watch(func(*apix.Line) {
		handler()
	})
}

// Run drives the demo to completion, or until ctx is cancelled.
//
// The blocking wait phase runs first, then the asynchronous watch phase.
// Cancellation is reported as the context error.  Run does not release
// the lines - call Close for that, on every path.
func (d *Demo) Run(ctx context.Context) error {
	if err := d.waitBlocking(ctx); err != nil {
		return err
	}
	return d.waitAsync(ctx)
}

// Close releases both lines.
//
// Close is idempotent and safe to call whether or not Run completed.
func (d *Demo) Close() error {
	d.closeOnce.Do(func() {
		// stop the watch before releasing so no handler fires on a
		// closed output.
		d.in.Unwatch()
		err := d.in.Close()
		if oerr := d.out.Close(); err == nil {
			err = oerr
		}
		d.closeErr = err
	})
	return d.closeErr
}

func (d *Demo) toggle() error {
	d.value = !d.value
	return d.out.SetValue(d.value)
}

func (d *Demo) waitBlocking(ctx context.Context) error {
	fmt.Fprintln(d.w, "[INFO] Testing interrupt blocking mode")
	fmt.Fprintf(d.w, "Press the button (for %d events):\n", d.loops)
	for i := 0; i < d.loops; {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := d.in.WaitEdge(d.poll)
		switch {
		case errors.Is(err, apix.ErrTimeout):
			// no edge yet - poll again so cancellation is observed.
			continue
		case err != nil:
			// no event this iteration - not fatal.
			i++
			continue
		}
		i++
		fmt.Fprintf(d.w, "Press %d; toggling output line\n", i)
		if err = d.toggle(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Demo) waitAsync(ctx context.Context) error {
	fmt.Fprintln(d.w, "[INFO] Testing interrupt asynchronous mode")
	fmt.Fprintf(d.w, "Waiting until %d interrupts have been detected\n", d.loops)

	// Events are handed from the watch to this goroutine over a channel
	// rather than sharing a counter with the handler.  The channel holds
	// room for a full run so the handler never blocks.
	events := make(chan struct{}, d.loops)
	err := d.in.Watch(func() {
		fmt.Fprintln(d.w, "Input line interrupt detected; toggling output line")
		d.toggle()
		select {
		case events <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("starting interrupt watch: %w", err)
	}
	defer d.in.Unwatch()

	status := time.NewTicker(d.status)
	defer status.Stop()
	for remaining := d.loops; remaining > 0; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-events:
			remaining--
		case <-status.C:
			fmt.Fprintln(d.w, "waiting ...")
		}
	}
	fmt.Fprintln(d.w, "No remaining interrupts. Test finished")
	return nil
}
