// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package toggle_test

import (
	"context"
	"errors"
	"io/ioutil"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/apix"
	"github.com/warthog618/apix/toggle"
)

// simInput simulates the edge detecting input collaborator.
//
// Edges are injected on a channel and delivered either to a blocking
// WaitEdge or, once a watch is registered, to the handler from a single
// dispatch goroutine.
type simInput struct {
	mu      sync.Mutex
	edges   chan struct{}
	handler func()
	stop    chan struct{}
	done    chan struct{}
	closes  int
	waitErr error
}

func newSimInput() *simInput {
	return &simInput{edges: make(chan struct{}, 16)}
}

func (s *simInput) WaitEdge(timeout time.Duration) error {
	s.mu.Lock()
	err := s.waitErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case <-s.edges:
		return nil
	case <-time.After(timeout):
		return apix.ErrTimeout
	}
}

func (s *simInput) Watch(handler func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handler != nil {
		return errors.New("watch already exists")
	}
	s.handler = handler
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	// one dispatch goroutine, so one handler invocation in flight.
	go func() {
		defer close(s.done)
		for {
			select {
			case <-s.edges:
				handler()
			case <-s.stop:
				return
			}
		}
	}()
	return nil
}

func (s *simInput) Unwatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handler == nil {
		return
	}
	s.handler = nil
	close(s.stop)
	<-s.done
}

func (s *simInput) Close() error {
	s.Unwatch()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *simInput) injectEdges(n int) {
	for i := 0; i < n; i++ {
		s.edges <- struct{}{}
	}
}

func (s *simInput) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// simOutput records the levels driven onto the output collaborator.
type simOutput struct {
	mu     sync.Mutex
	writes []apix.Level
	closes int
}

func (s *simOutput) SetValue(v apix.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, v)
	return nil
}

func (s *simOutput) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *simOutput) levels() []apix.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]apix.Level(nil), s.writes...)
}

func (s *simOutput) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func newDemo(in *simInput, out *simOutput, options ...toggle.Option) *toggle.Demo {
	oo := append([]toggle.Option{
		toggle.WithProgress(ioutil.Discard),
		toggle.WithIntervals(10*time.Millisecond, time.Hour),
	}, options...)
	return toggle.New(in, out, oo...)
}

func runDemo(t *testing.T, d *toggle.Demo) chan error {
	t.Helper()
	errc := make(chan error, 1)
	go func() {
		errc <- d.Run(context.Background())
	}()
	return errc
}

func waitErr(t *testing.T, errc chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("demo did not complete")
	}
	return nil
}

func TestRunTogglesPerEdge(t *testing.T) {
	in := newSimInput()
	out := &simOutput{}
	d := newDemo(in, out)
	defer d.Close()

	// 6 edges for each phase.
	in.injectEdges(toggle.DefaultLoops * 2)
	errc := runDemo(t, d)
	require.Nil(t, waitErr(t, errc))

	levels := out.levels()
	require.Equal(t, toggle.DefaultLoops*2, len(levels))
	// started low, so toggles alternate high/low and an even count ends low.
	for i, l := range levels {
		assert.Equal(t, apix.Level(i%2 == 0), l, "write %d", i)
	}
	assert.Equal(t, apix.Low, levels[len(levels)-1])
}

func TestRunBlockingPhaseExactCount(t *testing.T) {
	in := newSimInput()
	out := &simOutput{}
	d := newDemo(in, out)
	defer d.Close()

	errc := runDemo(t, d)
	in.injectEdges(toggle.DefaultLoops)

	// Blocking phase consumes exactly 6 edges and then moves to the
	// async phase, which should now be waiting, not done.
	assert.Eventually(t, func() bool {
		return len(out.levels()) == toggle.DefaultLoops
	}, 5*time.Second, time.Millisecond)
	select {
	case err := <-errc:
		t.Fatalf("demo completed without async edges: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	// 5 async edges are not enough...
	in.injectEdges(toggle.DefaultLoops - 1)
	select {
	case err := <-errc:
		t.Fatalf("demo completed one edge early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	// ... the 6th finishes the run.
	in.injectEdges(1)
	require.Nil(t, waitErr(t, errc))
	assert.Equal(t, toggle.DefaultLoops*2, len(out.levels()))
}

func TestRunWaitErrorConsumesIteration(t *testing.T) {
	in := newSimInput()
	in.waitErr = errors.New("wait failed")
	out := &simOutput{}
	d := newDemo(in, out)
	defer d.Close()

	// every blocking wait fails, so the blocking phase completes with no
	// toggles, and the async phase still requires its full count.
	errc := runDemo(t, d)
	in.injectEdges(toggle.DefaultLoops)
	require.Nil(t, waitErr(t, errc))
	assert.Equal(t, toggle.DefaultLoops, len(out.levels()))
}

func TestRunCancelledBlocking(t *testing.T) {
	in := newSimInput()
	out := &simOutput{}
	d := newDemo(in, out)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- d.Run(ctx)
	}()
	cancel()
	err := waitErr(t, errc)
	assert.Equal(t, context.Canceled, err)

	assert.Nil(t, d.Close())
	assert.Equal(t, 1, in.closeCount())
	assert.Equal(t, 1, out.closeCount())
}

func TestRunCancelledAsync(t *testing.T) {
	in := newSimInput()
	out := &simOutput{}
	d := newDemo(in, out)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- d.Run(ctx)
	}()
	// complete the blocking phase, then cancel mid async phase.
	in.injectEdges(toggle.DefaultLoops)
	assert.Eventually(t, func() bool {
		return len(out.levels()) == toggle.DefaultLoops
	}, 5*time.Second, time.Millisecond)
	cancel()
	err := waitErr(t, errc)
	assert.Equal(t, context.Canceled, err)

	assert.Nil(t, d.Close())
	assert.Equal(t, 1, in.closeCount())
	assert.Equal(t, 1, out.closeCount())
}

func TestCloseIdempotent(t *testing.T) {
	in := newSimInput()
	out := &simOutput{}
	d := newDemo(in, out)

	assert.Nil(t, d.Close())
	assert.Nil(t, d.Close())
	assert.Nil(t, d.Close())
	assert.Equal(t, 1, in.closeCount())
	assert.Equal(t, 1, out.closeCount())
}

func TestWithLoops(t *testing.T) {
	in := newSimInput()
	out := &simOutput{}
	d := newDemo(in, out, toggle.WithLoops(2))
	defer d.Close()

	in.injectEdges(4)
	errc := runDemo(t, d)
	require.Nil(t, waitErr(t, errc))
	assert.Equal(t, 4, len(out.levels()))
}
