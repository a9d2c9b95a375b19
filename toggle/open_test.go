// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package toggle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// stubInput counts closes so acquisition rollback can be asserted.
type stubInput struct {
	closes int
}

func (s *stubInput) WaitEdge(timeout time.Duration) error { return nil }
func (s *stubInput) Watch(handler func()) error           { return nil }
func (s *stubInput) Unwatch()                             {}
func (s *stubInput) Close() error {
	s.closes++
	return nil
}

func stubRequests(t *testing.T, in func(int) (InputLine, error), out func(int) (OutputLine, error)) {
	t.Helper()
	oldIn, oldOut := requestInput, requestOutput
	requestInput, requestOutput = in, out
	t.Cleanup(func() {
		requestInput, requestOutput = oldIn, oldOut
	})
}

func TestOpenReleasesInputOnOutputFailure(t *testing.T) {
	in := &stubInput{}
	stubRequests(t,
		func(offset int) (InputLine, error) { return in, nil },
		func(offset int) (OutputLine, error) { return nil, errors.New("line busy") })

	d, err := Open(72, 73)
	assert.Nil(t, d)
	assert.NotNil(t, err)
	// the already acquired input must be released, exactly once.
	assert.Equal(t, 1, in.closes)
}

func TestOpenInputFailure(t *testing.T) {
	requested := false
	stubRequests(t,
		func(offset int) (InputLine, error) { return nil, errors.New("line busy") },
		func(offset int) (OutputLine, error) {
			requested = true
			return nil, nil
		})

	d, err := Open(72, 73)
	assert.Nil(t, d)
	assert.NotNil(t, err)
	// the output must not be requested once the input has failed.
	assert.False(t, requested)
}
