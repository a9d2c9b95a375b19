// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Edge wait and watch capabilities for Lines.

package apix

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const maxWatchedLines = 64

// WaitEdge blocks until an edge is detected on the line, or the timeout
// expires.
//
// A negative timeout blocks indefinitely.  Returns nil when an edge is
// detected and ErrTimeout if the timeout expires first.
//
// The line must have been requested in an edge detecting mode.
func (l *Line) WaitEdge(timeout time.Duration) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	// drain any pending interrupt so poll blocks until the next edge.
	if _, err := readLevel(l.value); err != nil {
		l.mu.Unlock()
		return err
	}
	fd := int32(l.value.Fd())
	l.mu.Unlock()

	msec := -1
	if timeout >= 0 {
		msec = int(timeout / time.Millisecond)
	}
	pfd := []unix.PollFd{{Fd: fd, Events: unix.POLLPRI | unix.POLLERR}}
	for {
		n, err := unix.Poll(pfd, msec)
		switch {
		case err == unix.EINTR:
			continue
		case err != nil:
			return err
		case n == 0:
			return ErrTimeout
		case pfd[0].Revents&unix.POLLNVAL != 0:
			return ErrClosed
		}
		return nil
	}
}

// Watch adds an edge watch on the line.
//
// The handler is invoked from the watcher goroutine on each detected
// edge, with the line level already re-read.  Handlers are invoked
// sequentially, so at most one is in flight at any time, and they must
// not block.
//
// There can only be one watch on the line at a time.
func (l *Line) Watch(handler func(*Line)) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.watched {
		l.mu.Unlock()
		return errors.New("watch already exists")
	}
	// drain so the watch doesn't fire on the pre-existing line state.
	if _, err := readLevel(l.value); err != nil {
		l.mu.Unlock()
		return err
	}
	l.mu.Unlock()

	if err := getDefaultWatcher().register(l, handler); err != nil {
		return err
	}
	l.mu.Lock()
	l.watched = true
	l.mu.Unlock()
	return nil
}

// Unwatch removes any watch from the line.
func (l *Line) Unwatch() {
	l.mu.Lock()
	watched := l.watched
	l.watched = false
	l.mu.Unlock()
	if watched {
		getDefaultWatcher().unregister(l)
	}
}

type watch struct {
	line    *Line
	handler func(*Line)
}

// watcher dispatches edge events for watched lines from a single epoll
// loop.
type watcher struct {
	mu sync.Mutex
	// epoll fd the value fds are registered with.
	epfd int
	// map from value fd to watch.
	watches map[int32]*watch
}

var (
	watcherOnce    sync.Once
	defaultWatcher *watcher
)

func getDefaultWatcher() *watcher {
	watcherOnce.Do(func() {
		defaultWatcher = newWatcher()
	})
	return defaultWatcher
}

func newWatcher() *watcher {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		panic(fmt.Sprintf("unable to create epoll: %v", err))
	}
	w := &watcher{
		epfd:    epfd,
		watches: make(map[int32]*watch),
	}
	go w.dispatch()
	return w
}

func (w *watcher) dispatch() {
	var events [maxWatchedLines]unix.EpollEvent

	for {
		n, err := unix.EpollWait(w.epfd, events[:], -1)
		if err != nil {
			if err == unix.EBADF || err == unix.EINVAL {
				// epoll fd closed so exit
				return
			}
			if err == unix.EINTR {
				continue
			}
			panic(fmt.Sprintf("EpollWait error: %v", err))
		}
		ww := make([]*watch, 0, n)
		w.mu.Lock()
		for _, event := range events[:n] {
			if wt, ok := w.watches[event.Fd]; ok {
				ww = append(ww, wt)
			}
		}
		w.mu.Unlock()
		// Handlers are called from this goroutine only, so at most one
		// is in flight at any time.
		for _, wt := range ww {
			wt.line.Value()
			wt.handler(wt.line)
		}
	}
}

func (w *watcher) register(l *Line, handler func(*Line)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	fd := int32(l.value.Fd())
	if _, ok := w.watches[fd]; ok {
		return errors.New("watch already exists")
	}
	if err := unix.SetNonblock(int(fd), true); err != nil {
		return err
	}
	event := unix.EpollEvent{Events: unix.EPOLLPRI | unix.EPOLLET, Fd: fd}
	if err := unix.EpollCtl(w.epfd, unix.EPOLL_CTL_ADD, int(fd), &event); err != nil {
		return err
	}
	w.watches[fd] = &watch{line: l, handler: handler}
	return nil
}

func (w *watcher) unregister(l *Line) {
	w.mu.Lock()
	defer w.mu.Unlock()

	fd := int32(l.value.Fd())
	if _, ok := w.watches[fd]; !ok {
		return
	}
	delete(w.watches, fd)
	unix.EpollCtl(w.epfd, unix.EPOLL_CTL_DEL, int(fd), nil)
	unix.SetNonblock(int(fd), false)
}
