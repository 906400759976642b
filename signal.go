package rs485

import (
	"sync"
	"time"
)

// eventFlags are the bits carried by an eventSignal
type eventFlags uint32

const (
	flagDataReady eventFlags = 1 << iota
	flagBreak
)

// eventSignal is a two-flag event object. Senders set bits and wake every
// waiter by closing the current wake channel and installing a fresh one.
type eventSignal struct {
	mu        sync.Mutex
	flags     eventFlags
	wake      chan struct{}
	destroyed bool
}

func newEventSignal() *eventSignal {
	return &eventSignal{wake: make(chan struct{})}
}

// send raises flags. It never blocks and is safe from any goroutine.
func (s *eventSignal) send(f eventFlags) bool {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return false
	}
	s.flags |= f
	old := s.wake
	s.wake = make(chan struct{})
	s.mu.Unlock()
	close(old)
	return true
}

// clear drops flags without waking anyone
func (s *eventSignal) clear(f eventFlags) {
	s.mu.Lock()
	s.flags &^= f
	s.mu.Unlock()
}

// wait blocks until any flag in mask is set, the timeout expires or done is
// closed. Matched flags are cleared on return. A zero timeout polls once, a
// negative timeout waits without limit. The boolean is false on timeout,
// cancellation or destruction.
func (s *eventSignal) wait(mask eventFlags, timeout time.Duration, done <-chan struct{}) (eventFlags, bool) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		s.mu.Lock()
		if got := s.flags & mask; got != 0 {
			s.flags &^= got
			s.mu.Unlock()
			return got, true
		}
		if s.destroyed || timeout == 0 {
			s.mu.Unlock()
			return 0, false
		}
		ch := s.wake
		s.mu.Unlock()

		select {
		case <-ch:
		case <-expired:
			return 0, false
		case <-done:
			return 0, false
		}
	}
}

// destroy wakes all waiters and makes further sends no-ops
func (s *eventSignal) destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.flags = 0
	old := s.wake
	s.mu.Unlock()
	close(old)
}

func (s *eventSignal) isDestroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}
