package rs485

import (
	"testing"
	"time"
)

func TestEventSignalPoll(t *testing.T) {
	s := newEventSignal()

	if _, ok := s.wait(flagDataReady, 0, nil); ok {
		t.Error("poll on empty signal succeeded")
	}

	s.send(flagDataReady)
	got, ok := s.wait(flagDataReady|flagBreak, 0, nil)
	if !ok || got != flagDataReady {
		t.Errorf("wait = %v, %v, want data-ready, true", got, ok)
	}
	if _, ok := s.wait(flagDataReady, 0, nil); ok {
		t.Error("matched flag was not cleared by wait")
	}
}

func TestEventSignalMaskLeavesOtherFlags(t *testing.T) {
	s := newEventSignal()
	s.send(flagBreak)

	if _, ok := s.wait(flagDataReady, 0, nil); ok {
		t.Error("wait for data-ready matched a break")
	}
	if got, ok := s.wait(flagBreak, 0, nil); !ok || got != flagBreak {
		t.Errorf("break flag lost: %v, %v", got, ok)
	}
}

func TestEventSignalClear(t *testing.T) {
	s := newEventSignal()
	s.send(flagDataReady | flagBreak)
	s.clear(flagBreak)

	got, ok := s.wait(flagDataReady|flagBreak, 0, nil)
	if !ok || got != flagDataReady {
		t.Errorf("wait = %v, %v, want data-ready only", got, ok)
	}
}

func TestEventSignalWakesWaiter(t *testing.T) {
	s := newEventSignal()

	done := make(chan eventFlags, 1)
	go func() {
		got, _ := s.wait(flagDataReady, -1, nil)
		done <- got
	}()

	time.Sleep(10 * time.Millisecond)
	s.send(flagDataReady)

	select {
	case got := <-done:
		if got != flagDataReady {
			t.Errorf("waiter got %v, want data-ready", got)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken")
	}
}

func TestEventSignalTimeout(t *testing.T) {
	s := newEventSignal()

	start := time.Now()
	if _, ok := s.wait(flagDataReady, 20*time.Millisecond, nil); ok {
		t.Error("wait succeeded without a send")
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("wait returned after %v", elapsed)
	}
}

func TestEventSignalDone(t *testing.T) {
	s := newEventSignal()
	cancel := make(chan struct{})
	close(cancel)

	if _, ok := s.wait(flagDataReady, -1, cancel); ok {
		t.Error("wait succeeded on a closed done channel")
	}
}

func TestEventSignalDestroy(t *testing.T) {
	s := newEventSignal()

	done := make(chan bool, 1)
	go func() {
		_, ok := s.wait(flagDataReady, -1, nil)
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	s.destroy()

	select {
	case ok := <-done:
		if ok {
			t.Error("wait reported success after destroy")
		}
	case <-time.After(time.Second):
		t.Fatal("destroy did not wake the waiter")
	}

	if s.send(flagDataReady) {
		t.Error("send succeeded after destroy")
	}
	if !s.isDestroyed() {
		t.Error("isDestroyed = false")
	}
	// idempotent
	s.destroy()
}
