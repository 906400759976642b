package cmd

import (
	"sync"
	"testing"
	"time"

	"github.com/allbin/go-rs485"
)

// busEnd is one side of an in-memory two-drop bus. Bytes written on one end
// become readable on the other.
type busEnd struct {
	name string
	peer *busEnd

	mu      sync.Mutex
	open    bool
	rx      rs485.RxNotifier
	pending []byte
}

func newBus(a, b string) (*busEnd, *busEnd) {
	ea := &busEnd{name: a}
	eb := &busEnd{name: b}
	ea.peer, eb.peer = eb, ea
	return ea, eb
}

func (e *busEnd) Name() string           { return e.name }
func (e *busEnd) Kind() rs485.DeviceKind { return rs485.KindChar }

func (e *busEnd) Open(rx rs485.RxNotifier) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = true
	e.rx = rx
	return nil
}

func (e *busEnd) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return rs485.ErrDeviceClosed
	}
	e.open = false
	e.rx = nil
	return nil
}

func (e *busEnd) Read(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return 0, rs485.ErrDeviceClosed
	}
	n := copy(p, e.pending)
	e.pending = e.pending[n:]
	return n, nil
}

func (e *busEnd) Write(p []byte) (int, error) {
	e.mu.Lock()
	open := e.open
	e.mu.Unlock()
	if !open {
		return 0, rs485.ErrDeviceClosed
	}
	e.peer.deliver(p)
	return len(p), nil
}

func (e *busEnd) SetConfig(rs485.LineConfig) error { return nil }

func (e *busEnd) deliver(p []byte) {
	e.mu.Lock()
	if !e.open {
		e.mu.Unlock()
		return
	}
	e.pending = append(e.pending, p...)
	rx := e.rx
	e.mu.Unlock()
	if rx != nil {
		rx.Notify()
	}
}

// openBus connects two instances to the ends of a fresh bus
func openBus(t *testing.T, recvTimeout time.Duration) (*rs485.Instance, *rs485.Instance) {
	t.Helper()

	a, b := newBus("bus-a", "bus-b")
	reg := rs485.NewRegistry()
	for _, dev := range []rs485.Device{a, b} {
		if err := reg.Register(dev); err != nil {
			t.Fatalf("Register(%s) error = %v", dev.Name(), err)
		}
	}

	open := func(name string) *rs485.Instance {
		in, err := rs485.Create(name, 9600, rs485.ParityNone, nil, rs485.High,
			rs485.WithResolver(reg), rs485.WithRecvTimeout(recvTimeout))
		if err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
		if err := in.Connect(); err != nil {
			t.Fatalf("Connect(%s) error = %v", name, err)
		}
		t.Cleanup(func() { in.Destroy() })
		return in
	}
	return open("bus-a"), open("bus-b")
}
