package rs485

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// simDevice is an in-memory Device. Bytes handed to feed become readable
// and raise the receive notification, like a UART interrupt would.
type simDevice struct {
	name string
	kind DeviceKind

	mu       sync.Mutex
	open     bool
	opens    int
	rx       RxNotifier
	pending  []byte
	written  []byte
	cfg      LineConfig
	cfgCalls int
	reads    int

	openErr   error
	writeErr  error
	configErr error

	writeDelay time.Duration
	// onWrite runs after every successful write, outside the device lock
	onWrite func(p []byte)

	// pin observed during writes
	pin          *simPin
	levelAtWrite []Level

	active  atomic.Int32
	overlap atomic.Bool
}

func newSimDevice(name string) *simDevice {
	return &simDevice{name: name, kind: KindChar}
}

func (d *simDevice) Name() string     { return d.name }
func (d *simDevice) Kind() DeviceKind { return d.kind }

func (d *simDevice) Open(rx RxNotifier) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return d.openErr
	}
	d.open = true
	d.opens++
	d.rx = rx
	return nil
}

func (d *simDevice) Close() error {
	d.enter()
	defer d.leave()

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrDeviceClosed
	}
	d.open = false
	return nil
}

func (d *simDevice) enter() {
	if d.active.Add(1) > 1 {
		d.overlap.Store(true)
	}
}

func (d *simDevice) leave() {
	d.active.Add(-1)
}

func (d *simDevice) Read(p []byte) (int, error) {
	d.enter()
	defer d.leave()

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return 0, ErrDeviceClosed
	}
	d.reads++
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

func (d *simDevice) Write(p []byte) (int, error) {
	d.enter()
	defer d.leave()

	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return 0, ErrDeviceClosed
	}
	if d.pin != nil {
		d.levelAtWrite = append(d.levelAtWrite, d.pin.level())
	}
	if d.writeErr != nil {
		err := d.writeErr
		d.mu.Unlock()
		return 0, err
	}
	d.written = append(d.written, p...)
	hook := d.onWrite
	delay := d.writeDelay
	d.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if hook != nil {
		hook(append([]byte(nil), p...))
	}
	return len(p), nil
}

func (d *simDevice) SetConfig(cfg LineConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfgCalls++
	if d.configErr != nil {
		return d.configErr
	}
	d.cfg = cfg
	return nil
}

// feed makes p readable and raises the receive notification
func (d *simDevice) feed(p []byte) {
	d.mu.Lock()
	d.pending = append(d.pending, p...)
	rx := d.rx
	d.mu.Unlock()
	if rx != nil {
		rx.Notify()
	}
}

func (d *simDevice) writtenBytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.written...)
}

func (d *simDevice) readCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

func (d *simDevice) isOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// simPin records its mode and level
type simPin struct {
	mu       sync.Mutex
	mode     PinMode
	lvl      Level
	writes   int
	writeErr error
}

func (p *simPin) SetMode(mode PinMode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = mode
	return nil
}

func (p *simPin) Write(level Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes++
	if p.writeErr != nil {
		return p.writeErr
	}
	p.lvl = level
	return nil
}

func (p *simPin) level() Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lvl
}

func (p *simPin) currentMode() PinMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// newTestInstance creates and connects an instance on a fresh simDevice.
// It is destroyed when the test ends.
func newTestInstance(t *testing.T, baud int, pin Pin, opts ...Option) (*Instance, *simDevice) {
	t.Helper()

	dev := newSimDevice(t.Name())
	if sp, ok := pin.(*simPin); ok {
		dev.pin = sp
	}
	reg := NewRegistry()
	if err := reg.Register(dev); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	opts = append([]Option{WithResolver(reg)}, opts...)
	in, err := Create(dev.Name(), baud, ParityNone, pin, High, opts...)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	t.Cleanup(func() {
		if err := in.Destroy(); err != nil && !errors.Is(err, ErrInvalidHandle) {
			t.Errorf("Destroy failed: %v", err)
		}
	})

	if err := in.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return in, dev
}

type recvResult struct {
	n   int
	err error
	at  time.Time
}

// receiveAsync runs Receive in a goroutine
func receiveAsync(in *Instance, buf []byte) <-chan recvResult {
	ch := make(chan recvResult, 1)
	go func() {
		n, err := in.Receive(buf)
		ch <- recvResult{n: n, err: err, at: time.Now()}
	}()
	return ch
}

func waitResult(t *testing.T, ch <-chan recvResult, limit time.Duration) recvResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(limit):
		t.Fatalf("operation did not return within %v", limit)
		return recvResult{}
	}
}
