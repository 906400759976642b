package rs485

import (
	"bytes"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.bug.st/serial"
)

// bugstPollInterval bounds how long the reader goroutine blocks in Read,
// and so how long Close may take.
const bugstPollInterval = 50 * time.Millisecond

// modeFor converts a LineConfig to a go.bug.st/serial mode
func modeFor(cfg LineConfig) (*serial.Mode, error) {
	if cfg.BaudRate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBaudRate, cfg.BaudRate)
	}

	mode := &serial.Mode{BaudRate: cfg.BaudRate, DataBits: cfg.DataBits}
	switch cfg.Parity {
	case ParityNone:
		mode.Parity = serial.NoParity
	case ParityOdd:
		mode.Parity = serial.OddParity
		mode.DataBits--
	case ParityEven:
		mode.Parity = serial.EvenParity
		mode.DataBits--
	default:
		return nil, fmt.Errorf("%w: parity %s", ErrInvalidConfig, cfg.Parity)
	}
	if mode.DataBits < 5 || mode.DataBits > 8 {
		return nil, fmt.Errorf("%w: %d data bits with parity %s", ErrInvalidConfig, cfg.DataBits, cfg.Parity)
	}

	switch cfg.StopBits {
	case StopBitsOne:
		mode.StopBits = serial.OneStopBit
	case StopBitsTwo:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("%w: stop bits %s", ErrInvalidConfig, cfg.StopBits)
	}
	return mode, nil
}

// bugstDevice drives a port through go.bug.st/serial. The library has no
// readiness notification, so a reader goroutine moves incoming bytes into a
// buffer and notifies for every chunk.
type bugstDevice struct {
	mu   sync.Mutex
	name string
	mode *serial.Mode

	port serial.Port
	buf  bytes.Buffer
	rerr error
	done chan struct{}
	wg   sync.WaitGroup
}

var _ Device = (*bugstDevice)(nil)

func newBugstDevice(name string) *bugstDevice {
	return &bugstDevice{
		name: name,
		mode: &serial.Mode{BaudRate: 9600, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit},
	}
}

func (d *bugstDevice) Name() string     { return d.name }
func (d *bugstDevice) Kind() DeviceKind { return KindChar }

func (d *bugstDevice) Open(rx RxNotifier) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.port != nil {
		return nil
	}

	port, err := serial.Open(d.name, d.mode)
	if err != nil {
		return fmt.Errorf("failed to open %s: %v", d.name, err)
	}
	if err := port.SetReadTimeout(bugstPollInterval); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %v", err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return fmt.Errorf("failed to flush input: %v", err)
	}

	d.port = port
	d.buf.Reset()
	d.rerr = nil
	d.done = make(chan struct{})

	d.wg.Add(1)
	go d.pump(port, rx, d.done)
	return nil
}

func (d *bugstDevice) pump(port serial.Port, rx RxNotifier, done <-chan struct{}) {
	defer d.wg.Done()

	chunk := make([]byte, 256)
	for {
		n, err := port.Read(chunk)
		select {
		case <-done:
			return
		default:
		}
		if n > 0 {
			d.mu.Lock()
			d.buf.Write(chunk[:n])
			d.mu.Unlock()
			rx.Notify()
		}
		if err != nil {
			d.mu.Lock()
			d.rerr = err
			d.mu.Unlock()
			rx.Notify()
			return
		}
	}
}

func (d *bugstDevice) Close() error {
	d.mu.Lock()
	port := d.port
	if port == nil {
		d.mu.Unlock()
		return ErrDeviceClosed
	}
	d.port = nil
	close(d.done)
	d.mu.Unlock()

	err := port.Close()
	d.wg.Wait()
	return err
}

// Read drains the receive buffer filled by the reader goroutine
func (d *bugstDevice) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.port == nil {
		return 0, ErrDeviceClosed
	}
	if d.buf.Len() == 0 && d.rerr != nil {
		return 0, d.rerr
	}
	n, _ := d.buf.Read(p)
	return n, nil
}

func (d *bugstDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	port := d.port
	d.mu.Unlock()

	if port == nil {
		return 0, ErrDeviceClosed
	}

	written := 0
	for written < len(p) {
		n, err := port.Write(p[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, fmt.Errorf("write stalled after %d bytes", written)
		}
	}
	if err := port.Drain(); err != nil {
		return written, fmt.Errorf("failed to drain output: %v", err)
	}
	return written, nil
}

func (d *bugstDevice) SetConfig(cfg LineConfig) error {
	mode, err := modeFor(cfg)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.mode = mode
	if d.port != nil {
		return d.port.SetMode(mode)
	}
	return nil
}

// SetRTS drives the RTS modem line
func (d *bugstDevice) SetRTS(on bool) error {
	d.mu.Lock()
	port := d.port
	d.mu.Unlock()

	if port == nil {
		return ErrDeviceClosed
	}
	return port.SetRTS(on)
}

// BugstResolver resolves names among the ports go.bug.st/serial can see
type BugstResolver struct{}

func (BugstResolver) Find(name string) (Device, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %v", err)
	}
	if slices.Contains(ports, name) {
		return newBugstDevice(name), nil
	}
	if alt := devicePath(name); alt != name && slices.Contains(ports, alt) {
		return newBugstDevice(alt), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
}
