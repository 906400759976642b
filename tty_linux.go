//go:build linux

package rs485

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// baudRates maps integer baud rates to termios speed constants
var baudRates = map[int]uint32{
	50:      unix.B50,
	75:      unix.B75,
	110:     unix.B110,
	134:     unix.B134,
	150:     unix.B150,
	200:     unix.B200,
	300:     unix.B300,
	600:     unix.B600,
	1200:    unix.B1200,
	1800:    unix.B1800,
	2400:    unix.B2400,
	4800:    unix.B4800,
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	500000:  unix.B500000,
	576000:  unix.B576000,
	921600:  unix.B921600,
	1000000: unix.B1000000,
	1152000: unix.B1152000,
	1500000: unix.B1500000,
	2000000: unix.B2000000,
	2500000: unix.B2500000,
	3000000: unix.B3000000,
	3500000: unix.B3500000,
	4000000: unix.B4000000,
}

func getBaudRate(rate int) (uint32, error) {
	b, ok := baudRates[rate]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrInvalidBaudRate, rate)
	}
	return b, nil
}

// charSize returns the CSIZE bits for a line configuration. DataBits
// includes the parity bit, so 9 with parity is an 8 bit character.
func charSize(cfg LineConfig) (uint32, error) {
	bits := cfg.DataBits
	if cfg.Parity != ParityNone {
		bits--
	}
	switch bits {
	case 5:
		return unix.CS5, nil
	case 6:
		return unix.CS6, nil
	case 7:
		return unix.CS7, nil
	case 8:
		return unix.CS8, nil
	default:
		return 0, fmt.Errorf("%w: %d data bits with parity %s", ErrInvalidConfig, cfg.DataBits, cfg.Parity)
	}
}

// applyTermios puts fd into raw mode with the given line configuration
func applyTermios(fd int, cfg LineConfig) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("failed to get termios: %v", err)
	}

	baud, err := getBaudRate(cfg.BaudRate)
	if err != nil {
		return err
	}
	size, err := charSize(cfg)
	if err != nil {
		return err
	}

	termios.Cflag = size | unix.CREAD | unix.CLOCAL
	termios.Iflag = 0
	termios.Oflag = 0
	termios.Lflag = 0
	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = 0

	termios.Cflag = (termios.Cflag &^ unix.CBAUD) | baud
	termios.Ispeed = baud
	termios.Ospeed = baud

	if cfg.StopBits == StopBitsTwo {
		termios.Cflag |= unix.CSTOPB
	}
	switch cfg.Parity {
	case ParityOdd:
		termios.Cflag |= unix.PARENB | unix.PARODD
	case ParityEven:
		termios.Cflag |= unix.PARENB
	}

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("failed to set termios: %v", err)
	}
	return nil
}

// ttyDevice is a Linux tty driven through termios. Arrival of data is
// detected by a poll goroutine which notifies once per batch and waits for
// a Read before polling again.
type ttyDevice struct {
	mu   sync.RWMutex
	path string
	cfg  LineConfig
	set  bool

	fd      int
	wakeR   int
	wakeW   int
	drained chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
}

var _ Device = (*ttyDevice)(nil)

func newTTYDevice(path string) *ttyDevice {
	return &ttyDevice{path: path, fd: -1, wakeR: -1, wakeW: -1}
}

func (d *ttyDevice) Name() string     { return d.path }
func (d *ttyDevice) Kind() DeviceKind { return KindChar }

// Open opens the tty non-blocking and starts watching it for input
func (d *ttyDevice) Open(rx RxNotifier) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fd >= 0 {
		return nil
	}

	fd, err := unix.Open(d.path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %v", d.path, err)
	}
	if d.set {
		if err := applyTermios(fd, d.cfg); err != nil {
			unix.Close(fd)
			return err
		}
	}
	if err := unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH); err != nil {
		unix.Close(fd)
		return fmt.Errorf("failed to flush input: %v", err)
	}

	var pipe [2]int
	if err := unix.Pipe2(pipe[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		unix.Close(fd)
		return fmt.Errorf("failed to create wake pipe: %v", err)
	}

	d.fd = fd
	d.wakeR, d.wakeW = pipe[0], pipe[1]
	d.drained = make(chan struct{}, 1)
	d.done = make(chan struct{})

	d.wg.Add(1)
	go d.watch(fd, d.wakeR, rx, d.drained, d.done)
	return nil
}

func (d *ttyDevice) watch(fd, wake int, rx RxNotifier, drained, done <-chan struct{}) {
	defer d.wg.Done()

	pfds := []unix.PollFd{
		{Fd: int32(fd), Events: unix.POLLIN},
		{Fd: int32(wake), Events: unix.POLLIN},
	}
	for {
		pfds[0].Revents, pfds[1].Revents = 0, 0
		if _, err := unix.Poll(pfds, -1); err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return
		}
		if pfds[1].Revents != 0 {
			return
		}
		if pfds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			// let the reader see the error
			rx.Notify()
			return
		}
		if pfds[0].Revents&unix.POLLIN == 0 {
			continue
		}

		rx.Notify()
		select {
		case <-drained:
		case <-done:
			return
		}
	}
}

// Close stops the watcher and closes the tty
func (d *ttyDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fd < 0 {
		return ErrDeviceClosed
	}

	close(d.done)
	unix.Write(d.wakeW, []byte{0})
	d.wg.Wait()

	unix.Close(d.wakeR)
	unix.Close(d.wakeW)
	err := unix.Close(d.fd)
	d.fd, d.wakeR, d.wakeW = -1, -1, -1
	return err
}

// Read returns whatever the tty has buffered without blocking
func (d *ttyDevice) Read(p []byte) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.fd < 0 {
		return 0, ErrDeviceClosed
	}

	n, err := unix.Read(d.fd, p)
	select {
	case d.drained <- struct{}{}:
	default:
	}
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

// Write writes all of p and waits until it has been shifted out
func (d *ttyDevice) Write(p []byte) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.fd < 0 {
		return 0, ErrDeviceClosed
	}

	written := 0
	for written < len(p) {
		n, err := unix.Write(d.fd, p[written:])
		if n > 0 {
			written += n
		}
		switch {
		case err == nil:
		case errors.Is(err, unix.EINTR):
		case errors.Is(err, unix.EAGAIN):
			pfds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLOUT}}
			if _, perr := unix.Poll(pfds, -1); perr != nil && !errors.Is(perr, unix.EINTR) {
				return written, perr
			}
		default:
			return written, err
		}
	}

	// tcdrain
	if err := unix.IoctlSetInt(d.fd, unix.TCSBRK, 1); err != nil {
		return written, fmt.Errorf("failed to drain output: %v", err)
	}
	return written, nil
}

// SetConfig stores cfg and applies it right away if the tty is open
func (d *ttyDevice) SetConfig(cfg LineConfig) error {
	if _, err := getBaudRate(cfg.BaudRate); err != nil {
		return err
	}
	if _, err := charSize(cfg); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.cfg = cfg
	d.set = true
	if d.fd >= 0 {
		return applyTermios(d.fd, cfg)
	}
	return nil
}

// SetRTS drives the RTS modem line
func (d *ttyDevice) SetRTS(on bool) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.fd < 0 {
		return ErrDeviceClosed
	}
	if on {
		return unix.IoctlSetInt(d.fd, unix.TIOCMBIS, unix.TIOCM_RTS)
	}
	return unix.IoctlSetInt(d.fd, unix.TIOCMBIC, unix.TIOCM_RTS)
}

// kindOf classifies a device node
func kindOf(path string) (DeviceKind, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return KindOther, fmt.Errorf("%w: %s", ErrDeviceNotFound, path)
		}
		return KindOther, err
	}
	mode := info.Mode()
	switch {
	case mode&os.ModeCharDevice != 0:
		return KindChar, nil
	case mode&os.ModeDevice != 0:
		return KindBlock, nil
	default:
		return KindOther, nil
	}
}

// kindDevice stands in for a node that exists but cannot carry a line
type kindDevice struct {
	name string
	kind DeviceKind
}

func (k kindDevice) Name() string               { return k.name }
func (k kindDevice) Kind() DeviceKind           { return k.kind }
func (k kindDevice) Open(RxNotifier) error      { return ErrDeviceWrongType }
func (k kindDevice) Close() error               { return nil }
func (k kindDevice) Read([]byte) (int, error)   { return 0, ErrDeviceWrongType }
func (k kindDevice) Write([]byte) (int, error)  { return 0, ErrDeviceWrongType }
func (k kindDevice) SetConfig(LineConfig) error { return ErrDeviceWrongType }

// TTYResolver resolves names to Linux tty devices under /dev
type TTYResolver struct{}

func (TTYResolver) Find(name string) (Device, error) {
	path := devicePath(name)
	kind, err := kindOf(path)
	if err != nil {
		return nil, err
	}
	if kind != KindChar {
		return kindDevice{name: path, kind: kind}, nil
	}
	return newTTYDevice(path), nil
}

// SystemResolver returns the resolver used when Create is given none
func SystemResolver() Resolver {
	return TTYResolver{}
}
