package rs485

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// RTSController is implemented by devices whose RTS modem line can drive
// the transceiver's DE/RE inputs, as found on many USB RS485 adapters.
type RTSController interface {
	SetRTS(on bool) error
}

// RTSPin returns a Pin that drives the RTS line of dev. The line can only
// be driven while the device is open, which is always the case while an
// Instance is connected.
func RTSPin(dev Device) (Pin, error) {
	c, ok := dev.(RTSController)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no RTS control", ErrInvalidArgument, dev.Name())
	}
	return &rtsPin{ctl: c}, nil
}

type rtsPin struct {
	ctl RTSController
}

// SetMode is a no-op, the modem line is always an output
func (p *rtsPin) SetMode(PinMode) error { return nil }

func (p *rtsPin) Write(level Level) error {
	return p.ctl.SetRTS(bool(level))
}

// DefaultGPIORoot is where the kernel exposes the sysfs GPIO interface
const DefaultGPIORoot = "/sys/class/gpio"

// SysfsPin is a GPIO line driven through the legacy sysfs interface
type SysfsPin struct {
	mu    sync.Mutex
	root  string
	num   int
	value *os.File
}

var _ Pin = (*SysfsPin)(nil)

// NewSysfsPin returns a pin for GPIO number num under root. An empty root
// means DefaultGPIORoot. The line is exported on first use.
func NewSysfsPin(root string, num int) (*SysfsPin, error) {
	if num < 0 {
		return nil, fmt.Errorf("%w: gpio %d", ErrInvalidArgument, num)
	}
	if root == "" {
		root = DefaultGPIORoot
	}
	return &SysfsPin{root: root, num: num}, nil
}

func (p *SysfsPin) String() string {
	return fmt.Sprintf("gpio%d", p.num)
}

func (p *SysfsPin) dir() string {
	return filepath.Join(p.root, "gpio"+strconv.Itoa(p.num))
}

func (p *SysfsPin) export() error {
	if _, err := os.Stat(p.dir()); err == nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(p.root, "export"), os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("export gpio %d: %w", p.num, err)
	}
	defer f.Close()
	if _, err := f.WriteString(strconv.Itoa(p.num)); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("export gpio %d: %w", p.num, err)
	}
	return nil
}

// SetMode exports the line and sets its direction. Switching to input
// closes the value file so the line is released.
func (p *SysfsPin) SetMode(mode PinMode) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.export(); err != nil {
		return err
	}

	dir := "in"
	if mode == PinOutput {
		dir = "out"
	}
	if err := os.WriteFile(filepath.Join(p.dir(), "direction"), []byte(dir), 0); err != nil {
		return fmt.Errorf("set gpio %d direction: %w", p.num, err)
	}

	if mode == PinInput {
		if p.value != nil {
			err := p.value.Close()
			p.value = nil
			return err
		}
		return nil
	}
	if p.value == nil {
		f, err := os.OpenFile(filepath.Join(p.dir(), "value"), os.O_RDWR, 0)
		if err != nil {
			return fmt.Errorf("open gpio %d value: %w", p.num, err)
		}
		p.value = f
	}
	return nil
}

func (p *SysfsPin) Write(level Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.value == nil {
		return fmt.Errorf("gpio %d is not an output", p.num)
	}
	v := "0"
	if level {
		v = "1"
	}
	if _, err := p.value.WriteAt([]byte(v), 0); err != nil {
		return fmt.Errorf("write gpio %d: %w", p.num, err)
	}
	return nil
}

// Close releases the value file if it is open
func (p *SysfsPin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.value == nil {
		return nil
	}
	err := p.value.Close()
	p.value = nil
	return err
}
