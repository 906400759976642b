package rs485

import (
	"path/filepath"
	"strings"
)

// DeviceKind classifies what a resolved device is able to do
type DeviceKind int

const (
	KindChar  DeviceKind = iota // byte-stream capable
	KindBlock                   // block device or anything else not usable as a line
	KindOther
)

func (k DeviceKind) String() string {
	switch k {
	case KindChar:
		return "char"
	case KindBlock:
		return "block"
	default:
		return "other"
	}
}

// RxNotifier is handed to a Device on Open. The device calls Notify, from
// any goroutine, every time new bytes become available for Read.
type RxNotifier interface {
	Notify()
}

// Device is the byte-stream device an Instance drives.
//
// Read must not block: it returns 0, nil when nothing is buffered. Write
// blocks until the bytes have been handed to the hardware (and, for a real
// UART, shifted out), so the direction pin can be switched right after it.
// SetConfig may be called whether or not the device is open.
type Device interface {
	Name() string
	Kind() DeviceKind
	Open(rx RxNotifier) error
	Close() error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetConfig(cfg LineConfig) error
}

// Resolver finds devices by name. Find returns ErrDeviceNotFound when the
// name is unknown.
type Resolver interface {
	Find(name string) (Device, error)
}

// ResolverFunc adapts a function to the Resolver interface
type ResolverFunc func(name string) (Device, error)

func (f ResolverFunc) Find(name string) (Device, error) {
	return f(name)
}

// devicePath turns a bare name like ttyUSB0 into /dev/ttyUSB0
func devicePath(name string) string {
	if strings.ContainsRune(name, '/') {
		return name
	}
	return filepath.Join("/dev", name)
}
