package rs485

import "errors"

// Predefined error types for robust error handling
var (
	ErrInvalidArgument   = errors.New("rs485: invalid argument")
	ErrInvalidHandle     = errors.New("rs485: invalid instance handle")
	ErrNotConnected      = errors.New("rs485: instance is not connected")
	ErrDeviceNotFound    = errors.New("rs485: serial device not found")
	ErrDeviceWrongType   = errors.New("rs485: device is not a character device")
	ErrDeviceOpenFailed  = errors.New("rs485: failed to open serial device")
	ErrResourceExhausted = errors.New("rs485: no resources left for a new instance")
	ErrDestroyed         = errors.New("rs485: instance has been destroyed")
	ErrSendFailed        = errors.New("rs485: send failed")

	// Backend errors
	ErrInvalidBaudRate = errors.New("rs485: invalid baud rate")
	ErrInvalidConfig   = errors.New("rs485: invalid line configuration")
	ErrDeviceClosed    = errors.New("rs485: device is closed")
)
