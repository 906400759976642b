package rs485

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Parity represents the parity mode
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "N"
	case ParityOdd:
		return "O"
	case ParityEven:
		return "E"
	default:
		return fmt.Sprintf("Parity(%d)", int(p))
	}
}

// StopBits represents the number of stop bits: StopBitsOne (0) or StopBitsTwo (1)
type StopBits int

const (
	StopBitsOne StopBits = iota
	StopBitsTwo
)

func (s StopBits) String() string {
	switch s {
	case StopBitsOne:
		return "1"
	case StopBitsTwo:
		return "2"
	default:
		return fmt.Sprintf("StopBits(%d)", int(s))
	}
}

// LineConfig is the serial line configuration handed to a Device.
//
// DataBits counts the parity bit when parity is enabled, so an 8 bit
// character with parity is described as DataBits 9.
type LineConfig struct {
	BaudRate int
	DataBits int
	Parity   Parity
	StopBits StopBits
}

func (c LineConfig) String() string {
	return fmt.Sprintf("%d %d%s%s", c.BaudRate, c.DataBits, c.Parity, c.StopBits)
}

// Byte gap limits
const (
	MinByteGap = 1 * time.Millisecond
	MaxByteGap = 15 * time.Millisecond

	// DefaultBreakPause is how long Receive sleeps after releasing the line
	// on a break, so the breaking goroutine gets the lock first.
	DefaultBreakPause = 2 * time.Millisecond
)

// ByteGapForBaud returns the default inter-byte gap for a baud rate:
// 40000/baud milliseconds, clamped to [MinByteGap, MaxByteGap].
func ByteGapForBaud(baudRate int) time.Duration {
	if baudRate <= 0 {
		return MaxByteGap
	}
	return clampByteGap(time.Duration(40000/baudRate) * time.Millisecond)
}

// clampByteGap truncates to whole milliseconds and clamps to the allowed range
func clampByteGap(d time.Duration) time.Duration {
	d = d.Truncate(time.Millisecond)
	if d < MinByteGap {
		return MinByteGap
	}
	if d > MaxByteGap {
		return MaxByteGap
	}
	return d
}

// initialLineConfig is the configuration applied by Create
func initialLineConfig(baudRate int, parity Parity) LineConfig {
	dataBits := 8
	if parity != ParityNone {
		dataBits = 9
	}
	return LineConfig{
		BaudRate: baudRate,
		DataBits: dataBits,
		Parity:   parity,
		StopBits: StopBitsOne,
	}
}

type options struct {
	resolver    Resolver
	logger      zerolog.Logger
	recvTimeout time.Duration
	byteGap     time.Duration // zero means derive from baud rate
	breakPause  time.Duration
}

// Option is a functional option for Create
type Option func(*options) error

func defaultOptions() options {
	return options{
		logger:     zerolog.Nop(),
		breakPause: DefaultBreakPause,
	}
}

// WithResolver sets how device names are looked up (default SystemResolver)
func WithResolver(r Resolver) Option {
	return func(o *options) error {
		if r == nil {
			return ErrInvalidArgument
		}
		o.resolver = r
		return nil
	}
}

// WithLogger sets the logger used by the instance
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) error {
		o.logger = l
		return nil
	}
}

// WithRecvTimeout sets the initial first-byte timeout (default 0, non-blocking)
func WithRecvTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.recvTimeout = d
		return nil
	}
}

// WithByteGapTimeout overrides the baud-derived byte gap. The value is clamped.
func WithByteGapTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.byteGap = clampByteGap(d)
		return nil
	}
}

// WithBreakPause sets the pause taken by a Receive that was broken
func WithBreakPause(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return ErrInvalidArgument
		}
		o.breakPause = d
		return nil
	}
}
