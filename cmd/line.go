/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/allbin/go-rs485"
	"github.com/allbin/go-rs485/internal/i18n"
	"github.com/spf13/viper"
)

// lineSettings are the line options shared by every command that opens a port
type lineSettings struct {
	Baud        int
	Parity      rs485.Parity
	Pin         pinSpec
	GPIORoot    string
	SendLevel   rs485.Level
	RecvTimeout time.Duration
	ByteGap     time.Duration
}

// pinKind tells how the direction pin is driven
type pinKind int

const (
	pinNone pinKind = iota
	pinGPIO
	pinRTS
)

type pinSpec struct {
	Kind pinKind
	GPIO int
}

func (p pinSpec) String() string {
	switch p.Kind {
	case pinGPIO:
		return "gpio" + strconv.Itoa(p.GPIO)
	case pinRTS:
		return "rts"
	default:
		return ""
	}
}

func parseParity(s string) (rs485.Parity, error) {
	switch strings.ToLower(s) {
	case "", "none", "n":
		return rs485.ParityNone, nil
	case "odd", "o":
		return rs485.ParityOdd, nil
	case "even", "e":
		return rs485.ParityEven, nil
	default:
		return rs485.ParityNone, fmt.Errorf("invalid parity: %s (valid: none, odd, even)", s)
	}
}

func parseLevel(s string) (rs485.Level, error) {
	switch strings.ToLower(s) {
	case "high", "on", "true", "1":
		return rs485.High, nil
	case "low", "off", "false", "0":
		return rs485.Low, nil
	default:
		return rs485.Low, fmt.Errorf("invalid level: %s (valid: high, low, on, off, true, false, 1, 0)", s)
	}
}

// parsePin accepts "", "none", "rts", "gpio17", "gpio:17" and "17"
func parsePin(s string) (pinSpec, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "none":
		return pinSpec{Kind: pinNone}, nil
	case "rts":
		return pinSpec{Kind: pinRTS}, nil
	}

	num := strings.TrimPrefix(strings.TrimPrefix(s, "gpio"), ":")
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 {
		return pinSpec{}, fmt.Errorf("invalid pin: %s (valid: gpio<N>, <N>, rts, none)", s)
	}
	return pinSpec{Kind: pinGPIO, GPIO: n}, nil
}

// loadLineSettings collects the line options from flags, environment and config file
func loadLineSettings() (lineSettings, error) {
	var ls lineSettings
	var err error

	ls.Baud = viper.GetInt("baud")
	if ls.Baud <= 0 {
		return ls, fmt.Errorf("invalid baud rate: %d", ls.Baud)
	}
	if ls.Parity, err = parseParity(viper.GetString("parity")); err != nil {
		return ls, err
	}
	if ls.Pin, err = parsePin(viper.GetString("pin")); err != nil {
		return ls, err
	}
	if ls.SendLevel, err = parseLevel(viper.GetString("send-level")); err != nil {
		return ls, err
	}
	ls.GPIORoot = viper.GetString("gpio-root")
	ls.RecvTimeout = viper.GetDuration("timeout")
	ls.ByteGap = viper.GetDuration("byte-gap")
	return ls, nil
}

func (ls lineSettings) describe() string {
	cfg := fmt.Sprintf("%d %s", ls.Baud, ls.Parity)
	if ls.Pin.Kind != pinNone {
		cfg += " pin " + ls.Pin.String()
	}
	return cfg
}

// line is an open RS485 instance plus what has to be released with it
type line struct {
	*rs485.Instance
	settings lineSettings
	pin      rs485.Pin
}

// Close disconnects and destroys the instance and releases a GPIO pin
func (l *line) Close() error {
	err := l.Destroy()
	if c, ok := l.pin.(io.Closer); ok {
		c.Close()
	}
	return err
}

// openLine creates and connects an instance for portPath
func openLine(portPath string, ls lineSettings) (*line, error) {
	resolver := rs485.SystemResolver()
	opts := []rs485.Option{
		rs485.WithLogger(logger.With().Str("port", portPath).Logger()),
		rs485.WithRecvTimeout(ls.RecvTimeout),
	}
	if ls.ByteGap > 0 {
		opts = append(opts, rs485.WithByteGapTimeout(ls.ByteGap))
	}

	var pin rs485.Pin
	switch ls.Pin.Kind {
	case pinGPIO:
		sp, err := rs485.NewSysfsPin(ls.GPIORoot, ls.Pin.GPIO)
		if err != nil {
			return nil, err
		}
		pin = sp
	case pinRTS:
		// the RTS line belongs to the device, so resolve it once and hand
		// the same device to Create
		dev, err := resolver.Find(portPath)
		if err != nil {
			return nil, err
		}
		if pin, err = rs485.RTSPin(dev); err != nil {
			return nil, fmt.Errorf("%s has no RTS line: %w", portPath, err)
		}
		opts = append(opts, rs485.WithResolver(rs485.ResolverFunc(func(string) (rs485.Device, error) {
			return dev, nil
		})))
	}
	if ls.Pin.Kind != pinRTS {
		opts = append(opts, rs485.WithResolver(resolver))
	}

	in, err := rs485.Create(portPath, ls.Baud, ls.Parity, pin, ls.SendLevel, opts...)
	if err != nil {
		if c, ok := pin.(io.Closer); ok {
			c.Close()
		}
		return nil, err
	}
	l := &line{Instance: in, settings: ls, pin: pin}

	if err := in.Connect(); err != nil {
		l.Close()
		return nil, err
	}
	logger.Debug().
		Str("port", portPath).
		Dur("recv_timeout", in.RecvTimeout()).
		Dur("byte_gap", in.ByteGapTimeout()).
		Msg("line connected")
	return l, nil
}

// openConfiguredLine loads the line settings and opens portPath with them
func openConfiguredLine(portPath string) (*line, error) {
	ls, err := loadLineSettings()
	if err != nil {
		return nil, err
	}
	return openLine(portPath, ls)
}

// interruptContext returns a context cancelled on SIGINT or SIGTERM. onStop
// runs once when the signal arrives, after the context is cancelled.
func interruptContext(onStop func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		if stopOnSignal(ctx, sigChan, cancel, onStop) {
			fmt.Fprintf(os.Stderr, "\n%s\n", printer.Sprintf(i18n.MsgStopping))
		}
	}()
	return ctx, cancel
}

// stopOnSignal waits for a signal or ctx. On a signal it cancels first, so
// whatever onStop wakes already sees ctx.Err().
func stopOnSignal(ctx context.Context, sigs <-chan os.Signal, cancel context.CancelFunc, onStop func()) bool {
	select {
	case <-sigs:
		cancel()
		if onStop != nil {
			onStop()
		}
		return true
	case <-ctx.Done():
		return false
	}
}
