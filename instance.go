package rs485

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Instance is one RS485 line bound to one serial device.
//
// All I/O (Receive, Send, SendThenReceive) and Disconnect are serialized by
// the instance's line lock. BreakReceive and the device's receive
// notification never take the lock.
type Instance struct {
	name      string
	dev       Device
	pin       Pin
	sendLevel Level

	lock *lineLock
	sig  *eventSignal
	slot notifySlot
	reg  *notifyRegistry

	connected   atomic.Bool
	destroyed   atomic.Bool
	recvTimeout atomic.Int64
	byteGap     atomic.Int64
	breakPause  time.Duration

	// serializes Connect against Disconnect/Destroy bookkeeping
	stateMu sync.Mutex

	log zerolog.Logger
}

// Create resolves the named device and returns a disconnected instance.
//
// pin may be nil, in which case no direction control is done. sendLevel is
// the level driven on pin while transmitting; the inverse level is driven
// while receiving.
func Create(name string, baudRate int, parity Parity, pin Pin, sendLevel Level, opts ...Option) (*Instance, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	log := o.logger.With().Str("device", name).Logger()

	resolver := o.resolver
	if resolver == nil {
		resolver = SystemResolver()
	}

	dev, err := resolver.Find(name)
	if err != nil {
		log.Error().Err(err).Msg("rs485 create failed, serial device not found")
		if errors.Is(err, ErrDeviceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceNotFound, name, err)
	}
	if dev.Kind() != KindChar {
		log.Error().Stringer("kind", dev.Kind()).Msg("rs485 create failed, device is not a char device")
		return nil, fmt.Errorf("%w: %s is a %s device", ErrDeviceWrongType, name, dev.Kind())
	}

	lock := newLineLock()
	sig := newEventSignal()
	slot, err := rxRegistry.reserve(sig)
	if err != nil {
		sig.destroy()
		lock.destroy()
		log.Error().Err(err).Msg("rs485 create failed, no free instance slot")
		return nil, err
	}

	inst := &Instance{
		name:       name,
		dev:        dev,
		pin:        pin,
		sendLevel:  sendLevel,
		lock:       lock,
		sig:        sig,
		slot:       slot,
		reg:        rxRegistry,
		breakPause: o.breakPause,
		log:        log,
	}
	inst.recvTimeout.Store(int64(o.recvTimeout))
	byteGap := o.byteGap
	if byteGap == 0 {
		byteGap = ByteGapForBaud(baudRate)
	}
	inst.byteGap.Store(int64(byteGap))

	cfg := initialLineConfig(baudRate, parity)
	if err := inst.Configure(cfg.BaudRate, cfg.DataBits, cfg.Parity, cfg.StopBits); err != nil {
		log.Warn().Err(err).Stringer("config", cfg).Msg("initial line configuration rejected")
	}

	log.Debug().
		Int("baud", baudRate).
		Stringer("parity", parity).
		Dur("byte_gap", byteGap).
		Bool("direction_pin", pin != nil).
		Msg("rs485 create success")
	return inst, nil
}

// Destroy disconnects the instance and releases its signal, lock and
// registry slot. The instance must not be used afterwards.
func (in *Instance) Destroy() error {
	if in == nil || !in.destroyed.CompareAndSwap(false, true) {
		return ErrInvalidHandle
	}

	if err := in.Disconnect(); err != nil {
		in.log.Warn().Err(err).Msg("disconnect during destroy failed")
	}

	in.stateMu.Lock()
	in.sig.destroy()
	in.lock.destroy()
	in.reg.release(in.slot)
	in.stateMu.Unlock()

	in.log.Debug().Msg("rs485 destroy success")
	return nil
}

// Configure applies a line configuration to the device. dataBits is passed
// through unchecked; the device may reject it.
func (in *Instance) Configure(baudRate, dataBits int, parity Parity, stopBits StopBits) error {
	if in == nil {
		return ErrInvalidHandle
	}
	cfg := LineConfig{
		BaudRate: baudRate,
		DataBits: dataBits,
		Parity:   parity,
		StopBits: stopBits,
	}
	if err := in.dev.SetConfig(cfg); err != nil {
		in.log.Error().Err(err).Stringer("config", cfg).Msg("rs485 config failed")
		return err
	}
	return nil
}

// SetRecvTimeout sets how long Receive waits for the first byte of a frame:
// 0 returns at once, a negative value waits forever.
func (in *Instance) SetRecvTimeout(d time.Duration) error {
	if in == nil {
		return ErrInvalidHandle
	}
	in.recvTimeout.Store(int64(d))
	in.log.Debug().Dur("timeout", d).Msg("rs485 set recv timeout")
	return nil
}

// SetByteGapTimeout sets the silence that ends a frame. The value is
// truncated to whole milliseconds and clamped to [MinByteGap, MaxByteGap].
func (in *Instance) SetByteGapTimeout(d time.Duration) error {
	if in == nil {
		return ErrInvalidHandle
	}
	d = clampByteGap(d)
	in.byteGap.Store(int64(d))
	in.log.Debug().Dur("byte_gap", d).Msg("rs485 set byte gap timeout")
	return nil
}

// RecvTimeout returns the current first-byte timeout
func (in *Instance) RecvTimeout() time.Duration {
	if in == nil {
		return 0
	}
	return time.Duration(in.recvTimeout.Load())
}

// ByteGapTimeout returns the current inter-byte timeout
func (in *Instance) ByteGapTimeout() time.Duration {
	if in == nil {
		return 0
	}
	return time.Duration(in.byteGap.Load())
}

// Connected reports whether the instance is connected
func (in *Instance) Connected() bool {
	return in != nil && in.connected.Load()
}

// Name returns the device name the instance was created with
func (in *Instance) Name() string {
	if in == nil {
		return ""
	}
	return in.name
}

// Connect opens the device with receive notification and puts the
// direction pin into receive mode. Connecting twice is a no-op.
func (in *Instance) Connect() error {
	if in == nil || in.destroyed.Load() {
		return ErrInvalidHandle
	}

	in.stateMu.Lock()
	defer in.stateMu.Unlock()

	// Destroy releases the slot under stateMu
	if in.destroyed.Load() {
		return ErrInvalidHandle
	}
	if in.connected.Load() {
		in.log.Debug().Msg("rs485 is connected")
		return nil
	}

	rx := in.reg.arm(in.slot)
	if err := in.dev.Open(rx); err != nil {
		in.reg.revoke(in.slot)
		in.log.Error().Err(err).Msg("rs485 connect failed, serial open failed")
		return fmt.Errorf("%w: %s: %v", ErrDeviceOpenFailed, in.name, err)
	}

	if in.pin != nil {
		err := in.pin.SetMode(PinOutput)
		if err == nil {
			err = in.pin.Write(!in.sendLevel)
		}
		if err != nil {
			in.reg.revoke(in.slot)
			in.dev.Close()
			in.log.Error().Err(err).Msg("rs485 connect failed, direction pin setup failed")
			return fmt.Errorf("rs485: direction pin: %w", err)
		}
	}

	in.connected.Store(true)
	in.log.Debug().Msg("rs485 connect success")
	return nil
}

// Disconnect waits for any in-flight operation, detaches the receive
// notification, closes the device and releases the direction pin.
func (in *Instance) Disconnect() error {
	if in == nil {
		return ErrInvalidHandle
	}

	in.stateMu.Lock()
	defer in.stateMu.Unlock()

	if !in.connected.Load() {
		in.log.Debug().Msg("rs485 is not connected")
		return nil
	}

	if err := in.lock.acquire(context.Background()); err != nil {
		return err
	}
	defer in.lock.release()

	in.reg.revoke(in.slot)
	closeErr := in.dev.Close()

	if in.pin != nil {
		if err := in.pin.SetMode(PinInput); err != nil {
			in.log.Warn().Err(err).Msg("failed to release direction pin")
		}
	}

	in.connected.Store(false)

	if closeErr != nil {
		in.log.Warn().Err(closeErr).Msg("serial close reported an error")
	}
	in.log.Debug().Msg("rs485 disconnect success")
	return nil
}
