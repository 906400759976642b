package rs485

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Receive reads one frame into buf. A frame ends when buf is full or the
// line has been silent for the byte gap timeout. It returns 0, nil when no
// byte arrived within the receive timeout or when BreakReceive interrupted
// the wait for the first byte.
func (in *Instance) Receive(buf []byte) (int, error) {
	return in.ReceiveContext(context.Background(), buf)
}

// ReceiveContext is Receive with cancellation. Cancelling ctx before the
// first byte arrives returns 0 and ctx.Err(); cancelling it later ends the
// frame with the bytes read so far.
func (in *Instance) ReceiveContext(ctx context.Context, buf []byte) (int, error) {
	if in == nil {
		return 0, ErrInvalidHandle
	}
	if len(buf) == 0 {
		return 0, ErrInvalidArgument
	}
	if !in.connected.Load() {
		in.log.Error().Msg("rs485 recv failed, not connected")
		return 0, ErrNotConnected
	}

	if err := in.lock.acquire(ctx); err != nil {
		if errors.Is(err, ErrDestroyed) {
			in.log.Error().Msg("rs485 recv failed, instance destroyed")
		}
		return 0, err
	}
	if !in.connected.Load() {
		in.lock.release()
		in.log.Error().Msg("rs485 recv failed, not connected")
		return 0, ErrNotConnected
	}

	in.sig.clear(flagDataReady | flagBreak)

	n, broke, err := in.readFrame(ctx, buf, true)
	in.lock.release()

	if broke {
		in.log.Debug().Msg("rs485 recv interrupted by break")
		if in.breakPause > 0 {
			time.Sleep(in.breakPause)
		}
		return 0, nil
	}
	if err != nil {
		in.log.Error().Err(err).Int("bytes", n).Msg("rs485 recv failed")
	}
	return n, err
}

// Send transmits buf. The direction pin is held at the send level for the
// duration of the write and is always returned to the receive level.
func (in *Instance) Send(buf []byte) (int, error) {
	if in == nil {
		return 0, ErrInvalidHandle
	}
	if len(buf) == 0 {
		return 0, ErrInvalidArgument
	}
	if !in.connected.Load() {
		in.log.Error().Msg("rs485 send failed, not connected")
		return 0, ErrNotConnected
	}

	if err := in.lock.acquire(context.Background()); err != nil {
		in.log.Error().Err(err).Msg("rs485 send failed, lock unavailable")
		return 0, err
	}
	defer in.lock.release()

	if !in.connected.Load() {
		in.log.Error().Msg("rs485 send failed, not connected")
		return 0, ErrNotConnected
	}

	return in.transmit(buf)
}

// SendThenReceive sends req and reads the response frame into resp without
// releasing the line in between. A break only ends the response wait early.
func (in *Instance) SendThenReceive(req, resp []byte) (int, error) {
	if in == nil {
		return 0, ErrInvalidHandle
	}
	if len(req) == 0 || len(resp) == 0 {
		return 0, ErrInvalidArgument
	}
	if !in.connected.Load() {
		in.log.Error().Msg("rs485 send_then_recv failed, not connected")
		return 0, ErrNotConnected
	}

	if err := in.lock.acquire(context.Background()); err != nil {
		in.log.Error().Err(err).Msg("rs485 send_then_recv failed, lock unavailable")
		return 0, err
	}
	defer in.lock.release()

	if !in.connected.Load() {
		in.log.Error().Msg("rs485 send_then_recv failed, not connected")
		return 0, ErrNotConnected
	}

	in.sig.clear(flagDataReady | flagBreak)

	if _, err := in.transmit(req); err != nil {
		return 0, err
	}

	n, _, err := in.readFrame(context.Background(), resp, false)
	if err != nil {
		in.log.Error().Err(err).Int("bytes", n).Msg("rs485 send_then_recv failed")
	}
	return n, err
}

// BreakReceive wakes a Receive blocked waiting for the first byte of a
// frame. It does not take the line lock.
func (in *Instance) BreakReceive() error {
	if in == nil || in.sig == nil || in.destroyed.Load() {
		return ErrInvalidHandle
	}
	if !in.sig.send(flagBreak) {
		return ErrInvalidHandle
	}
	return nil
}

// transmit runs the direction pin sequence around one device write. The
// caller holds the line lock.
func (in *Instance) transmit(p []byte) (int, error) {
	if in.pin != nil {
		defer func() {
			if err := in.pin.Write(!in.sendLevel); err != nil {
				in.log.Error().Err(err).Msg("failed to restore receive level on direction pin")
			}
		}()
		if err := in.pin.Write(in.sendLevel); err != nil {
			in.log.Error().Err(err).Msg("rs485 send failed, direction pin")
			return 0, fmt.Errorf("%w: direction pin: %w", ErrSendFailed, err)
		}
	}

	n, err := in.dev.Write(p)
	if err != nil || n < 0 {
		if err == nil {
			err = fmt.Errorf("device returned %d", n)
		}
		in.log.Error().Err(err).Msg("rs485 send failed")
		return 0, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	if n < len(p) {
		in.log.Debug().Int("requested", len(p)).Int("written", n).Msg("short write")
	}
	return n, nil
}

// readFrame is the byte gap framing loop. The caller holds the line lock.
//
// While no byte has been captured the loop waits up to the receive timeout
// for data or a break. When breakable is set a break aborts the frame and
// broke is reported; otherwise it ends the wait like a timeout. After the
// first byte only data wakes the loop, and a byte gap timeout ends the frame.
func (in *Instance) readFrame(ctx context.Context, buf []byte, breakable bool) (n int, broke bool, err error) {
	recvTimeout := in.RecvTimeout()
	byteGap := in.ByteGapTimeout()

	for n < len(buf) {
		// clear before reading so a notification raised during the read
		// is seen by the next wait
		in.sig.clear(flagDataReady)

		got, rerr := in.dev.Read(buf[n:])
		if got > 0 {
			n += got
		}
		if rerr != nil {
			return n, false, rerr
		}
		if got > 0 {
			continue
		}

		if n == 0 {
			flags, ok := in.sig.wait(flagDataReady|flagBreak, recvTimeout, ctx.Done())
			if !ok {
				return 0, false, ctx.Err()
			}
			if flags&flagBreak != 0 {
				return 0, breakable, nil
			}
			continue
		}

		if _, ok := in.sig.wait(flagDataReady, byteGap, ctx.Done()); !ok {
			break
		}
	}
	return n, false, nil
}
