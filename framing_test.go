package rs485

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestIOPreconditions(t *testing.T) {
	var nilInstance *Instance
	buf := make([]byte, 8)

	if _, err := nilInstance.Receive(buf); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("nil Receive error = %v, want ErrInvalidHandle", err)
	}
	if _, err := nilInstance.Send(buf); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("nil Send error = %v, want ErrInvalidHandle", err)
	}
	if _, err := nilInstance.SendThenReceive(buf, buf); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("nil SendThenReceive error = %v, want ErrInvalidHandle", err)
	}
	if err := nilInstance.BreakReceive(); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("nil BreakReceive error = %v, want ErrInvalidHandle", err)
	}

	in, _ := newTestInstance(t, 9600, nil)

	if _, err := in.Receive(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Receive(nil) error = %v, want ErrInvalidArgument", err)
	}
	if _, err := in.Send([]byte{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Send(empty) error = %v, want ErrInvalidArgument", err)
	}
	if _, err := in.SendThenReceive(buf, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("SendThenReceive(buf, nil) error = %v, want ErrInvalidArgument", err)
	}

	if err := in.Disconnect(); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if _, err := in.Receive(buf); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Receive error = %v, want ErrNotConnected", err)
	}
	if _, err := in.Send(buf); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send error = %v, want ErrNotConnected", err)
	}
	if _, err := in.SendThenReceive(buf, buf); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendThenReceive error = %v, want ErrNotConnected", err)
	}
}

func TestReceiveTimeout(t *testing.T) {
	in, _ := newTestInstance(t, 9600, nil)
	buf := make([]byte, 16)

	t.Run("non-blocking", func(t *testing.T) {
		in.SetRecvTimeout(0)
		start := time.Now()
		n, err := in.Receive(buf)
		if n != 0 || err != nil {
			t.Errorf("Receive = %d, %v, want 0, nil", n, err)
		}
		if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
			t.Errorf("non-blocking Receive took %v", elapsed)
		}
	})

	t.Run("bounded", func(t *testing.T) {
		in.SetRecvTimeout(30 * time.Millisecond)
		start := time.Now()
		n, err := in.Receive(buf)
		elapsed := time.Since(start)
		if n != 0 || err != nil {
			t.Errorf("Receive = %d, %v, want 0, nil", n, err)
		}
		if elapsed < 30*time.Millisecond {
			t.Errorf("Receive returned after %v, before the timeout", elapsed)
		}
		if elapsed > 500*time.Millisecond {
			t.Errorf("Receive took %v", elapsed)
		}
	})
}

func TestReceiveBufferedFrame(t *testing.T) {
	in, dev := newTestInstance(t, 9600, nil)
	in.SetRecvTimeout(0)

	dev.feed([]byte("ping"))
	buf := make([]byte, 16)
	n, err := in.Receive(buf)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if got := string(buf[:n]); got != "ping" {
		t.Errorf("Receive = %q, want %q", got, "ping")
	}
}

func TestReceiveGapFraming(t *testing.T) {
	in, dev := newTestInstance(t, 9600, nil)
	in.SetRecvTimeout(time.Second)
	in.SetByteGapTimeout(15 * time.Millisecond)

	go func() {
		time.Sleep(10 * time.Millisecond)
		dev.feed([]byte("abc"))
		time.Sleep(2 * time.Millisecond)
		dev.feed([]byte("def"))
		time.Sleep(150 * time.Millisecond)
		dev.feed([]byte("ghi"))
	}()

	buf := make([]byte, 64)
	n, err := in.Receive(buf)
	if err != nil {
		t.Fatalf("first Receive failed: %v", err)
	}
	if got := string(buf[:n]); got != "abcdef" {
		t.Errorf("first frame = %q, want %q", got, "abcdef")
	}

	n, err = in.Receive(buf)
	if err != nil {
		t.Fatalf("second Receive failed: %v", err)
	}
	if got := string(buf[:n]); got != "ghi" {
		t.Errorf("second frame = %q, want %q", got, "ghi")
	}
}

// A 10 byte frame at 9600 baud followed by 5 bytes 50ms later is two frames
func TestReceive9600Baud(t *testing.T) {
	in, dev := newTestInstance(t, 9600, nil)
	in.SetRecvTimeout(time.Second)

	if got := in.ByteGapTimeout(); got != 4*time.Millisecond {
		t.Fatalf("ByteGapTimeout = %v, want 4ms", got)
	}

	first := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0a, 0xc5, 0xcd, 0x00, 0x00}
	go func() {
		time.Sleep(5 * time.Millisecond)
		dev.feed(first)
		time.Sleep(50 * time.Millisecond)
		dev.feed([]byte{1, 2, 3, 4, 5})
	}()

	buf := make([]byte, 100)
	n, err := in.Receive(buf)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if !bytes.Equal(buf[:n], first) {
		t.Errorf("frame = % x, want % x", buf[:n], first)
	}

	n, err = in.Receive(buf)
	if err != nil || n != 5 {
		t.Errorf("second Receive = %d, %v, want 5, nil", n, err)
	}
}

func TestReceiveFillsBuffer(t *testing.T) {
	in, dev := newTestInstance(t, 9600, nil)
	in.SetRecvTimeout(0)

	dev.feed([]byte("0123456789"))
	buf := make([]byte, 4)

	var frames []string
	for {
		n, err := in.Receive(buf)
		if err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
		if n == 0 {
			break
		}
		frames = append(frames, string(buf[:n]))
	}

	want := []string{"0123", "4567", "89"}
	if len(frames) != len(want) {
		t.Fatalf("frames = %q, want %q", frames, want)
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Errorf("frame %d = %q, want %q", i, frames[i], want[i])
		}
	}
}

func TestBreakReceive(t *testing.T) {
	in, _ := newTestInstance(t, 9600, nil)
	in.SetRecvTimeout(-1)

	buf := bytes.Repeat([]byte{0xaa}, 8)
	ch := receiveAsync(in, buf)

	time.Sleep(20 * time.Millisecond)
	broke := time.Now()
	if err := in.BreakReceive(); err != nil {
		t.Fatalf("BreakReceive failed: %v", err)
	}

	r := waitResult(t, ch, time.Second)
	if r.n != 0 || r.err != nil {
		t.Errorf("Receive = %d, %v, want 0, nil", r.n, r.err)
	}
	if d := r.at.Sub(broke); d > 200*time.Millisecond {
		t.Errorf("Receive returned %v after break", d)
	}
	if !bytes.Equal(buf, bytes.Repeat([]byte{0xaa}, 8)) {
		t.Errorf("buffer modified by broken Receive: % x", buf)
	}

	// the line is usable again
	in.SetRecvTimeout(0)
	if _, err := in.Send([]byte{1}); err != nil {
		t.Errorf("Send after break failed: %v", err)
	}
}

// A break raised before Receive starts does not cancel it
func TestBreakClearedOnEntry(t *testing.T) {
	in, dev := newTestInstance(t, 9600, nil)
	in.SetRecvTimeout(time.Second)

	if err := in.BreakReceive(); err != nil {
		t.Fatalf("BreakReceive failed: %v", err)
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		dev.feed([]byte("ok"))
	}()

	buf := make([]byte, 8)
	n, err := in.Receive(buf)
	if err != nil || string(buf[:n]) != "ok" {
		t.Errorf("Receive = %q, %v, want %q, nil", buf[:n], err, "ok")
	}
}

func TestReceiveContext(t *testing.T) {
	in, dev := newTestInstance(t, 9600, nil)
	in.SetRecvTimeout(-1)
	buf := make([]byte, 8)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	n, err := in.ReceiveContext(ctx, buf)
	if n != 0 || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ReceiveContext = %d, %v, want 0, DeadlineExceeded", n, err)
	}

	dev.feed([]byte("xy"))
	n, err = in.ReceiveContext(context.Background(), buf)
	if err != nil || string(buf[:n]) != "xy" {
		t.Errorf("ReceiveContext = %q, %v, want %q, nil", buf[:n], err, "xy")
	}
}

func TestSendDirection(t *testing.T) {
	pin := &simPin{}
	in, dev := newTestInstance(t, 9600, pin)

	n, err := in.Send([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("Send = %d, %v, want 5, nil", n, err)
	}
	if got := string(dev.writtenBytes()); got != "hello" {
		t.Errorf("device got %q, want %q", got, "hello")
	}
	if len(dev.levelAtWrite) != 1 || dev.levelAtWrite[0] != High {
		t.Errorf("pin level during write = %v, want [high]", dev.levelAtWrite)
	}
	if pin.level() != Low {
		t.Errorf("pin level after Send = %s, want low", pin.level())
	}

	t.Run("device failure", func(t *testing.T) {
		dev.writeErr = errors.New("uart fault")
		defer func() { dev.writeErr = nil }()

		_, err := in.Send([]byte("x"))
		if !errors.Is(err, ErrSendFailed) {
			t.Errorf("Send error = %v, want ErrSendFailed", err)
		}
		if !errors.Is(err, dev.writeErr) {
			t.Errorf("Send error = %v, should wrap the device error", err)
		}
		if pin.level() != Low {
			t.Errorf("pin level after failed Send = %s, want low", pin.level())
		}
	})
}

func TestSendWithoutPin(t *testing.T) {
	in, dev := newTestInstance(t, 9600, nil)

	if _, err := in.Send([]byte{0x7e}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := dev.writtenBytes(); !bytes.Equal(got, []byte{0x7e}) {
		t.Errorf("device got % x, want 7e", got)
	}
}

func TestSendThenReceive(t *testing.T) {
	pin := &simPin{}
	in, dev := newTestInstance(t, 9600, pin)
	in.SetRecvTimeout(200 * time.Millisecond)

	dev.onWrite = func(p []byte) {
		go func() {
			time.Sleep(5 * time.Millisecond)
			dev.feed(append([]byte("re:"), p...))
		}()
	}

	resp := make([]byte, 32)
	n, err := in.SendThenReceive([]byte("q1"), resp)
	if err != nil {
		t.Fatalf("SendThenReceive failed: %v", err)
	}
	if got := string(resp[:n]); got != "re:q1" {
		t.Errorf("response = %q, want %q", got, "re:q1")
	}
	if pin.level() != Low {
		t.Errorf("pin level after transaction = %s, want low", pin.level())
	}
}

func TestSendThenReceiveResponseSize(t *testing.T) {
	tests := []struct {
		name    string
		req     string
		respLen int
		want    string
	}{
		{"response fits", "abc", 8, "abc"},
		{"response fills buffer", "abcd", 4, "abcd"},
		{"response truncated", "abcdef", 3, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, dev := newTestInstance(t, 9600, nil)
			in.SetRecvTimeout(200 * time.Millisecond)
			dev.onWrite = func(p []byte) { dev.feed(p) }

			resp := make([]byte, tt.respLen)
			n, err := in.SendThenReceive([]byte(tt.req), resp)
			if err != nil {
				t.Fatalf("SendThenReceive failed: %v", err)
			}
			if got := string(resp[:n]); got != tt.want {
				t.Errorf("SendThenReceive(%q, %d) = %q, want %q", tt.req, tt.respLen, got, tt.want)
			}
		})
	}
}

func TestSendThenReceiveSendFailure(t *testing.T) {
	in, dev := newTestInstance(t, 9600, nil)
	in.SetRecvTimeout(time.Second)
	dev.writeErr = errors.New("uart fault")

	reads := dev.readCount()
	start := time.Now()
	_, err := in.SendThenReceive([]byte("q"), make([]byte, 8))
	if !errors.Is(err, ErrSendFailed) {
		t.Errorf("SendThenReceive error = %v, want ErrSendFailed", err)
	}
	if dev.readCount() != reads {
		t.Error("receive attempted after failed send")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("failed transaction took %v", elapsed)
	}
}

func TestSendThenReceiveBreakEndsWait(t *testing.T) {
	in, _ := newTestInstance(t, 9600, nil)
	in.SetRecvTimeout(-1)

	done := make(chan recvResult, 1)
	go func() {
		n, err := in.SendThenReceive([]byte("q"), make([]byte, 8))
		done <- recvResult{n: n, err: err}
	}()

	time.Sleep(20 * time.Millisecond)
	in.BreakReceive()

	r := waitResult(t, done, time.Second)
	if r.n != 0 || r.err != nil {
		t.Errorf("SendThenReceive = %d, %v, want 0, nil", r.n, r.err)
	}
}

func TestMutualExclusion(t *testing.T) {
	in, dev := newTestInstance(t, 9600, nil)
	in.SetRecvTimeout(0)
	dev.writeDelay = 2 * time.Millisecond
	dev.onWrite = func(p []byte) { dev.feed(p) }

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		i := i // per-iteration copy; go.mod targets go 1.21 loop semantics
		wg.Add(4)
		go func() {
			defer wg.Done()
			in.Disconnect()
			in.Connect()
		}()
		go func() {
			defer wg.Done()
			in.Send([]byte{byte(i)})
		}()
		go func() {
			defer wg.Done()
			in.Receive(make([]byte, 4))
		}()
		go func() {
			defer wg.Done()
			in.SendThenReceive([]byte{byte(i)}, make([]byte, 4))
		}()
	}
	wg.Wait()

	if dev.overlap.Load() {
		t.Error("device I/O of two operations overlapped")
	}
}

func TestDisconnectWaitsForReceive(t *testing.T) {
	in, _ := newTestInstance(t, 9600, nil)
	in.SetRecvTimeout(80 * time.Millisecond)

	ch := receiveAsync(in, make([]byte, 8))
	time.Sleep(10 * time.Millisecond)

	start := time.Now()
	if err := in.Disconnect(); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	blocked := time.Since(start)

	r := waitResult(t, ch, time.Second)
	if r.err != nil {
		t.Errorf("in-flight Receive failed: %v", r.err)
	}
	// the Receive had about 70ms of its timeout left
	if blocked < 40*time.Millisecond {
		t.Errorf("Disconnect returned after %v, without waiting for the in-flight Receive", blocked)
	}

	if _, err := in.Receive(make([]byte, 8)); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Receive after Disconnect error = %v, want ErrNotConnected", err)
	}
	if _, err := in.Send([]byte{1}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send after Disconnect error = %v, want ErrNotConnected", err)
	}
}

// crossLink wires a's writes into b's receive buffer and back
func crossLink(a, b *simDevice) {
	a.onWrite = func(p []byte) { b.feed(p) }
	b.onWrite = func(p []byte) { a.feed(p) }
}

func TestLoopback(t *testing.T) {
	master, mdev := newTestInstance(t, 115200, &simPin{})
	slave, sdev := newTestInstance(t, 115200, &simPin{})
	crossLink(mdev, sdev)

	master.SetRecvTimeout(time.Second)
	slave.SetRecvTimeout(time.Second)

	payload := []byte{0x01, 0x06, 0x00, 0x01, 0x00, 0x03, 0x98, 0x0b}
	if _, err := master.Send(payload); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	buf := make([]byte, 256)
	n, err := slave.Receive(buf)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if !bytes.Equal(buf[:n], payload) {
		t.Errorf("slave got % x, want % x", buf[:n], payload)
	}

	// echo back inside a transaction
	go func() {
		req := make([]byte, 16)
		n, err := slave.Receive(req)
		if err == nil && n > 0 {
			slave.Send(req[:n])
		}
	}()
	time.Sleep(10 * time.Millisecond)

	n, err = master.SendThenReceive([]byte("echo"), buf)
	if err != nil {
		t.Fatalf("SendThenReceive failed: %v", err)
	}
	if got := string(buf[:n]); got != "echo" {
		t.Errorf("master got %q, want %q", got, "echo")
	}
}
