package rs485

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// fakeGPIO lays out a sysfs gpio tree with line num already exported
func fakeGPIO(t *testing.T, num int) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "gpio"+strconv.Itoa(num))
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create %s: %v", dir, err)
	}
	for _, name := range []string{"direction", "value"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatalf("Failed to create %s: %v", name, err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "export"), nil, 0644); err != nil {
		t.Fatalf("Failed to create export: %v", err)
	}
	return root
}

func readTrimmed(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return strings.TrimSpace(string(data))
}

func TestSysfsPin(t *testing.T) {
	root := fakeGPIO(t, 17)
	pin, err := NewSysfsPin(root, 17)
	if err != nil {
		t.Fatalf("NewSysfsPin failed: %v", err)
	}
	defer pin.Close()

	if err := pin.Write(High); err == nil {
		t.Error("Write before SetMode(PinOutput) should fail")
	}

	if err := pin.SetMode(PinOutput); err != nil {
		t.Fatalf("SetMode(PinOutput) failed: %v", err)
	}
	if got := readTrimmed(t, filepath.Join(root, "gpio17", "direction")); got != "out" {
		t.Errorf("direction = %q, want out", got)
	}

	tests := []struct {
		level Level
		want  string
	}{
		{High, "1"},
		{Low, "0"},
		{High, "1"},
	}
	for _, tt := range tests {
		if err := pin.Write(tt.level); err != nil {
			t.Fatalf("Write(%s) failed: %v", tt.level, err)
		}
		if got := readTrimmed(t, filepath.Join(root, "gpio17", "value")); got != tt.want {
			t.Errorf("value after Write(%s) = %q, want %q", tt.level, got, tt.want)
		}
	}

	if err := pin.SetMode(PinInput); err != nil {
		t.Fatalf("SetMode(PinInput) failed: %v", err)
	}
	if got := readTrimmed(t, filepath.Join(root, "gpio17", "direction")); got != "in" {
		t.Errorf("direction = %q, want in", got)
	}
	if pin.String() != "gpio17" {
		t.Errorf("String() = %q, want gpio17", pin.String())
	}
}

func TestSysfsPinExport(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "export"), nil, 0644); err != nil {
		t.Fatalf("Failed to create export: %v", err)
	}

	pin, err := NewSysfsPin(root, 42)
	if err != nil {
		t.Fatalf("NewSysfsPin failed: %v", err)
	}
	// no kernel to create gpio42, so setting the direction fails after export
	if err := pin.SetMode(PinOutput); err == nil {
		t.Error("SetMode should fail without a gpio42 directory")
	}
	if got := readTrimmed(t, filepath.Join(root, "export")); got != "42" {
		t.Errorf("export = %q, want 42", got)
	}
}

func TestNewSysfsPinInvalid(t *testing.T) {
	if _, err := NewSysfsPin("", -1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("NewSysfsPin(-1) error = %v, want ErrInvalidArgument", err)
	}
	pin, err := NewSysfsPin("", 4)
	if err != nil {
		t.Fatalf("NewSysfsPin failed: %v", err)
	}
	if pin.root != DefaultGPIORoot {
		t.Errorf("root = %q, want %q", pin.root, DefaultGPIORoot)
	}
}

type rtsDevice struct {
	*simDevice
	rts   []bool
	fails error
}

func (d *rtsDevice) SetRTS(on bool) error {
	if d.fails != nil {
		return d.fails
	}
	d.rts = append(d.rts, on)
	return nil
}

func TestRTSPin(t *testing.T) {
	dev := &rtsDevice{simDevice: newSimDevice("ttyUSB0")}
	pin, err := RTSPin(dev)
	if err != nil {
		t.Fatalf("RTSPin failed: %v", err)
	}

	if err := pin.SetMode(PinOutput); err != nil {
		t.Errorf("SetMode failed: %v", err)
	}
	pin.Write(High)
	pin.Write(Low)
	if len(dev.rts) != 2 || !dev.rts[0] || dev.rts[1] {
		t.Errorf("RTS writes = %v, want [true false]", dev.rts)
	}

	if _, err := RTSPin(newSimDevice("plain")); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("RTSPin on a device without RTS error = %v, want ErrInvalidArgument", err)
	}
}

// The RTS line follows the send sequence of an instance
func TestRTSPinDrivesTransmit(t *testing.T) {
	dev := &rtsDevice{simDevice: newSimDevice("ttyUSB1")}
	pin, err := RTSPin(dev)
	if err != nil {
		t.Fatalf("RTSPin failed: %v", err)
	}

	reg := NewRegistry()
	reg.Register(dev)
	in, err := Create("ttyUSB1", 9600, ParityNone, pin, High, WithResolver(reg))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer in.Destroy()

	if err := in.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if _, err := in.Send([]byte{0x55}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	want := []bool{false, true, false}
	if len(dev.rts) != len(want) {
		t.Fatalf("RTS writes = %v, want %v", dev.rts, want)
	}
	for i := range want {
		if dev.rts[i] != want[i] {
			t.Errorf("RTS writes = %v, want %v", dev.rts, want)
			break
		}
	}
}
