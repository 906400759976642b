// Package rs485 drives half-duplex RS485 lines on top of a serial device.
//
// An Instance binds one serial device and an optional direction pin. It
// delivers raw byte frames whose boundaries are inferred from line silence:
// a frame ends when no byte has arrived for the byte gap timeout. There is
// no addressing, CRC or message parsing at this layer.
//
// # Basic Usage
//
// Create an instance, connect it and exchange frames:
//
//	in, err := rs485.Create("/dev/ttyUSB0", 9600, rs485.ParityNone, nil, rs485.High)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer in.Destroy()
//
//	if err := in.Connect(); err != nil {
//	    log.Fatal(err)
//	}
//	in.SetRecvTimeout(500 * time.Millisecond)
//
//	n, err := in.Send([]byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0a, 0xc5, 0xcd})
//	frame := make([]byte, 256)
//	n, err = in.Receive(frame)
//	// n == 0 means nothing arrived within the receive timeout
//
// # Timeouts
//
// The receive timeout bounds the wait for the first byte of a frame: 0
// returns at once, a negative value waits forever. The byte gap timeout
// defaults to 40000/baud milliseconds (4ms at 9600 baud) and is always kept
// within 1ms to 15ms.
//
// # Request and Response
//
// SendThenReceive holds the line across the request and the response, so no
// other goroutine can transmit in between:
//
//	resp := make([]byte, 256)
//	n, err := in.SendThenReceive(request, resp)
//
// # Direction Control
//
// Transceivers with a DE/RE input need a Pin. The pin is held at the send
// level while transmitting and at the inverse level otherwise:
//
//	pin, err := rs485.NewSysfsPin("", 17)
//	in, err := rs485.Create("ttyAMA0", 19200, rs485.ParityEven, pin, rs485.High)
//
// USB adapters that switch direction from RTS can use RTSPin on the
// resolved device. A nil pin means the hardware switches direction itself.
//
// # Cancelling a Receive
//
// BreakReceive wakes a Receive blocked waiting for the first byte; the
// Receive returns 0. It is safe to call from any goroutine:
//
//	go func() {
//	    <-stop
//	    in.BreakReceive()
//	}()
//	n, err := in.Receive(frame)
//
// ReceiveContext offers the same through a context.
//
// # Devices
//
// Names are resolved by a Resolver. On Linux the default resolves tty nodes
// and drives them through termios; elsewhere go.bug.st/serial is used.
// Registry resolves in-memory devices, which is how simulated lines and
// other Device implementations are plugged in:
//
//	reg := rs485.NewRegistry()
//	reg.Register(myDevice)
//	in, err := rs485.Create(myDevice.Name(), 9600, rs485.ParityNone, nil, rs485.High,
//	    rs485.WithResolver(reg))
//
// # Port Discovery
//
// List available serial ports and get USB device metadata:
//
//	ports, err := rs485.ListPorts()
//	for _, portPath := range ports {
//	    info, _ := rs485.GetPortInfo(portPath)
//	    fmt.Printf("%s: %s (VID=%s PID=%s Serial=%s)\n",
//	        info.Path, info.Description, info.VendorID, info.ProductID, info.SerialNumber)
//	}
//
// # Errors
//
// Failures are reported with the sentinel errors in this package and can be
// tested with errors.Is. Timeouts are not errors: a Receive that sees no
// data returns 0 and a nil error. ErrDestroyed means the instance was torn
// down while the call waited for the line; the handle must be dropped.
package rs485
