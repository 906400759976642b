package models

import (
	"context"
	"sync"

	"github.com/allbin/go-rs485"
	"github.com/allbin/go-rs485/internal/tui/components"
)

// InputMode represents the current input mode (vim-like)
type InputMode int

const (
	InputModeNormal InputMode = iota
	InputModeInsert
)

func (m InputMode) String() string {
	if m == InputModeInsert {
		return "INSERT"
	}
	return "NORMAL"
}

type ConnectionStatusMsg struct {
	Connected bool
	Error     error
}

// LineModel is the state shared by TUI views of one RS485 line
type LineModel struct {
	instance *rs485.Instance
	portPath string

	connected bool
	frames    []components.FrameMsg
	nextID    int
	counters  components.Counters
	err       error
	ready     bool
	inputMode InputMode

	paused bool

	cancel context.CancelFunc
	ctx    context.Context
	mu     sync.RWMutex
}

func NewLineModel(portPath string) *LineModel {
	ctx, cancel := context.WithCancel(context.Background())
	return &LineModel{
		portPath:  portPath,
		frames:    make([]components.FrameMsg, 0),
		inputMode: InputModeNormal,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (m *LineModel) GetInstance() *rs485.Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instance
}

func (m *LineModel) SetInstance(in *rs485.Instance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instance = in
}

func (m *LineModel) GetPortPath() string {
	return m.portPath
}

func (m *LineModel) IsConnected() bool {
	return m.connected
}

func (m *LineModel) SetConnected(connected bool) {
	m.connected = connected
}

func (m *LineModel) GetError() error {
	return m.err
}

func (m *LineModel) SetError(err error) {
	m.err = err
}

func (m *LineModel) IsReady() bool {
	return m.ready
}

func (m *LineModel) SetReady(ready bool) {
	m.ready = ready
}

// NextID returns a fresh frame id
func (m *LineModel) NextID() int {
	m.nextID++
	return m.nextID
}

func (m *LineModel) Frames() []components.FrameMsg {
	return m.frames
}

// LastFrame returns the most recent frame, or the zero frame
func (m *LineModel) LastFrame() components.FrameMsg {
	if len(m.frames) == 0 {
		return components.FrameMsg{}
	}
	return m.frames[len(m.frames)-1]
}

// AddFrame stores a frame and updates the counters
func (m *LineModel) AddFrame(msg components.FrameMsg) {
	m.frames = append(m.frames, msg)
	if len(m.frames) > components.DefaultMaxLines {
		m.frames = m.frames[len(m.frames)-components.DefaultMaxLines:]
	}
	switch {
	case msg.Dir == components.DirTX:
		m.counters.TX++
	case msg.Dir == components.DirResponse && len(msg.Data) == 0:
		m.counters.Timeouts++
	case msg.Err == nil:
		m.counters.RX++
	}
}

// UpdateStatus sets the status of the transmitted frame with id.
// It reports whether the frame was found.
func (m *LineModel) UpdateStatus(id int, status components.TxStatus, err error) bool {
	for i := len(m.frames) - 1; i >= 0; i-- {
		if m.frames[i].ID == id {
			m.frames[i].Status = status
			m.frames[i].Err = err
			return true
		}
	}
	return false
}

func (m *LineModel) Counters() components.Counters {
	return m.counters
}

func (m *LineModel) ClearData() {
	m.frames = make([]components.FrameMsg, 0)
	m.counters = components.Counters{}
}

func (m *LineModel) GetInputMode() InputMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inputMode
}

func (m *LineModel) SetInputMode(mode InputMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputMode = mode
}

func (m *LineModel) IsInInsertMode() bool {
	return m.GetInputMode() == InputModeInsert
}

// IsPaused reports whether received frames are being dropped
func (m *LineModel) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

func (m *LineModel) TogglePaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = !m.paused
	return m.paused
}

func (m *LineModel) GetContext() context.Context {
	return m.ctx
}

func (m *LineModel) Cancel() {
	if m.cancel != nil {
		m.cancel()
	}
}

// Cleanup stops the receive loop and tears the instance down
func (m *LineModel) Cleanup() {
	m.Cancel()

	m.mu.Lock()
	in := m.instance
	m.instance = nil
	m.mu.Unlock()

	if in != nil {
		in.BreakReceive()
		in.Destroy()
	}
}
