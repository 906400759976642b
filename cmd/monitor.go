/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/allbin/go-rs485"
	"github.com/allbin/go-rs485/internal/tui/components"
	"github.com/allbin/go-rs485/internal/tui/keys"
	"github.com/allbin/go-rs485/internal/tui/models"
	"github.com/allbin/go-rs485/internal/tui/styles"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor <port>",
	Short: "Watch and inject RS485 frames in a terminal UI",
	Long: `Watch frames on an RS485 line in real time and transmit your own.

Incoming frames are listed with timestamps as hex and ASCII. Press 'i' to
compose a frame; Enter transmits it. Tab switches between SEND (transmit only)
and REQUEST (transmit and show the response with its latency).

The receive loop polls with --poll so that transmissions from the UI get the
line promptly; a frame in progress is never cut short by the poll.

Example usage:
  rs485ctl monitor /dev/ttyUSB0
  rs485ctl monitor /dev/ttyUSB0 --baud 19200 --parity even
  rs485ctl monitor ttyAMA0 --pin gpio17 --timeout 300ms`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		poll, _ := cmd.Flags().GetDuration("poll")
		showGaps, _ := cmd.Flags().GetBool("gaps")
		if poll <= 0 {
			fail(fmt.Errorf("invalid poll interval: %v (must be positive)", poll))
		}

		ls, err := loadLineSettings()
		if err != nil {
			fail(err)
		}
		if err := runMonitorTUI(args[0], ls, poll, showGaps); err != nil {
			fail(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().Duration("poll", 200*time.Millisecond, "First-byte wait of the background receive loop")
	monitorCmd.Flags().Bool("gaps", false, "Show the silence before each frame")
}

// monitorModel represents the Bubble Tea model for the monitor command
type monitorModel struct {
	*models.LineModel
	terminal  *components.Terminal
	statusBar *components.StatusBar
	input     *components.Input
	help      help.Model
	keys      keys.MonitorKeys
	settings  lineSettings
	poll      time.Duration
	program   *tea.Program

	// set by connect before done is closed
	pin  rs485.Pin
	done chan struct{}

	// held for reading by each receive of the loop and for writing by a
	// transmission, which may change the receive timeout
	gate sync.RWMutex
}

func newMonitorModel(portPath string, ls lineSettings, poll time.Duration, showGaps bool) *monitorModel {
	m := &monitorModel{
		LineModel: models.NewLineModel(portPath),
		terminal:  components.NewTerminal(0, 0),
		statusBar: components.NewStatusBar("RS485 Monitor", portPath),
		input:     components.NewInput("Enter hex (e.g. 01 03 00 00 00 0A C5 CD)..."),
		help:      help.New(),
		keys:      keys.NewMonitorKeys(),
		settings:  ls,
		poll:      poll,
		done:      make(chan struct{}),
	}
	if showGaps {
		m.terminal.ToggleGap()
	}
	m.statusBar.SetConnecting()
	return m
}

func runMonitorTUI(portPath string, ls lineSettings, poll time.Duration, showGaps bool) error {
	m := newMonitorModel(portPath, ls, poll, showGaps)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	m.program = p

	go m.connect()

	_, err := p.Run()

	m.Cancel()
	<-m.done
	m.Cleanup()
	if c, ok := m.pin.(interface{ Close() error }); ok {
		c.Close()
	}
	return err
}

// connect opens the line and runs the receive loop until the model is cancelled
func (m *monitorModel) connect() {
	defer close(m.done)

	l, err := openLine(m.GetPortPath(), m.settings)
	if err != nil {
		m.program.Send(models.ConnectionStatusMsg{Connected: false, Error: err})
		return
	}
	m.pin = l.pin
	m.SetInstance(l.Instance)

	// the poll only bounds how long the UI waits for the line when it wants to transmit
	l.SetRecvTimeout(m.poll)

	m.program.Send(lineInfoMsg{info: components.LineInfo{
		Config:      rs485.LineConfig{BaudRate: m.settings.Baud, DataBits: 8, Parity: m.settings.Parity},
		RecvTimeout: m.settings.RecvTimeout,
		ByteGap:     l.ByteGapTimeout(),
		Pin:         m.settings.Pin.String(),
	}})
	m.program.Send(models.ConnectionStatusMsg{Connected: true})

	m.receiveLoop(m.GetContext(), l.Instance, m.program.Send)
}

// receiveLoop hands every frame to emit until ctx is done or the instance
// goes away. Each receive runs under the read side of the gate.
func (m *monitorModel) receiveLoop(ctx context.Context, in *rs485.Instance, emit func(tea.Msg)) {
	buf := make([]byte, maxFrame)
	for ctx.Err() == nil {
		m.gate.RLock()
		n, err := in.ReceiveContext(ctx, buf)
		m.gate.RUnlock()

		if err != nil {
			if ctx.Err() != nil || errors.Is(err, rs485.ErrDestroyed) || errors.Is(err, rs485.ErrNotConnected) {
				return
			}
			emit(components.FrameMsg{Timestamp: time.Now(), Err: err})
			time.Sleep(m.poll)
			continue
		}
		if n == 0 || m.IsPaused() {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		emit(components.FrameMsg{Timestamp: time.Now(), Data: data, Dir: components.DirRX})
	}
}

type lineInfoMsg struct {
	info components.LineInfo
}

// txResultMsg reports a finished transmission; Response is set in REQUEST mode
type txResultMsg struct {
	Status   components.FrameStatusMsg
	Response *components.FrameMsg
}

// transmit sends a composed frame. In REQUEST mode the result carries the
// response frame, empty when none arrived within reqTimeout.
func (m *monitorModel) transmit(id int, data []byte, mode components.SendingMode, reqTimeout time.Duration) tea.Cmd {
	in := m.GetInstance()
	return func() tea.Msg {
		if in == nil {
			return txResultMsg{Status: components.FrameStatusMsg{ID: id, Status: components.TxFailed, Err: rs485.ErrNotConnected}}
		}

		// wake the receive loop and keep it out until the line is ours
		in.BreakReceive()
		m.gate.Lock()
		defer m.gate.Unlock()

		if mode == components.SendingModeSend {
			if _, err := in.Send(data); err != nil {
				return txResultMsg{Status: components.FrameStatusMsg{ID: id, Status: components.TxFailed, Err: err}}
			}
			return txResultMsg{Status: components.FrameStatusMsg{ID: id, Status: components.TxWritten}}
		}

		resp := make([]byte, maxFrame)
		start := time.Now()
		in.SetRecvTimeout(reqTimeout)
		n, err := in.SendThenReceive(data, resp)
		in.SetRecvTimeout(m.poll)
		if err != nil {
			return txResultMsg{Status: components.FrameStatusMsg{ID: id, Status: components.TxFailed, Err: err}}
		}
		return txResultMsg{
			Status: components.FrameStatusMsg{ID: id, Status: components.TxWritten},
			Response: &components.FrameMsg{
				Timestamp: time.Now(),
				Data:      resp[:n],
				Dir:       components.DirResponse,
				Latency:   time.Since(start),
			},
		}
	}
}

func (m *monitorModel) Init() tea.Cmd {
	return nil
}

func (m *monitorModel) addFrame(msg components.FrameMsg) {
	prev := m.LastFrame()
	m.AddFrame(msg)
	if m.IsReady() {
		m.terminal.AddMessage(msg, prev)
	}
}

func (m *monitorModel) refresh() {
	m.terminal.RefreshDisplayWithRawData(m.Frames())
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// input box (3) and status bar (1)
		m.terminal.SetSize(msg.Width, msg.Height-4)
		m.input.SetWidth(msg.Width)
		m.statusBar.SetWidth(msg.Width)
		if !m.IsReady() {
			m.SetReady(true)
			m.refresh()
		}

	case lineInfoMsg:
		info := msg.info
		m.statusBar.SetLineInfo(&info)

	case models.ConnectionStatusMsg:
		m.SetConnected(msg.Connected)
		if msg.Error != nil {
			m.SetError(msg.Error)
			m.statusBar.SetDisconnected(msg.Error)
			m.addFrame(components.FrameMsg{Timestamp: time.Now(), Err: msg.Error})
		} else {
			m.statusBar.SetConnected()
		}

	case components.FrameMsg:
		m.addFrame(msg)

	case txResultMsg:
		if m.UpdateStatus(msg.Status.ID, msg.Status.Status, msg.Status.Err) && m.IsReady() {
			m.refresh()
		}
		if msg.Response != nil {
			m.addFrame(*msg.Response)
		}

	case tea.MouseMsg:
		m.terminal.Update(msg)

	case tea.KeyMsg:
		if m.IsInInsertMode() {
			switch {
			case key.Matches(msg, m.keys.Escape):
				m.SetInputMode(models.InputModeNormal)
				m.input.Blur()
				return m, nil
			case key.Matches(msg, m.keys.Enter):
				return m, m.submit()
			case key.Matches(msg, m.keys.Up):
				m.input.NavigateHistoryUp()
				return m, nil
			case key.Matches(msg, m.keys.Down):
				m.input.NavigateHistoryDown()
				return m, nil
			case key.Matches(msg, m.keys.ToggleSendMode):
				m.input.ToggleSendingMode()
				return m, nil
			case key.Matches(msg, m.keys.ToggleEncoding):
				m.input.ToggleEncoding()
				return m, nil
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			m.Cleanup()
			return m, tea.Quit
		case key.Matches(msg, m.keys.InsertMode):
			m.SetInputMode(models.InputModeInsert)
			m.input.Focus()
		case key.Matches(msg, m.keys.Clear):
			m.ClearData()
			m.terminal.Clear()
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.ToggleHex):
			m.terminal.ToggleHex()
			m.refresh()
		case key.Matches(msg, m.keys.ToggleASCII):
			m.terminal.ToggleASCII()
			m.refresh()
		case key.Matches(msg, m.keys.ToggleGap):
			m.terminal.ToggleGap()
			m.refresh()
		case key.Matches(msg, m.keys.Pause):
			m.TogglePaused()
		case key.Matches(msg, m.keys.ToggleSendMode):
			m.input.ToggleSendingMode()
		case key.Matches(msg, m.keys.GotoTop):
			m.terminal.GotoTop()
		case key.Matches(msg, m.keys.GotoBottom):
			m.terminal.GotoBottom()
		}
	}

	if _, ok := msg.(tea.WindowSizeMsg); ok {
		_, cmd := m.terminal.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// submit turns the input into a TX frame and starts transmitting it
func (m *monitorModel) submit() tea.Cmd {
	data, err := m.input.Frame()
	if err != nil {
		m.addFrame(components.FrameMsg{
			Timestamp: time.Now(),
			Dir:       components.DirTX,
			Status:    components.TxFailed,
			Err:       fmt.Errorf("invalid frame: %w", err),
		})
		return nil
	}

	id := m.NextID()
	m.addFrame(components.FrameMsg{
		ID:        id,
		Timestamp: time.Now(),
		Data:      data,
		Dir:       components.DirTX,
		Status:    components.TxPending,
	})
	m.input.AddToHistory(m.input.Value())
	m.input.SetValue("")

	return m.transmit(id, data, m.input.GetSendingMode(), m.settings.RecvTimeout)
}

func (m *monitorModel) View() string {
	content := "Initializing..."
	if m.IsReady() {
		content = m.terminal.View()
	}

	inputMode := m.GetInputMode().String()
	input := m.input.ViewWithMode(m.IsInInsertMode())
	statusBar := m.statusBar.ComprehensiveStatusBar(
		inputMode,
		m.input.GetSendingMode().String(),
		m.IsPaused(),
		m.Counters(),
		time.Now().Format("15:04:05"),
	)

	sections := []string{styles.ContentBorderStyle.Render(content), input}
	if m.help.ShowAll {
		sections = append(sections, styles.HelpStyle.Render(m.help.View(m.keys)))
	}
	sections = append(sections, statusBar)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
