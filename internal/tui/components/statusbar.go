package components

import (
	"fmt"
	"time"

	"github.com/allbin/go-rs485"
	"github.com/allbin/go-rs485/internal/tui/colors"
	"github.com/allbin/go-rs485/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
)

// LineInfo describes the line shown in the status bar
type LineInfo struct {
	Config      rs485.LineConfig
	RecvTimeout time.Duration
	ByteGap     time.Duration
	Pin         string // empty when the transceiver switches itself
}

// Counters are the frame totals shown in the status bar
type Counters struct {
	RX       int
	TX       int
	Timeouts int
}

type StatusBar struct {
	title    string
	portPath string
	status   styles.StatusType
	err      error
	width    int
	line     *LineInfo
}

func NewStatusBar(title, portPath string) *StatusBar {
	return &StatusBar{
		title:    title,
		portPath: portPath,
		status:   styles.StatusConnecting,
	}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

func (sb *StatusBar) SetLineInfo(info *LineInfo) {
	sb.line = info
}

func (sb *StatusBar) SetConnecting() {
	sb.status = styles.StatusConnecting
	sb.err = nil
}

func (sb *StatusBar) SetConnected() {
	sb.status = styles.StatusConnected
	sb.err = nil
}

func (sb *StatusBar) SetDisconnected(err error) {
	sb.err = err
	if err != nil {
		sb.status = styles.StatusError
	} else {
		sb.status = styles.StatusDisconnected
	}
}

// Err returns the error the line was disconnected with
func (sb *StatusBar) Err() error {
	return sb.err
}

func (sb *StatusBar) lineSummary() string {
	if sb.line == nil {
		return "⚡ rs485"
	}
	summary := fmt.Sprintf("⚡ %d %d%s%s gap %v",
		sb.line.Config.BaudRate,
		sb.line.Config.DataBits,
		sb.line.Config.Parity,
		sb.line.Config.StopBits,
		sb.line.ByteGap)
	if sb.line.Pin != "" {
		summary += " pin " + sb.line.Pin
	}
	return summary
}

func (sb *StatusBar) connectionIndicator() string {
	symbol := "○"
	switch {
	case sb.err != nil:
		symbol = "✗"
	case sb.status == styles.StatusConnected:
		symbol = "●"
	}
	return styles.GetStatusStyle(sb.status).Render(symbol)
}

// ComprehensiveStatusBar renders mode, port, line settings, frame counters and time
func (sb *StatusBar) ComprehensiveStatusBar(inputMode, sendingMode string, paused bool, counters Counters, timestamp string) string {
	terminalWidth := sb.width
	if terminalWidth <= 0 {
		terminalWidth = 80
	}

	modeBackground := colors.Blue
	if inputMode == "INSERT" {
		modeBackground = colors.Green
	}
	mode := lipgloss.NewStyle().
		Foreground(colors.Base).
		Background(modeBackground).
		Bold(true).
		Padding(0, 1).
		Render(inputMode)

	port := lipgloss.NewStyle().
		Foreground(colors.Mauve).
		Bold(true).
		Padding(0, 1).
		Render(sb.portPath)

	divider := lipgloss.NewStyle().
		Foreground(colors.Surface2).
		Padding(0, 1).
		Render("│")

	left := []string{mode, port, sb.connectionIndicator()}
	if paused {
		left = append(left, lipgloss.NewStyle().
			Foreground(colors.Idle).
			Bold(true).
			Padding(0, 1).
			Render("PAUSED"))
	}
	if inputMode == "INSERT" {
		left = append(left, lipgloss.NewStyle().
			Foreground(colors.Peach).
			Bold(true).
			Padding(0, 1).
			Render(fmt.Sprintf("[%s] Tab to toggle", sendingMode)))
	}
	left = append(left, divider)
	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, left...)

	details := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Padding(0, 1).
		Render(sb.lineSummary())

	count := lipgloss.NewStyle().
		Foreground(colors.Subtext1).
		Padding(0, 1).
		Render(fmt.Sprintf("rx %d tx %d to %d", counters.RX, counters.TX, counters.Timeouts))

	clock := lipgloss.NewStyle().
		Foreground(colors.Subtext1).
		Padding(0, 1).
		Render(timestamp)

	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, details, divider, count, divider, clock)

	spacerWidth := terminalWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide)
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	return lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface0).
		Width(terminalWidth).
		Render(lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide))
}

// ViewAsHeader renders the title, port and line settings on one line
func (sb *StatusBar) ViewAsHeader() string {
	title := styles.TitleStyle.Render(sb.title)
	port := lipgloss.NewStyle().Foreground(colors.Mauve).Padding(0, 1).Render(sb.portPath)
	info := lipgloss.NewStyle().Foreground(colors.Overlay0).Faint(true).Render(sb.lineSummary())
	return lipgloss.JoinHorizontal(lipgloss.Left, title, port, info)
}
