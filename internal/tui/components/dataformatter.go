package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/allbin/go-rs485/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
)

// Direction tells which side of the line a frame came from
type Direction int

const (
	DirRX       Direction = iota // unsolicited frame
	DirTX                        // frame we transmitted
	DirResponse                  // frame answering a request
)

// TxStatus tracks a transmitted frame
type TxStatus int

const (
	TxPending TxStatus = iota
	TxWritten
	TxFailed
)

// FrameMsg carries one frame to the TUI
type FrameMsg struct {
	ID        int
	Timestamp time.Time
	Data      []byte
	Dir       Direction
	Status    TxStatus      // DirTX only
	Latency   time.Duration // DirResponse only: time from request start
	Err       error
}

// FrameStatusMsg updates the status of the transmitted frame with ID
type FrameStatusMsg struct {
	ID     int
	Status TxStatus
	Err    error
}

type DisplayMode struct {
	ShowHex   bool
	ShowASCII bool
	ShowGap   bool
}

type DataFormatter struct {
	mode DisplayMode
}

func NewDataFormatter(showHex, showASCII bool) *DataFormatter {
	return &DataFormatter{
		mode: DisplayMode{
			ShowHex:   showHex,
			ShowASCII: showASCII,
		},
	}
}

func (df *DataFormatter) SetDisplayMode(mode DisplayMode) {
	df.mode = mode
}

func (df *DataFormatter) GetDisplayMode() DisplayMode {
	return df.mode
}

// HexString renders bytes as space separated upper case hex pairs
func HexString(data []byte) string {
	return fmt.Sprintf("% X", data)
}

// ASCIIString renders printable ASCII and replaces everything else with dots
func ASCIIString(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		if c >= 32 && c <= 126 {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

func indicator(msg FrameMsg) string {
	var style lipgloss.Style
	var text string

	switch msg.Dir {
	case DirTX:
		switch msg.Status {
		case TxPending:
			style, text = styles.IdleStyle, "↗ TX ○"
		case TxWritten:
			style, text = styles.TXStyle, "↗ TX ✓"
		default:
			style, text = styles.FailureStyle, "↗ TX ✗"
		}
	case DirResponse:
		if len(msg.Data) == 0 {
			style, text = styles.IdleStyle, "↩ --"
		} else {
			style, text = styles.ResponseStyle, "↩ RS"
		}
	default:
		style, text = styles.RXStyle, "↙ RX"
	}
	if msg.Err != nil {
		style = styles.FailureStyle
	}

	return style.Render(text)
}

// FormatMessage formats a frame. prev is the timestamp of the frame before
// it and is only used when gaps are shown.
func (df *DataFormatter) FormatMessage(msg FrameMsg, prev time.Time) string {
	timestamp := styles.TimestampStyle.Render(fmt.Sprintf("[%s]", msg.Timestamp.Format("15:04:05.000")))

	var parts []string
	if df.mode.ShowGap && !prev.IsZero() {
		parts = append(parts, fmt.Sprintf("+%v", msg.Timestamp.Sub(prev).Round(time.Millisecond)))
	}

	switch {
	case msg.Err != nil:
		parts = append(parts, styles.ErrorStyle.Render(msg.Err.Error()))
	case msg.Dir == DirResponse && len(msg.Data) == 0:
		parts = append(parts, fmt.Sprintf("no response after %v", msg.Latency.Round(time.Millisecond)))
	default:
		if df.mode.ShowHex {
			parts = append(parts, fmt.Sprintf("HEX: %s", HexString(msg.Data)))
		}
		if df.mode.ShowASCII {
			parts = append(parts, fmt.Sprintf("ASCII: %s", ASCIIString(msg.Data)))
		}
		if !df.mode.ShowHex && !df.mode.ShowASCII {
			parts = append(parts, fmt.Sprintf("BYTES: %d", len(msg.Data)))
		}
		if msg.Dir == DirResponse {
			parts = append(parts, fmt.Sprintf("(%v)", msg.Latency.Round(time.Millisecond)))
		}
	}

	return fmt.Sprintf("%s %s: %s", timestamp, indicator(msg), strings.Join(parts, "  "))
}

func (df *DataFormatter) FormatMessages(messages []FrameMsg) []string {
	formatted := make([]string, len(messages))
	var prev time.Time
	for i, msg := range messages {
		formatted[i] = df.FormatMessage(msg, prev)
		prev = msg.Timestamp
	}
	return formatted
}

func (df *DataFormatter) ToggleHex() {
	df.mode.ShowHex = !df.mode.ShowHex
}

func (df *DataFormatter) ToggleASCII() {
	df.mode.ShowASCII = !df.mode.ShowASCII
}

func (df *DataFormatter) ToggleGap() {
	df.mode.ShowGap = !df.mode.ShowGap
}
