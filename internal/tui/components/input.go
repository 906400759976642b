package components

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/allbin/go-rs485/internal/tui/colors"
	"github.com/allbin/go-rs485/internal/tui/styles"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SendingMode selects what Enter does with a composed frame
type SendingMode int

const (
	SendingModeSend    SendingMode = iota // transmit only
	SendingModeRequest                    // transmit and wait for the response
)

func (s SendingMode) String() string {
	if s == SendingModeRequest {
		return "REQUEST"
	}
	return "SEND"
}

// Encoding selects how the input text is turned into frame bytes
type Encoding int

const (
	EncodingHex Encoding = iota
	EncodingASCII
)

func (e Encoding) String() string {
	if e == EncodingASCII {
		return "ASCII"
	}
	return "HEX"
}

const maxHistory = 100

// ParseHex converts hex text to bytes. Pairs may be separated by spaces
// and carry a 0x prefix: "01 03 00 00", "0x01 0x03" and "01030000" are equal.
func ParseHex(hexStr string) ([]byte, error) {
	clean := strings.Join(strings.Fields(hexStr), "")
	clean = strings.ReplaceAll(clean, "0x", "")
	clean = strings.ReplaceAll(clean, "0X", "")
	if len(clean) == 0 {
		return nil, fmt.Errorf("empty input")
	}
	if len(clean)%2 != 0 {
		return nil, fmt.Errorf("hex string must have even number of digits (got %d)", len(clean))
	}

	out := make([]byte, 0, len(clean)/2)
	for i := 0; i < len(clean); i += 2 {
		b, err := strconv.ParseUint(clean[i:i+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex byte '%s'", clean[i:i+2])
		}
		out = append(out, byte(b))
	}
	return out, nil
}

type Input struct {
	textInput     textinput.Model
	sendingMode   SendingMode
	encoding      Encoding
	history       []string
	historyIndex  int
	currentInput  string // Store current input when navigating history
	terminalWidth int
}

func NewInput(placeholder string) *Input {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 1024
	ti.Prompt = ""

	return &Input{
		textInput:    ti,
		sendingMode:  SendingModeSend,
		encoding:     EncodingHex,
		history:      make([]string, 0),
		historyIndex: -1,
	}
}

func (i *Input) SetWidth(width int) {
	i.terminalWidth = width
	// border(2) + padding(2) + prompt(1) + space(1)
	usableWidth := width - 6
	if usableWidth < 20 {
		usableWidth = 20
	}
	i.textInput.Width = usableWidth
}

func (i *Input) Focus() {
	i.textInput.Focus()
}

func (i *Input) Blur() {
	i.textInput.Blur()
}

func (i *Input) Value() string {
	return i.textInput.Value()
}

func (i *Input) SetValue(value string) {
	i.textInput.SetValue(value)
}

// Frame returns the bytes of the composed frame
func (i *Input) Frame() ([]byte, error) {
	value := i.textInput.Value()
	if i.encoding == EncodingHex {
		return ParseHex(value)
	}
	if value == "" {
		return nil, fmt.Errorf("empty input")
	}
	return []byte(value), nil
}

func (i *Input) ToggleSendingMode() {
	if i.sendingMode == SendingModeSend {
		i.sendingMode = SendingModeRequest
	} else {
		i.sendingMode = SendingModeSend
	}
}

func (i *Input) GetSendingMode() SendingMode {
	return i.sendingMode
}

func (i *Input) ToggleEncoding() {
	switch i.encoding {
	case EncodingHex:
		i.encoding = EncodingASCII
		i.textInput.Placeholder = "Type frame text and press Enter..."
	case EncodingASCII:
		i.encoding = EncodingHex
		i.textInput.Placeholder = "Enter hex (e.g. 01 03 00 00 00 0A C5 CD)..."
	}
}

func (i *Input) GetEncoding() Encoding {
	return i.encoding
}

func (i *Input) Update(msg tea.Msg) (*Input, tea.Cmd) {
	var cmd tea.Cmd
	i.textInput, cmd = i.textInput.Update(msg)
	return i, cmd
}

func (i *Input) ViewWithMode(isInsertMode bool) string {
	promptSymbol := "#"
	promptColor := colors.Yellow
	if i.encoding == EncodingASCII {
		promptSymbol = ">"
		promptColor = colors.Green
	}
	styledPrompt := lipgloss.NewStyle().Foreground(promptColor).Bold(true).Render(promptSymbol)

	var content string
	if isInsertMode {
		content = lipgloss.JoinHorizontal(lipgloss.Left, styledPrompt, " ", i.textInput.View())
	} else {
		instruction := lipgloss.NewStyle().
			Foreground(colors.Overlay0).
			Render("Press 'i' to compose a frame")
		content = lipgloss.JoinHorizontal(lipgloss.Left, styledPrompt, " ", instruction)
	}

	// RoundedBorder adds 2 columns and padding another 2
	adjustedWidth := i.terminalWidth - 4
	if adjustedWidth < 10 {
		adjustedWidth = 10
	}

	inputStyle := styles.InputStyle.
		Width(adjustedWidth).
		AlignHorizontal(lipgloss.Left)
	if isInsertMode {
		inputStyle = inputStyle.BorderForeground(colors.Green)
	}

	return inputStyle.Render(content)
}

// AddToHistory adds a frame to the history if it's not empty or a repeat of the last one
func (i *Input) AddToHistory(command string) {
	command = strings.TrimSpace(command)
	if command == "" {
		return
	}
	if len(i.history) > 0 && i.history[len(i.history)-1] == command {
		return
	}

	i.history = append(i.history, command)
	if len(i.history) > maxHistory {
		i.history = i.history[1:]
	}

	i.historyIndex = -1
	i.currentInput = ""
}

func (i *Input) History() []string {
	return i.history
}

// NavigateHistoryUp moves up in frame history
func (i *Input) NavigateHistoryUp() {
	if len(i.history) == 0 {
		return
	}

	if i.historyIndex == -1 {
		i.currentInput = i.textInput.Value()
		i.historyIndex = len(i.history) - 1
	} else if i.historyIndex > 0 {
		i.historyIndex--
	}

	i.textInput.SetValue(i.history[i.historyIndex])
}

// NavigateHistoryDown moves down in frame history
func (i *Input) NavigateHistoryDown() {
	if len(i.history) == 0 || i.historyIndex == -1 {
		return
	}

	if i.historyIndex < len(i.history)-1 {
		i.historyIndex++
		i.textInput.SetValue(i.history[i.historyIndex])
	} else {
		i.historyIndex = -1
		i.textInput.SetValue(i.currentInput)
		i.currentInput = ""
	}
}
