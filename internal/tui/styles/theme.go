package styles

import (
	"github.com/allbin/go-rs485/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
)

// Monitor layout
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve).
			Background(colors.Surface0).
			Padding(0, 1)

	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colors.Surface1)

	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(0, 1)

	HelpStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(1, 2).
			Margin(1, 0)

	TimestampStyle = lipgloss.NewStyle().Foreground(colors.Subtext0)
)

// Frame direction markers, shared by the monitor and the plain CLI output
var (
	RXStyle       = lipgloss.NewStyle().Foreground(colors.RX).Bold(true)
	TXStyle       = lipgloss.NewStyle().Foreground(colors.TX).Bold(true)
	ResponseStyle = lipgloss.NewStyle().Foreground(colors.Response).Bold(true)
	IdleStyle     = lipgloss.NewStyle().Foreground(colors.Idle).Bold(true)
	FailureStyle  = lipgloss.NewStyle().Foreground(colors.Failure).Bold(true)
)

// CLI messages
var (
	ErrorStyle   = FailureStyle
	InfoStyle    = lipgloss.NewStyle().Bold(true).Foreground(colors.Mauve)
	SuccessStyle = ResponseStyle
)

// StatusType is the connection state shown in the status bar
type StatusType int

const (
	StatusConnected StatusType = iota
	StatusDisconnected
	StatusConnecting
	StatusError
)

func GetStatusStyle(status StatusType) lipgloss.Style {
	switch status {
	case StatusConnected:
		return ResponseStyle
	case StatusConnecting:
		return IdleStyle
	default:
		return FailureStyle
	}
}
