/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/allbin/go-rs485/internal/tui/components"
	"github.com/charmbracelet/lipgloss"
)

// maxFrame is the receive buffer size of the CLI commands
const maxFrame = 4096

// frameLine formats one frame for console output
func frameLine(dir string, ts time.Time, data []byte, showASCII bool) string {
	line := fmt.Sprintf("[%s] %s %3d: %s",
		ts.Format("15:04:05.000"), dir, len(data), components.HexString(data))
	if showASCII {
		line += "  |" + components.ASCIIString(data) + "|"
	}
	return line
}

func printFrame(w io.Writer, style lipgloss.Style, dir string, data []byte, showASCII bool) {
	fmt.Fprintln(w, style.Render(frameLine(dir, time.Now(), data, showASCII)))
}
