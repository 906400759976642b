/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/allbin/go-rs485"
	"github.com/allbin/go-rs485/internal/i18n"
	"github.com/allbin/go-rs485/internal/tui/components"
	"github.com/allbin/go-rs485/internal/tui/styles"
	"github.com/spf13/cobra"
)

// captureCmd represents the capture command
var captureCmd = &cobra.Command{
	Use:   "capture <port> <output-file>",
	Short: "Capture RS485 frames to a file",
	Long: `Capture incoming frames to a file for later analysis.

Each frame is written as one line: an RFC 3339 timestamp with milliseconds,
the gap since the previous frame, the byte count and the hex dump. Runs until
interrupted (Ctrl+C).

The output file is opened in append mode, allowing you to resume captures
without overwriting existing data.

Example usage:
  rs485ctl capture /dev/ttyUSB0 bus.log
  rs485ctl capture /dev/ttyUSB0 bus.log --baud 19200 --parity even
  rs485ctl capture ttyAMA0 bus.log --pin gpio17 --console`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		portPath := args[0]
		outputPath := args[1]
		showConsole, _ := cmd.Flags().GetBool("console")

		if err := runCapture(portPath, outputPath, showConsole); err != nil {
			fail(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().BoolP("console", "c", false, "Display frames on console while capturing")
}

func runCapture(portPath, outputPath string, showConsole bool) error {
	l, err := openConfiguredLine(portPath)
	if err != nil {
		return fmt.Errorf("failed to open port: %w", err)
	}
	defer l.Close()

	file, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer file.Close()

	ctx, cancel := interruptContext(nil)
	defer cancel()

	fmt.Fprintln(os.Stderr, printer.Sprintf(i18n.MsgCapturing, portPath, outputPath))
	fmt.Fprintln(os.Stderr, printer.Sprintf(i18n.MsgPressCtrlC))
	fmt.Fprintln(os.Stderr)

	var console io.Writer
	if showConsole {
		console = os.Stdout
	}

	startTime := time.Now()
	stats, err := captureFrames(ctx, l.Instance, file, console)
	fmt.Fprintln(os.Stderr, printer.Sprintf(i18n.MsgCaptureDone, stats.Frames, stats.Bytes, time.Since(startTime).Round(time.Millisecond)))
	return err
}

type captureStats struct {
	Frames int
	Bytes  int64
}

// captureLine formats a frame record of the capture file
func captureLine(ts time.Time, gap time.Duration, data []byte) string {
	return fmt.Sprintf("%s +%-8v %4d %s\n",
		ts.Format("2006-01-02T15:04:05.000Z07:00"), gap.Round(time.Millisecond), len(data), components.HexString(data))
}

// captureFrames writes frames to w until ctx is done. console, when not nil,
// gets a styled copy of every frame.
func captureFrames(ctx context.Context, in *rs485.Instance, w io.Writer, console io.Writer) (captureStats, error) {
	var stats captureStats
	var last time.Time
	buf := make([]byte, maxFrame)

	for {
		n, err := in.ReceiveContext(ctx, buf)
		if err != nil {
			if ctx.Err() != nil {
				return stats, nil
			}
			return stats, fmt.Errorf("read error: %w", err)
		}
		if n == 0 {
			if ctx.Err() != nil {
				return stats, nil
			}
			continue
		}

		now := time.Now()
		var gap time.Duration
		if !last.IsZero() {
			gap = now.Sub(last)
		}
		last = now

		if _, err := io.WriteString(w, captureLine(now, gap, buf[:n])); err != nil {
			return stats, fmt.Errorf("write error: %w", err)
		}
		stats.Frames++
		stats.Bytes += int64(n)

		if console != nil {
			fmt.Fprintln(console, styles.RXStyle.Render(frameLine("RX", now, buf[:n], true)))
		}
	}
}
