/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/allbin/go-rs485/internal/i18n"
	"github.com/allbin/go-rs485/internal/tui/components"
	"github.com/allbin/go-rs485/internal/tui/styles"
	"github.com/spf13/cobra"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <port> [data]",
	Short: "Transmit one frame on an RS485 line",
	Long: `Transmit one frame. The direction pin is switched to the send level for
the duration of the transmission and back to receive afterwards.

Data can be provided as:
- Command line argument: rs485ctl send /dev/ttyUSB0 "01 06 00 01 00 03 98 0B"
- From stdin (pipe): printf 'PING' | rs485ctl send /dev/ttyUSB0 --ascii
- Interactive mode: rs485ctl send /dev/ttyUSB0 (prompts for input)

Data is hex by default; --ascii sends the text as is.

Example usage:
  rs485ctl send /dev/ttyUSB0 "01 06 00 01 00 03 98 0B"
  rs485ctl send /dev/ttyUSB0 "STATUS?" --ascii --newline
  rs485ctl send ttyAMA0 0x01 0x03 --pin gpio17 --send-level low`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		portPath := args[0]
		asciiMode, _ := cmd.Flags().GetBool("ascii")
		addNewline, _ := cmd.Flags().GetBool("newline")

		text, err := frameText(args[1:])
		if err != nil {
			fail(err)
		}
		data, err := frameBytes(text, asciiMode, addNewline)
		if err != nil {
			fail(err)
		}

		if err := sendFrame(portPath, data); err != nil {
			fail(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().BoolP("ascii", "a", false, "Send the data as text instead of hex")
	sendCmd.Flags().Bool("newline", false, "Append a newline to ASCII data")
}

// frameText returns the frame as typed on the command line, piped on stdin or
// entered at a prompt
func frameText(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	stat, err := os.Stdin.Stat()
	if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
		return promptForData(), nil
	}
	stdinData, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading from stdin: %w", err)
	}
	return strings.TrimRight(string(stdinData), "\r\n"), nil
}

// frameBytes converts frame text to bytes
func frameBytes(text string, asciiMode, addNewline bool) ([]byte, error) {
	if !asciiMode {
		data, err := components.ParseHex(text)
		if err != nil {
			return nil, fmt.Errorf("invalid hex data: %w", err)
		}
		return data, nil
	}
	if addNewline {
		text += "\n"
	}
	if text == "" {
		return nil, fmt.Errorf("nothing to send")
	}
	return []byte(text), nil
}

func promptForData() string {
	fmt.Print(styles.InfoStyle.Render(printer.Sprintf(i18n.MsgEnterData)))

	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}

func sendFrame(portPath string, data []byte) error {
	ls, err := loadLineSettings()
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", styles.InfoStyle.Render("⚡"), printer.Sprintf(i18n.MsgOpening, portPath, ls.describe()))
	l, err := openLine(portPath, ls)
	if err != nil {
		return fmt.Errorf("%s %w", styles.ErrorStyle.Render("✗"), err)
	}
	defer l.Close()

	n, err := l.Send(data)
	if err != nil {
		return fmt.Errorf("%s %w", styles.ErrorStyle.Render("✗"), err)
	}

	fmt.Printf("%s %s\n", styles.SuccessStyle.Render("✓"), printer.Sprintf(i18n.MsgSent, n))
	printFrame(os.Stdout, styles.TXStyle, "TX", data[:n], true)
	return nil
}
