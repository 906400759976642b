/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"os"
	"time"

	"github.com/allbin/go-rs485/internal/i18n"
	"github.com/allbin/go-rs485/internal/tui/styles"
	"github.com/spf13/cobra"
)

// xferCmd represents the xfer command
var xferCmd = &cobra.Command{
	Use:   "xfer <port> <data>",
	Short: "Send a request frame and print the response",
	Long: `Send a request frame and wait for the response without releasing the line
in between, so no other transmission can slip in.

The response wait is bounded by --timeout. Exits with status 2 when no
response arrives.

Example usage:
  rs485ctl xfer /dev/ttyUSB0 "01 03 00 00 00 0A C5 CD"
  rs485ctl xfer ttyAMA0 "ID?" --ascii --pin gpio17 --timeout 200ms`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		asciiMode, _ := cmd.Flags().GetBool("ascii")
		addNewline, _ := cmd.Flags().GetBool("newline")

		text, err := frameText(args[1:])
		if err != nil {
			fail(err)
		}
		req, err := frameBytes(text, asciiMode, addNewline)
		if err != nil {
			fail(err)
		}

		l, err := openConfiguredLine(args[0])
		if err != nil {
			fail(err)
		}
		defer l.Close()

		resp := make([]byte, maxFrame)
		start := time.Now()
		n, err := l.SendThenReceive(req, resp)
		if err != nil {
			l.Close()
			fail(err)
		}

		printFrame(os.Stdout, styles.TXStyle, "TX", req, asciiMode)
		if n == 0 {
			say(i18n.MsgNoFrame, l.RecvTimeout())
			l.Close()
			os.Exit(2)
		}
		printFrame(os.Stdout, styles.RXStyle, "RX", resp[:n], asciiMode)
		logger.Debug().Dur("latency", time.Since(start)).Int("bytes", n).Msg("response received")
	},
}

func init() {
	rootCmd.AddCommand(xferCmd)

	xferCmd.Flags().BoolP("ascii", "a", false, "Send the data as text instead of hex")
	xferCmd.Flags().Bool("newline", false, "Append a newline to ASCII data")
}
