/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"os"

	"github.com/allbin/go-rs485/internal/i18n"
	"github.com/allbin/go-rs485/internal/tui/styles"
	"github.com/spf13/cobra"
)

// recvCmd represents the recv command
var recvCmd = &cobra.Command{
	Use:   "recv <port>",
	Short: "Receive frames from an RS485 line",
	Long: `Receive one or more frames and print them as hex.

The command waits up to --timeout for the first byte of each frame; the frame
ends after --byte-gap of silence. A negative timeout waits forever, Ctrl+C
cancels the wait.

Example usage:
  rs485ctl recv /dev/ttyUSB0
  rs485ctl recv /dev/ttyUSB0 --count 10 --timeout 5s --ascii
  rs485ctl recv ttyAMA0 --timeout -1s --pin gpio17`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		count, _ := cmd.Flags().GetInt("count")
		showASCII, _ := cmd.Flags().GetBool("ascii")

		l, err := openConfiguredLine(args[0])
		if err != nil {
			fail(err)
		}
		defer l.Close()

		ctx, cancel := interruptContext(nil)
		defer cancel()

		buf := make([]byte, maxFrame)
		for i := 0; count <= 0 || i < count; i++ {
			n, err := l.ReceiveContext(ctx, buf)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				fail(err)
			}
			if n == 0 {
				say(i18n.MsgNoFrame, l.RecvTimeout())
				if count > 0 {
					l.Close()
					os.Exit(2)
				}
				continue
			}
			printFrame(os.Stdout, styles.RXStyle, "RX", buf[:n], showASCII)
		}
	},
}

func init() {
	rootCmd.AddCommand(recvCmd)

	recvCmd.Flags().IntP("count", "n", 1, "Number of frames to receive (0 = until interrupted)")
	recvCmd.Flags().BoolP("ascii", "a", false, "Show printable ASCII next to the hex dump")
}
