/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/allbin/go-rs485"
	"github.com/allbin/go-rs485/internal/i18n"
	"github.com/allbin/go-rs485/internal/tui/styles"
	"github.com/spf13/cobra"
)

// slaveCmd represents the slave command
var slaveCmd = &cobra.Command{
	Use:   "slave <port>",
	Short: "Echo every received frame back to the sender",
	Long: `Run as a line slave: wait for frames and transmit each one back after
--delay. Useful to check wiring and direction pin timing against a master.

Ctrl+C cancels the pending receive and stops.

Example usage:
  rs485ctl slave /dev/ttyUSB0 --timeout -1s
  rs485ctl slave ttyAMA0 --pin gpio17 --delay 5ms`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		delay, _ := cmd.Flags().GetDuration("delay")
		quiet, _ := cmd.Flags().GetBool("quiet")

		l, err := openConfiguredLine(args[0])
		if err != nil {
			fail(err)
		}
		defer l.Close()

		ctx, cancel := interruptContext(nil)
		defer cancel()

		say(i18n.MsgEchoing, args[0])
		say(i18n.MsgPressCtrlC)

		if err := runSlave(ctx, l.Instance, delay, quiet); err != nil {
			l.Close()
			fail(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(slaveCmd)

	slaveCmd.Flags().Duration("delay", 0, "Pause between receiving a frame and echoing it")
	slaveCmd.Flags().BoolP("quiet", "q", false, "Do not print frames")
}

// runSlave echoes frames until ctx is done
func runSlave(ctx context.Context, in *rs485.Instance, delay time.Duration, quiet bool) error {
	buf := make([]byte, maxFrame)
	for ctx.Err() == nil {
		n, err := in.ReceiveContext(ctx, buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, rs485.ErrDestroyed) {
				return nil
			}
			return err
		}
		if n == 0 {
			continue
		}
		if !quiet {
			printFrame(os.Stdout, styles.RXStyle, "RX", buf[:n], false)
		}

		if delay > 0 {
			time.Sleep(delay)
		}
		if _, err := in.Send(buf[:n]); err != nil {
			return err
		}
		if !quiet {
			printFrame(os.Stdout, styles.TXStyle, "TX", buf[:n], false)
		}
	}
	return nil
}
