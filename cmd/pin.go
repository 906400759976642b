/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"time"

	"github.com/allbin/go-rs485"
	"github.com/allbin/go-rs485/internal/i18n"
	"github.com/spf13/cobra"
)

// pinCmd represents the pin command
var pinCmd = &cobra.Command{
	Use:   "pin <port> <state>",
	Short: "Drive the direction pin to check transceiver wiring",
	Long: `Set the direction pin configured with --pin to a fixed level and hold it.

With the pin at the send level the transceiver drives the bus, which can be
verified with a meter or a second adapter. The pin is released to its receive
level when the command exits.

Examples:
  rs485ctl pin /dev/ttyUSB0 high --pin rts
  rs485ctl pin ttyAMA0 send --pin gpio17 --hold 10s
  rs485ctl pin ttyAMA0 receive --pin gpio17

Valid states: high, low, on, off, true, false, 1, 0, send, receive`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		hold, _ := cmd.Flags().GetDuration("hold")

		l, err := openConfiguredLine(args[0])
		if err != nil {
			fail(err)
		}
		defer l.Close()

		if l.pin == nil {
			l.Close()
			fail(fmt.Errorf("no direction pin configured, use --pin"))
		}

		level, err := parsePinState(args[1], l.settings.SendLevel)
		if err != nil {
			l.Close()
			fail(err)
		}
		if err := l.pin.Write(level); err != nil {
			l.Close()
			fail(fmt.Errorf("setting pin: %w", err))
		}
		say(i18n.MsgPinSet, l.settings.Pin, level)

		if hold != 0 {
			ctx, cancel := interruptContext(nil)
			defer cancel()
			wait := time.After(hold)
			if hold < 0 {
				wait = nil
			}
			select {
			case <-ctx.Done():
			case <-wait:
			}
		}
	},
}

// parsePinState accepts a level or the words send and receive
func parsePinState(state string, sendLevel rs485.Level) (rs485.Level, error) {
	switch state {
	case "send", "tx":
		return sendLevel, nil
	case "receive", "recv", "rx":
		return !sendLevel, nil
	}
	return parseLevel(state)
}

func init() {
	rootCmd.AddCommand(pinCmd)

	pinCmd.Flags().Duration("hold", 5*time.Second, "How long to hold the level (negative holds until interrupted)")
}
