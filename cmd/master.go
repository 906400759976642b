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
	"github.com/allbin/go-rs485/internal/tui/styles"
	"github.com/spf13/cobra"
)

// masterCmd represents the master command
var masterCmd = &cobra.Command{
	Use:   "master <port> <data>",
	Short: "Poll a slave with a request frame at a fixed interval",
	Long: `Run as a line master: transmit the request every --interval and wait up to
--timeout for the response. Prints each response and a summary on exit.

Example usage:
  rs485ctl master /dev/ttyUSB0 "01 03 00 00 00 0A C5 CD" --interval 1s
  rs485ctl master ttyAMA0 "PING" --ascii --count 100 --interval 50ms --pin gpio17`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		interval, _ := cmd.Flags().GetDuration("interval")
		count, _ := cmd.Flags().GetInt("count")
		asciiMode, _ := cmd.Flags().GetBool("ascii")
		quiet, _ := cmd.Flags().GetBool("quiet")

		text, err := frameText(args[1:])
		if err != nil {
			fail(err)
		}
		req, err := frameBytes(text, asciiMode, false)
		if err != nil {
			fail(err)
		}

		l, err := openConfiguredLine(args[0])
		if err != nil {
			fail(err)
		}
		defer l.Close()

		ctx, cancel := interruptContext(func() { l.BreakReceive() })
		defer cancel()

		say(i18n.MsgPolling, args[0], interval)
		out := io.Writer(os.Stdout)
		if quiet {
			out = io.Discard
		}

		stats, err := runMaster(ctx, l.Instance, req, interval, count, out)
		say(i18n.MsgPollSummary, stats.Requests, stats.Responses, stats.Timeouts)
		if err != nil {
			l.Close()
			fail(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(masterCmd)

	masterCmd.Flags().DurationP("interval", "i", time.Second, "Time between requests")
	masterCmd.Flags().IntP("count", "n", 0, "Number of requests (0 = until interrupted)")
	masterCmd.Flags().BoolP("ascii", "a", false, "Send the data as text instead of hex")
	masterCmd.Flags().BoolP("quiet", "q", false, "Only print the summary")
}

// pollStats counts the outcome of a master run
type pollStats struct {
	Requests  int
	Responses int
	Timeouts  int
}

// runMaster polls until ctx is done or count requests have been sent
func runMaster(ctx context.Context, in *rs485.Instance, req []byte, interval time.Duration, count int, out io.Writer) (pollStats, error) {
	var stats pollStats
	resp := make([]byte, maxFrame)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for count <= 0 || stats.Requests < count {
		start := time.Now()
		n, err := in.SendThenReceive(req, resp)
		if err != nil {
			return stats, err
		}
		stats.Requests++

		if n == 0 {
			if ctx.Err() != nil {
				// broken by the interrupt, not a missing response
				stats.Requests--
				return stats, nil
			}
			stats.Timeouts++
			fmt.Fprintf(out, "[%s] -- no response after %v\n", start.Format("15:04:05.000"), time.Since(start).Round(time.Millisecond))
		} else {
			stats.Responses++
			fmt.Fprintf(out, "%s (%v)\n", styles.ResponseStyle.Render(frameLine("RX", time.Now(), resp[:n], false)), time.Since(start).Round(time.Millisecond))
		}

		if count > 0 && stats.Requests >= count {
			break
		}
		select {
		case <-ctx.Done():
			return stats, nil
		case <-ticker.C:
		}
	}
	return stats, nil
}
