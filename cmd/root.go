/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/allbin/go-rs485/internal/i18n"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/message"
)

var cfgFile string

// logger is the process logger, set up by initLogger before any command runs
var logger = zerolog.Nop()

// printer renders translated user-facing messages
var printer = i18n.NewPrinter("")

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rs485ctl",
	Short: "Exchange frames on a half-duplex RS485 line",
	Long: `rs485ctl drives an RS485 transceiver attached to a serial port.

Frames are delimited by line silence: a frame ends when no byte arrives for
the byte gap timeout (by default 40000/baud milliseconds, kept within 1-15ms).
A direction pin switches the transceiver between transmit and receive.

Line settings can be given as flags, as RS485_* environment variables or in
a YAML config file:

  baud: 19200
  parity: even
  pin: gpio17
  send-level: high
  timeout: 500ms

Example usage:
  rs485ctl list
  rs485ctl recv /dev/ttyUSB0 --baud 9600 --timeout 2s
  rs485ctl xfer /dev/ttyAMA0 "01 03 00 00 00 0A C5 CD" --pin gpio17
  rs485ctl monitor /dev/ttyUSB0 --pin rts`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initLogger(); err != nil {
			return err
		}
		printer = i18n.NewPrinter(viper.GetString("lang"))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default $HOME/.config/rs485ctl.yaml)")
	flags.IntP("baud", "b", 9600, "Baud rate")
	flags.StringP("parity", "p", "none", "Parity: none, odd, even")
	flags.String("pin", "", "Direction pin: gpio<N>, <N>, rts or empty when the transceiver switches itself")
	flags.String("gpio-root", "/sys/class/gpio", "sysfs GPIO directory")
	flags.String("send-level", "high", "Pin level while transmitting: high, low")
	flags.DurationP("timeout", "t", time.Second, "Wait for the first byte of a frame (0 polls, negative waits forever)")
	flags.Duration("byte-gap", 0, "Silence that ends a frame (default derived from the baud rate)")
	flags.String("log-level", "warn", "Log level: trace, debug, info, warn, error, disabled")
	flags.String("lang", "", "Message language: en, de, sv (default $LANG)")

	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config"))
		}
		viper.SetConfigName("rs485ctl")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("RS485")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}

	if viper.GetString("lang") == "" {
		viper.SetDefault("lang", langFromEnv(os.Getenv("LANG")))
	}
}

// langFromEnv turns a POSIX locale such as de_DE.UTF-8 into a language tag
func langFromEnv(locale string) string {
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		locale = locale[:i]
	}
	if locale == "C" || locale == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(locale, "_", "-")
}

func initLogger() error {
	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05.000",
	}).Level(level).With().Timestamp().Logger()
	return nil
}

// say prints a translated message followed by a newline
func say(key message.Reference, args ...any) {
	fmt.Println(printer.Sprintf(key, args...))
}

// fail prints err the way every command reports a fatal error and exits
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
