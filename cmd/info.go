/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"

	"github.com/allbin/go-rs485"
	"github.com/spf13/cobra"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <port>",
	Short: "Display detailed information about a serial port",
	Long: `Display detailed information about a serial port including USB metadata
and the frame timing the line settings result in.

Examples:
  rs485ctl info /dev/ttyUSB0
  rs485ctl info ttyAMA0 --baud 19200

For USB adapters, this displays vendor/product IDs, serial numbers, interface
numbers, and other USB-specific metadata extracted from sysfs.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		info, err := rs485.GetPortInfo(args[0])
		if err != nil {
			fail(fmt.Errorf("getting port info: %w", err))
		}

		fmt.Printf("Port Information: %s\n\n", info.Path)
		fmt.Printf("  Name:        %s\n", info.Name)
		fmt.Printf("  Description: %s\n", info.Description)

		if ls, err := loadLineSettings(); err == nil {
			gap := rs485.ByteGapForBaud(ls.Baud)
			if ls.ByteGap > 0 {
				gap = ls.ByteGap
			}
			fmt.Println("\nLine Settings:")
			fmt.Printf("  Baud:         %d %s\n", ls.Baud, ls.Parity)
			fmt.Printf("  Byte gap:     %v\n", gap)
			fmt.Printf("  Recv timeout: %v\n", ls.RecvTimeout)
			if ls.Pin.Kind != pinNone {
				fmt.Printf("  Pin:          %s (%s while sending)\n", ls.Pin, ls.SendLevel)
			}
		}

		if info.IsUSB() {
			fmt.Println("\nUSB Device Information:")
			fmt.Printf("  Vendor ID:    %s\n", info.VendorID)
			fmt.Printf("  Product ID:   %s\n", info.ProductID)
			if info.SerialNumber != "" {
				fmt.Printf("  Serial:       %s\n", info.SerialNumber)
			}
			if info.InterfaceNumber != "" {
				fmt.Printf("  Interface:    %s\n", info.InterfaceNumber)
			}
			if info.BusNumber != "" {
				fmt.Printf("  Bus:          %s\n", info.BusNumber)
			}
			if info.DeviceNumber != "" {
				fmt.Printf("  Device:       %s\n", info.DeviceNumber)
			}
			if info.Manufacturer != "" {
				fmt.Printf("  Manufacturer: %s\n", info.Manufacturer)
			}
			if info.Product != "" {
				fmt.Printf("  Product:      %s\n", info.Product)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
