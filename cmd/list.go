/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/allbin/go-rs485"
	"github.com/allbin/go-rs485/internal/i18n"
	"github.com/allbin/go-rs485/internal/tui/colors"
	"github.com/allbin/go-rs485/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"
	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List serial ports an RS485 transceiver can be attached to",
	Long: `List all available serial ports on the system.

This command scans for communication-capable serial devices including:
- USB RS485 adapters (ttyUSB*, ttyACM*)
- On-chip UARTs (ttyS*, ttyAMA*, ttymxc*, ...)
- Kernel RS485 ports (ttyRS485-*)

Virtual terminals and pseudo-terminals are excluded from the listing.

Example usage:
  rs485ctl list
  rs485ctl list --filter usb --table`,
	Run: func(cmd *cobra.Command, args []string) {
		ports, err := rs485.ListPorts()
		if err != nil {
			fail(fmt.Errorf("listing ports: %w", err))
		}

		filterType, _ := cmd.Flags().GetString("filter")
		tableFormat, _ := cmd.Flags().GetBool("table")

		filteredPorts := filterPorts(ports, filterType)
		if len(filteredPorts) == 0 {
			if filterType != "" && len(ports) > 0 {
				say(i18n.MsgNoPortsMatch, filterType)
			} else {
				say(i18n.MsgNoPorts)
			}
			return
		}

		if tableFormat {
			say(i18n.MsgFoundPorts, len(filteredPorts))
			fmt.Println()
			fmt.Println(renderTable(filteredPorts))
		} else {
			for _, port := range filteredPorts {
				fmt.Println(port)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("filter", "f", "", "Filter by port type: usb, uart, rs485, all")
	listCmd.Flags().Bool("table", false, "Display output in a styled table format")
}

// portType returns a coarse class of a port name: usb, uart or rs485
func portType(name string) string {
	name = strings.ToLower(name)
	switch {
	case strings.HasPrefix(name, "ttyusb"), strings.HasPrefix(name, "ttyacm"):
		return "usb"
	case strings.HasPrefix(name, "ttyrs485"):
		return "rs485"
	default:
		return "uart"
	}
}

// filterPorts filters the port list based on the specified filter type
func filterPorts(ports []string, filterType string) []string {
	filterType = strings.ToLower(filterType)
	if filterType == "" || filterType == "all" {
		return ports
	}

	var filtered []string
	for _, port := range ports {
		name := port[strings.LastIndex(port, "/")+1:]
		if portType(name) == filterType {
			filtered = append(filtered, port)
		}
	}
	return filtered
}

const (
	columnKeyPort   = "port"
	columnKeyDesc   = "desc"
	columnKeyUSB    = "usb"
	columnKeySerial = "serial"
)

// renderTable renders the port list as a static table
func renderTable(ports []string) string {
	columns := []table.Column{
		table.NewColumn(columnKeyPort, "Port", 18),
		table.NewColumn(columnKeyDesc, "Description", 24),
		table.NewColumn(columnKeyUSB, "VID:PID", 11),
		table.NewColumn(columnKeySerial, "Serial", 20),
	}

	rows := make([]table.Row, 0, len(ports))
	for _, port := range ports {
		info, err := rs485.GetPortInfo(port)
		if err != nil {
			rows = append(rows, table.NewRow(table.RowData{
				columnKeyPort: port,
				columnKeyDesc: table.NewStyledCell(fmt.Sprintf("Error: %v", err), styles.ErrorStyle),
			}))
			continue
		}

		usb := ""
		if info.IsUSB() {
			usb = info.VendorID + ":" + info.ProductID
		}
		rows = append(rows, table.NewRow(table.RowData{
			columnKeyPort:   info.Path,
			columnKeyDesc:   info.Description,
			columnKeyUSB:    usb,
			columnKeySerial: info.SerialNumber,
		}))
	}

	return table.New(columns).
		WithRows(rows).
		BorderRounded().
		HeaderStyle(lipgloss.NewStyle().Bold(true).Foreground(colors.Mauve)).
		WithBaseStyle(lipgloss.NewStyle().BorderForeground(colors.Surface2).Align(lipgloss.Left)).
		View()
}
