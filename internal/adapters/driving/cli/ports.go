package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

var listPortsAll bool

var listPortsCmd = &cobra.Command{
	Use:   "list-ports",
	Short: "List serial ports",
	Long: `List serial ports that look like ESP32 boards.

Only known USB-serial bridges are shown unless --all is set or serial.usb
restricts the search to one USB product.`,
	Args: cobra.NoArgs,
	RunE: runListPorts,
}

func init() {
	listPortsCmd.Flags().BoolVarP(&listPortsAll, "all", "a", false, "Include ports that are not known USB-serial bridges")
	rootCmd.AddCommand(listPortsCmd)
}

func runListPorts(cmd *cobra.Command, _ []string) error {
	if portService == nil {
		return errors.New("port service not configured")
	}

	filter := domain.PortFilter{All: listPortsAll}
	if settingsService != nil && !listPortsAll {
		settings, err := settingsService.Get()
		if err != nil {
			return fmt.Errorf("failed to get settings: %w", err)
		}
		filter.USB = settings.Serial.USB
	}

	ports, err := portService.List(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("failed to list ports: %w", err)
	}

	if len(ports) == 0 {
		cmd.Println("No serial ports found.")
		if !listPortsAll {
			cmd.Println("Use --all to include every serial device.")
		}
		return nil
	}

	for _, p := range ports {
		cmd.Println(p.Description())
	}
	return nil
}
