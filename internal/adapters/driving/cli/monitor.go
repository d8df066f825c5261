package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/idfflash/internal/core/ports/driving"
)

var monitorNoReset bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Open a serial monitor",
	Long: `Relay the device's serial console to the terminal.

The chip is reset first so its boot log is visible. Ctrl+R resets the chip
again and Ctrl+C exits.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorNoReset, "no-reset", false, "Do not reset the chip before monitoring")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	return startMonitor(cmd, portFlag, baudFlag, !monitorNoReset)
}

// startMonitor relays the port to the command's streams. A terminal on
// stdin is switched to raw mode so Ctrl+C and Ctrl+R reach the monitor.
func startMonitor(cmd *cobra.Command, port string, baud int, reset bool) error {
	if monitorService == nil {
		return errors.New("monitor service not configured")
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		state, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			return err
		}
		defer func() { _ = term.Restore(int(f.Fd()), state) }()
	}

	return monitorService.Run(cmd.Context(), driving.MonitorRequest{
		Port:  port,
		Baud:  baud,
		In:    in,
		Out:   cmd.OutOrStdout(),
		Reset: reset,
	})
}
