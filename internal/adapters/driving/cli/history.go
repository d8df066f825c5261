package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past flash operations",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one flash record",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all flash records",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Maximum records to show (0 for all)")
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	if historyService == nil {
		return errors.New("history service not configured")
	}

	records, err := historyService.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	if len(records) == 0 {
		cmd.Println("No flash history.")
		return nil
	}

	for _, r := range records {
		cmd.Printf("%s  %s  %-8s %-14s %s\n",
			r.ID, r.FlashedAt.Local().Format(time.DateTime), r.Chip, r.Port, r.ImagePath)
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	if historyService == nil {
		return errors.New("history service not configured")
	}

	r, err := historyService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get record: %w", err)
	}

	cmd.Printf("ID:        %s\n", r.ID)
	cmd.Printf("Flashed:   %s\n", r.FlashedAt.Local().Format(time.RFC1123))
	cmd.Printf("Port:      %s\n", r.Port)
	cmd.Printf("Chip:      %s\n", r.Chip)
	cmd.Printf("Image:     %s\n", r.ImagePath)
	cmd.Printf("SHA-256:   %s\n", r.ImageSHA256)
	cmd.Printf("App:       0x%06x, %d bytes\n", r.AppAddr, r.AppSize)
	cmd.Printf("Partition: %d bytes (%.1f%% used)\n", r.PartSize, 100*r.Usage())
	return nil
}

func runHistoryClear(cmd *cobra.Command, _ []string) error {
	if historyService == nil {
		return errors.New("history service not configured")
	}

	if err := historyService.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	cmd.Println("Flash history cleared.")
	return nil
}
