package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/core/ports/driving"
)

var (
	flashImage    imageFlags
	flashAppOnly  bool
	flashForce    bool
	flashNoReboot bool
	flashMonitor  bool
)

var flashCmd = &cobra.Command{
	Use:   "flash <elf>",
	Short: "Flash an ELF file to a connected chip",
	Long: `Build an application image from an ELF file and write it to the chip.

The chip is detected over the serial bootloader and the image is built for
it. Regions whose contents already match are skipped unless --force is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runFlash,
}

var boardInfoCmd = &cobra.Command{
	Use:   "board-info",
	Short: "Show the connected chip and its MAC address",
	Args:  cobra.NoArgs,
	RunE:  runBoardInfo,
}

var (
	checksumAddr uint32
	checksumSize uint32
)

var checksumCmd = &cobra.Command{
	Use:   "checksum-md5",
	Short: "Print the MD5 of a flash region",
	Args:  cobra.NoArgs,
	RunE:  runChecksum,
}

func init() {
	flashImage.register(flashCmd)
	flashCmd.Flags().BoolVar(&flashAppOnly, "app-only", false, "Write only the application partition")
	flashCmd.Flags().BoolVar(&flashForce, "force", false, "Rewrite regions that already match")
	flashCmd.Flags().BoolVar(&flashNoReboot, "no-reboot", false, "Stay in the bootloader after flashing")
	flashCmd.Flags().BoolVarP(&flashMonitor, "monitor", "M", false, "Open a serial monitor after flashing")

	checksumCmd.Flags().Uint32Var(&checksumAddr, "address", 0, "Flash offset")
	checksumCmd.Flags().Uint32Var(&checksumSize, "size", 0, "Region length in bytes")
	_ = checksumCmd.MarkFlagRequired("address")
	_ = checksumCmd.MarkFlagRequired("size")

	rootCmd.AddCommand(flashCmd)
	rootCmd.AddCommand(boardInfoCmd)
	rootCmd.AddCommand(checksumCmd)
}

func runFlash(cmd *cobra.Command, args []string) error {
	if flashService == nil {
		return errors.New("flash service not configured")
	}

	chip, err := selectedChip()
	if err != nil {
		return err
	}
	settings, err := flashImage.flashSettings()
	if err != nil {
		return err
	}

	report, err := flashService.Flash(cmd.Context(), driving.FlashRequest{
		ELFPath:            args[0],
		BootloaderPath:     flashImage.bootloader,
		PartitionTablePath: flashImage.partitionTable,
		Flash:              settings,
		Chip:               chip,
		Port:               portFlag,
		Baud:               baudFlag,
		AppOnly:            flashAppOnly,
		Force:              flashForce,
		NoReboot:           flashNoReboot,
	})
	if err != nil {
		return fmt.Errorf("flash failed: %w", err)
	}

	printFlashReport(cmd, report)

	if flashMonitor {
		// The flash baud is not the console baud.
		return startMonitor(cmd, report.Port, 0, false)
	}
	return nil
}

func printFlashReport(cmd *cobra.Command, report *domain.FlashReport) {
	img := report.Image
	cmd.Printf("Flashed %s on %s\n", img.Chip, report.Port)
	for _, addr := range report.Skipped {
		cmd.Printf("  0x%06x unchanged, skipped\n", addr)
	}
	cmd.Printf("App:       0x%06x, %d bytes\n", img.App.Addr, img.AppSize)
	if img.PartSize > 0 {
		cmd.Printf("Partition: %d bytes (%.1f%% used)\n", img.PartSize, 100*float64(img.AppSize)/float64(img.PartSize))
	}
	cmd.Printf("SHA-256:   %s\n", img.Digest)
	if report.Record != nil {
		cmd.Printf("History:   %s\n", report.Record.ID)
	}
}

func runBoardInfo(cmd *cobra.Command, _ []string) error {
	if flashService == nil {
		return errors.New("flash service not configured")
	}

	info, err := flashService.BoardInfo(cmd.Context(), portFlag)
	if err != nil {
		return fmt.Errorf("failed to read board info: %w", err)
	}

	cmd.Printf("Port: %s\n", info.Port)
	cmd.Printf("Chip: %s\n", info.Chip)
	cmd.Printf("MAC:  %s\n", info.MAC)
	return nil
}

func runChecksum(cmd *cobra.Command, _ []string) error {
	if flashService == nil {
		return errors.New("flash service not configured")
	}

	sum, err := flashService.Checksum(cmd.Context(), portFlag, checksumAddr, checksumSize)
	if err != nil {
		return fmt.Errorf("checksum failed: %w", err)
	}

	cmd.Println(sum)
	return nil
}
