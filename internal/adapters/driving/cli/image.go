package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/core/ports/driving"
)

var (
	saveImage     imageFlags
	saveMerge     bool
	saveFillFlash bool
	saveWatch     bool
)

var saveImageCmd = &cobra.Command{
	Use:   "save-image <elf> <out>",
	Short: "Build an application image and write it to a file",
	Long: `Build an application image for --chip and write it to a file.

With --merge the bootloader, partition table and app are combined into one
image that can be written at offset 0. --watch rebuilds whenever the ELF
file changes.`,
	Args: cobra.ExactArgs(2),
	RunE: runSaveImage,
}

var imageInfoCmd = &cobra.Command{
	Use:   "image-info <bin>",
	Short: "Show the header and segments of an application image",
	Args:  cobra.ExactArgs(1),
	RunE:  runImageInfo,
}

func init() {
	saveImage.register(saveImageCmd)
	saveImageCmd.Flags().BoolVar(&saveMerge, "merge", false, "Write bootloader, partition table and app as one image")
	saveImageCmd.Flags().BoolVar(&saveFillFlash, "fill-flash", false, "Pad a merged image to the full flash size")
	saveImageCmd.Flags().BoolVarP(&saveWatch, "watch", "w", false, "Rebuild whenever the ELF file changes")

	rootCmd.AddCommand(saveImageCmd)
	rootCmd.AddCommand(imageInfoCmd)
}

func runSaveImage(cmd *cobra.Command, args []string) error {
	if imageService == nil {
		return errors.New("image service not configured")
	}

	chip, err := requireChip()
	if err != nil {
		return err
	}
	settings, err := saveImage.flashSettings()
	if err != nil {
		return err
	}

	req := driving.SaveRequest{
		BuildRequest: driving.BuildRequest{
			ELFPath:            args[0],
			Chip:               chip,
			BootloaderPath:     saveImage.bootloader,
			PartitionTablePath: saveImage.partitionTable,
			Flash:              settings,
		},
		OutPath:   args[1],
		Merge:     saveMerge,
		FillFlash: saveFillFlash,
	}

	if saveWatch {
		cmd.Printf("Watching %s, press Ctrl+C to stop\n", args[0])
		return imageService.Watch(cmd.Context(), req, func(img *domain.AppImage, err error) {
			if err != nil {
				cmd.PrintErrf("Build failed: %v\n", err)
				return
			}
			printSavedImage(cmd, img, req.OutPath)
		})
	}

	img, err := imageService.Save(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	printSavedImage(cmd, img, req.OutPath)
	return nil
}

func printSavedImage(cmd *cobra.Command, img *domain.AppImage, out string) {
	cmd.Printf("Saved %s image to %s (%d bytes, app at 0x%06x)\n", img.Chip, out, img.AppSize, img.App.Addr)
}

func runImageInfo(cmd *cobra.Command, args []string) error {
	if imageService == nil {
		return errors.New("image service not configured")
	}

	report, err := imageService.Info(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	cmd.Printf("Entry:      0x%08x\n", report.Entry)
	cmd.Printf("Flash mode: %s\n", report.FlashMode)
	cmd.Printf("Flash cfg:  0x%02x\n", report.FlashConfig)
	cmd.Printf("Chip ID:    %d\n", report.ChipID)
	cmd.Printf("Size:       %d bytes\n", report.Size)
	cmd.Println()
	cmd.Printf("Segments (%d):\n", len(report.Segments))
	for i, seg := range report.Segments {
		note := ""
		if seg.Padding {
			note = " (padding)"
		}
		cmd.Printf("  %2d  addr 0x%08x  len %7d  file offset 0x%06x%s\n", i, seg.Addr, seg.Length, seg.FileOffset, note)
	}
	cmd.Println()
	cmd.Printf("Checksum:   0x%02x (%s)\n", report.Checksum, validity(report.ChecksumValid))
	if report.Digest != "" {
		cmd.Printf("SHA-256:    %s (%s)\n", report.Digest, validity(report.DigestValid))
	}
	return nil
}

func validity(ok bool) string {
	if ok {
		return "valid"
	}
	return "invalid"
}
