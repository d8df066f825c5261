package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

// imageFlags are the build inputs shared by flash and save-image.
type imageFlags struct {
	bootloader     string
	partitionTable string
	mode           string
	size           string
	freq           string
}

func (f *imageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.bootloader, "bootloader", "", "Bootloader binary (default: configured)")
	cmd.Flags().StringVar(&f.partitionTable, "partition-table", "", "Partition table CSV or binary (default: configured)")
	cmd.Flags().StringVar(&f.mode, "flash-mode", "", "Flash mode: qio, qout, dio or dout")
	cmd.Flags().StringVar(&f.size, "flash-size", "", "Flash size, e.g. 4MB")
	cmd.Flags().StringVar(&f.freq, "flash-freq", "", "Flash frequency, e.g. 40MHz")
}

func (f *imageFlags) reset() {
	*f = imageFlags{}
}

// flashSettings parses the header overrides. Unset flags stay nil.
func (f *imageFlags) flashSettings() (domain.FlashSettings, error) {
	return domain.FlashHeaderSettings{Mode: f.mode, Size: f.size, Freq: f.freq}.ToFlashSettings()
}
