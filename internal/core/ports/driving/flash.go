package driving

import (
	"context"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

// FlashRequest describes a firmware write.
type FlashRequest struct {
	// ELFPath, BootloaderPath, PartitionTablePath and Flash are as in
	// BuildRequest. The chip is detected from the device.
	ELFPath            string
	BootloaderPath     string
	PartitionTablePath string
	Flash              domain.FlashSettings

	// Chip, when set, must match the detected chip.
	Chip *domain.Chip

	// Port is an explicit device path. Empty means auto-detect.
	Port string

	// Baud switches to a faster speed after connecting. Zero keeps the
	// configured speed.
	Baud int

	// AppOnly writes the app partition without bootloader and table.
	AppOnly bool

	// Force rewrites regions whose contents already match.
	Force bool

	// NoReboot leaves the chip in download mode.
	NoReboot bool
}

// FlashService talks to chips in download mode.
type FlashService interface {
	// Flash builds the image for the connected chip and writes it.
	Flash(ctx context.Context, req FlashRequest) (*domain.FlashReport, error)

	// BoardInfo connects and reports the chip and MAC address.
	BoardInfo(ctx context.Context, port string) (*domain.BoardInfo, error)

	// Checksum returns the hex MD5 of a flash region.
	Checksum(ctx context.Context, port string, addr, size uint32) (string, error)
}
