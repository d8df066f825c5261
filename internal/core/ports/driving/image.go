package driving

import (
	"context"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

// BuildRequest describes an application image to build.
type BuildRequest struct {
	// ELFPath is the linked firmware executable.
	ELFPath string

	// Chip is the target chip.
	Chip domain.Chip

	// BootloaderPath overrides the configured bootloader.
	BootloaderPath string

	// PartitionTablePath overrides the configured partition table.
	// Empty with nothing configured selects the default layout.
	PartitionTablePath string

	// Flash overrides header settings. Unset fields fall back to the
	// configured defaults and then to the bootloader's header.
	Flash domain.FlashSettings
}

// SaveRequest describes an image to build and write to disk.
type SaveRequest struct {
	BuildRequest

	// OutPath is the destination file.
	OutPath string

	// Merge writes bootloader, partition table and app as one flash image.
	Merge bool

	// FillFlash extends a merged image to the full flash size.
	FillFlash bool
}

// ImageService builds and inspects application images.
type ImageService interface {
	// Build creates the image without writing it anywhere.
	Build(ctx context.Context, req BuildRequest) (*domain.AppImage, error)

	// Save builds the image and writes it to req.OutPath.
	Save(ctx context.Context, req SaveRequest) (*domain.AppImage, error)

	// Info decodes the image file at path.
	Info(path string) (*domain.ImageReport, error)

	// Watch saves the image now and again every time the ELF file changes,
	// reporting each result to onSave. Returns nil when ctx is done.
	Watch(ctx context.Context, req SaveRequest, onSave func(*domain.AppImage, error)) error
}
