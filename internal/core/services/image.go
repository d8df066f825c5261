package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/core/ports/driven"
	"github.com/custodia-labs/idfflash/internal/core/ports/driving"
	"github.com/custodia-labs/idfflash/internal/imageformat"
	"github.com/custodia-labs/idfflash/internal/logger"
	"github.com/custodia-labs/idfflash/internal/partition"
)

// Ensure ImageService implements the interface.
var _ driving.ImageService = (*ImageService)(nil)

// ImageService builds, saves and inspects application images.
type ImageService struct {
	loader   driven.FirmwareLoader
	settings driving.SettingsService
	watcher  driven.FileWatcher
}

// NewImageService creates a new image service.
func NewImageService(loader driven.FirmwareLoader, settings driving.SettingsService) *ImageService {
	return &ImageService{
		loader:   loader,
		settings: settings,
	}
}

// SetWatcher enables Watch.
func (s *ImageService) SetWatcher(watcher driven.FileWatcher) {
	s.watcher = watcher
}

// Build loads the ELF file, resolves bootloader and partition table, and
// lays out the app image for req.Chip.
func (s *ImageService) Build(ctx context.Context, req driving.BuildRequest) (*domain.AppImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !req.Chip.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedChip, req.Chip)
	}
	if req.ELFPath == "" {
		return nil, fmt.Errorf("%w: no ELF file given", domain.ErrInvalidInput)
	}

	settings, err := s.settings.Get()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	flash, err := mergeFlashSettings(req.Flash, settings.Flash)
	if err != nil {
		return nil, err
	}

	firmware, err := s.loader.Load(req.ELFPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", req.ELFPath, err)
	}

	bootloader, err := resolveBootloader(req.Chip, req.BootloaderPath, settings.Image)
	if err != nil {
		return nil, err
	}

	var table *domain.PartitionTable
	tablePath := firstNonEmpty(req.PartitionTablePath, settings.Image.PartitionTable)
	if tablePath != "" {
		logger.Debug("using partition table %s", tablePath)
		if table, err = partition.Load(tablePath); err != nil {
			return nil, err
		}
	}

	idf, err := imageformat.NewIDF(firmware, req.Chip, req.Chip.Params(), table, bootloader, flash)
	if err != nil {
		return nil, err
	}

	logger.Debug("built %s image: %d bytes in a %d byte partition", req.Chip, idf.AppSize(), idf.PartSize())

	return &domain.AppImage{
		Chip:           req.Chip,
		Segments:       idf.FlashSegments(),
		App:            domain.RomSegment{Addr: idf.AppAddr(), Data: idf.App()},
		AppSize:        idf.AppSize(),
		PartSize:       idf.PartSize(),
		Digest:         idf.AppDigest(),
		PartitionTable: idf.PartitionTable(),
	}, nil
}

// Save builds the image and writes either the app image or, with
// req.Merge, a single image covering everything from offset 0.
func (s *ImageService) Save(ctx context.Context, req driving.SaveRequest) (*domain.AppImage, error) {
	if req.OutPath == "" {
		return nil, fmt.Errorf("%w: no output path given", domain.ErrInvalidInput)
	}
	if req.FillFlash && !req.Merge {
		return nil, fmt.Errorf("%w: filling flash requires a merged image", domain.ErrInvalidInput)
	}

	img, err := s.Build(ctx, req.BuildRequest)
	if err != nil {
		return nil, err
	}

	data := img.App.Data
	if req.Merge {
		var fillTo uint32
		if req.FillFlash {
			if fillTo, err = s.flashSizeBytes(req.Flash); err != nil {
				return nil, err
			}
		}
		if data, err = imageformat.Merge(img.Segments, fillTo); err != nil {
			return nil, err
		}
	}

	if err := os.WriteFile(req.OutPath, data, 0o644); err != nil { //nolint:gosec // G306: images are not secret
		return nil, fmt.Errorf("write %s: %w", req.OutPath, err)
	}
	logger.Info("wrote %d bytes to %s", len(data), req.OutPath)

	return img, nil
}

// Watch saves the image now and after every change to req.ELFPath.
// Build failures are reported to onSave and do not stop the watch.
func (s *ImageService) Watch(ctx context.Context, req driving.SaveRequest, onSave func(*domain.AppImage, error)) error {
	if s.watcher == nil {
		return fmt.Errorf("%w: file watching", domain.ErrNotImplemented)
	}
	if onSave == nil {
		onSave = func(*domain.AppImage, error) {}
	}

	changes, err := s.watcher.Watch(ctx, req.ELFPath)
	if err != nil {
		return fmt.Errorf("watch %s: %w", req.ELFPath, err)
	}

	onSave(s.Save(ctx, req))
	for range changes {
		logger.Debug("%s changed, rebuilding", req.ELFPath)
		onSave(s.Save(ctx, req))
	}
	return nil
}

// Info decodes the application image at path.
func (s *ImageService) Info(path string) (*domain.ImageReport, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-supplied image path
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	info, err := imageformat.Parse(data)
	if err != nil {
		return nil, err
	}

	report := &domain.ImageReport{
		Entry:         info.Header.Entry,
		FlashMode:     domain.FlashMode(info.Header.FlashMode),
		FlashConfig:   info.Header.FlashConfig,
		ChipID:        info.Extended.ChipID,
		Size:          info.Size,
		Checksum:      info.Checksum,
		ChecksumValid: info.ChecksumValid(),
		DigestValid:   info.DigestValid(),
	}
	if info.Digest != nil {
		report.Digest = fmt.Sprintf("%x", info.Digest)
	}
	for _, seg := range info.Segments {
		report.Segments = append(report.Segments, domain.ImageSegment{
			Addr:       seg.Addr,
			Length:     seg.Length,
			FileOffset: seg.FileOffset,
			Padding:    seg.IsPadding(),
		})
	}

	return report, nil
}

// flashSizeBytes returns the flash size from the request or settings.
func (s *ImageService) flashSizeBytes(override domain.FlashSettings) (uint32, error) {
	if override.Size != nil {
		return override.Size.Bytes(), nil
	}
	settings, err := s.settings.Get()
	if err != nil {
		return 0, fmt.Errorf("load settings: %w", err)
	}
	if settings.Flash.Size == "" {
		return 0, fmt.Errorf("%w: filling flash requires a flash size", domain.ErrInvalidInput)
	}
	size, err := domain.ParseFlashSize(settings.Flash.Size)
	if err != nil {
		return 0, err
	}
	return size.Bytes(), nil
}

// mergeFlashSettings fills unset request fields from the configured defaults.
func mergeFlashSettings(req domain.FlashSettings, configured domain.FlashHeaderSettings) (domain.FlashSettings, error) {
	defaults, err := configured.ToFlashSettings()
	if err != nil {
		return req, fmt.Errorf("configured flash settings: %w", err)
	}
	if req.Mode == nil {
		req.Mode = defaults.Mode
	}
	if req.Size == nil {
		req.Size = defaults.Size
	}
	if req.Freq == nil {
		req.Freq = defaults.Freq
	}
	return req, nil
}

// resolveBootloader reads the bootloader from the explicit path, the
// configured path, or the chip's file in the configured directory.
func resolveBootloader(chip domain.Chip, explicit string, settings domain.ImageSettings) ([]byte, error) {
	path := firstNonEmpty(explicit, settings.Bootloader)
	if path == "" && settings.BootloaderDir != "" {
		candidate := filepath.Join(settings.BootloaderDir, chip.String()+"-bootloader.bin")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", candidate, err)
		}
	}
	if path == "" {
		return nil, fmt.Errorf("%w for %s: pass --bootloader or set image.bootloader_dir", domain.ErrBootloaderRequired, chip)
	}

	logger.Debug("using bootloader %s", path)
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-supplied bootloader path
	if err != nil {
		return nil, fmt.Errorf("read bootloader: %w", err)
	}
	return data, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
