package services

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/core/ports/driven"
	"github.com/custodia-labs/idfflash/internal/core/ports/driving"
	"github.com/custodia-labs/idfflash/internal/logger"
)

// Ensure FlashService implements the interface.
var _ driving.FlashService = (*FlashService)(nil)

// FlashService talks to chips in download mode.
type FlashService struct {
	ports     driving.PortService
	opener    driven.PortOpener
	connector driven.DeviceConnector
	images    driving.ImageService
	settings  driving.SettingsService
	history   driven.HistoryStore
	progress  driven.ProgressReporter
	now       func() time.Time
	newID     func() string
}

// NewFlashService creates a new flash service.
func NewFlashService(
	ports driving.PortService,
	opener driven.PortOpener,
	connector driven.DeviceConnector,
	images driving.ImageService,
	settings driving.SettingsService,
) *FlashService {
	return &FlashService{
		ports:     ports,
		opener:    opener,
		connector: connector,
		images:    images,
		settings:  settings,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// SetHistoryStore enables recording of completed flash operations.
func (s *FlashService) SetHistoryStore(store driven.HistoryStore) {
	s.history = store
}

// SetProgressReporter installs the write progress sink.
func (s *FlashService) SetProgressReporter(progress driven.ProgressReporter) {
	s.progress = progress
}

// Flash builds the image for the connected chip and writes it.
func (s *FlashService) Flash(ctx context.Context, req driving.FlashRequest) (*domain.FlashReport, error) {
	if req.ELFPath == "" {
		return nil, fmt.Errorf("%w: no ELF file given", domain.ErrInvalidInput)
	}

	logger.Section("Connect")
	dev, port, err := s.connect(ctx, req.Port)
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	chip := dev.Chip()
	if req.Chip != nil && *req.Chip != chip {
		return nil, fmt.Errorf("%w: requested %s, connected to %s", domain.ErrChipMismatch, *req.Chip, chip)
	}
	logger.Info("connected to %s on %s", chip, port.Name)

	logger.Section("Build")
	img, err := s.images.Build(ctx, driving.BuildRequest{
		ELFPath:            req.ELFPath,
		Chip:               chip,
		BootloaderPath:     req.BootloaderPath,
		PartitionTablePath: req.PartitionTablePath,
		Flash:              req.Flash,
	})
	if err != nil {
		return nil, fmt.Errorf("build image: %w", err)
	}
	logger.Info("app size %d of %d bytes (%.0f%%)", img.AppSize, img.PartSize,
		100*float64(img.AppSize)/float64(img.PartSize))

	if err := s.changeBaud(ctx, dev, req.Baud); err != nil {
		return nil, err
	}

	segments := img.Segments
	if req.AppOnly {
		segments = img.OTASegments()
	}

	opts := driven.WriteOptions{
		Compress:      true,
		SkipUnchanged: !req.Force,
		Verify:        true,
	}

	logger.Section("Write")
	report := &domain.FlashReport{Port: port.Name, Image: img}
	for _, seg := range segments {
		logger.Debug("writing %d bytes at 0x%08x", len(seg.Data), seg.Addr)
		skipped, err := dev.WriteFlash(ctx, seg, opts, s.progress)
		if err != nil {
			return nil, fmt.Errorf("write 0x%08x: %w", seg.Addr, err)
		}
		if skipped {
			logger.Info("0x%08x already up to date", seg.Addr)
			report.Skipped = append(report.Skipped, seg.Addr)
		}
	}

	logger.Section("Finish")
	if err := dev.Finish(ctx, !req.NoReboot); err != nil {
		return nil, fmt.Errorf("finish flashing: %w", err)
	}

	report.Record = s.record(ctx, port.Name, req.ELFPath, img)
	return report, nil
}

// BoardInfo connects and reports the chip and MAC address.
func (s *FlashService) BoardInfo(ctx context.Context, portName string) (*domain.BoardInfo, error) {
	dev, port, err := s.connect(ctx, portName)
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	mac, err := dev.MACAddress(ctx)
	if err != nil {
		return nil, fmt.Errorf("read MAC address: %w", err)
	}

	return &domain.BoardInfo{
		Port: port.Name,
		Chip: dev.Chip(),
		MAC:  mac,
	}, nil
}

// Checksum returns the hex MD5 of size bytes of flash at addr.
func (s *FlashService) Checksum(ctx context.Context, portName string, addr, size uint32) (string, error) {
	if size == 0 {
		return "", fmt.Errorf("%w: size must be positive", domain.ErrInvalidInput)
	}

	dev, _, err := s.connect(ctx, portName)
	if err != nil {
		return "", err
	}
	defer dev.Close()

	sum, err := dev.FlashMD5(ctx, addr, size)
	if err != nil {
		return "", fmt.Errorf("checksum 0x%08x+0x%x: %w", addr, size, err)
	}
	return sum, nil
}

// connect selects and opens a port and brings the chip into download mode.
// The returned device owns the port.
func (s *FlashService) connect(ctx context.Context, explicit string) (driven.Device, domain.SerialPortInfo, error) {
	settings, err := s.settings.Get()
	if err != nil {
		return nil, domain.SerialPortInfo{}, fmt.Errorf("load settings: %w", err)
	}

	info, err := s.ports.Select(ctx, explicit)
	if err != nil {
		return nil, info, err
	}

	port, err := s.opener.Open(info.Name, settings.Serial.Baud)
	if err != nil {
		return nil, info, fmt.Errorf("open %s: %w", info.Name, err)
	}

	logger.Debug("connecting on %s at %d baud", info.Name, settings.Serial.Baud)
	dev, err := s.connector.Connect(ctx, port)
	if err != nil {
		_ = port.Close()
		return nil, info, fmt.Errorf("connect on %s: %w", info.Name, err)
	}
	return dev, info, nil
}

func (s *FlashService) changeBaud(ctx context.Context, dev driven.Device, baud int) error {
	if baud <= 0 {
		return nil
	}
	settings, err := s.settings.Get()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if baud == settings.Serial.Baud {
		return nil
	}
	logger.Debug("switching to %d baud", baud)
	if err := dev.ChangeBaud(ctx, baud); err != nil {
		return fmt.Errorf("change baud to %d: %w", baud, err)
	}
	return nil
}

// record saves a history entry. Failures are logged, the flash itself
// already succeeded.
func (s *FlashService) record(ctx context.Context, port, elfPath string, img *domain.AppImage) *domain.FlashRecord {
	if s.history == nil {
		return nil
	}

	if abs, err := filepath.Abs(elfPath); err == nil {
		elfPath = abs
	}
	rec := &domain.FlashRecord{
		ID:          s.newID(),
		Port:        port,
		Chip:        img.Chip,
		ImagePath:   elfPath,
		ImageSHA256: img.Digest,
		AppSize:     img.AppSize,
		PartSize:    img.PartSize,
		AppAddr:     img.App.Addr,
		FlashedAt:   s.now().UTC(),
	}
	if err := s.history.Save(ctx, rec); err != nil {
		logger.Warn("could not record flash history: %v", err)
		return nil
	}
	return rec
}
