package driven

import (
	"context"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

// WriteOptions controls how a segment is written to flash.
type WriteOptions struct {
	// Compress sends zlib-compressed blocks.
	Compress bool

	// SkipUnchanged compares the flash MD5 first and skips identical regions.
	SkipUnchanged bool

	// Verify compares the flash MD5 with the written data afterwards.
	Verify bool
}

// Device is a chip in download mode.
type Device interface {
	// Chip returns the detected chip.
	Chip() domain.Chip

	// ReadReg reads a 32-bit register.
	ReadReg(ctx context.Context, addr uint32) (uint32, error)

	// WriteReg writes a 32-bit register.
	WriteReg(ctx context.Context, addr, value uint32) error

	// MACAddress returns the factory MAC address as "aa:bb:cc:dd:ee:ff".
	MACAddress(ctx context.Context) (string, error)

	// ChangeBaud switches both ROM and host to baud.
	ChangeBaud(ctx context.Context, baud int) error

	// WriteFlash writes seg at its flash address.
	// Reports whether the write was skipped because flash already matched.
	WriteFlash(ctx context.Context, seg domain.RomSegment, opts WriteOptions, progress ProgressReporter) (bool, error)

	// FlashMD5 returns the hex MD5 of size bytes of flash at addr.
	FlashMD5(ctx context.Context, addr, size uint32) (string, error)

	// Finish ends the flash session, rebooting into the app if reboot is set.
	Finish(ctx context.Context, reboot bool) error

	// HardReset pulses the reset line.
	HardReset() error

	// Close releases the underlying port.
	Close() error
}

// DeviceConnector brings a chip on a serial port into download mode.
type DeviceConnector interface {
	// Connect resets the chip attached to port and synchronises with its ROM.
	// Returns domain.ErrConnectionFailed if the ROM never answers.
	Connect(ctx context.Context, port SerialPort) (Device, error)
}

// ProgressReporter receives write progress for one segment at a time.
type ProgressReporter interface {
	// Start begins a segment of total bytes at addr.
	Start(addr uint32, total int)

	// Update reports bytes written so far.
	Update(written int)

	// Finish ends the current segment.
	Finish()
}
