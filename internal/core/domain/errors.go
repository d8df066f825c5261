package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent failures in image building, partition handling
// and device communication. Adapters wrap these so callers can use errors.Is.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not available in this build.
	ErrNotImplemented = errors.New("not implemented")

	// Image Errors.

	// ErrInvalidBootloader indicates the bootloader binary does not start
	// with a valid image header.
	ErrInvalidBootloader = errors.New("invalid bootloader image")

	// ErrBootloaderRequired indicates no bootloader could be resolved for the chip.
	ErrBootloaderRequired = errors.New("bootloader required")

	// ErrUnsupportedFlashSize indicates the flash size cannot be encoded
	// in an image header.
	ErrUnsupportedFlashSize = errors.New("unsupported flash size")

	// ErrUnsupportedFlashFrequency indicates the chip has no encoding
	// for the requested flash frequency.
	ErrUnsupportedFlashFrequency = errors.New("unsupported flash frequency")

	// ErrUnsupportedChip indicates an unknown or unsupported chip.
	ErrUnsupportedChip = errors.New("unsupported chip")

	// ErrInvalidELF indicates the firmware file is not a usable ELF image.
	ErrInvalidELF = errors.New("invalid ELF file")

	// ErrNoAppPartition indicates the partition table has no app partition.
	ErrNoAppPartition = errors.New("no app partition")

	// ErrInvalidPartitionTable indicates a malformed or inconsistent partition table.
	ErrInvalidPartitionTable = errors.New("invalid partition table")

	// ErrImageTooBig indicates the app image does not fit its partition.
	ErrImageTooBig = errors.New("image too big for partition")

	// ErrInvalidImage indicates a malformed application image.
	ErrInvalidImage = errors.New("invalid application image")

	// Device Errors.

	// ErrTimeout indicates the device did not answer in time.
	ErrTimeout = errors.New("timed out waiting for device")

	// ErrConnectionFailed indicates the ROM loader could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to device")

	// ErrInvalidResponse indicates a malformed or unexpected response frame.
	ErrInvalidResponse = errors.New("invalid response from device")

	// ErrDeviceError indicates the ROM loader reported a command failure.
	ErrDeviceError = errors.New("device reported an error")

	// ErrChipMismatch indicates the connected chip differs from the requested one.
	ErrChipMismatch = errors.New("chip mismatch")

	// ErrNoSerialPorts indicates no candidate serial port was found.
	ErrNoSerialPorts = errors.New("no serial ports found")
)

// ImageTooBigError reports an application image larger than its partition.
type ImageTooBigError struct {
	AppSize  uint32
	PartSize uint32
}

// Error implements error.
func (e *ImageTooBigError) Error() string {
	return fmt.Sprintf("image size %d (0x%x) exceeds partition size %d (0x%x)",
		e.AppSize, e.AppSize, e.PartSize, e.PartSize)
}

// Unwrap returns ErrImageTooBig.
func (e *ImageTooBigError) Unwrap() error {
	return ErrImageTooBig
}

// RomError is a failure status returned by the ROM loader for a command.
type RomError struct {
	Command uint8
	Code    uint8
}

// Error implements error.
func (e *RomError) Error() string {
	return fmt.Sprintf("command 0x%02x failed: %s (0x%02x)", e.Command, romErrorText(e.Code), e.Code)
}

// Unwrap returns ErrDeviceError.
func (e *RomError) Unwrap() error {
	return ErrDeviceError
}

func romErrorText(code uint8) string {
	switch code {
	case 0x05:
		return "received message is invalid"
	case 0x06:
		return "failed to act on received message"
	case 0x07:
		return "invalid CRC in message"
	case 0x08:
		return "flash write error"
	case 0x09:
		return "flash read error"
	case 0x0a:
		return "flash read length error"
	case 0x0b:
		return "deflate error"
	default:
		return "unknown error"
	}
}
