package imageformat

import (
	"encoding/binary"
	"fmt"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

// Image format constants.
const (
	// ESPMagic is the first byte of every image.
	ESPMagic uint8 = 0xe9

	// ChecksumMagic seeds the segment checksum.
	ChecksumMagic uint8 = 0xef

	// WPPinDisabled marks the SPI write-protect pin as unused.
	WPPinDisabled uint8 = 0xee

	// IROMAlign is the flash MMU page size.
	IROMAlign uint32 = 0x10000

	commonHeaderLen   = 8
	extendedHeaderLen = 16
	segmentHeaderLen  = 8
	digestLen         = 32
)

// CommonHeader is the 8-byte header shared by bootloader and app images.
type CommonHeader struct {
	Magic        uint8
	SegmentCount uint8
	FlashMode    uint8
	FlashConfig  uint8
	Entry        uint32
}

// FlashSizeCode returns the high nibble of FlashConfig.
func (h CommonHeader) FlashSizeCode() uint8 {
	return h.FlashConfig & 0xf0
}

// FlashFrequencyCode returns the low nibble of FlashConfig.
func (h CommonHeader) FlashFrequencyCode() uint8 {
	return h.FlashConfig & 0x0f
}

func (h CommonHeader) appendTo(b []byte) []byte {
	b = append(b, h.Magic, h.SegmentCount, h.FlashMode, h.FlashConfig)
	return binary.LittleEndian.AppendUint32(b, h.Entry)
}

func decodeCommonHeader(b []byte) (CommonHeader, error) {
	if len(b) < commonHeaderLen {
		return CommonHeader{}, fmt.Errorf("%w: header needs %d bytes, got %d", domain.ErrInvalidImage, commonHeaderLen, len(b))
	}
	return CommonHeader{
		Magic:        b[0],
		SegmentCount: b[1],
		FlashMode:    b[2],
		FlashConfig:  b[3],
		Entry:        binary.LittleEndian.Uint32(b[4:8]),
	}, nil
}

// ExtendedHeader follows the common header in application images.
type ExtendedHeader struct {
	WPPin        uint8
	ClkQDrv      uint8
	DCsDrv       uint8
	GdWpDrv      uint8
	ChipID       uint16
	MinRev       uint8
	AppendDigest uint8
}

func (h ExtendedHeader) appendTo(b []byte) []byte {
	b = append(b, h.WPPin, h.ClkQDrv, h.DCsDrv, h.GdWpDrv)
	b = binary.LittleEndian.AppendUint16(b, h.ChipID)
	b = append(b, h.MinRev)
	b = append(b, make([]byte, 8)...)
	return append(b, h.AppendDigest)
}

func decodeExtendedHeader(b []byte) (ExtendedHeader, error) {
	if len(b) < extendedHeaderLen {
		return ExtendedHeader{}, fmt.Errorf("%w: extended header truncated", domain.ErrInvalidImage)
	}
	return ExtendedHeader{
		WPPin:        b[0],
		ClkQDrv:      b[1],
		DCsDrv:       b[2],
		GdWpDrv:      b[3],
		ChipID:       binary.LittleEndian.Uint16(b[4:6]),
		MinRev:       b[6],
		AppendDigest: b[15],
	}, nil
}

func appendSegmentHeader(b []byte, addr, length uint32) []byte {
	b = binary.LittleEndian.AppendUint32(b, addr)
	return binary.LittleEndian.AppendUint32(b, length)
}

// UpdateChecksum folds data into an XOR checksum.
func UpdateChecksum(data []byte, checksum uint8) uint8 {
	for _, b := range data {
		checksum ^= b
	}
	return checksum
}

// EncodeFlashSize returns the high-nibble header encoding of size.
func EncodeFlashSize(size domain.FlashSize) (uint8, error) {
	switch size {
	case domain.FlashSize1MB:
		return 0x00, nil
	case domain.FlashSize2MB:
		return 0x10, nil
	case domain.FlashSize4MB:
		return 0x20, nil
	case domain.FlashSize8MB:
		return 0x30, nil
	case domain.FlashSize16MB:
		return 0x40, nil
	case domain.FlashSize32MB:
		return 0x19, nil
	case domain.FlashSize64MB:
		return 0x1a, nil
	case domain.FlashSize128MB:
		return 0x21, nil
	default:
		return 0, fmt.Errorf("%w: %s", domain.ErrUnsupportedFlashSize, size)
	}
}

// EncodeFlashFrequency returns the low-nibble header encoding of freq on chip.
func EncodeFlashFrequency(chip domain.Chip, freq domain.FlashFrequency) (uint8, error) {
	return chip.FlashFrequencyCode(freq)
}
