package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// FlashMode is the SPI flash access mode stored in the image header.
type FlashMode uint8

// Flash modes, valued as they appear in the header.
const (
	FlashModeQIO  FlashMode = 0
	FlashModeQOUT FlashMode = 1
	FlashModeDIO  FlashMode = 2
	FlashModeDOUT FlashMode = 3
)

// String returns the lowercase mode name.
func (m FlashMode) String() string {
	switch m {
	case FlashModeQIO:
		return "qio"
	case FlashModeQOUT:
		return "qout"
	case FlashModeDIO:
		return "dio"
	case FlashModeDOUT:
		return "dout"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseFlashMode parses a mode name such as "dio".
func ParseFlashMode(s string) (FlashMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "qio":
		return FlashModeQIO, nil
	case "qout":
		return FlashModeQOUT, nil
	case "dio":
		return FlashModeDIO, nil
	case "dout":
		return FlashModeDOUT, nil
	default:
		return 0, fmt.Errorf("%w: flash mode %q", ErrInvalidInput, s)
	}
}

// FlashSize is a SPI flash chip capacity.
type FlashSize uint8

// Supported flash sizes.
const (
	FlashSize256KB FlashSize = iota
	FlashSize512KB
	FlashSize1MB
	FlashSize2MB
	FlashSize4MB
	FlashSize8MB
	FlashSize16MB
	FlashSize32MB
	FlashSize64MB
	FlashSize128MB
)

var flashSizeNames = []string{"256KB", "512KB", "1MB", "2MB", "4MB", "8MB", "16MB", "32MB", "64MB", "128MB"}

// Bytes returns the capacity in bytes.
func (s FlashSize) Bytes() uint32 {
	return uint32(256*1024) << s
}

// String returns the capacity name, e.g. "4MB".
func (s FlashSize) String() string {
	if int(s) < len(flashSizeNames) {
		return flashSizeNames[s]
	}
	return fmt.Sprintf("size(%d)", uint8(s))
}

// ParseFlashSize parses sizes like "4MB", "4mb", "4M" or "512KB".
func ParseFlashSize(s string) (FlashSize, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	if strings.HasSuffix(norm, "M") || strings.HasSuffix(norm, "K") {
		norm += "B"
	}
	for i, name := range flashSizeNames {
		if name == norm {
			return FlashSize(i), nil
		}
	}
	return 0, fmt.Errorf("%w: flash size %q", ErrInvalidInput, s)
}

// FlashSizeFromBytes maps a byte count onto a FlashSize.
func FlashSizeFromBytes(n uint32) (FlashSize, error) {
	for i := range flashSizeNames {
		if FlashSize(i).Bytes() == n {
			return FlashSize(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %d bytes", ErrUnsupportedFlashSize, n)
}

// FlashFrequency is the SPI flash clock in MHz.
type FlashFrequency uint8

// Flash frequencies known to at least one chip.
const (
	Freq12M FlashFrequency = 12
	Freq15M FlashFrequency = 15
	Freq16M FlashFrequency = 16
	Freq20M FlashFrequency = 20
	Freq24M FlashFrequency = 24
	Freq26M FlashFrequency = 26
	Freq30M FlashFrequency = 30
	Freq40M FlashFrequency = 40
	Freq48M FlashFrequency = 48
	Freq60M FlashFrequency = 60
	Freq80M FlashFrequency = 80
)

// String returns e.g. "40MHz".
func (f FlashFrequency) String() string {
	return fmt.Sprintf("%dMHz", uint8(f))
}

// ParseFlashFrequency parses "40m", "40MHz" or "40".
func ParseFlashFrequency(s string) (FlashFrequency, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.TrimSuffix(norm, "hz")
	norm = strings.TrimSuffix(norm, "m")
	n, err := strconv.ParseUint(norm, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: flash frequency %q", ErrInvalidInput, s)
	}
	switch f := FlashFrequency(n); f {
	case Freq12M, Freq15M, Freq16M, Freq20M, Freq24M, Freq26M, Freq30M, Freq40M, Freq48M, Freq60M, Freq80M:
		return f, nil
	default:
		return 0, fmt.Errorf("%w: flash frequency %q", ErrInvalidInput, s)
	}
}

// FlashSettings overrides fields of the bootloader header. A nil field keeps
// the value already present in the bootloader.
type FlashSettings struct {
	Mode *FlashMode
	Size *FlashSize
	Freq *FlashFrequency
}

// IsEmpty reports whether no override is set.
func (s FlashSettings) IsEmpty() bool {
	return s.Mode == nil && s.Size == nil && s.Freq == nil
}
