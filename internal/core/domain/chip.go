package domain

import (
	"fmt"
	"strings"
)

// Chip identifies a member of the ESP32 family.
type Chip int

// Supported chips.
const (
	ChipESP32 Chip = iota
	ChipESP32C2
	ChipESP32C3
	ChipESP32C6
	ChipESP32H2
	ChipESP32S2
	ChipESP32S3
)

// Flash layout shared by every supported chip.
const (
	PartitionTableAddr uint32 = 0x8000
	NVSAddr            uint32 = 0x9000
	NVSSize            uint32 = 0x6000
	PHYInitAddr        uint32 = 0xf000
	PHYInitSize        uint32 = 0x1000
	DefaultAppAddr     uint32 = 0x10000
	DefaultAppSize     uint32 = 0x3f0000
)

// ChipMagicRegister is read after sync to identify the connected chip.
const ChipMagicRegister uint32 = 0x40001000

// AddressRange is a half-open [Start, End) range of the CPU address space.
type AddressRange struct {
	Start uint32
	End   uint32
}

// Contains reports whether addr lies within the range.
func (r AddressRange) Contains(addr uint32) bool {
	return addr >= r.Start && addr < r.End
}

// ChipParams describes the flash layout and memory map of a chip.
type ChipParams struct {
	// BootAddr is where the second-stage bootloader is written.
	BootAddr uint32

	// PartitionAddr is where the partition table is written.
	PartitionAddr uint32

	// AppAddr and AppSize describe the default factory partition.
	AppAddr uint32
	AppSize uint32

	// ChipID is stored in the extended image header.
	ChipID uint16

	// IROM and DROM are the flash-mapped instruction and data regions.
	IROM AddressRange
	DROM AddressRange
}

// IsROMAddress reports whether addr is mapped from flash.
func (p ChipParams) IsROMAddress(addr uint32) bool {
	return p.IROM.Contains(addr) || p.DROM.Contains(addr)
}

// DefaultPartitionTable returns the single-factory-app layout. When the flash
// size is known the factory partition extends to the end of flash.
func (p ChipParams) DefaultPartitionTable(flashSize *uint32) *PartitionTable {
	appSize := p.AppSize
	if flashSize != nil && *flashSize > p.AppAddr {
		appSize = *flashSize - p.AppAddr
	}

	return &PartitionTable{
		Partitions: []Partition{
			{Name: "nvs", Type: PartitionTypeData, SubType: SubTypeNVS, Offset: NVSAddr, Size: NVSSize},
			{Name: "phy_init", Type: PartitionTypeData, SubType: SubTypePHY, Offset: PHYInitAddr, Size: PHYInitSize},
			{Name: "factory", Type: PartitionTypeApp, SubType: SubTypeFactory, Offset: p.AppAddr, Size: appSize},
		},
	}
}

type chipInfo struct {
	name      string
	params    ChipParams
	magic     []uint32
	macWords  [2]uint32
	freqCodes map[FlashFrequency]uint8
	// encryptedFlashBegin is set for ROMs whose FLASH_BEGIN takes an extra word.
	encryptedFlashBegin bool
}

var (
	freqCodesDefault = map[FlashFrequency]uint8{Freq40M: 0x0, Freq26M: 0x1, Freq20M: 0x2, Freq80M: 0xf}
	freqCodesC2      = map[FlashFrequency]uint8{Freq30M: 0x0, Freq20M: 0x1, Freq15M: 0x2, Freq60M: 0xf}
	freqCodesH2      = map[FlashFrequency]uint8{Freq24M: 0x0, Freq16M: 0x1, Freq12M: 0x2, Freq48M: 0xf}
)

func layout(bootAddr uint32, chipID uint16, irom, drom AddressRange) ChipParams {
	return ChipParams{
		BootAddr:      bootAddr,
		PartitionAddr: PartitionTableAddr,
		AppAddr:       DefaultAppAddr,
		AppSize:       DefaultAppSize,
		ChipID:        chipID,
		IROM:          irom,
		DROM:          drom,
	}
}

var chips = map[Chip]chipInfo{
	ChipESP32: {
		name:      "esp32",
		params:    layout(0x1000, 0, AddressRange{0x400d0000, 0x40400000}, AddressRange{0x3f400000, 0x3f800000}),
		magic:     []uint32{0x00f01d83},
		macWords:  [2]uint32{0x3ff5a004, 0x3ff5a008},
		freqCodes: freqCodesDefault,
	},
	ChipESP32C2: {
		name:                "esp32c2",
		params:              layout(0x0, 12, AddressRange{0x42000000, 0x42400000}, AddressRange{0x3c000000, 0x3c400000}),
		magic:               []uint32{0x6f51306f, 0x7c41a06f},
		macWords:            [2]uint32{0x60008840, 0x60008844},
		freqCodes:           freqCodesC2,
		encryptedFlashBegin: true,
	},
	ChipESP32C3: {
		name:                "esp32c3",
		params:              layout(0x0, 5, AddressRange{0x42000000, 0x42800000}, AddressRange{0x3c000000, 0x3c800000}),
		magic:               []uint32{0x6921506f, 0x1b31506f, 0x4881606f, 0x4361606f},
		macWords:            [2]uint32{0x60008844, 0x60008848},
		freqCodes:           freqCodesDefault,
		encryptedFlashBegin: true,
	},
	ChipESP32C6: {
		name:                "esp32c6",
		params:              layout(0x0, 13, AddressRange{0x42000000, 0x42800000}, AddressRange{0x42800000, 0x43000000}),
		magic:               []uint32{0x2ce0806f},
		macWords:            [2]uint32{0x600b0844, 0x600b0848},
		freqCodes:           freqCodesDefault,
		encryptedFlashBegin: true,
	},
	ChipESP32H2: {
		name:                "esp32h2",
		params:              layout(0x0, 16, AddressRange{0x42000000, 0x42800000}, AddressRange{0x42800000, 0x43000000}),
		magic:               []uint32{0xd7b73e80},
		macWords:            [2]uint32{0x600b0844, 0x600b0848},
		freqCodes:           freqCodesH2,
		encryptedFlashBegin: true,
	},
	ChipESP32S2: {
		name:                "esp32s2",
		params:              layout(0x1000, 2, AddressRange{0x40080000, 0x40b80000}, AddressRange{0x3f000000, 0x3f3f0000}),
		magic:               []uint32{0x000007c6},
		macWords:            [2]uint32{0x3f41a044, 0x3f41a048},
		freqCodes:           freqCodesDefault,
		encryptedFlashBegin: true,
	},
	ChipESP32S3: {
		name:                "esp32s3",
		params:              layout(0x0, 9, AddressRange{0x42000000, 0x44000000}, AddressRange{0x3c000000, 0x3e000000}),
		magic:               []uint32{0x00000009},
		macWords:            [2]uint32{0x60007044, 0x60007048},
		freqCodes:           freqCodesDefault,
		encryptedFlashBegin: true,
	},
}

// AllChips returns every supported chip in declaration order.
func AllChips() []Chip {
	return []Chip{ChipESP32, ChipESP32C2, ChipESP32C3, ChipESP32C6, ChipESP32H2, ChipESP32S2, ChipESP32S3}
}

// IsValid returns true if the chip is recognised.
func (c Chip) IsValid() bool {
	_, ok := chips[c]
	return ok
}

// String returns the lowercase chip name, e.g. "esp32c3".
func (c Chip) String() string {
	if info, ok := chips[c]; ok {
		return info.name
	}
	return "unknown"
}

// Params returns the flash layout and memory map for the chip.
func (c Chip) Params() ChipParams {
	return chips[c].params
}

// MACAddressRegisters returns the two eFuse words holding the factory MAC.
func (c Chip) MACAddressRegisters() (uint32, uint32) {
	w := chips[c].macWords
	return w[0], w[1]
}

// FlashFrequencyCode returns the header encoding of freq for this chip.
func (c Chip) FlashFrequencyCode(freq FlashFrequency) (uint8, error) {
	code, ok := chips[c].freqCodes[freq]
	if !ok {
		return 0, fmt.Errorf("%w: %s on %s", ErrUnsupportedFlashFrequency, freq, c)
	}
	return code, nil
}

// SupportsEncryptedFlashBegin reports whether the ROM's FLASH_BEGIN command
// carries the trailing encryption word.
func (c Chip) SupportsEncryptedFlashBegin() bool {
	return chips[c].encryptedFlashBegin
}

// ParseChip parses a chip name. Matching ignores case, dashes and underscores.
func ParseChip(s string) (Chip, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "", "_", "").Replace(norm)
	for _, c := range AllChips() {
		if chips[c].name == norm {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedChip, s)
}

// ChipFromMagic identifies a chip from the value of ChipMagicRegister.
func ChipFromMagic(magic uint32) (Chip, error) {
	for _, c := range AllChips() {
		for _, m := range chips[c].magic {
			if m == magic {
				return c, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: magic value 0x%08x", ErrUnsupportedChip, magic)
}
