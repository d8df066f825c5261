package elf

import (
	"bytes"
	stdelf "debug/elf"
	"fmt"
	"os"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/core/ports/driven"
)

// Ensure Loader implements the interface.
var _ driven.FirmwareLoader = (*Loader)(nil)

// Loader reads ELF files from disk.
type Loader struct{}

// NewLoader creates a new ELF loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the ELF file at path.
func (l *Loader) Load(path string) (domain.FirmwareImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read firmware: %w", err)
	}
	image, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return image, nil
}

// Image is a parsed firmware executable.
type Image struct {
	entry    uint32
	segments []domain.CodeSegment
}

// Ensure Image implements the interface.
var _ domain.FirmwareImage = (*Image)(nil)

// Parse decodes an ELF executable held in memory.
func Parse(data []byte) (*Image, error) {
	f, err := stdelf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidELF, err)
	}
	defer f.Close()

	if f.Class != stdelf.ELFCLASS32 || f.Data != stdelf.ELFDATA2LSB {
		return nil, fmt.Errorf("%w: want 32-bit little-endian, got %s %s", domain.ErrInvalidELF, f.Class, f.Data)
	}

	image := &Image{entry: uint32(f.Entry)} //nolint:gosec // ELF32 entry fits in 32 bits
	for _, section := range f.Sections {
		if section.Type != stdelf.SHT_PROGBITS || section.Flags&stdelf.SHF_ALLOC == 0 || section.Size == 0 {
			continue
		}
		contents, err := section.Data()
		if err != nil {
			return nil, fmt.Errorf("%w: section %q: %w", domain.ErrInvalidELF, section.Name, err)
		}
		image.segments = append(image.segments, domain.CodeSegment{
			Addr: uint32(section.Addr), //nolint:gosec // ELF32 addresses fit in 32 bits
			Data: contents,
		})
	}
	domain.SortSegments(image.segments)

	return image, nil
}

// Entry returns the program entry point.
func (i *Image) Entry() uint32 {
	return i.entry
}

// Segments returns every loadable segment ordered by address.
func (i *Image) Segments() []domain.CodeSegment {
	return i.segments
}

// ROMSegments returns the segments mapped from flash on chip.
func (i *Image) ROMSegments(chip domain.Chip) []domain.CodeSegment {
	params := chip.Params()
	return i.filter(func(s domain.CodeSegment) bool { return params.IsROMAddress(s.Addr) })
}

// RAMSegments returns the segments loaded into RAM on chip.
func (i *Image) RAMSegments(chip domain.Chip) []domain.CodeSegment {
	params := chip.Params()
	return i.filter(func(s domain.CodeSegment) bool { return !params.IsROMAddress(s.Addr) })
}

func (i *Image) filter(keep func(domain.CodeSegment) bool) []domain.CodeSegment {
	var out []domain.CodeSegment
	for _, s := range i.segments {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}
