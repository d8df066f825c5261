package imageformat

import (
	"fmt"
	"sort"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

// erasedByte is the value of erased NOR flash.
const erasedByte = 0xff

// Merge lays segments out in a single flash image starting at offset 0,
// filling gaps with 0xFF. When fillTo is non-zero the image is extended to
// that size; segments reaching past it are an error.
func Merge(segments []domain.RomSegment, fillTo uint32) ([]byte, error) {
	sorted := make([]domain.RomSegment, len(segments))
	copy(sorted, segments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Addr < sorted[j].Addr })

	var end uint32
	for i, s := range sorted {
		if i > 0 && s.Addr < sorted[i-1].Addr+uint32(len(sorted[i-1].Data)) {
			return nil, fmt.Errorf("%w: segments at 0x%x and 0x%x overlap", domain.ErrInvalidInput, sorted[i-1].Addr, s.Addr)
		}
		end = s.Addr + uint32(len(s.Data))
	}
	if fillTo != 0 {
		if end > fillTo {
			return nil, fmt.Errorf("%w: image ends at 0x%x beyond flash size 0x%x", domain.ErrImageTooBig, end, fillTo)
		}
		end = fillTo
	}

	out := make([]byte, end)
	for i := range out {
		out[i] = erasedByte
	}
	for _, s := range sorted {
		copy(out[s.Addr:], s.Data)
	}
	return out, nil
}
