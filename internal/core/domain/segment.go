package domain

import "sort"

// CodeSegment is a contiguous run of firmware bytes at a CPU address.
type CodeSegment struct {
	Addr uint32
	Data []byte
}

// Size returns the number of data bytes.
func (s *CodeSegment) Size() uint32 {
	return uint32(len(s.Data))
}

// End returns the address one past the last byte.
func (s *CodeSegment) End() uint32 {
	return s.Addr + s.Size()
}

// Append extends the segment with data. The segment owns its buffer
// afterwards, so the source slice is never written through.
func (s *CodeSegment) Append(data []byte) {
	buf := make([]byte, 0, len(s.Data)+len(data))
	buf = append(buf, s.Data...)
	s.Data = append(buf, data...)
}

// SplitOff removes up to n bytes from the front of the segment and returns
// them as a new segment. The receiver's address advances accordingly.
func (s *CodeSegment) SplitOff(n int) CodeSegment {
	if n > len(s.Data) {
		n = len(s.Data)
	}
	head := CodeSegment{Addr: s.Addr, Data: s.Data[:n:n]}
	s.Data = s.Data[n:]
	s.Addr += uint32(n)
	return head
}

// SortSegments orders segments by address, then by size.
func SortSegments(segments []CodeSegment) {
	sort.SliceStable(segments, func(i, j int) bool {
		if segments[i].Addr != segments[j].Addr {
			return segments[i].Addr < segments[j].Addr
		}
		return len(segments[i].Data) < len(segments[j].Data)
	})
}

// RomSegment is data to be written at an absolute flash offset.
type RomSegment struct {
	Addr uint32
	Data []byte
}

// FirmwareImage is a loaded firmware executable.
type FirmwareImage interface {
	// Entry returns the program entry point.
	Entry() uint32

	// ROMSegments returns the segments mapped from flash on chip.
	ROMSegments(chip Chip) []CodeSegment

	// RAMSegments returns the segments loaded into RAM on chip.
	RAMSegments(chip Chip) []CodeSegment
}
