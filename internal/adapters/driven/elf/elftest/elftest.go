// Package elftest builds minimal ELF32 executables for tests.
package elftest

import (
	"encoding/binary"
)

const (
	headerLen        = 52
	sectionHeaderLen = 40

	shtProgbits = 1
	shtNobits   = 8
	shfAlloc    = 0x2

	// MachineXtensa and MachineRISCV are ELF e_machine values.
	MachineXtensa = 94
	MachineRISCV  = 243
)

// Section is one section of a generated executable.
type Section struct {
	Addr uint32
	Data []byte

	// NoAlloc clears SHF_ALLOC.
	NoAlloc bool

	// NoBits makes the section SHT_NOBITS, like .bss.
	NoBits bool
}

// Build returns a little-endian ELF32 executable with the given sections.
func Build(machine uint16, entry uint32, sections ...Section) []byte {
	le := binary.LittleEndian

	var body []byte
	offsets := make([]uint32, len(sections))
	for i, s := range sections {
		offsets[i] = uint32(headerLen + len(body))
		if !s.NoBits {
			body = append(body, s.Data...)
		}
	}
	shoff := uint32(headerLen + len(body))

	out := make([]byte, headerLen, int(shoff)+(len(sections)+1)*sectionHeaderLen)
	copy(out, []byte{0x7f, 'E', 'L', 'F', 1, 1, 1})
	le.PutUint16(out[16:], 2) // ET_EXEC
	le.PutUint16(out[18:], machine)
	le.PutUint32(out[20:], 1)
	le.PutUint32(out[24:], entry)
	le.PutUint32(out[32:], shoff)
	le.PutUint16(out[40:], headerLen)
	le.PutUint16(out[46:], sectionHeaderLen)
	le.PutUint16(out[48:], uint16(len(sections)+1))

	out = append(out, body...)
	out = append(out, make([]byte, sectionHeaderLen)...) // SHT_NULL

	for i, s := range sections {
		sh := make([]byte, sectionHeaderLen)
		typ, flags := uint32(shtProgbits), uint32(shfAlloc)
		if s.NoBits {
			typ = shtNobits
		}
		if s.NoAlloc {
			flags = 0
		}
		le.PutUint32(sh[4:], typ)
		le.PutUint32(sh[8:], flags)
		le.PutUint32(sh[12:], s.Addr)
		le.PutUint32(sh[16:], offsets[i])
		le.PutUint32(sh[20:], uint32(len(s.Data)))
		le.PutUint32(sh[32:], 4)
		out = append(out, sh...)
	}
	return out
}
