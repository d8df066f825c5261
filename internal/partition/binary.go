package partition

import (
	"bytes"
	"crypto/md5" //nolint:gosec // G501: the on-flash format mandates MD5.
	"encoding/binary"
	"fmt"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

// Binary layout constants.
const (
	// MaxTableLength is the space reserved for the table in flash.
	MaxTableLength = 0xc00

	entryLen   = 32
	nameLen    = 16
	maxEntries = MaxTableLength/entryLen - 1

	flagEncrypted uint32 = 1 << 0
	flagReadOnly  uint32 = 1 << 1
)

var (
	entryMagic = []byte{0xaa, 0x50}
	md5Magic   = []byte{0xeb, 0xeb}
)

// MarshalBinary encodes t in the on-flash format, including the MD5 entry,
// padded with 0xFF to MaxTableLength.
func MarshalBinary(t *domain.PartitionTable) ([]byte, error) {
	if len(t.Partitions) > maxEntries {
		return nil, fmt.Errorf("%w: %d partitions exceeds maximum of %d", domain.ErrInvalidPartitionTable, len(t.Partitions), maxEntries)
	}

	out := make([]byte, 0, MaxTableLength)
	for _, p := range t.Partitions {
		if len(p.Name) > nameLen {
			return nil, fmt.Errorf("%w: name %q longer than %d bytes", domain.ErrInvalidPartitionTable, p.Name, nameLen)
		}
		out = append(out, entryMagic...)
		out = append(out, uint8(p.Type), uint8(p.SubType))
		out = binary.LittleEndian.AppendUint32(out, p.Offset)
		out = binary.LittleEndian.AppendUint32(out, p.Size)

		var name [nameLen]byte
		copy(name[:], p.Name)
		out = append(out, name[:]...)

		var flags uint32
		if p.Encrypted {
			flags |= flagEncrypted
		}
		if p.ReadOnly {
			flags |= flagReadOnly
		}
		out = binary.LittleEndian.AppendUint32(out, flags)
	}

	sum := md5.Sum(out) //nolint:gosec // G401: see import.
	out = append(out, md5Magic...)
	out = append(out, bytes.Repeat([]byte{0xff}, 14)...)
	out = append(out, sum[:]...)

	for len(out) < MaxTableLength {
		out = append(out, 0xff)
	}
	return out, nil
}

// UnmarshalBinary decodes an on-flash partition table. Decoding stops at the
// first erased entry; an MD5 entry, when present, must match.
func UnmarshalBinary(data []byte) (*domain.PartitionTable, error) {
	table := &domain.PartitionTable{}

	for off := 0; off+entryLen <= len(data) && off < MaxTableLength; off += entryLen {
		entry := data[off : off+entryLen]

		switch {
		case bytes.Equal(entry[:2], entryMagic):
			table.Partitions = append(table.Partitions, decodeEntry(entry))
		case bytes.Equal(entry[:2], md5Magic):
			sum := md5.Sum(data[:off]) //nolint:gosec // G401: see import.
			if !bytes.Equal(sum[:], entry[16:32]) {
				return nil, fmt.Errorf("%w: MD5 mismatch", domain.ErrInvalidPartitionTable)
			}
		case isErased(entry):
			return table, nil
		default:
			return nil, fmt.Errorf("%w: unknown entry magic at 0x%x", domain.ErrInvalidPartitionTable, off)
		}
	}

	return table, nil
}

func decodeEntry(entry []byte) domain.Partition {
	flags := binary.LittleEndian.Uint32(entry[28:32])
	return domain.Partition{
		Name:      string(bytes.TrimRight(entry[12:28], "\x00")),
		Type:      domain.PartitionType(entry[2]),
		SubType:   domain.PartitionSubType(entry[3]),
		Offset:    binary.LittleEndian.Uint32(entry[4:8]),
		Size:      binary.LittleEndian.Uint32(entry[8:12]),
		Encrypted: flags&flagEncrypted != 0,
		ReadOnly:  flags&flagReadOnly != 0,
	}
}

func isErased(b []byte) bool {
	for _, v := range b {
		if v != 0xff {
			return false
		}
	}
	return true
}
