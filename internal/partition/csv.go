package partition

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

// Alignment rules for automatically placed partitions.
const (
	appAlign  uint32 = 0x10000
	dataAlign uint32 = 0x1000

	// firstOffset is the first byte after the partition table region.
	firstOffset = domain.PartitionTableAddr + 0x1000
)

const csvHeader = "# Name, Type, SubType, Offset, Size, Flags\n"

// ParseCSV reads an ESP-IDF partition table CSV. Empty offsets are assigned
// after the preceding partition, honouring app and data alignment.
func ParseCSV(r io.Reader) (*domain.PartitionTable, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	table := &domain.PartitionTable{}
	next := firstOffset

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPartitionTable, err)
		}
		if isBlank(record) {
			continue
		}
		// Comment lines are skipped inside the reader, so ask it for the line.
		line, _ := reader.FieldPos(0)
		if len(record) < 5 {
			return nil, fmt.Errorf("%w: line %d: expected at least 5 fields, got %d", domain.ErrInvalidPartitionTable, line, len(record))
		}

		p, err := parseRecord(record, next)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		table.Partitions = append(table.Partitions, p)
		next = p.End()
	}

	return table, nil
}

func parseRecord(record []string, next uint32) (domain.Partition, error) {
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}

	p := domain.Partition{Name: record[0]}

	var err error
	if p.Type, err = domain.ParsePartitionType(record[1]); err != nil {
		return p, err
	}
	if p.SubType, err = domain.ParseSubType(p.Type, record[2]); err != nil {
		return p, err
	}

	if record[3] == "" {
		align := dataAlign
		if p.Type == domain.PartitionTypeApp {
			align = appAlign
		}
		p.Offset = alignUp(next, align)
	} else if p.Offset, err = parseSize(record[3]); err != nil {
		return p, err
	}

	if p.Size, err = parseSize(record[4]); err != nil {
		return p, err
	}

	if len(record) > 5 {
		for _, flag := range strings.Split(record[5], ":") {
			switch strings.TrimSpace(flag) {
			case "":
			case "encrypted":
				p.Encrypted = true
			case "readonly":
				p.ReadOnly = true
			default:
				return p, fmt.Errorf("%w: unknown flag %q", domain.ErrInvalidPartitionTable, flag)
			}
		}
	}

	return p, nil
}

// parseSize accepts decimal, hex (0x...) and K/M suffixed values.
func parseSize(s string) (uint32, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: missing size", domain.ErrInvalidPartitionTable)
	}

	multiplier := uint64(1)
	switch strings.ToUpper(s[len(s)-1:]) {
	case "K":
		multiplier = 1024
		s = s[:len(s)-1]
	case "M":
		multiplier = 1024 * 1024
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad number %q", domain.ErrInvalidPartitionTable, s)
	}
	n *= multiplier
	if n > 0xffffffff {
		return 0, fmt.Errorf("%w: %q out of range", domain.ErrInvalidPartitionTable, s)
	}
	return uint32(n), nil
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// MarshalCSV renders t in the ESP-IDF CSV format.
func MarshalCSV(t *domain.PartitionTable) []byte {
	var b strings.Builder
	b.WriteString(csvHeader)
	for _, p := range t.Partitions {
		var flags []string
		if p.Encrypted {
			flags = append(flags, "encrypted")
		}
		if p.ReadOnly {
			flags = append(flags, "readonly")
		}
		fmt.Fprintf(&b, "%s,%s,%s,0x%x,0x%x,%s\n",
			p.Name, p.Type, domain.SubTypeName(p.Type, p.SubType), p.Offset, p.Size, strings.Join(flags, ":"))
	}
	return []byte(b.String())
}
