package partition

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

// Load reads a partition table from path, detecting CSV or binary format,
// and validates it.
func Load(path string) (*domain.PartitionTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read partition table: %w", err)
	}

	table, err := Decode(data, strings.EqualFold(filepath.Ext(path), ".csv"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := Validate(table); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// Decode parses data as CSV when csvHint is set or the data does not start
// with a binary entry, otherwise as a binary table.
func Decode(data []byte, csvHint bool) (*domain.PartitionTable, error) {
	if !csvHint && bytes.HasPrefix(data, entryMagic) {
		return UnmarshalBinary(data)
	}
	return ParseCSV(bytes.NewReader(data))
}
