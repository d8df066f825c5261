package driving

import "github.com/custodia-labs/idfflash/internal/core/domain"

// PartitionFormat selects a partition table encoding.
type PartitionFormat string

// Partition table encodings.
const (
	PartitionFormatCSV    PartitionFormat = "csv"
	PartitionFormatBinary PartitionFormat = "binary"
)

// PartitionService reads and converts partition tables.
type PartitionService interface {
	// Show loads and validates the table at path.
	Show(path string) (*domain.PartitionTable, error)

	// Convert loads the table at path and encodes it as format.
	Convert(path string, format PartitionFormat) ([]byte, error)
}
