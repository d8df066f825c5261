package services

import (
	"fmt"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/core/ports/driving"
	"github.com/custodia-labs/idfflash/internal/partition"
)

// Ensure PartitionService implements the interface.
var _ driving.PartitionService = (*PartitionService)(nil)

// PartitionService reads and converts partition tables.
type PartitionService struct{}

// NewPartitionService creates a new partition service.
func NewPartitionService() *PartitionService {
	return &PartitionService{}
}

// Show loads and validates the table at path.
func (s *PartitionService) Show(path string) (*domain.PartitionTable, error) {
	return partition.Load(path)
}

// Convert loads the table at path and encodes it as format.
func (s *PartitionService) Convert(path string, format driving.PartitionFormat) ([]byte, error) {
	table, err := s.Show(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case driving.PartitionFormatCSV:
		return partition.MarshalCSV(table), nil
	case driving.PartitionFormatBinary:
		return partition.MarshalBinary(table)
	default:
		return nil, fmt.Errorf("%w: partition table format %q", domain.ErrInvalidInput, format)
	}
}
