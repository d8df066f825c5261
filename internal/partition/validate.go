package partition

import (
	"fmt"
	"sort"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

// Validate checks that t can be flashed: unique names, non-overlapping
// partitions placed after the table, aligned app partitions, and exactly
// the app partitions a bootloader can boot from.
func Validate(t *domain.PartitionTable) error {
	if len(t.Partitions) == 0 {
		return fmt.Errorf("%w: table is empty", domain.ErrInvalidPartitionTable)
	}

	names := make(map[string]struct{}, len(t.Partitions))
	factories := 0
	apps := 0

	for _, p := range t.Partitions {
		if p.Name == "" || len(p.Name) > nameLen {
			return fmt.Errorf("%w: name %q must be 1-%d bytes", domain.ErrInvalidPartitionTable, p.Name, nameLen)
		}
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("%w: duplicate name %q", domain.ErrInvalidPartitionTable, p.Name)
		}
		names[p.Name] = struct{}{}

		if p.Size == 0 {
			return fmt.Errorf("%w: %s has zero size", domain.ErrInvalidPartitionTable, p.Name)
		}
		if p.Offset < firstOffset {
			return fmt.Errorf("%w: %s at 0x%x overlaps the partition table", domain.ErrInvalidPartitionTable, p.Name, p.Offset)
		}

		if p.Type == domain.PartitionTypeApp {
			apps++
			if p.Offset%appAlign != 0 {
				return fmt.Errorf("%w: app partition %s at 0x%x is not 0x%x aligned", domain.ErrInvalidPartitionTable, p.Name, p.Offset, appAlign)
			}
			if p.SubType == domain.SubTypeFactory {
				factories++
			}
		}
	}

	if apps == 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidPartitionTable, domain.ErrNoAppPartition)
	}
	if factories > 1 {
		return fmt.Errorf("%w: more than one factory app partition", domain.ErrInvalidPartitionTable)
	}

	sorted := make([]domain.Partition, len(t.Partitions))
	copy(sorted, t.Partitions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Offset < sorted[i-1].End() {
			return fmt.Errorf("%w: %s overlaps %s", domain.ErrInvalidPartitionTable, sorted[i].Name, sorted[i-1].Name)
		}
	}

	return nil
}
