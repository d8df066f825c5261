package driving

import (
	"context"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

// HistoryService reads past flash operations.
type HistoryService interface {
	// Recent returns up to n records, newest first. Zero returns all.
	Recent(ctx context.Context, n int) ([]domain.FlashRecord, error)

	// Get retrieves a record by ID.
	Get(ctx context.Context, id string) (*domain.FlashRecord, error)

	// Clear removes every record.
	Clear(ctx context.Context) error
}
