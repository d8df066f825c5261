package driven

import (
	"context"

	"github.com/custodia-labs/idfflash/internal/core/domain"
)

// HistoryStore persists completed flash operations.
type HistoryStore interface {
	// Save stores a record. An existing record with the same ID is replaced.
	Save(ctx context.Context, record *domain.FlashRecord) error

	// Get retrieves a record by ID.
	// Returns domain.ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.FlashRecord, error)

	// List returns the newest records first. A limit of 0 returns all.
	List(ctx context.Context, limit int) ([]domain.FlashRecord, error)

	// Clear removes every record.
	Clear(ctx context.Context) error
}
