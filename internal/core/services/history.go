package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/core/ports/driven"
	"github.com/custodia-labs/idfflash/internal/core/ports/driving"
)

// Ensure HistoryService implements the interface.
var _ driving.HistoryService = (*HistoryService)(nil)

// HistoryService reads the record of past flash operations.
type HistoryService struct {
	store driven.HistoryStore
}

// NewHistoryService creates a new history service. A nil store makes every
// call return domain.ErrNotImplemented.
func NewHistoryService(store driven.HistoryStore) *HistoryService {
	return &HistoryService{store: store}
}

// Recent returns up to n records, newest first. Zero returns all.
func (s *HistoryService) Recent(ctx context.Context, n int) ([]domain.FlashRecord, error) {
	if s.store == nil {
		return nil, domain.ErrNotImplemented
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative limit %d", domain.ErrInvalidInput, n)
	}
	return s.store.List(ctx, n)
}

// Get retrieves a record by ID.
func (s *HistoryService) Get(ctx context.Context, id string) (*domain.FlashRecord, error) {
	if s.store == nil {
		return nil, domain.ErrNotImplemented
	}
	if id == "" {
		return nil, fmt.Errorf("%w: empty record id", domain.ErrInvalidInput)
	}
	return s.store.Get(ctx, id)
}

// Clear removes every record.
func (s *HistoryService) Clear(ctx context.Context) error {
	if s.store == nil {
		return domain.ErrNotImplemented
	}
	return s.store.Clear(ctx)
}
