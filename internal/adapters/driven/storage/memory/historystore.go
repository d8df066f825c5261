package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/core/ports/driven"
)

// Ensure HistoryStore implements the interface.
var _ driven.HistoryStore = (*HistoryStore)(nil)

// HistoryStore is an in-memory implementation of driven.HistoryStore for testing.
type HistoryStore struct {
	mu      sync.RWMutex
	records map[string]domain.FlashRecord
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		records: make(map[string]domain.FlashRecord),
	}
}

// Save stores a record, replacing any with the same ID.
func (s *HistoryStore) Save(_ context.Context, record *domain.FlashRecord) error {
	if record == nil || record.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = *record
	return nil
}

// Get retrieves a record by ID.
func (s *HistoryStore) Get(_ context.Context, id string) (*domain.FlashRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &record, nil
}

// List returns the newest records first.
func (s *HistoryStore) List(_ context.Context, limit int) ([]domain.FlashRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.FlashRecord, 0, len(s.records))
	for _, r := range s.records {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].FlashedAt.After(result[j].FlashedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Clear removes every record.
func (s *HistoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]domain.FlashRecord)
	return nil
}
