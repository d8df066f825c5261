package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/core/ports/driven"
)

// flashedAtLayout is fixed width so that ORDER BY flashed_at sorts by time.
const flashedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// historyStore implements driven.HistoryStore.
type historyStore struct {
	store *Store
}

var _ driven.HistoryStore = (*historyStore)(nil)

// Save stores or replaces a flash record.
func (s *historyStore) Save(ctx context.Context, record *domain.FlashRecord) error {
	if record == nil || record.ID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO flash_history (id, port, chip, image_path, image_sha256, app_size, part_size, app_addr, flashed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			port = excluded.port,
			chip = excluded.chip,
			image_path = excluded.image_path,
			image_sha256 = excluded.image_sha256,
			app_size = excluded.app_size,
			part_size = excluded.part_size,
			app_addr = excluded.app_addr,
			flashed_at = excluded.flashed_at
	`, record.ID, record.Port, record.Chip.String(), record.ImagePath, record.ImageSHA256,
		int64(record.AppSize), int64(record.PartSize), int64(record.AppAddr),
		record.FlashedAt.UTC().Format(flashedAtLayout))

	if err != nil {
		return fmt.Errorf("saving flash record: %w", err)
	}
	return nil
}

// Get retrieves a flash record by ID.
func (s *historyStore) Get(ctx context.Context, id string) (*domain.FlashRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, port, chip, image_path, image_sha256, app_size, part_size, app_addr, flashed_at
		FROM flash_history WHERE id = ?
	`, id)

	record, err := scanFlashRecord(row)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// List returns flash records, most recent first.
func (s *historyStore) List(ctx context.Context, limit int) ([]domain.FlashRecord, error) {
	// SQLite treats a negative LIMIT as unbounded.
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, port, chip, image_path, image_sha256, app_size, part_size, app_addr, flashed_at
		FROM flash_history
		ORDER BY flashed_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying flash history: %w", err)
	}
	defer rows.Close()

	var records []domain.FlashRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		record, err := scanFlashRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating flash history: %w", err)
	}

	return records, nil
}

// Clear removes every flash record.
func (s *historyStore) Clear(ctx context.Context) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM flash_history"); err != nil {
		return fmt.Errorf("clearing flash history: %w", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlashRecord(row rowScanner) (*domain.FlashRecord, error) {
	var record domain.FlashRecord
	var chip, flashedAt string
	var appSize, partSize, appAddr int64

	if err := row.Scan(&record.ID, &record.Port, &chip, &record.ImagePath, &record.ImageSHA256,
		&appSize, &partSize, &appAddr, &flashedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning flash record: %w", err)
	}

	parsedChip, err := domain.ParseChip(chip)
	if err != nil {
		return nil, fmt.Errorf("flash record %s: %w", record.ID, err)
	}
	record.Chip = parsedChip
	record.AppSize = uint32(appSize)   //nolint:gosec // stored from uint32
	record.PartSize = uint32(partSize) //nolint:gosec // stored from uint32
	record.AppAddr = uint32(appAddr)   //nolint:gosec // stored from uint32

	// RFC3339Nano also accepts the fixed-width fraction.
	record.FlashedAt, err = time.Parse(time.RFC3339Nano, flashedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing flashed_at for %s: %w", record.ID, err)
	}

	return &record, nil
}
