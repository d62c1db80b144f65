package bookings

import (
	"context"
	"fmt"

	"github.com/wolfman30/gym-booking-bot/internal/sheets"
)

// Store persists booking records, one table per category.
type Store interface {
	Append(ctx context.Context, table string, rec Record) error
	List(ctx context.Context, table string) ([]Record, error)
}

// SheetStore keeps bookings in worksheets of a tabular source.
type SheetStore struct {
	source sheets.Source
}

// NewSheetStore wraps source.
func NewSheetStore(source sheets.Source) *SheetStore {
	if source == nil {
		panic("bookings: sheets source required")
	}
	return &SheetStore{source: source}
}

// Append adds rec as the last row of table.
func (s *SheetStore) Append(ctx context.Context, table string, rec Record) error {
	if err := s.source.Append(ctx, table, rec.Values()); err != nil {
		return fmt.Errorf("bookings: append to %s: %w", table, err)
	}
	return nil
}

// List returns every record in table, skipping the header row.
func (s *SheetStore) List(ctx context.Context, table string) ([]Record, error) {
	values, err := s.source.Values(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("bookings: list %s: %w", table, err)
	}
	out := make([]Record, 0, len(values))
	for i, row := range values {
		if i == 0 && isHeader(row) {
			continue
		}
		out = append(out, RecordFromValues(row))
	}
	return out, nil
}

func isHeader(row []string) bool {
	return len(row) > 0 && row[0] == Header[0]
}
