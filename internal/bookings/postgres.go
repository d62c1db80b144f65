package bookings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// db is the subset of pgxpool.Pool used by PostgresStore.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore keeps bookings in one Postgres table per category.
type PostgresStore struct {
	db db
}

// NewPostgresStore wraps a pgx pool (or pgxmock in tests).
func NewPostgresStore(conn db) *PostgresStore {
	if conn == nil {
		panic("bookings: pgx pool required")
	}
	return &PostgresStore{db: conn}
}

// EnsureTable creates table when it does not exist yet.
func (s *PostgresStore) EnsureTable(ctx context.Context, table string) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		item TEXT NOT NULL,
		booking_date TEXT NOT NULL,
		booking_time TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, pgx.Identifier{table}.Sanitize())
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("bookings: ensure table %s: %w", table, err)
	}
	return nil
}

// Append inserts rec into table.
func (s *PostgresStore) Append(ctx context.Context, table string, rec Record) error {
	query := fmt.Sprintf(`INSERT INTO %s (user_id, display_name, category, item, booking_date, booking_time)
		VALUES ($1, $2, $3, $4, $5, $6)`, pgx.Identifier{table}.Sanitize())
	if _, err := s.db.Exec(ctx, query, rec.UserID, rec.DisplayName, rec.Category, rec.Item, rec.Date, rec.Time); err != nil {
		return fmt.Errorf("bookings: insert into %s: %w", table, err)
	}
	return nil
}

// List returns the records of table in insertion order.
func (s *PostgresStore) List(ctx context.Context, table string) ([]Record, error) {
	query := fmt.Sprintf(`SELECT user_id, display_name, category, item, booking_date, booking_time
		FROM %s ORDER BY id`, pgx.Identifier{table}.Sanitize())
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("bookings: query %s: %w", table, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.UserID, &rec.DisplayName, &rec.Category, &rec.Item, &rec.Date, &rec.Time); err != nil {
			return nil, fmt.Errorf("bookings: scan %s: %w", table, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: iterate %s: %w", table, err)
	}
	return out, nil
}
