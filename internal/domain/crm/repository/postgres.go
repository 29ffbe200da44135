package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/donorflow/donorflow/internal/domain/crm"
)

// DB is the subset of pgxpool.Pool the store needs; pgxmock satisfies it
// in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore persists entries in the crm_entries table. Batch appends
// run inside one transaction so partial batches are never visible.
type PostgresStore struct {
	db DB
}

var _ crm.EntryStore = (*PostgresStore)(nil)

// NewPostgresStore creates a Postgres-backed entry store.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// AppendBatch inserts all rows in one transaction, in input order, and
// returns the entries with their assigned ids.
func (s *PostgresStore) AppendBatch(ctx context.Context, source string, rows []crm.Row) ([]crm.Entry, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appended := make([]crm.Entry, 0, len(rows))
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("failed to encode row: %w", err)
		}

		var id int64
		err = tx.QueryRow(ctx,
			`INSERT INTO crm_entries (data, source) VALUES ($1, $2) RETURNING id`,
			data, source,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("failed to insert row: %w", err)
		}
		appended = append(appended, crm.Entry{ID: id, Source: source, Data: row})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}
	return appended, nil
}

// ListAll returns every stored entry in id order.
func (s *PostgresStore) ListAll(ctx context.Context) ([]crm.Entry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, data, source FROM crm_entries ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []crm.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpdateByID merges the patch into the stored jsonb document.
func (s *PostgresStore) UpdateByID(ctx context.Context, id int64, patch crm.Row) (crm.Entry, error) {
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return crm.Entry{}, fmt.Errorf("failed to encode patch: %w", err)
	}

	row := s.db.QueryRow(ctx,
		`UPDATE crm_entries SET data = data || $2::jsonb WHERE id = $1 RETURNING id, data, source`,
		id, patchJSON,
	)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return crm.Entry{}, crm.ErrEntryNotFound
	}
	if err != nil {
		return crm.Entry{}, err
	}
	return e, nil
}

// Count reports the number of stored entries.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM crm_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (crm.Entry, error) {
	var (
		e    crm.Entry
		data []byte
	)
	if err := r.Scan(&e.ID, &data, &e.Source); err != nil {
		return crm.Entry{}, err
	}
	if err := json.Unmarshal(data, &e.Data); err != nil {
		return crm.Entry{}, fmt.Errorf("failed to decode row data: %w", err)
	}
	return e, nil
}
