package treasury

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists treasury entries in PostgreSQL, one row per asset.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a store backed by PostgreSQL.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get fetches the entry for an asset. Untracked assets read as zero.
func (s *PostgresStore) Get(ctx context.Context, asset string) (Entry, error) {
	row := s.db.QueryRow(ctx, `SELECT balance, liability FROM treasury_entries WHERE asset = $1`, asset)
	var e Entry
	if err := row.Scan(&e.Balance, &e.Liability); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, nil
		}
		return Entry{}, err
	}
	return e, nil
}

// Put upserts the entry for an asset.
func (s *PostgresStore) Put(ctx context.Context, asset string, entry Entry) error {
	_, err := s.db.Exec(ctx, `INSERT INTO treasury_entries (asset, balance, liability)
        VALUES ($1, $2, $3)
        ON CONFLICT (asset) DO UPDATE SET balance = EXCLUDED.balance, liability = EXCLUDED.liability`,
		asset, entry.Balance, entry.Liability)
	return err
}
