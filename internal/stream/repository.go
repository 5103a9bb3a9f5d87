package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quipay/quipay/internal/types"
)

// Index kinds for the payer and payee secondary indexes.
const (
	indexPayer = "payer"
	indexPayee = "payee"
)

// Repository persists stream records together with the per-payer and
// per-payee identifier indexes. Insert appends to both indexes, Remove
// deletes from both; the indexes use swap-with-last removal and therefore
// do not preserve order.
type Repository interface {
	NextID(ctx context.Context) (int64, error)
	Insert(ctx context.Context, s Stream) error
	Get(ctx context.Context, id int64) (Stream, error)
	Update(ctx context.Context, s Stream) error
	Remove(ctx context.Context, s Stream) error
	IDsByPayer(ctx context.Context, payer string) ([]int64, error)
	IDsByPayee(ctx context.Context, payee string) ([]int64, error)
}

// PostgresRepository stores streams in PostgreSQL. The secondary indexes
// live in stream_index rows keyed by (kind, owner, slot); a covering
// unique constraint on (kind, owner, stream_id) doubles as the position
// side-table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// NextID reserves the next sequential stream identifier.
func (r *PostgresRepository) NextID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.db.QueryRow(ctx, `SELECT nextval('stream_ids')`).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// Insert persists a stream record and appends its id to the payer and
// payee indexes in one transaction.
func (r *PostgresRepository) Insert(ctx context.Context, s Stream) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `INSERT INTO streams
        (id, payer, payee, asset, rate, cliff_time, start_time, end_time,
         total_amount, withdrawn_amount, last_withdrawal_time, status, created_at, closed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		s.ID, s.Payer, s.Payee, s.Asset, s.Rate, s.CliffTime, s.StartTime, s.EndTime,
		s.TotalAmount, s.WithdrawnAmount, s.LastWithdrawalTime, string(s.Status), s.CreatedAt, s.ClosedAt); err != nil {
		return err
	}

	if err := appendIndex(ctx, tx, indexPayer, s.Payer, s.ID); err != nil {
		return err
	}
	if err := appendIndex(ctx, tx, indexPayee, s.Payee, s.ID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Get fetches a stream by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (Stream, error) {
	row := r.db.QueryRow(ctx, `SELECT id, payer, payee, asset, rate, cliff_time, start_time, end_time,
        total_amount, withdrawn_amount, last_withdrawal_time, status, created_at, closed_at
        FROM streams WHERE id = $1`, id)
	var s Stream
	var status string
	if err := row.Scan(&s.ID, &s.Payer, &s.Payee, &s.Asset, &s.Rate, &s.CliffTime, &s.StartTime, &s.EndTime,
		&s.TotalAmount, &s.WithdrawnAmount, &s.LastWithdrawalTime, &status, &s.CreatedAt, &s.ClosedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stream{}, types.ErrStreamNotFound
		}
		return Stream{}, err
	}
	s.Status = Status(status)
	return s, nil
}

// Update rewrites the mutable fields of a stream record.
func (r *PostgresRepository) Update(ctx context.Context, s Stream) error {
	cmd, err := r.db.Exec(ctx, `UPDATE streams
        SET withdrawn_amount = $1, last_withdrawal_time = $2, status = $3, closed_at = $4
        WHERE id = $5`,
		s.WithdrawnAmount, s.LastWithdrawalTime, string(s.Status), s.ClosedAt, s.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return types.ErrStreamNotFound
	}
	return nil
}

// Remove deletes the record and detaches it from both indexes in one
// transaction.
func (r *PostgresRepository) Remove(ctx context.Context, s Stream) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	cmd, err := tx.Exec(ctx, `DELETE FROM streams WHERE id = $1`, s.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return types.ErrStreamNotFound
	}

	if err := removeIndex(ctx, tx, indexPayer, s.Payer, s.ID); err != nil {
		return err
	}
	if err := removeIndex(ctx, tx, indexPayee, s.Payee, s.ID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// IDsByPayer lists the stream identifiers created by a payer.
func (r *PostgresRepository) IDsByPayer(ctx context.Context, payer string) ([]int64, error) {
	return r.indexIDs(ctx, indexPayer, payer)
}

// IDsByPayee lists the stream identifiers receivable by a payee.
func (r *PostgresRepository) IDsByPayee(ctx context.Context, payee string) ([]int64, error) {
	return r.indexIDs(ctx, indexPayee, payee)
}

func (r *PostgresRepository) indexIDs(ctx context.Context, kind, owner string) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT stream_id FROM stream_index
        WHERE kind = $1 AND owner = $2 ORDER BY slot`, kind, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func appendIndex(ctx context.Context, tx pgx.Tx, kind, owner string, id int64) error {
	_, err := tx.Exec(ctx, `INSERT INTO stream_index (kind, owner, slot, stream_id)
        SELECT $1, $2, COALESCE(MAX(slot) + 1, 0), $3 FROM stream_index
        WHERE kind = $1 AND owner = $2`, kind, owner, id)
	return err
}

// removeIndex applies swap-with-last removal: the tail row overwrites the
// removed row's slot and the tail slot is freed, so removal is O(1) in
// rows touched.
func removeIndex(ctx context.Context, tx pgx.Tx, kind, owner string, id int64) error {
	var slot int64
	if err := tx.QueryRow(ctx, `SELECT slot FROM stream_index
        WHERE kind = $1 AND owner = $2 AND stream_id = $3`, kind, owner, id).Scan(&slot); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("stream %d missing from %s index of %s", id, kind, owner)
		}
		return err
	}

	var lastSlot, lastID int64
	if err := tx.QueryRow(ctx, `SELECT slot, stream_id FROM stream_index
        WHERE kind = $1 AND owner = $2 ORDER BY slot DESC LIMIT 1`, kind, owner).Scan(&lastSlot, &lastID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM stream_index
        WHERE kind = $1 AND owner = $2 AND slot = $3`, kind, owner, lastSlot); err != nil {
		return err
	}
	if lastID != id {
		if _, err := tx.Exec(ctx, `UPDATE stream_index SET stream_id = $1
            WHERE kind = $2 AND owner = $3 AND slot = $4`, lastID, kind, owner, slot); err != nil {
			return err
		}
	}
	return nil
}
