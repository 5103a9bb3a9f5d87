package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrWorkerNotFound indicates the address matches no registered worker.
var ErrWorkerNotFound = errors.New("worker not registered")

// ErrWorkerExists indicates the address is already registered.
var ErrWorkerExists = errors.New("worker already registered")

// Repository persists worker profiles plus the per-employer active-worker
// index. The index uses swap-with-last removal, so pagination order is not
// a contract.
type Repository interface {
	Insert(ctx context.Context, w Worker) error
	Get(ctx context.Context, address string) (Worker, error)
	Update(ctx context.Context, w Worker) error
	AppendActive(ctx context.Context, employer, address string) error
	RemoveActive(ctx context.Context, employer, address string) error
	ActiveByEmployer(ctx context.Context, employer string, start, limit int) ([]string, error)
	CountActive(ctx context.Context, employer string) (int, error)
}

// PostgresRepository stores workers in PostgreSQL. The active index lives
// in worker_index rows keyed by (employer, slot).
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert persists a new worker profile.
func (r *PostgresRepository) Insert(ctx context.Context, w Worker) error {
	_, err := r.db.Exec(ctx, `INSERT INTO workers (address, employer, name, role, active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		w.Address, w.Employer, w.Name, w.Role, w.Active, w.CreatedAt)
	return err
}

// Get fetches a worker by address.
func (r *PostgresRepository) Get(ctx context.Context, address string) (Worker, error) {
	row := r.db.QueryRow(ctx, `SELECT address, employer, name, role, active, created_at
        FROM workers WHERE address = $1`, address)
	var w Worker
	if err := row.Scan(&w.Address, &w.Employer, &w.Name, &w.Role, &w.Active, &w.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Worker{}, ErrWorkerNotFound
		}
		return Worker{}, err
	}
	return w, nil
}

// Update rewrites the mutable fields of a worker profile.
func (r *PostgresRepository) Update(ctx context.Context, w Worker) error {
	cmd, err := r.db.Exec(ctx, `UPDATE workers SET name = $1, role = $2, active = $3 WHERE address = $4`,
		w.Name, w.Role, w.Active, w.Address)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrWorkerNotFound
	}
	return nil
}

// AppendActive adds the worker to the tail of the employer's active index.
func (r *PostgresRepository) AppendActive(ctx context.Context, employer, address string) error {
	_, err := r.db.Exec(ctx, `INSERT INTO worker_index (employer, slot, address)
        SELECT $1, COALESCE(MAX(slot) + 1, 0), $2 FROM worker_index WHERE employer = $1`,
		employer, address)
	return err
}

// RemoveActive detaches the worker from the employer's active index using
// swap-with-last: the tail row takes the vacated slot.
func (r *PostgresRepository) RemoveActive(ctx context.Context, employer, address string) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var slot int64
	if err := tx.QueryRow(ctx, `SELECT slot FROM worker_index WHERE employer = $1 AND address = $2`,
		employer, address).Scan(&slot); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("worker %s missing from active index of %s", address, employer)
		}
		return err
	}

	var lastSlot int64
	var lastAddress string
	if err := tx.QueryRow(ctx, `SELECT slot, address FROM worker_index
        WHERE employer = $1 ORDER BY slot DESC LIMIT 1`, employer).Scan(&lastSlot, &lastAddress); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM worker_index WHERE employer = $1 AND slot = $2`,
		employer, lastSlot); err != nil {
		return err
	}
	if lastAddress != address {
		if _, err := tx.Exec(ctx, `UPDATE worker_index SET address = $1 WHERE employer = $2 AND slot = $3`,
			lastAddress, employer, slot); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ActiveByEmployer returns one page of active worker addresses.
func (r *PostgresRepository) ActiveByEmployer(ctx context.Context, employer string, start, limit int) ([]string, error) {
	if start < 0 || limit <= 0 {
		return []string{}, nil
	}
	rows, err := r.db.Query(ctx, `SELECT address FROM worker_index
        WHERE employer = $1 ORDER BY slot OFFSET $2 LIMIT $3`, employer, start, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	addresses := make([]string, 0)
	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			return nil, err
		}
		addresses = append(addresses, address)
	}
	return addresses, rows.Err()
}

// CountActive returns the size of the employer's active index.
func (r *PostgresRepository) CountActive(ctx context.Context, employer string) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM worker_index WHERE employer = $1`,
		employer).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
