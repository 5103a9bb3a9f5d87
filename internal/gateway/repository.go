package gateway

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAgentNotFound is returned when an agent address is not registered.
var ErrAgentNotFound = errors.New("agent not found")

// Repository persists agents.
type Repository interface {
	Put(ctx context.Context, agent Agent) error
	Get(ctx context.Context, address string) (Agent, error)
	Remove(ctx context.Context, address string) error
	List(ctx context.Context) ([]Agent, error)
}

// PostgresRepository persists agents in PostgreSQL, permissions as a
// text array.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Put upserts an agent record.
func (r *PostgresRepository) Put(ctx context.Context, agent Agent) error {
	_, err := r.db.Exec(ctx, `INSERT INTO agents (address, permissions, registered_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (address) DO UPDATE SET permissions = EXCLUDED.permissions`,
		agent.Address, agent.Permissions, agent.RegisteredAt)
	return err
}

// Get fetches an agent by address.
func (r *PostgresRepository) Get(ctx context.Context, address string) (Agent, error) {
	row := r.db.QueryRow(ctx, `SELECT address, permissions, registered_at FROM agents WHERE address = $1`, address)
	var a Agent
	if err := row.Scan(&a.Address, &a.Permissions, &a.RegisteredAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Agent{}, ErrAgentNotFound
		}
		return Agent{}, err
	}
	return a, nil
}

// Remove deletes an agent. Removing an unknown address is a no-op.
func (r *PostgresRepository) Remove(ctx context.Context, address string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM agents WHERE address = $1`, address)
	return err
}

// List returns all registered agents.
func (r *PostgresRepository) List(ctx context.Context) ([]Agent, error) {
	rows, err := r.db.Query(ctx, `SELECT address, permissions, registered_at FROM agents ORDER BY registered_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.Address, &a.Permissions, &a.RegisteredAt); err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}
