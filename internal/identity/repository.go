package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAccountNotFound indicates the handle or id matches no account.
var ErrAccountNotFound = errors.New("account not found")

// ErrAccountExists indicates the handle is already taken.
var ErrAccountExists = errors.New("account exists")

// Repository persists accounts.
type Repository interface {
	Create(ctx context.Context, account Account) error
	FindByHandle(ctx context.Context, handle string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	UpdateTokenVersion(ctx context.Context, id string, version int) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed account repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new account.
func (r *PostgresRepository) Create(ctx context.Context, account Account) error {
	accountID, err := uuid.Parse(account.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO accounts (id, handle, role, secret_hash, token_version, created_at, last_login)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		accountID, account.Handle, account.Role, account.SecretHash, account.TokenVersion,
		account.CreatedAt.UTC(), account.LastLogin.UTC())
	return err
}

// FindByHandle fetches an account by its handle.
func (r *PostgresRepository) FindByHandle(ctx context.Context, handle string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT id, handle, role, secret_hash, token_version, created_at, last_login
        FROM accounts WHERE handle = $1`, handle)
	return scanAccount(row)
}

// FindByID fetches an account by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrAccountNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, handle, role, secret_hash, token_version, created_at, last_login
        FROM accounts WHERE id = $1`, accountID)
	return scanAccount(row)
}

// UpdateTokenVersion stores the account's current token version.
func (r *PostgresRepository) UpdateTokenVersion(ctx context.Context, id string, version int) error {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return ErrAccountNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET token_version = $1 WHERE id = $2`, version, accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// UpdateLastLogin stamps the most recent successful authentication.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return ErrAccountNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET last_login = $1 WHERE id = $2`, at.UTC(), accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		id                   uuid.UUID
		createdAt, lastLogin time.Time
		account              Account
	)
	if err := row.Scan(&id, &account.Handle, &account.Role, &account.SecretHash, &account.TokenVersion, &createdAt, &lastLogin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	account.ID = id.String()
	account.CreatedAt = createdAt.UTC()
	account.LastLogin = lastLogin.UTC()
	return account, nil
}
