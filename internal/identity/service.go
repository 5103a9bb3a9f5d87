package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minSecretLength = 8

// Service manages account lifecycle.
type Service struct {
	repo Repository
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register creates a new user account with a hashed secret.
func (s *Service) Register(ctx context.Context, creds Credentials) (Account, error) {
	return s.register(ctx, creds, RoleUser)
}

// EnsureAdmin returns the admin account for the handle, creating it on
// first boot. Wiring uses the returned ID as the admin principal for the
// treasury and the stream engine.
func (s *Service) EnsureAdmin(ctx context.Context, handle, secret string) (Account, error) {
	account, err := s.repo.FindByHandle(ctx, handle)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return Account{}, err
	}
	return s.register(ctx, Credentials{Handle: handle, Secret: secret}, RoleAdmin)
}

func (s *Service) register(ctx context.Context, creds Credentials, role string) (Account, error) {
	if creds.Handle == "" {
		return Account{}, errors.New("handle is required")
	}
	if len(creds.Secret) < minSecretLength {
		return Account{}, errors.New("secret must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Secret), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}

	account := Account{
		ID:         uuid.New().String(),
		Handle:     creds.Handle,
		SecretHash: hash,
		Role:       role,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return Account{}, err
	}

	return account, nil
}

// Authenticate verifies credentials and stamps the login time.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (Account, error) {
	account, err := s.repo.FindByHandle(ctx, creds.Handle)
	if err != nil {
		return Account{}, err
	}

	if err := bcrypt.CompareHashAndPassword(account.SecretHash, []byte(creds.Secret)); err != nil {
		return Account{}, errors.New("invalid secret")
	}

	account.LastLogin = time.Now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, account.ID, account.LastLogin); err != nil {
		return Account{}, err
	}

	return account, nil
}

// Get fetches an account by identifier.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.repo.FindByID(ctx, id)
}
