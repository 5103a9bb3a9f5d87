package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quipay/quipay/internal/config"
	"github.com/quipay/quipay/internal/identity"
)

// ErrInvalidToken covers malformed, expired, mis-signed and version-stale
// tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload. The subject is the account id; the token
// version lets logout invalidate every outstanding token at once.
type Claims struct {
	jwt.RegisteredClaims
	Role         string `json:"role"`
	TokenVersion int    `json:"ver"`
}

// Service issues and verifies the access/refresh token pair.
type Service struct {
	cfg      config.Config
	accounts identity.Repository
}

// NewService creates an auth service over the account repository.
func NewService(cfg config.Config, accounts identity.Repository) *Service {
	return &Service{cfg: cfg, accounts: accounts}
}

// TokenPair bundles the signed tokens returned on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login issues a token pair for an authenticated account.
func (s *Service) Login(account identity.Account) (TokenPair, error) {
	return s.issue(account)
}

// Refresh verifies the refresh token against the current token version and
// rotates the pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := parse(refreshToken, s.cfg.RefreshSecret)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}

	account, err := s.accounts.FindByID(ctx, claims.Subject)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	if account.TokenVersion != claims.TokenVersion {
		return TokenPair{}, ErrInvalidToken
	}

	return s.issue(account)
}

// Logout bumps the token version so every outstanding token becomes
// invalid.
func (s *Service) Logout(ctx context.Context, accountID string) error {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	return s.accounts.UpdateTokenVersion(ctx, account.ID, account.TokenVersion+1)
}

// VerifyAccess validates an access token and returns its claims. The
// caller still has to compare the token version against the account.
func (s *Service) VerifyAccess(token string) (*Claims, error) {
	return parse(token, s.cfg.JWTSecret)
}

func (s *Service) issue(account identity.Account) (TokenPair, error) {
	access, err := sign(account, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := sign(account, s.cfg.RefreshSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

func sign(account identity.Account, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:         account.Role,
		TokenVersion: account.TokenVersion,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parse(token, secret string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
