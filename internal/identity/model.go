package identity

import "time"

// Roles carried in access tokens. Admin accounts operate the treasury
// margin, the pause switch and the agent registry.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account represents a registered principal. The ID doubles as the
// principal identifier the payroll services authorize against.
type Account struct {
	ID           string
	Handle       string
	SecretHash   []byte
	Role         string
	TokenVersion int
	CreatedAt    time.Time
	LastLogin    time.Time
}

// Credentials request structure.
type Credentials struct {
	Handle string
	Secret string
}
