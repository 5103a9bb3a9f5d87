package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/quipay/quipay/internal/auth"
	"github.com/quipay/quipay/internal/identity"
)

// Locals keys set by JWTAuth. Handlers read the acting principal from
// LocalsAccountID and pass it to the services as the caller.
const (
	LocalsAccountID = "account_id"
	LocalsRole      = "role"
)

// JWTAuth validates bearer access tokens and checks the token version
// against the account, so logout invalidates tokens immediately.
func JWTAuth(authSvc *auth.Service, accounts identity.Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])

		claims, err := authSvc.VerifyAccess(token)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		account, err := accounts.FindByID(c.UserContext(), claims.Subject)
		if err != nil || account.TokenVersion != claims.TokenVersion {
			return fiber.NewError(http.StatusUnauthorized, "token invalidated")
		}

		c.Locals(LocalsAccountID, account.ID)
		c.Locals(LocalsRole, account.Role)
		return c.Next()
	}
}

// RequireAdmin rejects callers whose account role is not admin. It must
// run after JWTAuth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(LocalsRole).(string)
		if role != identity.RoleAdmin {
			return fiber.NewError(http.StatusForbidden, "admin role required")
		}
		return c.Next()
	}
}
