package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/quipay/quipay/internal/auth"
	"github.com/quipay/quipay/internal/config"
	"github.com/quipay/quipay/internal/identity"
)

func setupAuthApp(t *testing.T) (*fiber.App, *auth.Service, *identity.Service) {
	t.Helper()
	repo := identity.NewMemoryRepository()
	ids := identity.NewService(repo)
	cfg := config.Config{
		JWTSecret:       "access-secret",
		RefreshSecret:   "refresh-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}
	authSvc := auth.NewService(cfg, repo)

	app := fiber.New()
	protected := app.Group("", JWTAuth(authSvc, repo))
	protected.Get("/whoami", func(c *fiber.Ctx) error {
		id, _ := c.Locals(LocalsAccountID).(string)
		return c.JSON(fiber.Map{"account_id": id})
	})
	admin := protected.Group("", RequireAdmin())
	admin.Get("/admin-only", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	return app, authSvc, ids
}

func get(t *testing.T, app *fiber.App, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test %s: %v", path, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	app, authSvc, ids := setupAuthApp(t)
	ctx := context.Background()

	account, err := ids.Register(ctx, identity.Credentials{Handle: "worker-1", Secret: "super secret"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	pair, err := authSvc.Login(account)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if status := get(t, app, "/whoami", pair.AccessToken); status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if status := get(t, app, "/whoami", ""); status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
	if status := get(t, app, "/whoami", "garbage"); status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", status)
	}
}

func TestJWTAuthRejectsLoggedOutToken(t *testing.T) {
	app, authSvc, ids := setupAuthApp(t)
	ctx := context.Background()

	account, err := ids.Register(ctx, identity.Credentials{Handle: "worker-2", Secret: "super secret"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	pair, err := authSvc.Login(account)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := authSvc.Logout(ctx, account.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}

	// The still-unexpired access token carries a stale version now.
	if status := get(t, app, "/whoami", pair.AccessToken); status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", status)
	}
}

func TestRequireAdmin(t *testing.T) {
	app, authSvc, ids := setupAuthApp(t)
	ctx := context.Background()

	user, err := ids.Register(ctx, identity.Credentials{Handle: "worker-3", Secret: "super secret"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	userPair, err := authSvc.Login(user)
	if err != nil {
		t.Fatalf("login user: %v", err)
	}

	admin, err := ids.EnsureAdmin(ctx, "admin", "admin secret")
	if err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	adminPair, err := authSvc.Login(admin)
	if err != nil {
		t.Fatalf("login admin: %v", err)
	}

	if status := get(t, app, "/admin-only", userPair.AccessToken); status != fiber.StatusForbidden {
		t.Fatalf("expected 403 for user role, got %d", status)
	}
	if status := get(t, app, "/admin-only", adminPair.AccessToken); status != fiber.StatusOK {
		t.Fatalf("expected 200 for admin role, got %d", status)
	}
}
