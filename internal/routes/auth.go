package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/quipay/quipay/internal/auth"
)

// RegisterAuthRoutes wires authentication endpoints. Logout needs a valid
// access token; everything else is public.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, jwtmw, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/register", h.Register)
	if rateLimiter != nil {
		group.Post("/login", rateLimiter, h.Login)
	} else {
		group.Post("/login", h.Login)
	}
	group.Post("/refresh", h.Refresh)
	group.Post("/logout", jwtmw, h.Logout)
}
