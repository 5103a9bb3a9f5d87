package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/quipay/quipay/internal/gateway"
	"github.com/quipay/quipay/internal/middleware"
)

// RegisterAgentRoutes wires agent gateway endpoints. Granting and revoking
// permissions is admin territory; execute-payroll is open to any
// authenticated principal and gated by the agent's own permission set.
func RegisterAgentRoutes(r fiber.Router, h *gateway.Handler, idem fiber.Handler) {
	group := r.Group("/agents")
	group.Post("", middleware.RequireAdmin(), h.Register)
	group.Get("", middleware.RequireAdmin(), h.List)
	group.Post("/execute-payroll", idem, h.ExecutePayroll)
	group.Get("/:address", h.Get)
	group.Delete("/:address", middleware.RequireAdmin(), h.Revoke)
}
