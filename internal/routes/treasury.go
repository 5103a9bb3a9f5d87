package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/quipay/quipay/internal/middleware"
	"github.com/quipay/quipay/internal/treasury"
)

// RegisterTreasuryRoutes wires treasury endpoints.
func RegisterTreasuryRoutes(r fiber.Router, h *treasury.Handler, idem fiber.Handler) {
	group := r.Group("/treasury")
	group.Post("/authorized-caller", middleware.RequireAdmin(), h.SetAuthorizedCaller)
	group.Post("/transfer-admin", middleware.RequireAdmin(), h.TransferAdmin)
	group.Post("/:asset/deposit", idem, h.Deposit)
	group.Post("/:asset/withdraw", idem, h.WithdrawFree)
	group.Get("/:asset", h.Entry)
}
