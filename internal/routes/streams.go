package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/quipay/quipay/internal/middleware"
	"github.com/quipay/quipay/internal/stream"
)

// RegisterStreamRoutes wires stream engine endpoints plus the admin pause
// and retention switches.
func RegisterStreamRoutes(r fiber.Router, h *stream.Handler, idem fiber.Handler) {
	group := r.Group("/streams")
	group.Post("", idem, h.Create)
	group.Get("", h.List)
	group.Post("/withdraw-batch", idem, h.WithdrawBatch)
	group.Get("/:id", h.Get)
	group.Post("/:id/withdraw", idem, h.Withdraw)
	group.Post("/:id/cancel", h.Cancel)
	group.Delete("/:id", h.Cleanup)

	admin := r.Group("/admin", middleware.RequireAdmin())
	admin.Post("/pause", h.SetPaused)
	admin.Post("/retention", h.SetRetention)
}
