package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/quipay/quipay/internal/registry"
)

// RegisterWorkerRoutes wires worker directory endpoints.
func RegisterWorkerRoutes(r fiber.Router, h *registry.Handler) {
	group := r.Group("/workers")
	group.Post("", h.Register)
	group.Get("", h.ListByEmployer)
	group.Get("/:address", h.Get)
	group.Put("/:address", h.Update)
	group.Post("/:address/deactivate", h.Deactivate)
	group.Post("/:address/reactivate", h.Reactivate)
}
