package registry

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/quipay/quipay/internal/types"
)

// Handler exposes worker directory endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a worker directory handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerWorkerRequest struct {
	Address  string `json:"address"`
	Employer string `json:"employer"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type workerResponse struct {
	Address   string `json:"address"`
	Employer  string `json:"employer"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Active    bool   `json:"active"`
	CreatedAt int64  `json:"created_at"`
}

func toWorkerResponse(w Worker) workerResponse {
	return workerResponse{
		Address:   w.Address,
		Employer:  w.Employer,
		Name:      w.Name,
		Role:      w.Role,
		Active:    w.Active,
		CreatedAt: w.CreatedAt,
	}
}

// Register creates a worker profile for an employer.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerWorkerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	caller, _ := c.Locals("account_id").(string)

	w, err := h.service.Register(c.UserContext(), caller, RegisterInput{
		Address:  req.Address,
		Employer: req.Employer,
		Name:     req.Name,
		Role:     req.Role,
	})
	if err != nil {
		switch {
		case errors.Is(err, types.ErrUnauthorized):
			return fiber.NewError(http.StatusForbidden, "not the employer")
		case errors.Is(err, ErrWorkerExists):
			return fiber.NewError(http.StatusConflict, "worker already registered")
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(toWorkerResponse(w))
}

// Get returns one worker profile.
func (h *Handler) Get(c *fiber.Ctx) error {
	w, err := h.service.Get(c.UserContext(), c.Params("address"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if w == nil {
		return fiber.NewError(http.StatusNotFound, "worker not found")
	}
	return c.Status(http.StatusOK).JSON(toWorkerResponse(*w))
}

type updateWorkerRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Update changes a worker's name and role.
func (h *Handler) Update(c *fiber.Ctx) error {
	var req updateWorkerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	caller, _ := c.Locals("account_id").(string)

	w, err := h.service.UpdateProfile(c.UserContext(), caller, c.Params("address"), req.Name, req.Role)
	if err != nil {
		return workerError(err)
	}
	return c.Status(http.StatusOK).JSON(toWorkerResponse(w))
}

// Deactivate drops the worker from the employer's active roster.
func (h *Handler) Deactivate(c *fiber.Ctx) error {
	caller, _ := c.Locals("account_id").(string)
	if err := h.service.Deactivate(c.UserContext(), caller, c.Params("address")); err != nil {
		return workerError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "inactive"})
}

// Reactivate restores the worker to the employer's active roster.
func (h *Handler) Reactivate(c *fiber.Ctx) error {
	caller, _ := c.Locals("account_id").(string)
	if err := h.service.Reactivate(c.UserContext(), caller, c.Params("address")); err != nil {
		return workerError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "active"})
}

// ListByEmployer returns one page of an employer's active workers.
func (h *Handler) ListByEmployer(c *fiber.Ctx) error {
	employer := c.Query("employer")
	if employer == "" {
		return fiber.NewError(http.StatusBadRequest, "employer query parameter is required")
	}
	start := c.QueryInt("start", 0)
	limit := c.QueryInt("limit", 50)

	workers, err := h.service.ListByEmployer(c.UserContext(), employer, start, limit)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	total, err := h.service.CountByEmployer(c.UserContext(), employer)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	out := make([]workerResponse, len(workers))
	for i, w := range workers {
		out[i] = toWorkerResponse(w)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"workers": out,
		"start":   start,
		"total":   total,
	})
}

func workerError(err error) error {
	switch {
	case errors.Is(err, types.ErrUnauthorized):
		return fiber.NewError(http.StatusForbidden, "not allowed")
	case errors.Is(err, ErrWorkerNotFound):
		return fiber.NewError(http.StatusNotFound, "worker not found")
	default:
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
}
